package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/mmynk/splitthat/internal/calculator"
	"github.com/mmynk/splitthat/internal/models"
)

// splitMarkdown renders a split as a markdown report: one table row per
// item, then tax, tip and what each participant owes.
func splitMarkdown(split *models.Split, participants []string, warnings []string) (string, error) {
	cur, err := calculator.Currency(split.Currency)
	if err != nil {
		return "", err
	}
	shares, err := calculator.OwedShares(split, cur.Code)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	title := "Receipt"
	if split.Merchant != "" {
		title = split.Merchant
	}
	fmt.Fprintf(&b, "# %s\n\n", title)

	b.WriteString("| Item | Qty | Price | Split between | Status |\n")
	b.WriteString("|---|---|---:|---|---|\n")
	for _, item := range split.Items {
		name := item.Name
		if item.Confidence == models.ConfidenceLow {
			name += " ⚠"
		}
		if item.Status == models.StatusCancelled {
			name = "~~" + name + "~~"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
			escapeCell(name),
			escapeCell(item.Quantity),
			calculator.Format(calculator.Round(item.Price, cur), cur),
			escapeCell(strings.Join(item.AssignedTo, ", ")),
			item.Status,
		)
	}
	b.WriteString("\n")

	for _, extra := range []struct {
		label  string
		amount *models.AssigneeAmount
	}{{"Tax", split.Tax}, {"Tip", split.Tip}} {
		if extra.amount == nil {
			continue
		}
		fmt.Fprintf(&b, "**%s:** %s (%s)\n\n", extra.label,
			calculator.Format(calculator.Round(extra.amount.Amount, cur), cur),
			strings.Join(extra.amount.AssignedTo, ", "))
	}

	b.WriteString("## Owed\n\n")
	for _, name := range owedOrder(participants, shares) {
		fmt.Fprintf(&b, "- %s: %s\n", name, calculator.Format(shares[name], cur))
	}

	if len(warnings) > 0 {
		b.WriteString("\n## Check\n\n")
		for _, w := range warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}
	return b.String(), nil
}

// owedOrder lists participants in the order given, followed by any other
// names that appear in shares.
func owedOrder[V any](participants []string, shares map[string]V) []string {
	seen := make(map[string]bool, len(participants))
	order := make([]string, 0, len(shares))
	for _, p := range participants {
		if _, ok := shares[p]; ok && !seen[p] {
			seen[p] = true
			order = append(order, p)
		}
	}
	var rest []string
	for name := range shares {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(order, rest...)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func printMarkdown(md string) {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err == nil {
		if out, err := r.Render(md); err == nil {
			fmt.Print(out)
			return
		}
	}
	fmt.Fprintln(os.Stderr, "warning: markdown rendering failed, printing raw output")
	fmt.Print(md)
}
