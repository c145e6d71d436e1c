package main

import (
	"strings"
	"testing"

	"github.com/mmynk/splitthat/internal/models"
)

func TestSplitMarkdown(t *testing.T) {
	split := &models.Split{
		Merchant: "Corner Deli",
		Items: []models.Item{
			{Name: "Pizza", Price: 20, AssignedTo: []string{"Alice", "Bob"}, Status: models.StatusShopped, Confidence: models.ConfidenceHigh},
			{Name: "Beer | pint", Quantity: "2", Price: 9, AssignedTo: []string{"Bob"}, Status: models.StatusShopped, Confidence: models.ConfidenceLow},
			{Name: "Salad", Price: 7, AssignedTo: []string{"Alice"}, Status: models.StatusCancelled, Confidence: models.ConfidenceHigh},
		},
		Tax: &models.AssigneeAmount{Amount: 2.5, AssignedTo: []string{"Alice", "Bob"}},
	}

	md, err := splitMarkdown(split, []string{"Bob", "Alice"}, []string{"total: receipt says 40, items add up to 31.5"})
	if err != nil {
		t.Fatalf("splitMarkdown failed: %v", err)
	}

	for _, want := range []string{
		"# Corner Deli",
		`Beer \| pint ⚠`,
		"~~Salad~~",
		"**Tax:** $2.50 (Alice, Bob)",
		"- Bob: $20.25\n- Alice: $11.25",
		"## Check",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("Expected %q in output:\n%s", want, md)
		}
	}
	if strings.Contains(md, "Tip") {
		t.Errorf("Expected no tip line:\n%s", md)
	}
}

func TestOwedOrder(t *testing.T) {
	shares := map[string]int{"Carol": 1, "Alice": 2, "Bob": 3, "Dan": 4}
	got := owedOrder([]string{"Bob", "Alice", "Eve"}, shares)
	want := []string{"Bob", "Alice", "Carol", "Dan"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("owedOrder() = %v, want %v", got, want)
	}
}

func TestSplitNames(t *testing.T) {
	got := splitNames(" Alice, ,Bob ,")
	if len(got) != 2 || got[0] != "Alice" || got[1] != "Bob" {
		t.Errorf("splitNames() = %v", got)
	}
}
