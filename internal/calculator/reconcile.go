package calculator

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitthat/internal/models"
)

// Discrepancy is a difference between what the receipt reports and what its
// items add up to.
type Discrepancy struct {
	Field    string          `json:"field"`
	Reported decimal.Decimal `json:"reported"`
	Computed decimal.Decimal `json:"computed"`
}

func (d Discrepancy) String() string {
	return fmt.Sprintf("%s: receipt says %s, items add up to %s", d.Field, d.Reported.String(), d.Computed.String())
}

// Reconcile compares the reported subtotal and total of a split with the sum
// of its parts. It only reports; the split is left untouched. Cancelled items
// are not counted.
func Reconcile(split *models.Split) ([]Discrepancy, error) {
	cur, err := Currency(split.Currency)
	if err != nil {
		return nil, err
	}

	subtotal := decimal.Zero
	for _, item := range split.Items {
		if item.Status == models.StatusCancelled {
			continue
		}
		subtotal = subtotal.Add(Round(item.Price, cur))
	}
	total := subtotal
	if split.Tax != nil {
		total = total.Add(Round(split.Tax.Amount, cur))
	}
	if split.Tip != nil {
		total = total.Add(Round(split.Tip.Amount, cur))
	}

	var found []Discrepancy
	if split.Subtotal != nil {
		if reported := Round(*split.Subtotal, cur); !reported.Equal(subtotal) {
			found = append(found, Discrepancy{Field: "subtotal", Reported: reported, Computed: subtotal})
		}
	}
	if split.Total != nil {
		if reported := Round(*split.Total, cur); !reported.Equal(total) {
			found = append(found, Discrepancy{Field: "total", Reported: reported, Computed: total})
		}
	}
	return found, nil
}
