package calculator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/mmynk/splitthat/internal/models"
)

// DefaultCurrency is used when a split or request does not name one.
const DefaultCurrency = money.USD

var ErrUnknownCurrency = errors.New("unknown currency code")

// Currency resolves an ISO 4217 code, falling back to DefaultCurrency for an
// empty code.
func Currency(code string) (*money.Currency, error) {
	if code == "" {
		code = DefaultCurrency
	}
	c := money.GetCurrency(strings.ToUpper(code))
	if c == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCurrency, code)
	}
	return c, nil
}

// OwedShares computes how much each participant owes for a split.
//
// Every non-cancelled item is divided equally among its assignees, and so are
// tax and tip. Amounts are handled in the currency's minor unit; when an
// amount does not divide evenly the leftover units go to the first assignees
// in the order they are listed, so the shares always add up to the amount.
func OwedShares(split *models.Split, currencyCode string) (map[string]decimal.Decimal, error) {
	cur, err := Currency(currencyCode)
	if err != nil {
		return nil, err
	}

	shares := make(map[string]decimal.Decimal)
	for _, item := range split.Items {
		if item.Status == models.StatusCancelled {
			continue
		}
		if err := distribute(shares, item.Price, item.AssignedTo, cur.Fraction); err != nil {
			return nil, fmt.Errorf("item %q: %w", item.Name, err)
		}
	}
	for name, extra := range map[string]*models.AssigneeAmount{"tax": split.Tax, "tip": split.Tip} {
		if extra == nil {
			continue
		}
		if err := distribute(shares, extra.Amount, extra.AssignedTo, cur.Fraction); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}
	return shares, nil
}

func distribute(shares map[string]decimal.Decimal, amount float64, assignees []string, fraction int) error {
	if len(assignees) == 0 {
		return fmt.Errorf("no assignees")
	}
	if amount < 0 {
		return fmt.Errorf("negative amount %v", amount)
	}

	scale := decimal.New(1, int32(fraction))
	units := decimal.NewFromFloat(amount).Mul(scale).Round(0).IntPart()
	n := int64(len(assignees))
	base, rem := units/n, units%n

	for i, person := range assignees {
		u := base
		if int64(i) < rem {
			u++
		}
		shares[person] = shares[person].Add(decimal.New(u, -int32(fraction)))
	}
	return nil
}

// Round rounds an amount to the minor unit of the given currency.
func Round(amount float64, cur *money.Currency) decimal.Decimal {
	return decimal.NewFromFloat(amount).Round(int32(cur.Fraction))
}

// Format renders an amount the way the currency is usually displayed
// (e.g., "$12.50").
func Format(amount decimal.Decimal, cur *money.Currency) string {
	units := amount.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(units, cur.Code).Display()
}
