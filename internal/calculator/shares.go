package calculator

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitthat/internal/models"
)

var (
	ErrNegativeShare = errors.New("shares must not be negative")
	ErrNoUsers       = errors.New("at least one user share is required")
)

// ShareMismatchError reports that the shares of a request do not add up to
// its cost. Requests are never rebalanced; the caller has to fix them.
type ShareMismatchError struct {
	Field string // "paid_share" or "owed_share"
	Cost  decimal.Decimal
	Sum   decimal.Decimal
}

func (e *ShareMismatchError) Error() string {
	return fmt.Sprintf("sum of %s (%s) does not match cost (%s)", e.Field, e.Sum.String(), e.Cost.String())
}

// CheckShares validates the user shares of a publish request against its
// cost. Amounts are compared after rounding to the currency's minor unit.
func CheckShares(req *models.PublishRequest) error {
	cur, err := Currency(req.Currency)
	if err != nil {
		return err
	}
	if len(req.Users) == 0 {
		return ErrNoUsers
	}
	if req.Cost < 0 {
		return fmt.Errorf("cost: %w", ErrNegativeShare)
	}

	paid, owed := decimal.Zero, decimal.Zero
	for _, u := range req.Users {
		if u.PaidShare < 0 || u.OwedShare < 0 {
			return fmt.Errorf("user %d: %w", u.UserID, ErrNegativeShare)
		}
		paid = paid.Add(Round(u.PaidShare, cur))
		owed = owed.Add(Round(u.OwedShare, cur))
	}

	cost := Round(req.Cost, cur)
	if !paid.Equal(cost) {
		return &ShareMismatchError{Field: "paid_share", Cost: cost, Sum: paid}
	}
	if !owed.Equal(cost) {
		return &ShareMismatchError{Field: "owed_share", Cost: cost, Sum: owed}
	}
	return nil
}
