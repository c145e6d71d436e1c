// Package ledger defines the external shared-expense ledger the service
// publishes to.
package ledger

import (
	"context"
	"strings"

	"golang.org/x/oauth2"

	"github.com/mmynk/splitthat/internal/models"
)

// Expense is an expense as recorded at the ledger.
type Expense struct {
	Cost        float64
	Description string
	// Currency is an ISO 4217 code. Empty means the ledger's default.
	Currency string
	GroupID  *int64
	Users    []models.UserShare
}

// ExpenseFromRequest builds the ledger expense for a publish request.
func ExpenseFromRequest(req *models.PublishRequest) *Expense {
	return &Expense{
		Cost:        req.Cost,
		Description: req.Description,
		Currency:    req.Currency,
		GroupID:     req.GroupID,
		Users:       req.Users,
	}
}

// Client is one user's authenticated session with the ledger.
type Client interface {
	// CreateExpense records a new expense and returns its ledger ID.
	CreateExpense(ctx context.Context, e *Expense) (int64, error)

	// UpdateExpense replaces the fields of an existing expense.
	UpdateExpense(ctx context.Context, expenseID int64, e *Expense) error

	// CreateComment attaches a comment to an expense.
	CreateComment(ctx context.Context, expenseID int64, content string) error

	// CurrentUser returns the user the session belongs to.
	CurrentUser(ctx context.Context) (*models.Participant, error)

	// Friends returns the user's friends.
	Friends(ctx context.Context) ([]models.Participant, error)

	// Groups returns the user's groups with their members.
	Groups(ctx context.Context) ([]models.Group, error)
}

// Factory opens a ledger session with a user's credential. A session is
// created per operation and never shared between users.
type Factory func(ctx context.Context, tok *oauth2.Token) Client

// RejectedError carries the ledger's own error messages, unmodified.
type RejectedError struct {
	Errors []string
}

func (e *RejectedError) Error() string {
	return "ledger rejected request: " + strings.Join(e.Errors, "; ")
}
