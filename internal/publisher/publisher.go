// Package publisher records splits at the ledger and keeps the local store
// and cache in step with what the ledger holds.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/oauth2"

	"github.com/mmynk/splitthat/internal/cache"
	"github.com/mmynk/splitthat/internal/calculator"
	"github.com/mmynk/splitthat/internal/ledger"
	"github.com/mmynk/splitthat/internal/metrics"
	"github.com/mmynk/splitthat/internal/models"
	"github.com/mmynk/splitthat/internal/storage"
)

// ErrForbidden is returned when a split belongs to another user.
var ErrForbidden = storage.ErrForbidden

// Mode is whether a publish creates a new ledger expense or updates one.
type Mode string

const (
	ModeCreate Mode = "create"
	ModeUpdate Mode = "update"
)

// DesyncError means the ledger accepted the expense but the local record
// could not be written. The expense exists at the ledger with no local
// split and has to be reconciled by an operator.
type DesyncError struct {
	Mode      Mode
	ExpenseID int64
	Err       error
}

func (e *DesyncError) Error() string {
	return fmt.Sprintf("ledger expense %d was saved (%s) but the local record was not: %v", e.ExpenseID, e.Mode, e.Err)
}

func (e *DesyncError) Unwrap() error { return e.Err }

// Owner is the user a publish acts for.
type Owner struct {
	UserID     string
	Credential *oauth2.Token
}

// Result describes a completed publish.
type Result struct {
	Mode      Mode
	ExpenseID int64
	Split     *models.PersistedSplit

	// CommentErr is set when the expense and local record were saved but
	// the comment could not be attached. Publishing again with the same
	// expense ID retries it.
	CommentErr error
}

// Partial reports whether the publish succeeded without its comment.
func (r *Result) Partial() bool { return r.CommentErr != nil }

// Publisher creates and updates ledger expenses.
type Publisher struct {
	store  storage.SplitStore
	cache  *cache.SplitCache
	ledger ledger.Factory
}

// New creates a Publisher.
func New(store storage.SplitStore, splits *cache.SplitCache, factory ledger.Factory) *Publisher {
	return &Publisher{store: store, cache: splits, ledger: factory}
}

// Publish records req at the ledger. Without an expense ID a new expense
// and a new local split are created; with one, the expense is updated and
// the local split holding that expense ID is overwritten in place.
//
// A retried create is not idempotent and produces a second expense.
func (p *Publisher) Publish(ctx context.Context, owner Owner, req *models.PublishRequest) (*Result, error) {
	mode := ModeCreate
	if req.ExpenseID != nil {
		mode = ModeUpdate
	}

	res, err := p.publish(ctx, owner, req, mode)
	metrics.Publishes.WithLabelValues(string(mode), outcome(res, err)).Inc()
	return res, err
}

func (p *Publisher) publish(ctx context.Context, owner Owner, req *models.PublishRequest, mode Mode) (*Result, error) {
	if err := calculator.CheckShares(req); err != nil {
		return nil, err
	}

	var existing *models.PersistedSplit
	if mode == ModeUpdate {
		found, err := p.store.GetSplitByExpenseID(ctx, *req.ExpenseID)
		switch {
		case errors.Is(err, storage.ErrNotFound):
		case err != nil:
			return nil, err
		case found.OwnerID != owner.UserID:
			return nil, ErrForbidden
		default:
			existing = found
		}
	}

	client := p.ledger(ctx, owner.Credential)
	expense := ledger.ExpenseFromRequest(req)

	var expenseID int64
	switch mode {
	case ModeCreate:
		id, err := client.CreateExpense(ctx, expense)
		if err != nil {
			return nil, fmt.Errorf("failed to create expense: %w", err)
		}
		expenseID = id
	case ModeUpdate:
		expenseID = *req.ExpenseID
		if err := client.UpdateExpense(ctx, expenseID, expense); err != nil {
			return nil, fmt.Errorf("failed to update expense %d: %w", expenseID, err)
		}
	}

	payload := *req
	payload.ExpenseID = &expenseID

	split, err := p.record(ctx, owner.UserID, existing, &payload)
	if err != nil {
		slog.Error("Ledger expense has no local record",
			"expense_id", expenseID,
			"mode", mode,
			"user_id", owner.UserID,
			"error", err,
		)
		return nil, &DesyncError{Mode: mode, ExpenseID: expenseID, Err: err}
	}

	p.invalidate(ctx, owner.UserID, split.ID)

	result := &Result{Mode: mode, ExpenseID: expenseID, Split: split}
	if comment := strings.TrimSpace(req.Comment); comment != "" {
		if err := client.CreateComment(ctx, expenseID, comment); err != nil {
			slog.Warn("Failed to attach comment", "expense_id", expenseID, "error", err)
			result.CommentErr = err
		}
	}
	return result, nil
}

// record writes the local split for a published expense. An update whose
// expense has no local split yet, e.g. one created by another client,
// gets a new split.
func (p *Publisher) record(ctx context.Context, ownerID string, existing *models.PersistedSplit, payload *models.PublishRequest) (*models.PersistedSplit, error) {
	if existing == nil {
		split := &models.PersistedSplit{
			OwnerID:           ownerID,
			Payload:           *payload,
			ExternalExpenseID: payload.ExpenseID,
		}
		err := p.store.CreateSplit(ctx, split)
		if errors.Is(err, storage.ErrDuplicateExpense) {
			// A concurrent publish recorded the same expense first.
			existing, err = p.store.GetSplitByExpenseID(ctx, *payload.ExpenseID)
			if err != nil {
				return nil, err
			}
			if existing.OwnerID != ownerID {
				return nil, ErrForbidden
			}
		} else if err != nil {
			return nil, err
		} else {
			return split, nil
		}
	}

	if err := p.store.UpdateSplitPayload(ctx, existing.ID, payload); err != nil {
		return nil, err
	}
	updated := *existing
	updated.Payload = *payload
	return &updated, nil
}

// invalidate drops both cache entries of the published split. Both go in
// every mode: a create can overwrite an existing row when the ledger hands
// back an expense ID that is already recorded. A failure leaves a stale
// entry until its TTL runs out; it is logged and counted but does not fail
// the publish, which has already been committed.
func (p *Publisher) invalidate(ctx context.Context, userID, splitID string) {
	if err := p.cache.InvalidateUserSplits(ctx, userID); err != nil {
		slog.Warn("Failed to invalidate split list", "user_id", userID, "error", err)
	}
	if err := p.cache.InvalidateSplit(ctx, splitID); err != nil {
		slog.Warn("Failed to invalidate split", "split_id", splitID, "error", err)
	}
}

func outcome(res *Result, err error) string {
	var rejected *ledger.RejectedError
	var desync *DesyncError
	switch {
	case err == nil && res.Partial():
		return "partial"
	case err == nil:
		return "ok"
	case errors.As(err, &desync):
		return "desync"
	case errors.As(err, &rejected):
		return "rejected"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	default:
		return "error"
	}
}
