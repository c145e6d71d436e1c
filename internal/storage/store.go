// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/splitthat/internal/models"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateExpense is returned when a split is written with an
	// external expense ID that another split already holds.
	ErrDuplicateExpense = errors.New("external expense id already recorded")

	// ErrForbidden is returned when a split belongs to another user.
	ErrForbidden = errors.New("split belongs to another user")
)

// UserStore defines user persistence operations.
type UserStore interface {
	// UpsertUser inserts the user, or updates the existing user with the same
	// LedgerID. On update user.ID and user.CreatedAt are replaced with the
	// stored values.
	UpsertUser(ctx context.Context, user *models.User) error

	// GetUser retrieves a user by ID. Returns ErrNotFound if missing.
	GetUser(ctx context.Context, userID string) (*models.User, error)

	// UpdateDirectory replaces the friends and groups snapshot of a user.
	UpdateDirectory(ctx context.Context, userID string, friends []models.Participant, groups []models.Group) error

	// SetRefreshTokenHash stores the hash of the user's current refresh token.
	SetRefreshTokenHash(ctx context.Context, userID, hash string) error

	// SetLedgerCredential replaces the sealed ledger credential of a user.
	SetLedgerCredential(ctx context.Context, userID, sealed string) error
}

// SplitStore defines operations on published splits.
type SplitStore interface {
	// CreateSplit persists a new split. split.ID and timestamps are populated
	// by the store. Returns ErrDuplicateExpense if the external expense ID is
	// already recorded.
	CreateSplit(ctx context.Context, split *models.PersistedSplit) error

	// GetSplit retrieves a split by ID. Returns ErrNotFound if missing.
	GetSplit(ctx context.Context, splitID string) (*models.PersistedSplit, error)

	// GetSplitByExpenseID retrieves the split recorded for a ledger expense.
	// Returns ErrNotFound if none.
	GetSplitByExpenseID(ctx context.Context, expenseID int64) (*models.PersistedSplit, error)

	// UpdateSplitPayload overwrites the payload of an existing split in place.
	UpdateSplitPayload(ctx context.Context, splitID string, payload *models.PublishRequest) error

	// ListSplitsByUser returns the user's splits, newest first.
	ListSplitsByUser(ctx context.Context, userID string) ([]*models.PersistedSplit, error)

	// DeleteSplit removes a split. Returns ErrNotFound if missing.
	DeleteSplit(ctx context.Context, splitID string) error
}

// Store is the authoritative record of users and splits.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the service layer.
type Store interface {
	UserStore
	SplitStore

	// Close releases any resources held by the store.
	Close() error
}
