// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	msqlite "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mmynk/splitthat/internal/models"
	"github.com/mmynk/splitthat/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Foreign keys and busy timeout are per connection, so they go in the DSN.
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const splitColumns = "id, user_id, split_payload, external_expense_id, created_at, updated_at"

// CreateSplit persists a new split to the database.
func (s *SQLiteStore) CreateSplit(ctx context.Context, split *models.PersistedSplit) error {
	if split.ID == "" {
		split.ID = uuid.New().String()
	}
	now := time.Now().Unix()
	if split.CreatedAt == 0 {
		split.CreatedAt = now
	}
	split.UpdatedAt = now

	payload, err := json.Marshal(split.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode split payload: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO splits ("+splitColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		split.ID, split.OwnerID, string(payload), nullInt64(split.ExternalExpenseID), split.CreatedAt, split.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("failed to insert split: %w", storage.ErrDuplicateExpense)
	}
	if err != nil {
		return fmt.Errorf("failed to insert split: %w", err)
	}
	return nil
}

// GetSplit retrieves a split by ID.
func (s *SQLiteStore) GetSplit(ctx context.Context, splitID string) (*models.PersistedSplit, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+splitColumns+" FROM splits WHERE id = ?", splitID)
	split, err := scanSplit(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("split %s: %w", splitID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get split: %w", err)
	}
	return split, nil
}

// GetSplitByExpenseID retrieves the split recorded for a ledger expense.
func (s *SQLiteStore) GetSplitByExpenseID(ctx context.Context, expenseID int64) (*models.PersistedSplit, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+splitColumns+" FROM splits WHERE external_expense_id = ?", expenseID)
	split, err := scanSplit(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("split for expense %d: %w", expenseID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get split by expense: %w", err)
	}
	return split, nil
}

// UpdateSplitPayload overwrites the payload of an existing split.
func (s *SQLiteStore) UpdateSplitPayload(ctx context.Context, splitID string, payload *models.PublishRequest) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode split payload: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE splits SET split_payload = ?, updated_at = ? WHERE id = ?",
		string(data), time.Now().Unix(), splitID,
	)
	if err != nil {
		return fmt.Errorf("failed to update split: %w", err)
	}
	return requireRow(res, "split", splitID)
}

// ListSplitsByUser retrieves all splits owned by a user, newest first.
func (s *SQLiteStore) ListSplitsByUser(ctx context.Context, userID string) ([]*models.PersistedSplit, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+splitColumns+" FROM splits WHERE user_id = ? ORDER BY created_at DESC, id",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list splits: %w", err)
	}
	defer rows.Close()

	splits := []*models.PersistedSplit{}
	for rows.Next() {
		split, err := scanSplit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan split: %w", err)
		}
		splits = append(splits, split)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate splits: %w", err)
	}
	return splits, nil
}

// DeleteSplit removes a split by ID.
func (s *SQLiteStore) DeleteSplit(ctx context.Context, splitID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM splits WHERE id = ?", splitID)
	if err != nil {
		return fmt.Errorf("failed to delete split: %w", err)
	}
	return requireRow(res, "split", splitID)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSplit(row scanner) (*models.PersistedSplit, error) {
	split := &models.PersistedSplit{}
	var payload string
	var expenseID sql.NullInt64

	if err := row.Scan(&split.ID, &split.OwnerID, &payload, &expenseID, &split.CreatedAt, &split.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(payload), &split.Payload); err != nil {
		return nil, fmt.Errorf("failed to decode split payload %s: %w", split.ID, err)
	}
	if expenseID.Valid {
		id := expenseID.Int64
		split.ExternalExpenseID = &id
	}
	return split, nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func requireRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, storage.ErrNotFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}
