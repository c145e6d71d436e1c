package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/splitthat/internal/models"
	"github.com/mmynk/splitthat/internal/storage"
)

const userColumns = `id, ledger_id, email, first_name, last_name, friends, groups_json,
	ledger_credential, refresh_token_hash, created_at, updated_at`

// UpsertUser inserts a user or refreshes the profile of the user with the
// same ledger ID.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *models.User) error {
	friends, groups, err := encodeDirectory(user.Friends, user.Groups)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	user.UpdatedAt = now

	var existingID string
	var createdAt int64
	err = tx.QueryRowContext(ctx,
		"SELECT id, created_at FROM users WHERE ledger_id = ?", user.LedgerID,
	).Scan(&existingID, &createdAt)

	switch {
	case err == sql.ErrNoRows:
		if user.ID == "" {
			user.ID = uuid.New().String()
		}
		if user.CreatedAt == 0 {
			user.CreatedAt = now
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO users ("+userColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
			user.ID, user.LedgerID, user.Email, user.FirstName, user.LastName, friends, groups,
			user.LedgerCredential, user.RefreshTokenHash, user.CreatedAt, user.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert user: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to look up user: %w", err)
	default:
		user.ID = existingID
		user.CreatedAt = createdAt
		_, err = tx.ExecContext(ctx,
			`UPDATE users SET email = ?, first_name = ?, last_name = ?, friends = ?, groups_json = ?,
			 ledger_credential = ?, updated_at = ? WHERE id = ?`,
			user.Email, user.FirstName, user.LastName, friends, groups,
			user.LedgerCredential, user.UpdatedAt, user.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*models.User, error) {
	user := &models.User{}
	var friends, groups string

	err := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", userID).Scan(
		&user.ID,
		&user.LedgerID,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&friends,
		&groups,
		&user.LedgerCredential,
		&user.RefreshTokenHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %s: %w", userID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if err := json.Unmarshal([]byte(friends), &user.Friends); err != nil {
		return nil, fmt.Errorf("failed to decode friends: %w", err)
	}
	if err := json.Unmarshal([]byte(groups), &user.Groups); err != nil {
		return nil, fmt.Errorf("failed to decode groups: %w", err)
	}
	return user, nil
}

// UpdateDirectory replaces the friends and groups snapshot of a user.
func (s *SQLiteStore) UpdateDirectory(ctx context.Context, userID string, friends []models.Participant, groups []models.Group) error {
	f, g, err := encodeDirectory(friends, groups)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET friends = ?, groups_json = ?, updated_at = ? WHERE id = ?",
		f, g, time.Now().Unix(), userID,
	)
	if err != nil {
		return fmt.Errorf("failed to update directory: %w", err)
	}
	return requireRow(res, "user", userID)
}

// SetRefreshTokenHash stores the hash of the user's current refresh token.
func (s *SQLiteStore) SetRefreshTokenHash(ctx context.Context, userID, hash string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET refresh_token_hash = ?, updated_at = ? WHERE id = ?",
		hash, time.Now().Unix(), userID,
	)
	if err != nil {
		return fmt.Errorf("failed to store refresh token hash: %w", err)
	}
	return requireRow(res, "user", userID)
}

// SetLedgerCredential replaces the sealed ledger credential of a user.
func (s *SQLiteStore) SetLedgerCredential(ctx context.Context, userID, sealed string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET ledger_credential = ?, updated_at = ? WHERE id = ?",
		sealed, time.Now().Unix(), userID,
	)
	if err != nil {
		return fmt.Errorf("failed to store ledger credential: %w", err)
	}
	return requireRow(res, "user", userID)
}

func encodeDirectory(friends []models.Participant, groups []models.Group) (string, string, error) {
	if friends == nil {
		friends = []models.Participant{}
	}
	if groups == nil {
		groups = []models.Group{}
	}
	f, err := json.Marshal(friends)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode friends: %w", err)
	}
	g, err := json.Marshal(groups)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode groups: %w", err)
	}
	return string(f), string(g), nil
}
