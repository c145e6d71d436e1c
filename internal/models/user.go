package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a local account. Every account is bound to one ledger
// identity; there are no local passwords.
type User struct {
	// ID is the unique identifier for the user (UUID format).
	ID string

	// LedgerID is the user's identifier at the ledger (unique).
	LedgerID int64

	Email     string
	FirstName string
	LastName  string

	// Friends and Groups are the snapshot taken at the last login or
	// directory refresh.
	Friends []Participant
	Groups  []Group

	// LedgerCredential is the sealed OAuth token for the ledger.
	// It is opaque to everything except the auth package.
	LedgerCredential string

	// RefreshTokenHash is the salted hash of the current refresh token.
	// Empty until the first login.
	RefreshTokenHash string

	// CreatedAt and UpdatedAt are Unix timestamps.
	CreatedAt int64
	UpdatedAt int64
}

// NewUser creates a user for the given ledger identity with a fresh ID.
func NewUser(ledgerID int64, email, firstName, lastName string) *User {
	now := time.Now().Unix()
	return &User{
		ID:        uuid.New().String(),
		LedgerID:  ledgerID,
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
