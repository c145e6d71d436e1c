package models

// UserShare is one ledger user's part of an expense.
type UserShare struct {
	// UserID is the ledger's identifier for the user.
	UserID    int64   `json:"user_id"`
	PaidShare float64 `json:"paid_share"`
	OwedShare float64 `json:"owed_share"`
}

// PublishRequest is what a client asks the ledger to record.
// When ExpenseID is set the existing ledger expense is updated, otherwise a
// new one is created.
type PublishRequest struct {
	Cost        float64         `json:"cost"`
	Description string          `json:"description"`
	Currency    string          `json:"currency_code,omitempty"`
	Users       []UserShare     `json:"users"`
	Items       []Item          `json:"items"`
	Subtotal    float64         `json:"subtotal"`
	Tax         *AssigneeAmount `json:"tax,omitempty"`
	Tip         *AssigneeAmount `json:"tip,omitempty"`
	Comment     string          `json:"comment"`
	GroupID     *int64          `json:"group_id,omitempty"`
	ExpenseID   *int64          `json:"expense_id,omitempty"`
}

// PersistedSplit is the local record of a split that was published to the
// ledger. It is owned by exactly one user.
type PersistedSplit struct {
	// ID is the unique identifier for the split (UUID format).
	ID string `json:"id"`

	OwnerID string `json:"owner_id"`

	// Payload is the request snapshot from the most recent publish.
	Payload PublishRequest `json:"payload"`

	// ExternalExpenseID is the ledger's expense ID. Unique when set.
	ExternalExpenseID *int64 `json:"external_expense_id,omitempty"`

	// CreatedAt and UpdatedAt are Unix timestamps.
	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}
