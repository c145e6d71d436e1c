package models

// ItemStatus describes what happened to a receipt line.
type ItemStatus string

const (
	StatusShopped        ItemStatus = "shopped"
	StatusWeightAdjusted ItemStatus = "weight-adjusted"
	StatusCancelled      ItemStatus = "cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s ItemStatus) Valid() bool {
	switch s {
	case StatusShopped, StatusWeightAdjusted, StatusCancelled:
		return true
	}
	return false
}

// Confidence is how sure the extractor is about an item.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Valid reports whether c is one of the known confidence levels.
func (c Confidence) Valid() bool {
	switch c {
	case ConfidenceLow, ConfidenceMedium, ConfidenceHigh:
		return true
	}
	return false
}

// Item represents a single line item on a receipt.
type Item struct {
	// ID is the unique identifier for the item (UUID format).
	ID string `json:"id"`

	// Name is the item as printed on the receipt (e.g., "Pizza", "Beer").
	Name string `json:"name"`

	// Price is the total price of the line, never negative.
	Price float64 `json:"price"`

	// Quantity is free-form ("2", "0.45 kg") and optional.
	Quantity string `json:"quantity,omitempty"`

	// AssignedTo is the list of participant names sharing this item.
	// The item is split equally among them.
	AssignedTo []string `json:"assigned_to"`

	Status     ItemStatus `json:"status"`
	Confidence Confidence `json:"confidence"`
}

// AssigneeAmount is an amount shared by a set of participants (tax or tip).
type AssigneeAmount struct {
	Amount     float64  `json:"amount"`
	AssignedTo []string `json:"assigned_to"`
}

// Split is the structured result of reading a receipt.
type Split struct {
	// Items keep the order in which they appear on the receipt.
	Items []Item `json:"items"`

	Tax *AssigneeAmount `json:"tax,omitempty"`
	Tip *AssigneeAmount `json:"tip,omitempty"`

	// The fields below are reported by the receipt when visible. They are
	// only used for advisory reconciliation.
	Subtotal *float64 `json:"subtotal,omitempty"`
	Total    *float64 `json:"total,omitempty"`
	Currency string   `json:"currency,omitempty"`
	Merchant string   `json:"merchant,omitempty"`
}
