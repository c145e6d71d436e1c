package models

// Participant is a ledger user known to the account owner, either a friend
// or a member of one of their groups.
type Participant struct {
	// ID is the ledger's identifier for the user.
	ID int64 `json:"id"`

	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
}

// DisplayName returns the name shown to other participants.
func (p Participant) DisplayName() string {
	if p.LastName == "" {
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// Group is a snapshot of a ledger group.
type Group struct {
	// ID is the ledger's identifier for the group.
	ID int64 `json:"id"`

	// Name is the display name of the group (e.g., "Roommates").
	Name string `json:"name"`

	Members []Participant `json:"members"`
}
