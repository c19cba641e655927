package sector

import "time"

// Sector is a department that owns a subset of conversations.
//
// Invariants:
// - Name is unique across all sectors.
// - Inactive sectors never receive routed conversations or transfers.
type Sector struct {
	ID          string `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	Description string `json:"description,omitempty" db:"description"`
	Active      bool   `json:"active" db:"active"`

	// ResponsibleParties are contact addresses for escalation; the core
	// only carries them, it never notifies them directly.
	ResponsibleParties []string `json:"responsible_parties,omitempty" db:"responsible_parties"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
