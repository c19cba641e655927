package template

import "time"

// Template is a reusable canned message body.
//
// Visibility rule (applies to listing and resolution alike): a template
// is visible to an agent when they own it, when it belongs to their
// sector, or when it is shared globally.
type Template struct {
	ID      string `json:"id" db:"id"`
	Name    string `json:"name" db:"name"`
	Content string `json:"content" db:"content"`

	// OwnerID scopes the template to an individual agent. Empty means
	// not agent-owned.
	OwnerID string `json:"owner_id,omitempty" db:"owner_id"`

	// Sector scopes the template to a department. Empty means not
	// sector-owned.
	Sector string `json:"sector,omitempty" db:"sector"`

	// Shared makes the template visible to every agent.
	Shared bool `json:"shared" db:"shared"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// VisibleTo reports whether the template may be used by the given agent.
func (t Template) VisibleTo(userID, sector string) bool {
	if t.Shared {
		return true
	}
	if t.OwnerID != "" && t.OwnerID == userID {
		return true
	}
	return t.Sector != "" && t.Sector == sector
}
