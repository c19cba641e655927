package audit

import "time"

// Entry is an immutable, append-only audit record of a conversation
// lifecycle change.
//
// Invariants:
// - Entries are never updated or deleted.
// - Recording is best-effort; critical flows never block on audit failures.
type Entry struct {
	ID   string    `json:"id" db:"id"`
	Type EntryType `json:"type" db:"type"`

	ConversationID string `json:"conversation_id" db:"conversation_id"`
	Phone          string `json:"phone" db:"phone"`
	Sector         string `json:"sector" db:"sector"`

	// OldSector is set for transfer entries only.
	OldSector string `json:"old_sector,omitempty" db:"old_sector"`

	// Detail is a short human-readable description for internal ops.
	Detail string `json:"detail,omitempty" db:"detail"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EntryType string

const (
	EntryCreated     EntryType = "conversation_created"
	EntryTransferred EntryType = "conversation_transferred"
	EntryFinished    EntryType = "conversation_finished"
	EntryArchived    EntryType = "conversation_archived"
)
