package conversation

import (
	"context"
	"time"
)

// ListFilter narrows List results. Zero values mean "any".
type ListFilter struct {
	Status Status
	Sector string
	Limit  int
}

// Repository is the persistence contract for conversation documents.
//
// Save must persist the full document atomically; the engine always
// reads-before-writes inside a per-conversation critical section, so
// document-level last-writer-wins is acceptable.
//
// Archived conversations are excluded from phone routing queries by
// contract; that is what makes archived a dead end.
type Repository interface {
	// FindOpenByPhone returns the conversation with status waiting or
	// in_progress for the phone, or ErrNotFound.
	FindOpenByPhone(ctx context.Context, phone string) (Conversation, error)

	// FindLatestResolvedByPhone returns the most recently updated
	// resolved conversation for the phone, or ErrNotFound. Used for
	// reopening.
	FindLatestResolvedByPhone(ctx context.Context, phone string) (Conversation, error)

	FindByID(ctx context.Context, id string) (Conversation, error)

	Create(ctx context.Context, c Conversation) (Conversation, error)

	Save(ctx context.Context, c Conversation) (Conversation, error)

	List(ctx context.Context, f ListFilter) ([]Conversation, error)

	// ListOpenInactiveSince returns open conversations whose UpdatedAt
	// is before the cutoff. Used by background archival.
	ListOpenInactiveSince(ctx context.Context, cutoff time.Time) ([]Conversation, error)
}
