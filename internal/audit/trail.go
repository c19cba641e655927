package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"chatdesk-platform/internal/conversation"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit entries.
//
// It MUST be append-only. No Update/Delete methods are provided.
type Repository interface {
	Append(ctx context.Context, e Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
}

// Trail records conversation lifecycle changes. It implements
// conversation.Broadcaster so the engine feeds it the same events the
// realtime hub receives; per-message traffic is deliberately not
// recorded.
type Trail struct {
	repo  Repository
	clock func() time.Time
	log   *slog.Logger
}

func NewTrail(repo Repository, log *slog.Logger) *Trail {
	if log == nil {
		log = slog.Default()
	}
	return &Trail{repo: repo, clock: time.Now, log: log}
}

// Publish maps lifecycle events to audit entries. Best-effort: failures
// are logged and swallowed.
func (t *Trail) Publish(ctx context.Context, e conversation.Event) {
	conv := e.Conversation

	entry := Entry{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Phone:          conv.Client.Phone,
		Sector:         conv.Sector,
		CreatedAt:      t.clock().UTC(),
	}

	switch e.Type {
	case conversation.EventNewConversation:
		entry.Type = EntryCreated
		entry.Detail = fmt.Sprintf("conversation opened in %s", conv.Sector)
	case conversation.EventTransferred:
		entry.Type = EntryTransferred
		entry.OldSector = e.OldSector
		entry.Detail = fmt.Sprintf("transferred from %s to %s", e.OldSector, conv.Sector)
	case conversation.EventFinished:
		entry.Type = EntryFinished
		entry.Detail = "conversation resolved"
	case conversation.EventUpdated:
		if conv.Status != conversation.StatusArchived {
			return
		}
		entry.Type = EntryArchived
		entry.Detail = "conversation archived"
	default:
		return
	}

	if err := t.repo.Append(ctx, entry); err != nil {
		t.log.Warn("audit append failed", "conversation_id", conv.ID, "type", entry.Type, "err", err)
	}
}

func (t *Trail) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return t.repo.Recent(ctx, limit)
}
