package audit

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"chatdesk-platform/internal/conversation"
)

func newTestTrail() (*Trail, *MemoryRepo) {
	repo := NewMemoryRepo()
	trail := NewTrail(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
	trail.clock = func() time.Time { return time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC) }
	return trail, repo
}

func conv(id, sector string, status conversation.Status) conversation.Conversation {
	return conversation.Conversation{
		ID:     id,
		Client: conversation.Client{Name: "Maria", Phone: "+5511999990000"},
		Sector: sector,
		Status: status,
	}
}

func TestPublish_LifecycleEntries(t *testing.T) {
	trail, _ := newTestTrail()
	ctx := context.Background()

	trail.Publish(ctx, conversation.Event{Type: conversation.EventNewConversation, Conversation: conv("c1", "Vendas", conversation.StatusWaiting)})
	trail.Publish(ctx, conversation.Event{Type: conversation.EventTransferred, Conversation: conv("c1", "Suporte", conversation.StatusInProgress), OldSector: "Vendas"})
	trail.Publish(ctx, conversation.Event{Type: conversation.EventFinished, Conversation: conv("c1", "Suporte", conversation.StatusResolved)})

	entries, err := trail.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	// newest first
	if entries[0].Type != EntryFinished || entries[2].Type != EntryCreated {
		t.Errorf("unexpected order: %s ... %s", entries[0].Type, entries[2].Type)
	}
	transfer := entries[1]
	if transfer.OldSector != "Vendas" || transfer.Sector != "Suporte" {
		t.Errorf("transfer entry = %+v", transfer)
	}
}

func TestPublish_MessagesNotRecorded(t *testing.T) {
	trail, _ := newTestTrail()
	ctx := context.Background()

	trail.Publish(ctx, conversation.Event{Type: conversation.EventNewMessage, Conversation: conv("c1", "Vendas", conversation.StatusWaiting)})
	trail.Publish(ctx, conversation.Event{Type: conversation.EventAgentReply, Conversation: conv("c1", "Vendas", conversation.StatusInProgress)})

	entries, _ := trail.Recent(ctx, 10)
	if len(entries) != 0 {
		t.Fatalf("message traffic must not be audited, got %d entries", len(entries))
	}
}

func TestPublish_UpdatedOnlyAuditsArchival(t *testing.T) {
	trail, _ := newTestTrail()
	ctx := context.Background()

	trail.Publish(ctx, conversation.Event{Type: conversation.EventUpdated, Conversation: conv("c1", "Vendas", conversation.StatusInProgress)})
	trail.Publish(ctx, conversation.Event{Type: conversation.EventUpdated, Conversation: conv("c2", "Vendas", conversation.StatusArchived)})

	entries, _ := trail.Recent(ctx, 10)
	if len(entries) != 1 || entries[0].Type != EntryArchived || entries[0].ConversationID != "c2" {
		t.Fatalf("entries = %+v", entries)
	}
}
