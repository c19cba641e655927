package conversation

import "context"

// EventType discriminates engine events fanned out to agent sessions.
type EventType string

const (
	// EventNewConversation: a conversation was created or reopened and
	// re-entered the waiting queue.
	EventNewConversation EventType = "new_conversation"

	// EventNewMessage: a client message landed on an existing open
	// conversation.
	EventNewMessage EventType = "new_message"

	// EventAgentReply: an agent message was appended.
	EventAgentReply EventType = "agent_reply"

	// EventTransferred: the conversation changed sectors. OldSector
	// carries the previous owner so the hub can notify its room of the
	// removal.
	EventTransferred EventType = "transferred"

	// EventFinished: the conversation was resolved.
	EventFinished EventType = "finished"

	// EventUpdated: any other visible mutation (archive, suggestion
	// bookkeeping).
	EventUpdated EventType = "conversation_updated"
)

// Event is a tagged, fixed-schema engine event. The hub maps these to
// wire events; nothing dynamic crosses this boundary.
type Event struct {
	Type         EventType
	Conversation Conversation

	// OldSector is set only for EventTransferred.
	OldSector string
}

// Broadcaster fans engine events out to interested sessions.
// Implementations must not block the engine; publishing is fire and
// forget from the engine's point of view.
type Broadcaster interface {
	Publish(ctx context.Context, e Event)
}

// NopBroadcaster discards events. Useful for tests and batch tooling.
type NopBroadcaster struct{}

func (NopBroadcaster) Publish(ctx context.Context, e Event) {}

// FanoutBroadcaster forwards each event to every broadcaster in order.
type FanoutBroadcaster []Broadcaster

func (f FanoutBroadcaster) Publish(ctx context.Context, e Event) {
	for _, b := range f {
		b.Publish(ctx, e)
	}
}

// Gateway delivers outbound text to the external messaging channel.
// Delivery failure is always non-fatal to the triggering operation.
type Gateway interface {
	Send(ctx context.Context, phone, text string) error
}
