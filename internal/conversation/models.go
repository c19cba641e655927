package conversation

import "time"

// Status is the conversation lifecycle state.
//
// Transitions:
//
//	waiting --agent message--> in_progress
//	waiting|in_progress --finish--> resolved
//	resolved --client message--> waiting (reopen)
//	any --archive--> archived (terminal)
type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusArchived   Status = "archived"
)

func (s Status) Valid() bool {
	switch s {
	case StatusWaiting, StatusInProgress, StatusResolved, StatusArchived:
		return true
	default:
		return false
	}
}

// Open reports whether the conversation still routes inbound messages.
func (s Status) Open() bool {
	return s == StatusWaiting || s == StatusInProgress
}

// MessageKind tags who produced a message.
type MessageKind string

const (
	KindClient MessageKind = "client"
	KindAgent  MessageKind = "agent"
	KindSystem MessageKind = "system"
)

// Message is a single entry in a conversation.
// Messages are append-only; insertion order is the ordering guarantee.
type Message struct {
	Text string      `json:"text"`
	Kind MessageKind `json:"kind"`

	// AgentName is set iff Kind == KindAgent.
	AgentName string `json:"agent_name,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Client identifies the person on the other side of the channel.
// Phone is the unique routing key.
type Client struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Transfer carries the AI-suggested-transfer handshake state.
type Transfer struct {
	AwaitingConfirmation bool   `json:"awaiting_confirmation"`
	SuggestedSector      string `json:"suggested_sector,omitempty"`
}

// Conversation is the full exchange with one client phone number from
// first contact through resolution or archival.
//
// Invariant: at most one conversation per (phone, open status) — the
// engine dedups inbound messages on this key.
type Conversation struct {
	ID      string   `json:"id"`
	Client  Client   `json:"client"`
	Sector  string   `json:"sector"`
	Subject string   `json:"subject"`
	Status  Status   `json:"status"`
	Tags    []string `json:"tags,omitempty"`

	Messages []Message `json:"messages"`

	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// FinishedAt and HandlingDurationMs are set once, at the first
	// resolution, and never recomputed (even across a reopen).
	FinishedAt         *time.Time `json:"finished_at,omitempty"`
	HandlingDurationMs *int64     `json:"handling_duration_ms,omitempty"`

	Transfer *Transfer `json:"transfer,omitempty"`
}

func (c *Conversation) append(m Message) {
	c.Messages = append(c.Messages, m)
}

// LastMessage returns the most recent message, if any.
func (c *Conversation) LastMessage() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}
