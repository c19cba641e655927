package hub

import (
	"sync"
	"time"

	"chatdesk-platform/internal/auth"

	"github.com/google/uuid"
)

// sendBuffer is the per-session outbound queue. A session that cannot
// drain this many events is a dead or hopelessly slow consumer and gets
// dropped.
const sendBuffer = 256

// Session is one connected agent. Runtime-only; never persisted.
type Session struct {
	ID       string
	Identity auth.Identity

	send chan Event
	done chan struct{}

	closeOnce sync.Once

	// guarded by the hub's mutex
	rooms        map[string]struct{}
	lastActivity time.Time
	viewing      string
}

func NewSession(id auth.Identity) *Session {
	return &Session{
		ID:       uuid.NewString(),
		Identity: id,
		send:     make(chan Event, sendBuffer),
		done:     make(chan struct{}),
		rooms:    make(map[string]struct{}),
	}
}

// Outbox exposes the event stream for the transport writer.
func (s *Session) Outbox() <-chan Event { return s.send }

// Done is closed when the hub drops the session.
func (s *Session) Done() <-chan struct{} { return s.done }

// deliver enqueues without blocking. False means the queue is full and
// the session should be dropped.
func (s *Session) deliver(e Event) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- e:
		return true
	default:
		return false
	}
}

func (s *Session) close() {
	s.closeOnce.Do(func() { close(s.done) })
}
