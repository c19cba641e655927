// Package hub owns the realtime session registry, room membership, and
// event fan-out. It is an encapsulated instance with explicit lifecycle,
// not process-wide state, and it is decoupled from the websocket
// transport so it can be tested without network connections.
package hub

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"chatdesk-platform/internal/command"
	"chatdesk-platform/internal/conversation"
	"chatdesk-platform/internal/rbac"
)

// ErrUnauthorized: the session's role/sector does not allow the
// requested action. Checked per request, not just at room-join time.
var ErrUnauthorized = errors.New("hub: unauthorized")

// Room names.
const RoomAdmin = "admin"

func SectorRoom(name string) string     { return "sector:" + name }
func ConversationRoom(id string) string { return "conversation:" + id }

// EngineAPI is the subset of conversation operations driven from
// realtime sessions.
type EngineAPI interface {
	AppendAgentMessage(ctx context.Context, id, agentName, text string) (conversation.Conversation, error)
	TransferSector(ctx context.Context, id, newSector, actor string) (conversation.Conversation, error)
	Finish(ctx context.Context, id, actor string) (conversation.Conversation, error)
	Find(ctx context.Context, id string) (conversation.Conversation, error)
	List(ctx context.Context, f conversation.ListFilter) ([]conversation.Conversation, error)
}

// CommandRunner interprets slash commands typed by agents.
type CommandRunner interface {
	Execute(ctx context.Context, conversationID string, actor command.Actor, input string) command.Result
}

// Hub tracks connected sessions and fans out domain events.
// All registry and room maps are guarded by mu; they are shared by
// every connection handler.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	rooms    map[string]map[string]*Session

	engine   EngineAPI
	commands CommandRunner
	presence PresenceStore

	presenceTTL time.Duration
	clock       func() time.Time
	log         *slog.Logger

	stopc    chan struct{}
	stopOnce sync.Once
}

func New(presence PresenceStore, presenceTTL time.Duration, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		sessions:    make(map[string]*Session),
		rooms:       make(map[string]map[string]*Session),
		presence:    presence,
		presenceTTL: presenceTTL,
		clock:       time.Now,
		log:         log,
		stopc:       make(chan struct{}),
	}
}

// Attach wires the engine and interpreter. Done after construction
// because the engine broadcasts through the hub.
func (h *Hub) Attach(engine EngineAPI, commands CommandRunner) {
	h.engine = engine
	h.commands = commands
}

// WithClock overrides the hub clock. Test use only.
func (h *Hub) WithClock(clock func() time.Time) *Hub {
	h.clock = clock
	return h
}

// Start launches the inactivity sweeper. Stop terminates it and drops
// every session.
func (h *Hub) Start() {
	interval := h.presenceTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-h.stopc:
				return
			case <-ticker.C:
				h.sweep(h.clock())
			}
		}
	}()
}

func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stopc) })

	h.mu.Lock()
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.sessions = make(map[string]*Session)
	h.rooms = make(map[string]map[string]*Session)
	h.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
}

// Register adds a session and joins its role-derived rooms: admins join
// the single admin room, agents join exactly their sector room.
func (h *Hub) Register(ctx context.Context, s *Session) {
	now := h.clock()

	h.mu.Lock()
	h.sessions[s.ID] = s
	s.lastActivity = now
	if rbac.IsAdmin(s.Identity.Role) {
		h.join(RoomAdmin, s)
	} else {
		h.join(SectorRoom(s.Identity.Sector), s)
	}
	h.mu.Unlock()

	h.log.Info("session connected",
		"session_id", s.ID,
		"user_id", s.Identity.UserID,
		"role", s.Identity.Role,
		"sector", s.Identity.Sector,
	)

	h.touchPresence(ctx, s)
}

// Unregister drops a session. The user goes offline when their last
// session is gone.
func (h *Hub) Unregister(ctx context.Context, sessionID string) {
	h.mu.Lock()
	s, ok := h.sessions[sessionID]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(h.sessions, sessionID)
	for room := range s.rooms {
		h.leave(room, s)
	}
	lastOfUser := true
	for _, other := range h.sessions {
		if other.Identity.UserID == s.Identity.UserID {
			lastOfUser = false
			break
		}
	}
	h.mu.Unlock()

	s.close()
	h.log.Info("session disconnected", "session_id", s.ID, "user_id", s.Identity.UserID)

	if lastOfUser {
		// The offline broadcast must not depend on the presence key
		// still existing: on an inactivity drop the TTL has already
		// expired, yet observers were never told the user went away.
		if _, err := h.presence.Clear(ctx, s.Identity.UserID); err != nil {
			h.log.Warn("presence clear failed", "user_id", s.Identity.UserID, "err", err)
		}
		h.broadcastAll(Event{Name: EvtOffline, Payload: PresencePayload{ID: s.Identity.UserID, Email: s.Identity.Email}})
	}
}

// Subscribe adds a session to a room.
func (h *Hub) Subscribe(room, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.sessions[sessionID]; ok {
		h.join(room, s)
	}
}

// Unsubscribe removes a session from a room.
func (h *Hub) Unsubscribe(room, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.sessions[sessionID]; ok {
		h.leave(room, s)
	}
}

// PublishRoom delivers an event to every session in a room.
func (h *Hub) PublishRoom(room string, e Event) {
	h.fanOut(e, room)
}

// join/leave require h.mu held.
func (h *Hub) join(room string, s *Session) {
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]*Session)
		h.rooms[room] = members
	}
	members[s.ID] = s
	s.rooms[room] = struct{}{}
}

func (h *Hub) leave(room string, s *Session) {
	if members, ok := h.rooms[room]; ok {
		delete(members, s.ID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(s.rooms, room)
}

// fanOut delivers an event once per distinct session across the rooms.
func (h *Hub) fanOut(e Event, rooms ...string) {
	h.mu.RLock()
	targets := make(map[string]*Session)
	for _, room := range rooms {
		for id, s := range h.rooms[room] {
			targets[id] = s
		}
	}
	h.mu.RUnlock()

	h.send(e, targets)
}

func (h *Hub) broadcastAll(e Event) {
	h.mu.RLock()
	targets := make(map[string]*Session, len(h.sessions))
	for id, s := range h.sessions {
		targets[id] = s
	}
	h.mu.RUnlock()

	h.send(e, targets)
}

func (h *Hub) send(e Event, targets map[string]*Session) {
	var slow []*Session
	for _, s := range targets {
		if !s.deliver(e) {
			slow = append(slow, s)
		}
	}
	for _, s := range slow {
		h.log.Warn("dropping slow session", "session_id", s.ID, "user_id", s.Identity.UserID)
		h.Unregister(context.Background(), s.ID)
	}
}

// Publish implements conversation.Broadcaster, mapping engine events to
// wire events scoped to the right rooms.
func (h *Hub) Publish(ctx context.Context, e conversation.Event) {
	conv := e.Conversation
	switch e.Type {
	case conversation.EventNewConversation:
		h.fanOut(Event{Name: EvtNewConversation, Payload: ConversationPayload{Conversation: conv}},
			SectorRoom(conv.Sector), RoomAdmin)

	case conversation.EventNewMessage, conversation.EventAgentReply:
		h.fanOut(Event{Name: EvtNewMessage, Payload: ConversationPayload{Conversation: conv}},
			SectorRoom(conv.Sector), ConversationRoom(conv.ID), RoomAdmin)

	case conversation.EventTransferred:
		// Old sector sees a removal, new sector an addition, admins and
		// current viewers an update.
		h.PublishRoom(SectorRoom(e.OldSector),
			Event{Name: EvtTransferred, Payload: TransferredPayload{Conversation: conv, FromSector: e.OldSector, ToSector: conv.Sector, Action: TransferRemoved}})
		h.PublishRoom(SectorRoom(conv.Sector),
			Event{Name: EvtTransferred, Payload: TransferredPayload{Conversation: conv, FromSector: e.OldSector, ToSector: conv.Sector, Action: TransferAdded}})
		h.fanOut(Event{Name: EvtTransferred, Payload: TransferredPayload{Conversation: conv, FromSector: e.OldSector, ToSector: conv.Sector, Action: TransferUpdated}},
			RoomAdmin, ConversationRoom(conv.ID))

	case conversation.EventFinished:
		h.fanOut(Event{Name: EvtFinished, Payload: ConversationPayload{Conversation: conv}},
			SectorRoom(conv.Sector), ConversationRoom(conv.ID), RoomAdmin)

	case conversation.EventUpdated:
		h.fanOut(Event{Name: EvtConversationUpdated, Payload: ConversationPayload{Conversation: conv}},
			SectorRoom(conv.Sector), ConversationRoom(conv.ID), RoomAdmin)
	}
}

func (h *Hub) touchPresence(ctx context.Context, s *Session) {
	cameOnline, err := h.presence.Touch(ctx, s.Identity.UserID)
	if err != nil {
		h.log.Warn("presence touch failed", "user_id", s.Identity.UserID, "err", err)
		return
	}
	if cameOnline {
		h.broadcastAll(Event{Name: EvtOnline, Payload: PresencePayload{ID: s.Identity.UserID, Email: s.Identity.Email}})
	}
}

// sweep drops sessions with no received event inside the presence TTL.
func (h *Hub) sweep(now time.Time) {
	h.mu.RLock()
	var idle []*Session
	for _, s := range h.sessions {
		if now.Sub(s.lastActivity) > h.presenceTTL {
			idle = append(idle, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range idle {
		h.log.Info("dropping idle session", "session_id", s.ID, "user_id", s.Identity.UserID)
		h.Unregister(context.Background(), s.ID)
	}
}
