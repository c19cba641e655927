package hub

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"chatdesk-platform/internal/auth"
	"chatdesk-platform/internal/command"
	"chatdesk-platform/internal/conversation"
)

type stubEngine struct {
	conv    conversation.Conversation
	findErr error

	appended  []string
	finished  []string
	transfers []string
	lastList  conversation.ListFilter
}

func (e *stubEngine) AppendAgentMessage(_ context.Context, id, agentName, text string) (conversation.Conversation, error) {
	e.appended = append(e.appended, text)
	return e.conv, nil
}

func (e *stubEngine) TransferSector(_ context.Context, id, newSector, actor string) (conversation.Conversation, error) {
	e.transfers = append(e.transfers, newSector)
	return e.conv, nil
}

func (e *stubEngine) Finish(_ context.Context, id, actor string) (conversation.Conversation, error) {
	e.finished = append(e.finished, id)
	return e.conv, nil
}

func (e *stubEngine) Find(_ context.Context, id string) (conversation.Conversation, error) {
	if e.findErr != nil {
		return conversation.Conversation{}, e.findErr
	}
	return e.conv, nil
}

func (e *stubEngine) List(_ context.Context, f conversation.ListFilter) ([]conversation.Conversation, error) {
	e.lastList = f
	return []conversation.Conversation{e.conv}, nil
}

type stubCommands struct {
	lastInput string
	result    command.Result
}

func (c *stubCommands) Execute(_ context.Context, conversationID string, actor command.Actor, input string) command.Result {
	c.lastInput = input
	return c.result
}

func newTestHub(engine EngineAPI, cmds CommandRunner) *Hub {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := New(NewMemoryPresence(time.Minute), time.Minute, log)
	h.Attach(engine, cmds)
	return h
}

func drain(s *Session) []Event {
	var out []Event
	for {
		select {
		case e := <-s.Outbox():
			out = append(out, e)
		default:
			return out
		}
	}
}

func findEvent(t *testing.T, events []Event, name string) Event {
	t.Helper()
	for _, e := range events {
		if e.Name == name {
			return e
		}
	}
	t.Fatalf("no %q event in %d events", name, len(events))
	return Event{}
}

func hasEvent(events []Event, name string) bool {
	for _, e := range events {
		if e.Name == name {
			return true
		}
	}
	return false
}

func frame(t *testing.T, name string, payload any) []byte {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	raw, err := json.Marshal(map[string]json.RawMessage{"event": json.RawMessage(`"` + name + `"`), "data": data})
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func agentIdentity(userID, sector string) auth.Identity {
	return auth.Identity{UserID: userID, Email: userID + "@example.com", Name: "Agente " + userID, Role: "agent", Sector: sector}
}

func adminIdentity(userID string) auth.Identity {
	return auth.Identity{UserID: userID, Email: userID + "@example.com", Name: "Admin " + userID, Role: "admin"}
}

func TestRegister_RoomsByRole(t *testing.T) {
	h := newTestHub(&stubEngine{}, &stubCommands{})
	ctx := context.Background()

	agent := NewSession(agentIdentity("u1", "Vendas"))
	admin := NewSession(adminIdentity("u2"))
	h.Register(ctx, agent)
	h.Register(ctx, admin)

	if _, ok := agent.rooms[SectorRoom("Vendas")]; !ok {
		t.Error("agent not in its sector room")
	}
	if _, ok := agent.rooms[RoomAdmin]; ok {
		t.Error("agent must not be in the admin room")
	}
	if _, ok := admin.rooms[RoomAdmin]; !ok {
		t.Error("admin not in the admin room")
	}
}

func TestRegister_BroadcastsOnlineOnce(t *testing.T) {
	h := newTestHub(&stubEngine{}, &stubCommands{})
	ctx := context.Background()

	observer := NewSession(agentIdentity("obs", "Suporte"))
	h.Register(ctx, observer)
	drain(observer)

	first := NewSession(agentIdentity("u1", "Vendas"))
	second := NewSession(agentIdentity("u1", "Vendas"))
	h.Register(ctx, first)
	h.Register(ctx, second)

	var online int
	for _, e := range drain(observer) {
		if e.Name == EvtOnline {
			online++
		}
	}
	if online != 1 {
		t.Fatalf("online broadcasts = %d, want 1 (second session of same user must not re-announce)", online)
	}
}

func TestUnregister_OfflineOnlyOnLastSession(t *testing.T) {
	h := newTestHub(&stubEngine{}, &stubCommands{})
	ctx := context.Background()

	observer := NewSession(agentIdentity("obs", "Suporte"))
	first := NewSession(agentIdentity("u1", "Vendas"))
	second := NewSession(agentIdentity("u1", "Vendas"))
	h.Register(ctx, observer)
	h.Register(ctx, first)
	h.Register(ctx, second)
	drain(observer)

	h.Unregister(ctx, first.ID)
	if hasEvent(drain(observer), EvtOffline) {
		t.Fatal("offline announced while the user still has a session")
	}

	h.Unregister(ctx, second.ID)
	e := findEvent(t, drain(observer), EvtOffline)
	if e.Payload.(PresencePayload).ID != "u1" {
		t.Errorf("offline for %v, want u1", e.Payload)
	}

	select {
	case <-first.Done():
	default:
		t.Error("unregistered session not closed")
	}
}

func TestHandleSelect_AgentDeniedOutsideSector(t *testing.T) {
	engine := &stubEngine{conv: conversation.Conversation{ID: "c1", Sector: "Vendas", Status: conversation.StatusWaiting}}
	h := newTestHub(engine, &stubCommands{})
	ctx := context.Background()

	agent := NewSession(agentIdentity("u1", "Suporte"))
	h.Register(ctx, agent)
	drain(agent)

	h.HandleClientEvent(ctx, agent, frame(t, EvtSelectConversation, selectRequest{ConversationID: "c1"}))

	e := findEvent(t, drain(agent), EvtError)
	if e.Payload.(ErrorPayload).Message != "acesso negado a esta conversa" {
		t.Errorf("unexpected error payload %+v", e.Payload)
	}
	if _, ok := agent.rooms[ConversationRoom("c1")]; ok {
		t.Error("denied agent was joined to the conversation room")
	}
}

func TestHandleSelect_JoinsRoomAndAnnouncesViewing(t *testing.T) {
	engine := &stubEngine{conv: conversation.Conversation{ID: "c1", Sector: "Vendas", Status: conversation.StatusWaiting}}
	h := newTestHub(engine, &stubCommands{})
	ctx := context.Background()

	admin := NewSession(adminIdentity("boss"))
	colleague := NewSession(agentIdentity("u2", "Vendas"))
	h.Register(ctx, admin)
	h.Register(ctx, colleague)
	h.Subscribe(ConversationRoom("c1"), colleague.ID)
	drain(admin)
	drain(colleague)

	h.HandleClientEvent(ctx, admin, frame(t, EvtSelectConversation, selectRequest{ConversationID: "c1"}))

	if _, ok := admin.rooms[ConversationRoom("c1")]; !ok {
		t.Fatal("selecting did not join the conversation room")
	}
	findEvent(t, drain(admin), EvtConversationUpdated)
	v := findEvent(t, drain(colleague), EvtViewing)
	if v.Payload.(ViewingPayload).UserID != "boss" {
		t.Errorf("viewing payload = %+v", v.Payload)
	}
}

func TestHandleSelect_SwitchingLeavesPreviousRoom(t *testing.T) {
	engine := &stubEngine{conv: conversation.Conversation{ID: "c2", Sector: "Vendas", Status: conversation.StatusWaiting}}
	h := newTestHub(engine, &stubCommands{})
	ctx := context.Background()

	agent := NewSession(agentIdentity("u1", "Vendas"))
	h.Register(ctx, agent)
	agent.viewing = "c1"
	h.Subscribe(ConversationRoom("c1"), agent.ID)

	h.HandleClientEvent(ctx, agent, frame(t, EvtSelectConversation, selectRequest{ConversationID: "c2"}))

	if _, ok := agent.rooms[ConversationRoom("c1")]; ok {
		t.Error("still in previous conversation room")
	}
	if agent.viewing != "c2" {
		t.Errorf("viewing = %q, want c2", agent.viewing)
	}
}

func TestHandleList_AgentFilterForcedToOwnSector(t *testing.T) {
	engine := &stubEngine{}
	h := newTestHub(engine, &stubCommands{})
	ctx := context.Background()

	agent := NewSession(agentIdentity("u1", "Suporte"))
	h.Register(ctx, agent)
	drain(agent)

	h.HandleClientEvent(ctx, agent, frame(t, EvtListConversations, listRequest{Sector: "Vendas", Status: "waiting"}))

	if engine.lastList.Sector != "Suporte" {
		t.Errorf("list sector = %q, want the agent's own Suporte", engine.lastList.Sector)
	}
	if engine.lastList.Status != conversation.StatusWaiting {
		t.Errorf("list status = %q", engine.lastList.Status)
	}
	findEvent(t, drain(agent), EvtConversationsList)
}

func TestHandleSend_SlashGoesToInterpreter(t *testing.T) {
	engine := &stubEngine{conv: conversation.Conversation{ID: "c1", Sector: "Vendas", Status: conversation.StatusInProgress}}
	cmds := &stubCommands{result: command.Result{
		Kind:    command.KindOptions,
		Command: "transfer",
		Options: []command.Option{{Label: "Suporte"}},
		Prompt:  "Escolha o setor de destino:",
	}}
	h := newTestHub(engine, cmds)
	ctx := context.Background()

	agent := NewSession(agentIdentity("u1", "Vendas"))
	h.Register(ctx, agent)
	drain(agent)

	h.HandleClientEvent(ctx, agent, frame(t, EvtSendMessage, sendRequest{ConversationID: "c1", Text: "/transfer"}))

	if cmds.lastInput != "/transfer" {
		t.Fatalf("interpreter got %q", cmds.lastInput)
	}
	if len(engine.appended) != 0 {
		t.Error("slash command must not become an agent message")
	}
	e := findEvent(t, drain(agent), EvtCommandOptions)
	if e.Payload.(OptionsPayload).Command != "transfer" {
		t.Errorf("options payload = %+v", e.Payload)
	}
}

func TestHandleSend_PlainTextAppendsAgentMessage(t *testing.T) {
	engine := &stubEngine{conv: conversation.Conversation{ID: "c1", Sector: "Vendas", Status: conversation.StatusWaiting}}
	h := newTestHub(engine, &stubCommands{})
	ctx := context.Background()

	agent := NewSession(agentIdentity("u1", "Vendas"))
	h.Register(ctx, agent)

	h.HandleClientEvent(ctx, agent, frame(t, EvtSendMessage, sendRequest{ConversationID: "c1", Text: "Bom dia!"}))

	if len(engine.appended) != 1 || engine.appended[0] != "Bom dia!" {
		t.Fatalf("appended = %v", engine.appended)
	}
}

func TestHandleSend_UnknownConversation(t *testing.T) {
	engine := &stubEngine{findErr: conversation.ErrNotFound}
	h := newTestHub(engine, &stubCommands{})
	ctx := context.Background()

	agent := NewSession(agentIdentity("u1", "Vendas"))
	h.Register(ctx, agent)
	drain(agent)

	h.HandleClientEvent(ctx, agent, frame(t, EvtSendMessage, sendRequest{ConversationID: "nope", Text: "oi"}))

	e := findEvent(t, drain(agent), EvtError)
	if e.Payload.(ErrorPayload).Message != "conversa não encontrada" {
		t.Errorf("error payload = %+v", e.Payload)
	}
}

func TestPublish_NewConversationScopedToSector(t *testing.T) {
	h := newTestHub(&stubEngine{}, &stubCommands{})
	ctx := context.Background()

	vendas := NewSession(agentIdentity("v1", "Vendas"))
	suporte := NewSession(agentIdentity("s1", "Suporte"))
	admin := NewSession(adminIdentity("boss"))
	h.Register(ctx, vendas)
	h.Register(ctx, suporte)
	h.Register(ctx, admin)
	drain(vendas)
	drain(suporte)
	drain(admin)

	conv := conversation.Conversation{ID: "c1", Sector: "Vendas", Status: conversation.StatusWaiting}
	h.Publish(ctx, conversation.Event{Type: conversation.EventNewConversation, Conversation: conv})

	if !hasEvent(drain(vendas), EvtNewConversation) {
		t.Error("sector agent missed new_conversation")
	}
	if hasEvent(drain(suporte), EvtNewConversation) {
		t.Error("other sector received new_conversation")
	}
	if !hasEvent(drain(admin), EvtNewConversation) {
		t.Error("admin missed new_conversation")
	}
}

func TestPublish_TransferredActionsPerRoom(t *testing.T) {
	h := newTestHub(&stubEngine{}, &stubCommands{})
	ctx := context.Background()

	oldSide := NewSession(agentIdentity("v1", "Vendas"))
	newSide := NewSession(agentIdentity("s1", "Suporte"))
	admin := NewSession(adminIdentity("boss"))
	h.Register(ctx, oldSide)
	h.Register(ctx, newSide)
	h.Register(ctx, admin)
	drain(oldSide)
	drain(newSide)
	drain(admin)

	conv := conversation.Conversation{ID: "c1", Sector: "Suporte", Status: conversation.StatusInProgress}
	h.Publish(ctx, conversation.Event{Type: conversation.EventTransferred, Conversation: conv, OldSector: "Vendas"})

	action := func(s *Session) string {
		e := findEvent(t, drain(s), EvtTransferred)
		return e.Payload.(TransferredPayload).Action
	}
	if got := action(oldSide); got != TransferRemoved {
		t.Errorf("old sector action = %q, want removed", got)
	}
	if got := action(newSide); got != TransferAdded {
		t.Errorf("new sector action = %q, want added", got)
	}
	if got := action(admin); got != TransferUpdated {
		t.Errorf("admin action = %q, want updated", got)
	}
}

func TestPublish_MessageReachesConversationRoom(t *testing.T) {
	h := newTestHub(&stubEngine{}, &stubCommands{})
	ctx := context.Background()

	viewer := NewSession(adminIdentity("boss"))
	h.Register(ctx, viewer)
	h.Subscribe(ConversationRoom("c1"), viewer.ID)
	drain(viewer)

	conv := conversation.Conversation{ID: "c1", Sector: "Vendas", Status: conversation.StatusInProgress}
	h.Publish(ctx, conversation.Event{Type: conversation.EventAgentReply, Conversation: conv})

	events := drain(viewer)
	var count int
	for _, e := range events {
		if e.Name == EvtNewMessage {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("viewer in admin and conversation rooms got %d new_message events, want exactly 1", count)
	}
}

func TestSweep_DropsIdleSessions(t *testing.T) {
	h := newTestHub(&stubEngine{}, &stubCommands{})
	ctx := context.Background()

	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	h.WithClock(func() time.Time { return now })

	idle := NewSession(agentIdentity("u1", "Vendas"))
	active := NewSession(agentIdentity("u2", "Vendas"))
	h.Register(ctx, idle)
	h.Register(ctx, active)

	later := now.Add(2 * time.Minute)
	h.mu.Lock()
	active.lastActivity = later
	h.mu.Unlock()

	h.sweep(later)

	h.mu.RLock()
	_, idleKept := h.sessions[idle.ID]
	_, activeKept := h.sessions[active.ID]
	h.mu.RUnlock()

	if idleKept {
		t.Error("idle session survived the sweep")
	}
	if !activeKept {
		t.Error("active session was swept")
	}
}

func TestSweep_BroadcastsOfflineAfterExpiredTTL(t *testing.T) {
	current := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return current }

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := New(NewMemoryPresence(time.Minute).WithClock(clock), time.Minute, log).WithClock(clock)
	h.Attach(&stubEngine{}, &stubCommands{})
	ctx := context.Background()

	observer := NewSession(agentIdentity("obs", "Suporte"))
	idle := NewSession(agentIdentity("u1", "Vendas"))
	h.Register(ctx, observer)
	h.Register(ctx, idle)
	drain(observer)

	// Past the TTL the presence key has already expired on its own;
	// the drop must still announce the user going offline.
	current = current.Add(2 * time.Minute)
	h.mu.Lock()
	observer.lastActivity = current
	h.mu.Unlock()

	h.sweep(current)

	h.mu.RLock()
	_, kept := h.sessions[idle.ID]
	h.mu.RUnlock()
	if kept {
		t.Fatal("idle session survived the sweep")
	}

	e := findEvent(t, drain(observer), EvtOffline)
	if e.Payload.(PresencePayload).ID != "u1" {
		t.Errorf("offline payload = %+v, want user u1", e.Payload)
	}
}

func TestHandleClientEvent_MalformedFrame(t *testing.T) {
	h := newTestHub(&stubEngine{}, &stubCommands{})
	ctx := context.Background()

	agent := NewSession(agentIdentity("u1", "Vendas"))
	h.Register(ctx, agent)
	drain(agent)

	h.HandleClientEvent(ctx, agent, []byte("{not json"))
	findEvent(t, drain(agent), EvtError)
}
