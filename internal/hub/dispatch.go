package hub

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"chatdesk-platform/internal/command"
	"chatdesk-platform/internal/conversation"
	"chatdesk-platform/internal/rbac"
)

// Inbound request payloads.
type listRequest struct {
	Status string `json:"status"`
	Sector string `json:"sector"`
	Limit  int    `json:"limit"`
}

type selectRequest struct {
	ConversationID string `json:"conversation_id"`
}

type sendRequest struct {
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text"`
}

type transferRequest struct {
	ConversationID string `json:"conversation_id"`
	NewSector      string `json:"new_sector"`
}

// HandleClientEvent processes one raw frame received from a session's
// transport. Any received frame counts as activity and refreshes the
// session's presence. Failures are reported back to the sender as error
// events; nothing here terminates the session.
func (h *Hub) HandleClientEvent(ctx context.Context, s *Session, raw []byte) {
	h.mu.Lock()
	s.lastActivity = h.clock()
	h.mu.Unlock()
	h.touchPresence(ctx, s)

	var frame struct {
		Name    string          `json:"event"`
		Payload json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &frame); err != nil {
		s.deliver(Event{Name: EvtError, Payload: ErrorPayload{Message: "evento inválido"}})
		return
	}

	switch frame.Name {
	case EvtListConversations:
		h.handleList(ctx, s, frame.Payload)
	case EvtSelectConversation:
		h.handleSelect(ctx, s, frame.Payload)
	case EvtSendMessage:
		h.handleSend(ctx, s, frame.Payload)
	case EvtFinishConversation:
		h.handleFinish(ctx, s, frame.Payload)
	case EvtTransferConversation:
		h.handleTransfer(ctx, s, frame.Payload)
	default:
		s.deliver(Event{Name: EvtError, Payload: ErrorPayload{Message: "evento desconhecido: " + frame.Name}})
	}
}

func (h *Hub) handleList(ctx context.Context, s *Session, raw json.RawMessage) {
	var req listRequest
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &req); err != nil {
			s.deliver(Event{Name: EvtError, Payload: ErrorPayload{Message: "payload inválido", Command: EvtListConversations}})
			return
		}
	}

	filter := conversation.ListFilter{Limit: req.Limit}
	if st := conversation.Status(req.Status); req.Status != "" && st.Valid() {
		filter.Status = st
	}
	// Agents only ever see their own sector, whatever they asked for.
	if rbac.IsAdmin(s.Identity.Role) {
		filter.Sector = req.Sector
	} else {
		filter.Sector = s.Identity.Sector
	}

	convs, err := h.engine.List(ctx, filter)
	if err != nil {
		h.log.Error("list conversations failed", "session_id", s.ID, "err", err)
		s.deliver(Event{Name: EvtError, Payload: ErrorPayload{Message: "falha ao listar conversas", Command: EvtListConversations}})
		return
	}
	s.deliver(Event{Name: EvtConversationsList, Payload: ConversationsListPayload{Conversations: convs}})
}

func (h *Hub) handleSelect(ctx context.Context, s *Session, raw json.RawMessage) {
	var req selectRequest
	if err := json.Unmarshal(raw, &req); err != nil || req.ConversationID == "" {
		s.deliver(Event{Name: EvtError, Payload: ErrorPayload{Message: "payload inválido", Command: EvtSelectConversation}})
		return
	}

	conv, err := h.authorized(ctx, s, req.ConversationID)
	if err != nil {
		h.deliverOpError(s, EvtSelectConversation, err)
		return
	}

	h.mu.Lock()
	if s.viewing != "" && s.viewing != conv.ID {
		h.leave(ConversationRoom(s.viewing), s)
	}
	h.join(ConversationRoom(conv.ID), s)
	s.viewing = conv.ID
	h.mu.Unlock()

	s.deliver(Event{Name: EvtConversationUpdated, Payload: ConversationPayload{Conversation: conv}})
	h.PublishRoom(ConversationRoom(conv.ID), Event{Name: EvtViewing, Payload: ViewingPayload{
		ConversationID: conv.ID,
		UserID:         s.Identity.UserID,
		Name:           s.Identity.Name,
	}})
}

// handleSend routes slash-prefixed text through the command interpreter
// and everything else into the conversation as an agent message.
func (h *Hub) handleSend(ctx context.Context, s *Session, raw json.RawMessage) {
	var req sendRequest
	if err := json.Unmarshal(raw, &req); err != nil || req.ConversationID == "" || strings.TrimSpace(req.Text) == "" {
		s.deliver(Event{Name: EvtError, Payload: ErrorPayload{Message: "payload inválido", Command: EvtSendMessage}})
		return
	}

	if _, err := h.authorized(ctx, s, req.ConversationID); err != nil {
		h.deliverOpError(s, EvtSendMessage, err)
		return
	}

	if strings.HasPrefix(strings.TrimSpace(req.Text), command.Prefix) {
		h.runCommand(ctx, s, req.ConversationID, req.Text)
		return
	}

	if _, err := h.engine.AppendAgentMessage(ctx, req.ConversationID, s.Identity.Name, req.Text); err != nil {
		h.deliverOpError(s, EvtSendMessage, err)
	}
}

func (h *Hub) handleFinish(ctx context.Context, s *Session, raw json.RawMessage) {
	var req selectRequest
	if err := json.Unmarshal(raw, &req); err != nil || req.ConversationID == "" {
		s.deliver(Event{Name: EvtError, Payload: ErrorPayload{Message: "payload inválido", Command: EvtFinishConversation}})
		return
	}
	if _, err := h.authorized(ctx, s, req.ConversationID); err != nil {
		h.deliverOpError(s, EvtFinishConversation, err)
		return
	}
	if _, err := h.engine.Finish(ctx, req.ConversationID, s.Identity.Name); err != nil {
		h.deliverOpError(s, EvtFinishConversation, err)
	}
}

func (h *Hub) handleTransfer(ctx context.Context, s *Session, raw json.RawMessage) {
	var req transferRequest
	if err := json.Unmarshal(raw, &req); err != nil || req.ConversationID == "" || req.NewSector == "" {
		s.deliver(Event{Name: EvtError, Payload: ErrorPayload{Message: "payload inválido", Command: EvtTransferConversation}})
		return
	}
	if _, err := h.authorized(ctx, s, req.ConversationID); err != nil {
		h.deliverOpError(s, EvtTransferConversation, err)
		return
	}
	if _, err := h.engine.TransferSector(ctx, req.ConversationID, req.NewSector, s.Identity.Name); err != nil {
		h.deliverOpError(s, EvtTransferConversation, err)
	}
}

func (h *Hub) runCommand(ctx context.Context, s *Session, conversationID, input string) {
	actor := command.Actor{
		UserID: s.Identity.UserID,
		Name:   s.Identity.Name,
		Sector: s.Identity.Sector,
	}
	res := h.commands.Execute(ctx, conversationID, actor, input)
	switch res.Kind {
	case command.KindTransferred, command.KindFinished:
		// The engine already broadcast the outcome to the right rooms.
	case command.KindOptions:
		s.deliver(Event{Name: EvtCommandOptions, Payload: OptionsPayload{
			Command: res.Command,
			Options: res.Options,
			Prompt:  res.Prompt,
		}})
	case command.KindTemplate:
		s.deliver(Event{Name: EvtTemplateContent, Payload: TemplatePayload{
			Name:    res.TemplateName,
			Content: res.Content,
		}})
	case command.KindHelp:
		s.deliver(Event{Name: EvtCommandHelp, Payload: HelpPayload{Commands: res.Help}})
	case command.KindError:
		s.deliver(Event{Name: EvtError, Payload: ErrorPayload{Message: res.Err.Error(), Command: res.Command}})
	}
}

// authorized loads the conversation and checks the session may touch
// it. Admins pass unconditionally; agents must match the conversation's
// current sector, rechecked on every request because conversations move
// between sectors while sessions stay connected.
func (h *Hub) authorized(ctx context.Context, s *Session, conversationID string) (conversation.Conversation, error) {
	conv, err := h.engine.Find(ctx, conversationID)
	if err != nil {
		return conversation.Conversation{}, err
	}
	if !rbac.CanAccessSector(s.Identity.Role, s.Identity.Sector, conv.Sector) {
		return conversation.Conversation{}, ErrUnauthorized
	}
	return conv, nil
}

func (h *Hub) deliverOpError(s *Session, op string, err error) {
	msg := "operação falhou"
	switch {
	case errors.Is(err, conversation.ErrNotFound):
		msg = "conversa não encontrada"
	case errors.Is(err, ErrUnauthorized):
		msg = "acesso negado a esta conversa"
	case errors.Is(err, conversation.ErrInvalidState):
		msg = "a conversa não permite esta operação"
	case errors.Is(err, conversation.ErrInvalidSector):
		msg = "setor inválido"
	case errors.Is(err, conversation.ErrNoOp):
		msg = "a conversa já está neste setor"
	}
	s.deliver(Event{Name: EvtError, Payload: ErrorPayload{Message: msg, Command: op}})
}
