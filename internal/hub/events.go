package hub

import (
	"chatdesk-platform/internal/command"
	"chatdesk-platform/internal/conversation"
)

// Wire event names, client→hub and hub→client. These are the protocol
// contract with the agent dashboard; keep them stable.
const (
	// client → hub
	EvtListConversations    = "list_conversations"
	EvtSelectConversation   = "select_conversation"
	EvtSendMessage          = "send_message"
	EvtFinishConversation   = "finish_conversation"
	EvtTransferConversation = "transfer_conversation"

	// hub → client
	EvtNewConversation     = "new_conversation"
	EvtNewMessage          = "new_message"
	EvtTransferred         = "transferred"
	EvtFinished            = "finished"
	EvtConversationUpdated = "conversation_updated"
	EvtConversationsList   = "conversations_list"
	EvtCommandOptions      = "command_options"
	EvtCommandHelp         = "command_help"
	EvtTemplateContent     = "template_content"
	EvtError               = "error"
	EvtOnline              = "online"
	EvtOffline             = "offline"
	EvtViewing             = "viewing"
)

// Event is one frame on the realtime protocol. Payloads are fixed
// per-name structs; nothing loosely shaped crosses this boundary.
type Event struct {
	Name    string `json:"event"`
	Payload any    `json:"data,omitempty"`
}

// Transfer actions, from the perspective of the receiving room.
const (
	TransferRemoved = "removed"
	TransferAdded   = "added"
	TransferUpdated = "updated"
)

type ConversationPayload struct {
	Conversation conversation.Conversation `json:"conversation"`
}

type ConversationsListPayload struct {
	Conversations []conversation.Conversation `json:"conversations"`
}

type TransferredPayload struct {
	Conversation conversation.Conversation `json:"conversation"`
	FromSector   string                    `json:"from_sector"`
	ToSector     string                    `json:"to_sector"`
	Action       string                    `json:"action"`
}

type OptionsPayload struct {
	Command string           `json:"command"`
	Options []command.Option `json:"options"`
	Prompt  string           `json:"prompt"`
}

type HelpPayload struct {
	Commands []command.HelpEntry `json:"commands"`
}

type TemplatePayload struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Command string `json:"command,omitempty"`
}

type PresencePayload struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type ViewingPayload struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	Name           string `json:"name"`
}
