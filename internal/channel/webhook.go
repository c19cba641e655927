package channel

import (
	"context"
	"net/http"
	"strings"

	"chatdesk-platform/internal/conversation"
	"chatdesk-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// InboundMessage is the payload the external gateway posts for each
// client message.
type InboundMessage struct {
	FromPhone     string `json:"from_phone"`
	SenderName    string `json:"sender_name"`
	Text          string `json:"text"`
	ChannelUserID string `json:"channel_user_id"`
}

// Ingestor is the engine operation the webhook triggers.
type Ingestor interface {
	IngestClientMessage(ctx context.Context, phone, displayName, text string) (conversation.Conversation, error)
}

// WebhookHandler receives inbound messages from the channel gateway.
//
// IMPORTANT: the handler always answers 200 quickly. Internal failures
// are logged, never surfaced — surfacing them would trigger channel-side
// retry storms.
type WebhookHandler struct {
	Engine Ingestor
}

func (h WebhookHandler) HandleInbound(c *gin.Context) {
	log := logger.FromGin(c)

	var msg InboundMessage
	if err := c.ShouldBindJSON(&msg); err != nil {
		log.Warn("inbound webhook: malformed payload", "err", err)
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	phone := strings.TrimSpace(msg.FromPhone)
	if phone == "" || strings.TrimSpace(msg.Text) == "" {
		log.Warn("inbound webhook: missing phone or text")
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	if _, err := h.Engine.IngestClientMessage(c.Request.Context(), phone, msg.SenderName, msg.Text); err != nil {
		log.Error("inbound webhook: ingestion failed", "phone", phone, "err", err)
		c.JSON(http.StatusOK, gin.H{"status": "error_logged"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "received"})
}
