// Package channel is the provider adapter boundary for the external
// messaging gateway. No business logic lives here; routing decisions
// belong to internal/conversation.
package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"chatdesk-platform/internal/config"
)

// HTTPGateway delivers outbound text through the external channel
// gateway's send endpoint. Calls are bounded by SendTimeout; callers
// treat failures as non-fatal.
type HTTPGateway struct {
	url     string
	token   string
	timeout time.Duration
	client  *http.Client
}

func NewHTTPGateway(cfg config.ChannelConfig) *HTTPGateway {
	return &HTTPGateway{
		url:     cfg.GatewayURL,
		token:   cfg.Token,
		timeout: cfg.SendTimeout,
		client:  &http.Client{Timeout: cfg.SendTimeout},
	}
}

type sendRequest struct {
	Phone string `json:"phone"`
	Text  string `json:"text"`
}

func (g *HTTPGateway) Send(ctx context.Context, phone, text string) error {
	body, err := json.Marshal(sendRequest{Phone: phone, Text: text})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("channel send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("channel send: gateway returned %d", resp.StatusCode)
	}
	return nil
}

// LogGateway logs sends and drops them. Used in local/dev environments
// without a configured gateway.
type LogGateway struct {
	Log *slog.Logger
}

func (g LogGateway) Send(ctx context.Context, phone, text string) error {
	g.Log.Debug("outbound message dropped (no gateway configured)", "phone", phone, "len", len(text))
	return nil
}
