package channel

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"chatdesk-platform/internal/conversation"

	"github.com/gin-gonic/gin"
)

type stubIngestor struct {
	calls int
	err   error
}

func (s *stubIngestor) IngestClientMessage(ctx context.Context, phone, displayName, text string) (conversation.Conversation, error) {
	s.calls++
	return conversation.Conversation{ID: "c1"}, s.err
}

func postWebhook(t *testing.T, h WebhookHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/webhooks/channel/inbound", h.HandleInbound)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/channel/inbound", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWebhook_IngestsAndAcks(t *testing.T) {
	ing := &stubIngestor{}
	w := postWebhook(t, WebhookHandler{Engine: ing}, `{"from_phone":"5521999999999","sender_name":"João","text":"Oi"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ing.calls != 1 {
		t.Fatalf("expected single ingestion, got %d", ing.calls)
	}
}

func TestWebhook_AlwaysAcksOnFailure(t *testing.T) {
	ing := &stubIngestor{err: errors.New("store down")}
	w := postWebhook(t, WebhookHandler{Engine: ing}, `{"from_phone":"5521999999999","text":"Oi"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("internal failures must not surface to the channel, got %d", w.Code)
	}
}

func TestWebhook_IgnoresMalformedAndEmpty(t *testing.T) {
	ing := &stubIngestor{}
	for _, body := range []string{`not json`, `{"text":"sem telefone"}`, `{"from_phone":"552199","text":"  "}`} {
		w := postWebhook(t, WebhookHandler{Engine: ing}, body)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200 for %q, got %d", body, w.Code)
		}
	}
	if ing.calls != 0 {
		t.Fatalf("malformed payloads must not reach the engine, got %d calls", ing.calls)
	}
}
