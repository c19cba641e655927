package hub

import (
	"context"
	"net/http"
	"time"

	"chatdesk-platform/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 << 10
)

// WSHandler upgrades HTTP requests into hub sessions.
type WSHandler struct {
	hub      *Hub
	tokens   *auth.Manager
	upgrader websocket.Upgrader
}

func NewWSHandler(h *Hub, tokens *auth.Manager, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		hub:    h,
		tokens: tokens,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// Handle authenticates before upgrading so credential failures stay
// plain HTTP 401s. Browsers cannot set headers on websocket dials, so
// the token is also accepted as a query parameter.
func (h *WSHandler) Handle(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = auth.BearerToken(c.Request)
	}
	claims, err := h.tokens.Decode(token, time.Now())
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing token"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		return
	}

	s := NewSession(claims.Identity())
	h.hub.Register(c.Request.Context(), s)

	go h.writePump(conn, s)
	go h.readPump(conn, s)
}

func (h *WSHandler) readPump(conn *websocket.Conn, s *Session) {
	defer func() {
		h.hub.Unregister(context.Background(), s.ID)
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.hub.log.Warn("websocket read failed", "session_id", s.ID, "err", err)
			}
			return
		}
		h.hub.HandleClientEvent(context.Background(), s, raw)
	}
}

func (h *WSHandler) writePump(conn *websocket.Conn, s *Session) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case <-s.Done():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case e := <-s.Outbox():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(e); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
