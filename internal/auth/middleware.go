package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const authorizationHeader = "Authorization"
const bearerPrefix = "Bearer "

// BearerToken extracts the bearer token from a request, or "".
func BearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get(authorizationHeader))
	if !strings.HasPrefix(raw, bearerPrefix) {
		return ""
	}
	return strings.TrimPrefix(raw, bearerPrefix)
}

// RequireAccessToken verifies a bearer token and injects identity into
// the request context. RBAC checks belong to internal/rbac.
func RequireAccessToken(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := BearerToken(c.Request)
		if tok == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := m.Decode(tok, time.Now())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		ctx := WithIdentity(c.Request.Context(), claims.Identity())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
