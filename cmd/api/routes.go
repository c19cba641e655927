package main

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"chatdesk-platform/internal/audit"
	"chatdesk-platform/internal/auth"
	"chatdesk-platform/internal/channel"
	"chatdesk-platform/internal/config"
	"chatdesk-platform/internal/conversation"
	"chatdesk-platform/internal/hub"
	"chatdesk-platform/internal/rbac"
	"chatdesk-platform/internal/reporting"
	"chatdesk-platform/internal/sector"
	"chatdesk-platform/internal/template"
	"chatdesk-platform/pkg/utils"

	"github.com/gin-gonic/gin"
)

type routeDeps struct {
	cfg       config.Config
	auth      *auth.Manager
	db        *sql.DB
	engine    *conversation.Engine
	sectors   *sector.Directory
	templates *template.Service
	reports   *reporting.Service
	trail     *audit.Trail
	ws        *hub.WSHandler
	webhook   channel.WebhookHandler
}

// registerRoutes wires HTTP routes to handlers. Business logic stays in
// internal modules; the realtime surface is the websocket, the REST
// surface exists for the gateway webhook and read-side queries.
func registerRoutes(r *gin.Engine, d routeDeps) {
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), d.db, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Gateway webhook (public; the gateway authenticates at the network
	// layer, and the handler never surfaces internal failures).
	r.POST("/webhooks/channel/inbound", d.webhook.HandleInbound)

	// Realtime session entry point. Authenticated before upgrade.
	r.GET("/ws", d.ws.Handle)

	// Development-only token minting. Production deployments issue
	// tokens from the identity service.
	if d.cfg.App.Env != "production" {
		r.POST("/v1/auth/token", issueDevToken(d.auth))
	}

	v1 := r.Group("/v1")
	v1.Use(auth.RequireAccessToken(d.auth))
	{
		v1.GET("/me", func(c *gin.Context) {
			id, err := auth.IdentityFrom(c.Request.Context())
			if err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "no identity"})
				return
			}
			c.JSON(http.StatusOK, gin.H{
				"user_id": id.UserID,
				"email":   id.Email,
				"name":    id.Name,
				"role":    id.Role,
				"sector":  id.Sector,
			})
		})

		v1.GET("/sectors", func(c *gin.Context) {
			sectors, err := d.sectors.ListActive(c.Request.Context())
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list sectors"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"sectors": sectors})
		})

		v1.GET("/templates", func(c *gin.Context) {
			id, _ := auth.IdentityFrom(c.Request.Context())
			visible, err := d.templates.ListVisible(c.Request.Context(), id.UserID, id.Sector)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list templates"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"templates": visible})
		})

		v1.GET("/conversations", listConversations(d.engine))
		v1.GET("/conversations/:id", getConversation(d.engine))

		admin := v1.Group("/")
		admin.Use(rbac.RequireAnyRole(auth.RoleAdmin))
		{
			admin.POST("/conversations/:id/archive", archiveConversation(d.engine))
			admin.GET("/reports/summary", reportSummary(d.reports))
			admin.GET("/audit", recentAudit(d.trail))
		}
	}
}

func listConversations(engine *conversation.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := auth.IdentityFrom(c.Request.Context())

		filter := conversation.ListFilter{Sector: c.Query("sector")}
		if st := conversation.Status(c.Query("status")); st != "" && st.Valid() {
			filter.Status = st
		}
		// Agents are scoped to their own sector.
		if !rbac.IsAdmin(id.Role) {
			filter.Sector = id.Sector
		}

		convs, err := engine.List(c.Request.Context(), filter)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list conversations"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"conversations": convs})
	}
}

func getConversation(engine *conversation.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := auth.IdentityFrom(c.Request.Context())

		conv, err := engine.Find(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, conversation.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
			return
		}
		if !rbac.CanAccessSector(id.Role, id.Sector, conv.Sector) {
			c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
			return
		}
		c.JSON(http.StatusOK, conv)
	}
}

func archiveConversation(engine *conversation.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := auth.IdentityFrom(c.Request.Context())

		conv, err := engine.Archive(c.Request.Context(), c.Param("id"), id.Name)
		if err != nil {
			if errors.Is(err, conversation.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "archive failed"})
			return
		}
		c.JSON(http.StatusOK, conv)
	}
}

func reportSummary(svc *reporting.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		from, err1 := time.Parse(time.RFC3339, c.Query("from"))
		to, err2 := time.Parse(time.RFC3339, c.Query("to"))
		if err1 != nil || err2 != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from and to must be RFC3339 timestamps"})
			return
		}

		summary, err := svc.Summary(c.Request.Context(), reporting.SummaryRequest{
			Range:  reporting.TimeRange{From: from, To: to},
			Sector: c.Query("sector"),
		})
		if err != nil {
			if errors.Is(err, reporting.ErrInvalidRequest) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid range"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "report failed"})
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

func recentAudit(trail *audit.Trail) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.Query("limit"))
		entries, err := trail.Recent(c.Request.Context(), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "audit lookup failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"entries": entries})
	}
}

func issueDevToken(m *auth.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			UserID string `json:"user_id" binding:"required"`
			Email  string `json:"email"`
			Name   string `json:"name"`
			Role   string `json:"role" binding:"required"`
			Sector string `json:"sector"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		token, err := m.Issue(time.Now(), auth.Identity{
			UserID: req.UserID,
			Email:  req.Email,
			Name:   req.Name,
			Role:   req.Role,
			Sector: req.Sector,
		})
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"access_token": token})
	}
}
