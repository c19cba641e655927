package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatdesk-platform/internal/audit"
	"chatdesk-platform/internal/auth"
	"chatdesk-platform/internal/channel"
	"chatdesk-platform/internal/classifier"
	"chatdesk-platform/internal/command"
	"chatdesk-platform/internal/config"
	"chatdesk-platform/internal/conversation"
	"chatdesk-platform/internal/hub"
	"chatdesk-platform/internal/reporting"
	"chatdesk-platform/internal/sector"
	"chatdesk-platform/internal/template"
	"chatdesk-platform/pkg/logger"
	"chatdesk-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	sectors := sector.NewDirectory(sector.NewPostgresRepo(db))
	templates := template.NewService(template.NewPostgresRepo(db))
	convRepo := conversation.NewPostgresRepo(db)

	var classify classifier.Classifier = classifier.Disabled{}
	if cfg.Classifier.APIKey != "" {
		classify = classifier.NewOpenAI(cfg.Classifier, log)
	} else {
		log.Warn("classifier disabled, conversations route to the default sector")
	}

	var gateway conversation.Gateway = channel.LogGateway{Log: log}
	if cfg.Channel.GatewayURL != "" {
		gateway = channel.NewHTTPGateway(cfg.Channel)
	} else {
		log.Warn("no channel gateway configured, outbound messages are dropped")
	}

	trail := audit.NewTrail(audit.NewPostgresRepo(db), log)

	// The hub broadcasts engine events, and sessions drive engine
	// operations. Construct the hub first, then close the loop.
	realtimeHub := hub.New(hub.NewRedisPresence(rdb, cfg.Hub.PresenceTTL), cfg.Hub.PresenceTTL, log)
	engine := conversation.NewEngine(convRepo, sectors, classify, gateway,
		conversation.FanoutBroadcaster{realtimeHub, trail}, log)
	interpreter := command.NewInterpreter(engine, sectors, templates)
	realtimeHub.Attach(engine, interpreter)
	realtimeHub.Start()
	defer realtimeHub.Stop()

	go archiveLoop(rootCtx, engine, cfg.Cleanup, log)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, routeDeps{
		cfg:       cfg,
		auth:      authManager,
		db:        db,
		engine:    engine,
		sectors:   sectors,
		templates: templates,
		reports:   reporting.NewService(convRepo),
		trail:     trail,
		ws:        hub.NewWSHandler(realtimeHub, authManager, cfg.Hub.AllowedOrigins),
		webhook:   channel.WebhookHandler{Engine: engine},
	})

	// No WriteTimeout: the websocket endpoint holds connections open.
	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}

// archiveLoop periodically archives open conversations with no activity
// past the configured window.
func archiveLoop(ctx context.Context, engine *conversation.Engine, cfg config.CleanupConfig, log *slog.Logger) {
	if cfg.Interval <= 0 || cfg.InactiveAfter <= 0 {
		return
	}
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := engine.ArchiveInactive(ctx, cfg.InactiveAfter)
			if err != nil {
				log.Error("archive sweep failed", "err", err)
				continue
			}
			if n > 0 {
				log.Info("archived inactive conversations", "count", n)
			}
		}
	}
}
