// Bot Factory - creates Telegram bots through BotFather on behalf of chat users.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ashureev/botfactory/internal/api"
	"github.com/ashureev/botfactory/internal/botfather"
	"github.com/ashureev/botfactory/internal/config"
	"github.com/ashureev/botfactory/internal/events"
	"github.com/ashureev/botfactory/internal/flow"
	"github.com/ashureev/botfactory/internal/janitor"
	"github.com/ashureev/botfactory/internal/mtproto"
	"github.com/ashureev/botfactory/internal/store"
	"github.com/ashureev/botfactory/internal/telegram"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	auto := cfg.Automation
	slog.Info("Starting bot factory",
		"http_addr", net.JoinHostPort(cfg.HTTPHost, cfg.HTTPPort),
		"automation_configured", auto.Configured(),
		"session_present", auto.SessionExists())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	hub := events.NewHub(32, 100, logger)

	dialer := mtproto.New(mtproto.Config{
		APIID:       auto.APIID,
		APIHash:     auto.APIHash,
		SessionPath: auto.SessionPath,
		BotFather:   auto.BotFather,
	}, logger)
	if err := dialer.Ready(); err != nil {
		slog.Warn("BotFather automation unavailable, /create will report it", "reason", err)
	}

	seq := botfather.NewSequencer(dialer, botfather.Options{
		Description:  auto.Description,
		StepWait:     auto.StepWait,
		FinalWait:    auto.FinalWait,
		PollInterval: auto.PollInterval,
		Observer:     hub,
		Logger:       logger,
	})
	defer seq.Close()

	botAPI, err := telegram.NewAPI(cfg.BotToken, logger)
	if err != nil {
		slog.Error("Failed to connect to Telegram Bot API", "error", err)
		os.Exit(1)
	}
	slog.Info("Bot API connected", "bot_username", botAPI.Self.UserName)

	bot := telegram.New(botAPI, logger)
	sessions := flow.NewMemorySessionStore()
	limiter := flow.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	bot.SetHandler(flow.New(seq, bot, bot, repo, sessions, limiter, flow.Options{
		UsernamePrefix: auto.UsernamePrefix,
		TempDir:        cfg.TempDir,
		Logger:         logger,
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	janitor.New(sessions, limiter, cfg.TempDir, cfg.SessionTTL, cfg.JanitorTick).Start(ctx)

	var srv *http.Server
	if cfg.HTTPPort != "" {
		if cfg.OpsToken == "" {
			slog.Warn("OPS_TOKEN not set, /api and /ws endpoints will reject every request")
		}
		handler := api.NewHandler(repo, seq, sessions, hub)
		router := api.NewRouter(handler, events.NewWebSocketHandler(hub, cfg.AllowedOrigins), cfg.AllowedOrigins, cfg.OpsToken)

		// No WriteTimeout: /ws/events connections are long-lived.
		srv = &http.Server{
			Addr:              net.JoinHostPort(cfg.HTTPHost, cfg.HTTPPort),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		}
		go func() {
			slog.Info("Server listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Server failed", "error", err)
				stop()
			}
		}()
	}

	pollDone := make(chan error, 1)
	go func() { pollDone <- bot.Run(ctx) }()

	// Wait for shutdown signal or a polling failure.
	polling := true
	select {
	case <-ctx.Done():
	case err := <-pollDone:
		polling = false
		if err != nil {
			slog.Error("Bot polling failed", "error", err)
		}
		stop()
	}

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server forced to shutdown", "error", err)
		}
	}

	if polling {
		select {
		case <-pollDone:
		case <-shutdownCtx.Done():
			slog.Warn("Timed out waiting for in-flight messages")
		}
	}

	slog.Info("Server stopped successfully")
}
