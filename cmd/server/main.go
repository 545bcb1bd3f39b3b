// Carelane - Health Assistant Demo Server
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

	"github.com/carelane/carelane/internal/api"
	"github.com/carelane/carelane/internal/chat"
	"github.com/carelane/carelane/internal/config"
	"github.com/carelane/carelane/internal/events"
	"github.com/carelane/carelane/internal/identity"
	"github.com/carelane/carelane/internal/middleware"
	"github.com/carelane/carelane/internal/provider"
	"github.com/carelane/carelane/internal/relay"
	"github.com/carelane/carelane/internal/store"
	"github.com/carelane/carelane/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

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

	// Event hub fans every backend event out to connected dashboards.
	hub := events.NewHub()
	wsHandler := events.NewWebSocketHandler(hub, cfg.FrontendURL, cfg.IsDevelopment())

	// Outbound call provider. Without credentials the call routes stay
	// registered but every initiate attempt fails with a clear error.
	var caller provider.Caller
	if cfg.CallsEnabled() {
		switch cfg.Provider.Name {
		case "twilio":
			caller = provider.NewTwilioCaller(cfg.Provider)
		default:
			caller = provider.NewVoiceAPIClient(cfg.Provider)
		}
		slog.Info("Call provider configured", "provider", caller.Name())
	} else {
		caller = provider.Unconfigured{}
		slog.Warn("Call provider credentials missing, outbound calls disabled",
			"provider", cfg.Provider.Name)
	}

	orc := relay.New(hub, caller, repo, relay.RealClock{}, relay.Options{
		ResponseTimeout:   cfg.Relay.ResponseTimeout,
		DefaultSlotAnswer: cfg.Relay.DefaultSlotAnswer,
		DefaultOpenAnswer: cfg.Relay.DefaultOpenAnswer,
		HoldKeywords:      cfg.Relay.HoldKeywords,
	})

	// Chat/reasoning service (optional).
	var chatHandler *api.ChatHandler
	if cfg.ChatEnabled() {
		llm := chat.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.ChatModel)
		chatHandler = api.NewChatHandler(chat.NewService(llm, hub))
		slog.Info("Chat service enabled", "model", cfg.OpenAI.ChatModel)
	} else {
		slog.Info("Chat service disabled (OPENAI_API_KEY not set)")
	}

	// Initialize handlers.
	callHandler := api.NewCallHandler(orc)
	profileHandler := api.NewProfileHandler(repo, cfg.HistoryLimit)
	healthHandler := api.NewHealthHandler(repo)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))
	r.Use(identity.Middleware(repo, cfg.IsDevelopment()))

	// Public routes.
	healthHandler.RegisterHealth(r)
	r.Handle("/metrics", promhttp.Handler())

	callHandler.RegisterRoutes(r)
	profileHandler.RegisterRoutes(r)
	if chatHandler != nil {
		chatHandler.RegisterRoutes(r)
	}

	// WebSocket endpoint.
	r.Get("/ws", wsHandler.ServeHTTP)

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// Create server.
	// Note: call webhooks can block up to the relay response timeout, so the
	// write timeout must comfortably exceed it.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Relay.ResponseTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
