// DreamTales - bedtime story chat relay server
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

	"github.com/ashureev/dreamtales/internal/api"
	"github.com/ashureev/dreamtales/internal/bridge"
	"github.com/ashureev/dreamtales/internal/chat"
	"github.com/ashureev/dreamtales/internal/config"
	"github.com/ashureev/dreamtales/internal/identity"
	"github.com/ashureev/dreamtales/internal/llm"
	"github.com/ashureev/dreamtales/internal/middleware"
	"github.com/ashureev/dreamtales/internal/prompt"
	"github.com/ashureev/dreamtales/internal/ratelimit"
	"github.com/ashureev/dreamtales/internal/store"
	"github.com/ashureev/dreamtales/internal/telemetry"
	"github.com/ashureev/dreamtales/internal/transcript"
	"github.com/ashureev/dreamtales/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

// kvStore is a storage backend that can also purge its expired keys.
type kvStore interface {
	store.Store
	store.Purger
}

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

	logger, logCloser, err := telemetry.InitLogger(cfg.LogFile, slog.LevelInfo)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	defer func() { _ = logCloser.Close() }()

	slog.Info("Starting server", "port", cfg.Port, "storage", cfg.StorageBackend, "provider", cfg.LLM.Provider)

	if cfg.Telemetry.Enabled {
		cleanup, err := telemetry.Init(context.Background(), cfg.Telemetry.Dir)
		if err != nil {
			slog.Error("Failed to initialize telemetry", "error", err)
			os.Exit(1)
		}
		defer cleanup()
		slog.Info("Telemetry export enabled", "dir", cfg.Telemetry.Dir)
	}

	// Initialize dependencies.
	kv, err := openStore(cfg)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := kv.Close(); closeErr != nil {
			slog.Error("Failed to close store", "error", closeErr)
		}
	}()

	if err := kv.Ping(context.Background()); err != nil {
		slog.Error("Store health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Store connected", "backend", cfg.StorageBackend)

	conversationLogger, err := chat.NewConversationLogger(chat.ConversationLogConfig{
		Enabled:   cfg.ConversationLog.Enabled,
		Path:      cfg.ConversationLog.Path,
		QueueSize: cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize conversation logger", "error", err)
		os.Exit(1)
	}
	defer func() { _ = conversationLogger.Close() }()

	// Initialize services.
	limiter := ratelimit.New(kv, cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.WindowDuration,
		ratelimit.WithFailOpen(cfg.RateLimit.FailOpen))
	prompts := prompt.New(kv, promptFallbacks(cfg)...)
	parentBridge := bridge.New(kv)
	chatService := chat.NewService(transcript.New(kv), prompts, parentBridge, newGateway(cfg), conversationLogger)

	// Initialize handlers.
	apiHandler := api.NewHandler(chatService, prompts, parentBridge)
	healthHandler := api.NewHealthHandler(kv)
	wsHandler := api.NewWebSocketHandler(chatService, limiter)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS([]string{"*"}))
	if cfg.BasicAuth.Enabled() {
		r.Use(middleware.BasicAuth(middleware.BasicAuthConfig{
			User:         cfg.BasicAuth.User,
			Password:     cfg.BasicAuth.Password,
			PasswordHash: cfg.BasicAuth.PasswordHash,
			Exempt:       []string{"/health"},
		}))
		slog.Info("Basic auth enabled", "user", cfg.BasicAuth.User)
	}
	r.Use(identity.Middleware())

	// Public routes.
	healthHandler.RegisterHealth(r)

	// API routes are rate limited per client.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(limiter))
		apiHandler.RegisterRoutes(r)
	})

	// WebSocket endpoint; each frame is rate limited by the handler.
	r.Get("/ws/chat", wsHandler.ServeHTTP)

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// Create server.
	// Completion calls can take a while; no WriteTimeout so slow replies and
	// websocket sessions are not cut off.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start expired-key sweeper.
	store.StartSweeper(ctx, kv, cfg.SweepInterval)

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

func openStore(cfg *config.Config) (kvStore, error) {
	if cfg.StorageBackend == config.StorageMemory {
		slog.Warn("Using in-memory store; data is lost on restart")
		return store.NewMemory(), nil
	}
	return store.NewSQLite(cfg.DBPath)
}

// promptFallbacks orders the non-custom prompt sources: environment, then
// the built-in prompts when enabled.
func promptFallbacks(cfg *config.Config) []prompt.Resolver {
	fallbacks := []prompt.Resolver{
		prompt.EnvironmentResolver(cfg.Prompt.ChildDefault, cfg.Prompt.ParentDefault),
	}
	if cfg.Prompt.BuiltinFallback {
		fallbacks = append(fallbacks, prompt.BuiltinResolver())
	}
	return fallbacks
}

func newGateway(cfg *config.Config) llm.Completer {
	if cfg.LLM.Provider == config.ProviderMock {
		slog.Warn("Using mock completion provider")
		return llm.NewMock()
	}
	return llm.NewOpenAIClient(cfg.LLM)
}
