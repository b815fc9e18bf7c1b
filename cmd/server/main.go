// ProjectHub - chat assistant for requirements, bugs and queries
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

	"github.com/ashureev/projecthub/internal/agent"
	"github.com/ashureev/projecthub/internal/api"
	"github.com/ashureev/projecthub/internal/config"
	"github.com/ashureev/projecthub/internal/conversation"
	"github.com/ashureev/projecthub/internal/identity"
	"github.com/ashureev/projecthub/internal/middleware"
	"github.com/ashureev/projecthub/internal/prompts"
	"github.com/ashureev/projecthub/internal/store"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
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
	level.Set(cfg.LogLevel)

	slog.Info("Starting server", "port", cfg.Port, "db_driver", cfg.DB.Driver, "session_store", cfg.Session.Store)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize dependencies.
	repo, err := store.Open(ctx, store.OpenConfig{
		Driver:     cfg.DB.Driver,
		SQLitePath: cfg.DB.Path,
		Postgres:   store.PostgresConfig{DSN: cfg.DB.DatabaseURL},
	})
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(ctx); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	catalog, err := prompts.Load(cfg.PromptsPath)
	if err != nil {
		slog.Error("Failed to load prompts", "error", err, "path", cfg.PromptsPath)
		os.Exit(1)
	}

	classifier, err := agent.NewOpenAIClassifier(agent.Config{
		APIKey:           cfg.LLM.APIKey,
		BaseURL:          cfg.LLM.BaseURL,
		Model:            cfg.LLM.Model,
		Timeout:          cfg.LLM.Timeout,
		MaxRetries:       cfg.LLM.MaxRetries,
		StructuredOutput: cfg.LLM.StructuredOutput,
	}, catalog, logger)
	if err != nil {
		slog.Error("Failed to initialize classifier", "error", err)
		os.Exit(1)
	}
	slog.Info("Classifier initialized", "model", classifier.Model(), "base_url", cfg.LLM.BaseURL)

	var sessions conversation.SessionStore
	var sessionsPinger api.Pinger
	switch cfg.Session.Store {
	case config.SessionStoreRedis:
		opts, err := redis.ParseURL(cfg.Session.RedisURL)
		if err != nil {
			slog.Error("Invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		redisSessions := conversation.NewRedisSessionStore(redis.NewClient(opts), "", cfg.Session.TTL)
		defer func() {
			if closeErr := redisSessions.Close(); closeErr != nil {
				slog.Error("Failed to close session store", "error", closeErr)
			}
		}()
		if err := redisSessions.Ping(ctx); err != nil {
			slog.Error("Session store health check failed", "error", err)
			os.Exit(1)
		}
		sessions, sessionsPinger = redisSessions, redisSessions
		slog.Info("Redis session store connected", "session_ttl", cfg.Session.TTL)
	default:
		memSessions := conversation.NewMemorySessionStore()
		conversation.StartSweeper(ctx, memSessions, cfg.Session.TTL, cfg.Session.SweepInterval)
		sessions = memSessions
	}

	conversationLogger, err := conversation.NewConversationLogger(conversation.ConversationLogConfig{
		Enabled:       cfg.ConversationLog.Enabled,
		Dir:           cfg.ConversationLog.Dir,
		GlobalEnabled: cfg.ConversationLog.GlobalEnabled,
		GlobalPath:    cfg.ConversationLog.GlobalPath,
		QueueSize:     cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize conversation logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := conversationLogger.Close(); closeErr != nil {
			slog.Error("Failed to close conversation logger", "error", closeErr)
		}
	}()

	engine := conversation.NewEngine(classifier, repo, sessions, catalog, conversationLogger)

	limiter := api.NewRateLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.WindowDuration)
	defer limiter.Stop()

	// Initialize handlers.
	chatHandler := api.NewHandler(engine, repo, limiter, cfg.MaxRequestBodySize)
	healthHandler := api.NewHealthHandler(repo, sessionsPinger, 5*time.Second)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(identity.Middleware)

	healthHandler.RegisterHealth(r)
	chatHandler.RegisterRoutes(r)

	// Create server.
	// Note: /ws/chat connections outlive a single request, so no WriteTimeout.
	// Classifier calls are bounded by LLM_TIMEOUT instead.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

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
