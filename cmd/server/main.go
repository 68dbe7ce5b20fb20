// Cryptoquip - cryptogram puzzle server
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

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"cryptoquip/internal/api"
	"cryptoquip/internal/config"
	"cryptoquip/internal/daily"
	"cryptoquip/internal/game"
	"cryptoquip/internal/identity"
	"cryptoquip/internal/middleware"
	"cryptoquip/internal/quotes"
	"cryptoquip/internal/store"
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

	// Quote corpus: embedded by default, file override for custom decks.
	var src *quotes.Source
	if cfg.QuotesPath != "" {
		src, err = quotes.LoadFile(cfg.QuotesPath)
	} else {
		src, err = quotes.Embedded()
	}
	if err != nil {
		slog.Error("Failed to load quote corpus", "error", err)
		os.Exit(1)
	}
	slog.Info("Quote corpus loaded", "quotes", src.Len())

	lifecycle := daily.NewLifecycle(repo, src, cfg.MaxMistakes, nil, func(rec game.DailyRecord) {
		slog.Info("Daily challenge completed",
			"player_id", rec.PlayerID,
			"day_key", rec.DayKey,
			"score", rec.Score,
			"mistakes", rec.Mistakes)
	})

	// Retire ad-hoc games abandoned before today.
	swept, err := lifecycle.CleanupAbandoned(context.Background())
	if err != nil {
		slog.Error("Failed to sweep abandoned games", "error", err)
		os.Exit(1)
	}
	slog.Info("Abandoned-game sweep complete", "marked_lost", swept)

	// Initialize handlers.
	hub := api.NewHub()
	baseHandler := api.NewHandler(repo, lifecycle, src, cfg, hub)
	gameHandler := api.NewGameHandler(baseHandler)
	healthHandler := api.NewHealthHandler(repo)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS([]string{"*"}))
	r.Use(identity.Middleware(repo, cfg.IsDevelopment()))

	healthHandler.RegisterHealth(r)
	gameHandler.RegisterRoutes(r)

	// WebSocket state stream.
	r.Get("/ws/games/{gameID}", gameHandler.Watch)

	// Create server.
	// Note: websocket connections are long-lived, so no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lifecycle.StartSweeper(ctx, cfg.SweepInterval)

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
