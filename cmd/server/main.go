// Docs Chat - session service fronting the textbook assistant API
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

	"github.com/ashureev/docschat/internal/api"
	"github.com/ashureev/docschat/internal/config"
	"github.com/ashureev/docschat/internal/gateway"
	"github.com/ashureev/docschat/internal/identity"
	"github.com/ashureev/docschat/internal/middleware"
	"github.com/ashureev/docschat/internal/session"
	"github.com/ashureev/docschat/internal/store"
	"github.com/ashureev/docschat/internal/stream"
	"github.com/ashureev/docschat/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
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

	// Assistant service gateway.
	gw := gateway.NewClient(gateway.ClientConfig{
		BaseURL:        cfg.ChatAPIURL,
		RequestTimeout: cfg.ChatAPITimeout,
	}, logger)
	slog.Info("Assistant gateway configured",
		"url", cfg.ChatAPIURL,
		"timeout", cfg.ChatAPITimeout,
	)

	// Session layer: one controller per anonymous identity.
	sessions := session.NewManager(gw, repo, session.Config{
		HistoryLimit: cfg.HistoryLimit,
	}, logger)

	// WebSocket state stream, wired as the session change hook.
	sm := stream.NewManager()
	wsHandler := stream.NewHandler(sessions, sm, cfg.FrontendURL, cfg.IsDevelopment())
	sessions.SetBroadcast(wsHandler.Broadcast)

	// HTTP facade.
	apiHandler := api.NewHandler(sessions, gw, cfg)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS([]string{"*"}))
	r.Use(identity.Middleware(cfg.IsDevelopment()))

	// Session facade and health routes.
	apiHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/session", wsHandler.ServeHTTP)

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// Create server. WriteTimeout stays 0 so a slow backend query (or a
	// disabled gateway timeout) cannot sever an in-flight send response.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start snapshot cleanup worker.
	store.StartCleanupWorker(ctx, repo, cfg.SnapshotTTL)

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
