// agenti - AI agent marketplace site server
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

	"github.com/agenti/agenti-web/internal/api"
	"github.com/agenti/agenti-web/internal/config"
	"github.com/agenti/agenti-web/internal/controller"
	"github.com/agenti/agenti-web/internal/domain"
	"github.com/agenti/agenti-web/internal/identity"
	"github.com/agenti/agenti-web/internal/metrics"
	"github.com/agenti/agenti-web/internal/middleware"
	"github.com/agenti/agenti-web/internal/pages"
	"github.com/agenti/agenti-web/internal/session"
	"github.com/agenti/agenti-web/internal/store"
	"github.com/agenti/agenti-web/internal/stream"
	"github.com/agenti/agenti-web/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
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

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "catalog", cfg.CatalogDriver)

	// Initialize dependencies.
	catalog, err := openCatalog(context.Background(), cfg)
	if err != nil {
		slog.Error("Failed to initialize catalog", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := catalog.Close(); closeErr != nil {
			slog.Error("Failed to close catalog", "error", closeErr)
		}
	}()

	if err := catalog.Ping(context.Background()); err != nil {
		slog.Error("Catalog health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Catalog ready")

	sessions := session.NewManager(session.Options{
		Converter: metrics.InstrumentConverter(controller.MockConverter{Delay: cfg.Demo.RunDelay}),
		Uploader:  metrics.InstrumentUploader(controller.MockUploader{Delay: cfg.Demo.UploadDelay}),
		Policy: controller.Policy{
			Enforce:           cfg.Upload.EnforcePolicy,
			AllowedExtensions: cfg.Upload.AllowedExtensions,
			MaxBytes:          cfg.Upload.MaxBytes,
		},
		ResetDelay: cfg.Demo.UploadResetDelay,
		Logger:     logger,
	})
	defer sessions.CloseAll()

	// Initialize handlers.
	baseHandler := api.NewHandler(catalog, sessions, cfg.Upload.MaxBytes, cfg.Run.MaxInputBytes)
	healthHandler := api.NewHealthHandler(catalog, sessions)
	catalogHandler := api.NewCatalogHandler(baseHandler)
	sessionHandler := api.NewSessionHandler(baseHandler)
	pageHandler := pages.NewHandler(catalog, sessions, cfg.Upload.AllowedExtensions)
	wsHandler := stream.NewHandler(sessions, cfg.FrontendURL, cfg.IsDevelopment(), cfg.Run.MaxInputBytes)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	openLimiter := middleware.NewRateLimiter(ctx, cfg.Session.OpenLimit, cfg.Session.OpenWindow)
	sessionHandler.SetOpenLimiter(openLimiter.Middleware)
	pageHandler.SetOpenLimiter(openLimiter.Middleware)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(allowedOrigins(cfg)))
	r.Use(identity.Middleware(cfg.IsDevelopment()))

	// Public routes.
	healthHandler.RegisterHealth(r)
	catalogHandler.RegisterRoutes(r)
	sessionHandler.RegisterRoutes(r)
	pageHandler.RegisterRoutes(r)

	r.Handle("/metrics", metrics.Handler())

	// WebSocket endpoint.
	r.Get("/ws/session", wsHandler.ServeHTTP)

	// Embedded browser assets.
	r.Handle("/static/*", web.StaticHandler())

	// WebSocket connections are long-lived, so there is no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	session.StartSweeper(ctx, sessions, cfg.Session.TTL, cfg.Session.SweepInterval)

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

	// Closing sessions first ends their hubs, which lets open sockets return.
	sessions.CloseAll()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}

func openCatalog(ctx context.Context, cfg *config.Config) (store.Catalog, error) {
	if cfg.CatalogDriver == config.CatalogMemory {
		return store.NewMemory(domain.SeedAgents, domain.Categories), nil
	}
	s, err := store.NewSQLite(ctx, cfg.DBPath, domain.SeedAgents, domain.Categories)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func allowedOrigins(cfg *config.Config) []string {
	if cfg.IsDevelopment() || cfg.FrontendURL == "*" {
		return []string{"*"}
	}
	return []string{cfg.FrontendURL}
}
