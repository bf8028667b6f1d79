// PrepPal - Gating & Grant Engine Server
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

	"github.com/ashureev/preppal/internal/api"
	"github.com/ashureev/preppal/internal/config"
	"github.com/ashureev/preppal/internal/gate"
	"github.com/ashureev/preppal/internal/metrics"
	"github.com/ashureev/preppal/internal/middleware"
	"github.com/ashureev/preppal/internal/notify"
	"github.com/ashureev/preppal/internal/pipeline"
	"github.com/ashureev/preppal/internal/provider"
	"github.com/ashureev/preppal/internal/router"
	"github.com/ashureev/preppal/internal/store"
	"github.com/ashureev/preppal/internal/worker"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
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

	slog.Info("Starting server", "port", cfg.Port, "challenge_url", cfg.ChallengeURL)

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

	defaults, err := config.LoadDefaults(cfg.DefaultsFile)
	if err != nil {
		slog.Error("Failed to load defaults file", "error", err)
		os.Exit(1)
	}
	if defaults != nil {
		if err := repo.SeedSettings(context.Background(), defaults.Settings()); err != nil {
			slog.Error("Failed to seed settings", "error", err)
			os.Exit(1)
		}
		slog.Info("Settings seeded from defaults file", "path", cfg.DefaultsFile)
	}

	metrics.Register(prometheus.DefaultRegisterer)

	// Gating.
	grants := gate.NewGrantStore(repo)
	cadence := gate.NewCadenceTracker()
	interceptor := gate.NewInterceptor(repo, grants, cadence, cfg.ChallengeURL, logger)
	hub := notify.NewHub(logger)
	poller := gate.NewPoller(grants, cfg.GrantPollInterval, hub.PublishGrantExpired, logger)

	// Challenge pipeline.
	background := worker.NewBackground(cfg.BackgroundConcurrency, logger)
	transcriber := provider.NewTranscriber(provider.Options{
		BaseURL:       cfg.Transcription.BaseURL,
		Timeout:       cfg.Provider.Timeout,
		RatePerMinute: cfg.Provider.RatePerMinute,
		Logger:        logger,
	}, cfg.Transcription.Model)
	completer := provider.NewMessagesClient(provider.Options{
		BaseURL:       cfg.Grading.BaseURL,
		Timeout:       cfg.Provider.Timeout,
		RatePerMinute: cfg.Provider.RatePerMinute,
		Logger:        logger,
	})
	pipe := pipeline.New(pipeline.Deps{
		Repo:        repo,
		Transcriber: transcriber,
		Completer:   completer,
		Grants:      grants,
		Cadence:     cadence,
		Notifier:    hub,
		Background:  background,
		Models: pipeline.Models{
			Grade:      cfg.Grading.Model,
			QuickGrade: cfg.Grading.QuickModel,
		},
		Logger: logger,
	})
	messages := router.New(background, logger)
	router.RegisterChallenge(messages, pipe, cadence)
	slog.Info("Message routes registered", "tags", len(messages.Tags()))

	// Initialize handlers.
	handler := api.NewHandler(api.Deps{
		Repo:        repo,
		Interceptor: interceptor,
		Grants:      grants,
		Cadence:     cadence,
		Router:      messages,
		Logger:      logger,
	})
	healthHandler := api.NewHealthHandler(repo, cfg.Timeout.HealthCheck)
	wsHandler := notify.NewWebSocketHandler(hub, cfg.OriginPatterns(), logger)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Public routes.
	healthHandler.RegisterHealth(r)
	r.Handle("/metrics", promhttp.Handler())

	handler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/notifications", wsHandler.ServeHTTP)

	// Grading calls can take a while, so writes are left unbounded.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pollerDone := poller.Start(ctx)
	slog.Info("Grant poller started", "interval", cfg.GrantPollInterval)

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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeout.Shutdown)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	hub.Close()
	<-pollerDone

	if err := background.Shutdown(shutdownCtx); err != nil {
		slog.Warn("Background work abandoned", "error", err)
	}

	slog.Info("Server stopped successfully")
}
