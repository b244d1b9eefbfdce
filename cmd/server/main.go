package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dialtrack/backend/internal/api"
	"github.com/dialtrack/backend/internal/auth"
	"github.com/dialtrack/backend/internal/config"
	"github.com/dialtrack/backend/internal/directory"
	"github.com/dialtrack/backend/internal/livecalls"
	"github.com/dialtrack/backend/internal/metrics"
	"github.com/dialtrack/backend/internal/presence"
	"github.com/dialtrack/backend/internal/snapshot"
	"github.com/dialtrack/backend/internal/storage"
	"github.com/dialtrack/backend/internal/websocket"
	"github.com/dialtrack/backend/pkg/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Configure logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("log_level", cfg.LogLevel).
		Msg("starting dialtrack backend server")

	// Create context for services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create store (DynamoDB or in-memory per DYNAMO_MODE)
	store, err := storage.NewStore(ctx, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize store")
	}

	// Create WebSocket hub
	hub := websocket.NewHub(log.Logger)
	go hub.Run()

	// Create domain services
	presenceService := presence.NewService(store, hub, log.Logger)
	resolver := directory.NewResolver(store, log.Logger)
	tracker := livecalls.NewTracker(hub, resolver, log.Logger)

	// Background loops: idle/timeout sweep, stale call eviction,
	// manager snapshots
	presenceSweeper := presence.NewSweeper(presenceService, cfg.IdleThreshold, cfg.SessionTimeout, cfg.SweepInterval, log.Logger)
	go presenceSweeper.Start(ctx)

	callSweeper := livecalls.NewSweeper(tracker, cfg.LiveCallTTL, cfg.LiveCallSweepInterval, log.Logger)
	go callSweeper.Start(ctx)

	snapshotBroadcaster := snapshot.NewBroadcaster(store, tracker, hub, cfg.SnapshotInterval, log.Logger)
	go snapshotBroadcaster.Start(ctx)

	// Create handlers
	wsHandler := websocket.NewHandler(hub, cfg, log.Logger)
	presenceHandler := api.NewPresenceHandler(presenceService, snapshotBroadcaster, store, log.Logger)
	callsHandler := api.NewCallsHandler(tracker, presenceService, log.Logger)
	adminHandler := api.NewAdminHandler(resolver, presenceService, store, log.Logger)
	callEventReceiver := api.NewCallEventReceiver(tracker, presenceService, log.Logger)

	// Create router
	r := chi.NewRouter()

	// Add middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(log.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Register public routes (no auth required)
	r.Get("/health", healthHandler)
	r.Get("/metrics", metrics.Get().Handler())

	// Internal routes (no auth - for the telephony side)
	r.Route("/internal", func(r chi.Router) {
		r.Post("/callevents", callEventReceiver.HandleEvent)
		r.Get("/callevents/stats", callEventReceiver.GetStats)
	})

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware)

		r.Get("/ws", wsHandler.ServeHTTP)

		r.Route("/api/presence", func(r chi.Router) {
			r.Post("/heartbeat", presenceHandler.HandleHeartbeat)
			r.Post("/status", presenceHandler.HandleSetStatus)
			r.Post("/break/start", presenceHandler.HandleStartBreak)
			r.Post("/break/end", presenceHandler.HandleEndBreak)
			r.Post("/logout", presenceHandler.HandleLogout)
			r.Get("/me", presenceHandler.HandleMe)
			r.Get("/me/summary", presenceHandler.HandleMeSummary)

			r.With(auth.RequireRoles(auth.RoleManager, auth.RoleSuperadmin)).
				Get("/manager/agents", presenceHandler.HandleManagerAgents)
		})

		r.Route("/api/calls", func(r chi.Router) {
			r.Post("/phase", callsHandler.HandlePhase)

			r.With(auth.RequireRoles(auth.RoleManager, auth.RoleSuperadmin)).
				Get("/live", callsHandler.HandleLive)
		})

		r.Route("/api/admin", func(r chi.Router) {
			r.Use(auth.RequireRoles(auth.RoleSuperadmin))
			r.Post("/extensions", adminHandler.HandleAssignExtension)
			r.Post("/users/{userID}/logout", adminHandler.HandleForceLogout)
			r.Post("/reset", adminHandler.HandleReset)
		})
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Msgf("server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	// Stop the background loops
	cancel()

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Attempt graceful shutdown
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// healthHandler handles health check requests
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","service":"dialtrack-backend"}`)
}
