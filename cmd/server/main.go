// Stemma - Encrypted Family History Journaling Backend
// Copyright 2026 Stemma Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stemmahq/stemma

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stemmahq/stemma/internal/api"
	"github.com/stemmahq/stemma/internal/auth"
	"github.com/stemmahq/stemma/internal/capacity"
	"github.com/stemmahq/stemma/internal/config"
	"github.com/stemmahq/stemma/internal/database"
	"github.com/stemmahq/stemma/internal/logging"
	"github.com/stemmahq/stemma/internal/mailer"
	"github.com/stemmahq/stemma/internal/middleware"
	"github.com/stemmahq/stemma/internal/supervisor"
	"github.com/stemmahq/stemma/internal/sync"
	ws "github.com/stemmahq/stemma/internal/websocket"
)

//nolint:gocyclo // Main initialization function with sequential setup steps
func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		// Use default logger for config errors (config not yet available)
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().Msg("Starting Stemma with supervisor tree")
	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("environment", cfg.Server.Environment).
		Bool("smtp_enabled", cfg.SMTP.Enabled).
		Bool("waitlist_enabled", cfg.Capacity.WaitlistEnabled).
		Msg("Configuration loaded")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized successfully")

	tokens, err := auth.OpenTokenStore(cfg.Security.TokenStorePath)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open token store")
	}
	defer func() {
		if err := tokens.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing token store")
		}
	}()
	logging.Info().Str("path", cfg.Security.TokenStorePath).Msg("Token store opened")

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize JWT manager")
	}
	passwords := auth.NewPasswordHasher(&cfg.Security)

	// Outbound mail flows through the queue in every configuration so
	// handlers never block on delivery. With SMTP disabled the worker
	// drains into a discard mailer instead of a real one.
	pubsub := mailer.NewPubSub()
	tasks := mailer.NewTasks(pubsub)

	var outbound mailer.Mailer
	if cfg.SMTP.Enabled {
		outbound = mailer.NewSMTPMailer(&cfg.SMTP)
		logging.Info().
			Str("host", cfg.SMTP.Host).
			Int("port", cfg.SMTP.Port).
			Str("from", cfg.SMTP.From).
			Msg("SMTP delivery enabled")
	} else {
		outbound = mailer.DiscardMailer{}
		logging.Warn().Msg("SMTP delivery disabled (SMTP_ENABLED=false) - accounts verify immediately and operator mail is dropped")
	}

	worker, err := mailer.NewWorker(mailer.DefaultWorkerConfig(), pubsub, outbound)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create mail worker")
	}

	gate := capacity.New(db, &cfg.Capacity)
	defer gate.Stop()
	if cfg.Capacity.MaxActiveUsers > 0 {
		logging.Info().
			Int("max_active_users", cfg.Capacity.MaxActiveUsers).
			Bool("waitlist_enabled", cfg.Capacity.WaitlistEnabled).
			Msg("Registration capacity gate enabled")
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create structured logger for supervisor using our slog adapter
	// This bridges zerolog to slog for sutureslog compatibility
	slogLogger := logging.NewSlogLogger()

	tree, err := supervisor.NewTree(slogLogger, supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	// Create WebSocket hub before the reconciler so sync commits can
	// broadcast completion to the user's other devices.
	wsHub := ws.NewHub()
	reconciler := sync.New(db, wsHub)

	handler := api.NewHandler(db, cfg, jwtManager, passwords, tokens, reconciler, gate, tasks)
	handler.SetWebSocketHub(wsHub)
	handler.SetPerformanceMonitor(middleware.NewPerformanceMonitor(1000)) // Keep last 1000 requests

	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
		logging.Warn().Msg("This should only be used for local development and CI!")
	}
	// Wildcard CORS is rejected by config validation in production; warn
	// everywhere else so it is not carried over by accident.
	for _, origin := range cfg.Security.CORSOrigins {
		if origin == "*" {
			logging.Warn().Msg("CORS_ORIGINS=* allows any website to call this API; set specific origins before deploying")
			break
		}
	}

	authMW := auth.NewMiddleware(jwtManager, &cfg.Security)
	chiMW := api.NewChiMiddleware(&cfg.Security)
	router := api.NewRouter(handler, authMW, chiMW)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.SetupChi(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	// === ADD SERVICES TO SUPERVISOR TREE ===

	// Data layer services
	tree.AddDataService(auth.NewTokenStoreGC(tokens, 10*time.Minute))
	logging.Info().Msg("Token store GC added to supervisor tree")

	// Messaging layer services
	tree.AddMessagingService(worker)
	tree.AddMessagingService(wsHub)
	logging.Info().Msg("Mail worker and WebSocket hub added to supervisor tree")

	// API layer services
	tree.AddAPIService(supervisor.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	// === START SUPERVISOR TREE ===

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	// Wait for supervisor to finish (either from signal or error)
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Wait for the error channel to close (supervisor finished)
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	// Report any services that failed to stop within timeout
	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}
