// CodeQuarry Admin - Learning Platform Administration Server
// Copyright 2026 CodeQuarry Maintainers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/codequarry/adminserver

// Package main is the entry point for the CodeQuarry admin server.
//
// The admin server is the administration backend for the CodeQuarry
// learning platform. It exposes a REST API for managing users, courses,
// and practice problems, with a session and security audit subsystem
// covering JWT authentication, CSRF protection, per-class rate limiting,
// input threat detection, and a queryable audit trail.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: load settings from environment variables and config files (Koanf v2)
//  2. Audit engine: bounded in-memory window plus optional durable NDJSON sink
//  3. Stores: user directory, session registry (memory or Badger), content catalog
//  4. Authentication: JWT issuer, CSRF guard, rate limiter, threat detector
//  5. HTTP server: Chi router with the full middleware pipeline
//  6. Supervisor tree: suture-managed HTTP server and maintenance loops
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins): environment variables, config file (config.yaml),
// built-in defaults.
//
// Required for production:
//   - JWT_SECRET: 32+ character secret for token signing
//   - ADMIN_EMAIL / ADMIN_PASSWORD: seed credentials for the initial admin
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM: it stops
// accepting new connections, waits for in-flight requests to complete,
// then drains the audit sink and closes the session registry.
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

	"github.com/codequarry/adminserver/internal/api"
	"github.com/codequarry/adminserver/internal/audit"
	"github.com/codequarry/adminserver/internal/auth"
	"github.com/codequarry/adminserver/internal/config"
	"github.com/codequarry/adminserver/internal/content"
	"github.com/codequarry/adminserver/internal/logging"
	"github.com/codequarry/adminserver/internal/ratelimit"
	"github.com/codequarry/adminserver/internal/security"
	"github.com/codequarry/adminserver/internal/store"
	"github.com/codequarry/adminserver/internal/supervisor"
)

func main() {
	// Load configuration first to get logging settings.
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("environment", cfg.Server.Environment).
		Str("session_store", cfg.Security.SessionStore).
		Msg("Starting CodeQuarry admin server")

	// Audit engine: bounded in-memory window, optional durable sink.
	var sink audit.Sink
	if cfg.Audit.SinkEnabled {
		fileSink, err := audit.NewFileSink(cfg.Audit.SinkPath)
		if err != nil {
			logging.Fatal().Err(err).Str("path", cfg.Audit.SinkPath).Msg("Failed to open audit sink")
		}
		sink = fileSink
		logging.Info().Str("path", cfg.Audit.SinkPath).Msg("Durable audit sink enabled")
	}
	engine := audit.NewEngine(audit.NewMemoryStore(cfg.Audit.MaxEntries), sink, &audit.Config{
		MaxEntries:    cfg.Audit.MaxEntries,
		Retention:     cfg.Audit.Retention,
		PruneInterval: cfg.Audit.PruneInterval,
	})
	defer func() {
		if err := engine.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing audit engine")
		}
	}()

	// Stores.
	users := store.NewMemoryUserStore()
	if cfg.Security.AdminEmail != "" {
		admin, err := store.SeedAdmin(context.Background(), users, cfg.Security.AdminEmail, cfg.Security.AdminPassword)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to seed admin account")
		}
		logging.Info().Str("email", admin.Email).Msg("Admin account seeded")
	} else {
		logging.Warn().Msg("No ADMIN_EMAIL configured; no accounts exist and login is impossible")
	}

	registry, err := auth.NewSessionRegistry(&cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize session registry")
	}
	defer func() {
		if err := registry.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing session registry")
		}
	}()

	if cfg.Security.SessionStore == "memory" && cfg.IsProduction() {
		logging.Warn().Msg("Session store is 'memory'; sessions are lost on restart. Consider SESSION_STORE=badger with SESSION_STORE_PATH set")
	}

	catalog := content.NewStore()

	// Security subsystem.
	limiter := ratelimit.New(cfg.RateLimit)
	if cfg.RateLimit.Disabled {
		logging.Warn().Msg("Rate limiting is DISABLED; this should only be used for load testing")
	}
	detector := security.NewDetector()

	issuer, err := auth.NewTokenIssuer(&cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize token issuer")
	}
	guard := auth.NewCSRFGuard(registry, engine)
	authHandlers := auth.NewHandlers(users, registry, issuer, guard, engine, limiter)
	authMW := auth.NewMiddleware(issuer, registry, users, engine)

	handler := api.NewHandler(cfg, users, registry, catalog, engine)
	router := api.NewRouter(cfg, handler, authHandlers, authMW, guard, limiter, detector, engine)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	// Supervisor tree: HTTP server in the API layer, periodic upkeep in
	// the maintenance layer. sutureslog needs an slog.Logger, so bridge
	// zerolog through the adapter.
	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddAPIService(supervisor.NewHTTPServerService(server, 10*time.Second))
	tree.AddMaintenanceService(supervisor.NewSessionCleanupService(registry, 5*time.Minute))
	tree.AddMaintenanceService(supervisor.NewAuditPruneService(engine, cfg.Audit.PruneInterval))
	tree.AddMaintenanceService(supervisor.NewRateLimitCleanupService(limiter, 5*time.Minute))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added to supervisor tree")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Drain the error channel so shutdown errors are not lost.
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Server stopped gracefully")
}
