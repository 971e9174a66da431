// CodeQuarry Admin - Learning Platform Administration Server
// Copyright 2026 CodeQuarry Maintainers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/codequarry/adminserver

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/codequarry/adminserver/internal/logging"
)

// HTTPServer matches *http.Server's lifecycle methods so the service
// wrapper can be tested with a mock.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPServerService wraps an HTTP server as a supervised service. It
// bridges ListenAndServe's blocking pattern to suture's context-aware
// Serve: the server runs in a goroutine, and context cancellation
// triggers a graceful Shutdown bounded by shutdownTimeout.
type HTTPServerService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
}

// NewHTTPServerService creates an HTTP server service wrapper.
func NewHTTPServerService(server HTTPServer, shutdownTimeout time.Duration) *HTTPServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPServerService{server: server, shutdownTimeout: shutdownTimeout}
}

// Serve implements suture.Service. http.ErrServerClosed is converted
// to nil since it is expected on shutdown.
func (h *HTTPServerService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil

	case <-ctx.Done():
		// The original context is already canceled; shutdown gets its own.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()

		if err := h.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

func (h *HTTPServerService) String() string {
	return "http-server"
}

// SessionCleaner removes expired sessions and reports how many were
// dropped. Satisfied by the session registry.
type SessionCleaner interface {
	CleanupExpired(ctx context.Context) (int, error)
}

// SessionCleanupService periodically drops expired sessions from the
// registry.
type SessionCleanupService struct {
	registry SessionCleaner
	interval time.Duration
}

// NewSessionCleanupService creates a session cleanup service.
func NewSessionCleanupService(registry SessionCleaner, interval time.Duration) *SessionCleanupService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &SessionCleanupService{registry: registry, interval: interval}
}

// Serve implements suture.Service.
func (s *SessionCleanupService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			removed, err := s.registry.CleanupExpired(ctx)
			if err != nil {
				logging.Warn().Err(err).Msg("Session cleanup failed")
				continue
			}
			if removed > 0 {
				logging.Debug().Int("count", removed).Msg("Removed expired sessions")
			}
		}
	}
}

func (s *SessionCleanupService) String() string {
	return "session-cleanup"
}

// AuditPruner drops audit entries past the retention horizon.
// Satisfied by the audit engine.
type AuditPruner interface {
	Prune(ctx context.Context) (int, error)
}

// AuditPruneService periodically prunes the in-memory audit window.
type AuditPruneService struct {
	engine   AuditPruner
	interval time.Duration
}

// NewAuditPruneService creates an audit prune service.
func NewAuditPruneService(engine AuditPruner, interval time.Duration) *AuditPruneService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &AuditPruneService{engine: engine, interval: interval}
}

// Serve implements suture.Service.
func (s *AuditPruneService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			pruned, err := s.engine.Prune(ctx)
			if err != nil {
				logging.Warn().Err(err).Msg("Audit prune failed")
				continue
			}
			if pruned > 0 {
				logging.Info().Int("count", pruned).Msg("Pruned aged audit entries")
			}
		}
	}
}

func (s *AuditPruneService) String() string {
	return "audit-prune"
}

// WindowCleaner drops elapsed rate-limit windows. Satisfied by the
// rate limiter.
type WindowCleaner interface {
	Cleanup() int
}

// RateLimitCleanupService periodically drops elapsed rate-limit windows
// so the limiter's map does not grow with one entry per client forever.
type RateLimitCleanupService struct {
	limiter  WindowCleaner
	interval time.Duration
}

// NewRateLimitCleanupService creates a rate-limit cleanup service.
func NewRateLimitCleanupService(limiter WindowCleaner, interval time.Duration) *RateLimitCleanupService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &RateLimitCleanupService{limiter: limiter, interval: interval}
}

// Serve implements suture.Service.
func (s *RateLimitCleanupService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if removed := s.limiter.Cleanup(); removed > 0 {
				logging.Debug().Int("count", removed).Msg("Cleaned up elapsed rate-limit windows")
			}
		}
	}
}

func (s *RateLimitCleanupService) String() string {
	return "ratelimit-cleanup"
}
