// CodeQuarry Admin - Learning Platform Administration Server
// Copyright 2026 CodeQuarry Maintainers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/codequarry/adminserver

package auth

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/google/uuid"

	"github.com/codequarry/adminserver/internal/audit"
	"github.com/codequarry/adminserver/internal/logging"
	"github.com/codequarry/adminserver/internal/metrics"
)

// csrfHeaderName is the request header carrying the CSRF token.
const csrfHeaderName = "X-CSRF-Token"

// CSRFGuard issues and validates per-session CSRF tokens. Each session
// holds exactly one token; issuing a new one replaces the previous.
type CSRFGuard struct {
	registry SessionRegistry
	engine   *audit.Engine
}

// NewCSRFGuard creates a CSRF guard bound to the session registry.
func NewCSRFGuard(registry SessionRegistry, engine *audit.Engine) *CSRFGuard {
	return &CSRFGuard{registry: registry, engine: engine}
}

// IssueToken generates a fresh CSRF token for the session and replaces
// any previously issued one.
func (g *CSRFGuard) IssueToken(ctx context.Context, sessionToken string) (string, error) {
	token := uuid.NewString()
	if err := g.registry.SetCSRFToken(ctx, sessionToken, token); err != nil {
		return "", err
	}
	return token, nil
}

// Middleware validates the CSRF token on state-changing requests.
// GET, HEAD, and OPTIONS pass through unchecked. The session must
// already be resolved by the Authenticate middleware.
func (g *CSRFGuard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		session, ok := SessionFrom(r.Context())
		if !ok {
			g.reject(w, r, "no session")
			return
		}

		provided := r.Header.Get(csrfHeaderName)
		if provided == "" {
			g.reject(w, r, "token missing")
			return
		}
		if session.CSRFToken == "" ||
			subtle.ConstantTimeCompare([]byte(provided), []byte(session.CSRFToken)) != 1 {
			g.reject(w, r, "token mismatch")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (g *CSRFGuard) reject(w http.ResponseWriter, r *http.Request, reason string) {
	metrics.CSRFRejections.Inc()

	subject := audit.SystemSubject
	if user, ok := UserFrom(r.Context()); ok {
		subject = user.ID
	}
	if g.engine != nil {
		details := audit.DetailsFromRequest(r).
			WithExtra("reason", reason).
			WithExtra("path", r.URL.Path).
			WithExtra("method", r.Method)
		g.engine.Security(r.Context(), subject, "csrf_rejected", details)
	}

	logging.Warn().
		Str("path", r.URL.Path).
		Str("method", r.Method).
		Str("reason", reason).
		Msg("CSRF validation failed")

	writeError(w, http.StatusForbidden, codeCSRFFailed, "Invalid CSRF token")
}
