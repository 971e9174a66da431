// CodeQuarry Admin - Learning Platform Administration Server
// Copyright 2026 CodeQuarry Maintainers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/codequarry/adminserver

package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/codequarry/adminserver/internal/audit"
	"github.com/codequarry/adminserver/internal/logging"
	"github.com/codequarry/adminserver/internal/store"
)

type contextKey string

const (
	userContextKey    contextKey = "auth.user"
	sessionContextKey contextKey = "auth.session"
)

// UserFrom returns the authenticated user stored in the context.
func UserFrom(ctx context.Context) (*store.User, bool) {
	user, ok := ctx.Value(userContextKey).(*store.User)
	return user, ok
}

// SessionFrom returns the session stored in the context.
func SessionFrom(ctx context.Context) (*Session, bool) {
	session, ok := ctx.Value(sessionContextKey).(*Session)
	return session, ok
}

// Middleware authenticates requests and enforces role requirements.
// Every rejection is recorded in the audit trail before the response
// is written.
type Middleware struct {
	issuer   *TokenIssuer
	registry SessionRegistry
	users    store.UserStore
	engine   *audit.Engine
}

// NewMiddleware creates the authentication middleware.
func NewMiddleware(issuer *TokenIssuer, registry SessionRegistry, users store.UserStore, engine *audit.Engine) *Middleware {
	return &Middleware{issuer: issuer, registry: registry, users: users, engine: engine}
}

// Authenticate resolves the bearer token to a user and session. The
// token must verify, the session must still be registered, and the
// user must exist and be active. The user and session are injected
// into the request context for downstream handlers.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			m.reject(w, r, http.StatusUnauthorized, codeUnauthorized,
				"Access token required", "missing_token", audit.SystemSubject)
			return
		}

		claims, err := m.issuer.Verify(token)
		if err != nil {
			m.reject(w, r, http.StatusForbidden, codeForbidden,
				"Invalid or expired token", "invalid_token", audit.SystemSubject)
			return
		}

		session, err := m.registry.Get(r.Context(), token)
		if err != nil {
			if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrSessionExpired) {
				m.reject(w, r, http.StatusForbidden, codeForbidden,
					"Invalid or expired token", "session_revoked", claims.UserID)
				return
			}
			logging.Error().Err(err).Msg("Session lookup failed")
			m.engine.Failure(r.Context(), claims.UserID, "session_lookup", err,
				audit.DetailsFromRequest(r))
			writeError(w, http.StatusInternalServerError, codeInternal, "Internal server error")
			return
		}

		user, err := m.users.FindByID(r.Context(), claims.UserID)
		if err != nil || !user.IsActive {
			m.reject(w, r, http.StatusForbidden, codeForbidden,
				"User not found or inactive", "user_inactive", claims.UserID)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		ctx = context.WithValue(ctx, sessionContextKey, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole allows only users holding one of the given roles.
// Authenticate must run earlier in the chain.
func (m *Middleware) RequireRole(roles ...store.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFrom(r.Context())
			if !ok {
				m.reject(w, r, http.StatusUnauthorized, codeUnauthorized,
					"Access token required", "missing_token", audit.SystemSubject)
				return
			}
			for _, role := range roles {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			details := audit.DetailsFromRequest(r).
				WithExtra("reason", "insufficient_role").
				WithExtra("role", string(user.Role)).
				WithExtra("path", r.URL.Path).
				WithExtra("method", r.Method)
			m.engine.Security(r.Context(), user.ID, "authz_rejected", details)

			writeError(w, http.StatusForbidden, codeForbidden, "Insufficient permissions")
		})
	}
}

// RequireAdmin allows only admin users.
func (m *Middleware) RequireAdmin(next http.Handler) http.Handler {
	return m.RequireRole(store.RoleAdmin)(next)
}

// reject audits an authentication failure at warning severity and
// writes the error response.
func (m *Middleware) reject(w http.ResponseWriter, r *http.Request, status int, code, message, reason, subject string) {
	details := audit.DetailsFromRequest(r).
		WithExtra("reason", reason).
		WithExtra("path", r.URL.Path).
		WithExtra("method", r.Method)
	m.engine.Security(r.Context(), subject, "auth_rejected", details)

	writeError(w, status, code, message)
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
