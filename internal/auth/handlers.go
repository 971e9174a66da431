// CodeQuarry Admin - Learning Platform Administration Server
// Copyright 2026 CodeQuarry Maintainers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/codequarry/adminserver

package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/codequarry/adminserver/internal/audit"
	"github.com/codequarry/adminserver/internal/logging"
	"github.com/codequarry/adminserver/internal/metrics"
	"github.com/codequarry/adminserver/internal/ratelimit"
	"github.com/codequarry/adminserver/internal/store"
	"github.com/codequarry/adminserver/internal/validation"
)

// invalidCredentialsMessage is the only message returned for any login
// failure. The precise reason goes to the audit log, never the client.
const invalidCredentialsMessage = "Invalid credentials"

// Handlers implements the authentication HTTP endpoints.
type Handlers struct {
	users    store.UserStore
	registry SessionRegistry
	issuer   *TokenIssuer
	guard    *CSRFGuard
	engine   *audit.Engine
	limiter  *ratelimit.Limiter
}

// NewHandlers creates the authentication endpoint handlers.
func NewHandlers(
	users store.UserStore,
	registry SessionRegistry,
	issuer *TokenIssuer,
	guard *CSRFGuard,
	engine *audit.Engine,
	limiter *ratelimit.Limiter,
) *Handlers {
	return &Handlers{
		users:    users,
		registry: registry,
		issuer:   issuer,
		guard:    guard,
		engine:   engine,
		limiter:  limiter,
	}
}

// LoginRequest is the login request body.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is the successful login response payload.
type LoginResponse struct {
	Token     string           `json:"token"`
	CSRFToken string           `json:"csrf_token"`
	ExpiresAt time.Time        `json:"expires_at"`
	User      store.PublicUser `json:"user"`
}

// Login authenticates a user and opens a session. Every terminal
// outcome is recorded in the audit log exactly once; failures share a
// single generic response message so the reason is not enumerable.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	details := audit.DetailsFromRequest(r)

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.engine.Auth(ctx, audit.SystemSubject, "login_failed",
			details.WithExtra("reason", "malformed_body"))
		metrics.RecordAuthAttempt(false)
		writeError(w, http.StatusBadRequest, codeValidation, "Invalid request body")
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		h.engine.Auth(ctx, audit.SystemSubject, "login_failed",
			details.WithExtra("reason", "validation_failed"))
		metrics.RecordAuthAttempt(false)
		writeErrorDetails(w, http.StatusBadRequest, codeValidation, verr.Error(), verr.Fields())
		return
	}

	details = details.WithExtra("email", store.NormalizeEmail(req.Email))

	user, err := h.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			h.engine.Auth(ctx, audit.SystemSubject, "login_failed",
				details.WithExtra("reason", "user_not_found"))
			metrics.RecordAuthAttempt(false)
			writeError(w, http.StatusUnauthorized, codeUnauthorized, invalidCredentialsMessage)
			return
		}
		h.engine.Failure(ctx, audit.SystemSubject, "login", err, details)
		metrics.RecordAuthAttempt(false)
		writeError(w, http.StatusInternalServerError, codeInternal, "Internal server error")
		return
	}

	if !user.IsActive {
		h.engine.Auth(ctx, user.ID, "login_failed",
			details.WithExtra("reason", "account_inactive"))
		metrics.RecordAuthAttempt(false)
		writeError(w, http.StatusUnauthorized, codeUnauthorized, invalidCredentialsMessage)
		return
	}

	if !store.VerifySecret(req.Password, user.PasswordHash) {
		h.engine.Auth(ctx, user.ID, "login_failed",
			details.WithExtra("reason", "invalid_password"))
		metrics.RecordAuthAttempt(false)
		writeError(w, http.StatusUnauthorized, codeUnauthorized, invalidCredentialsMessage)
		return
	}

	token, err := h.issuer.Issue(user)
	if err != nil {
		h.engine.Failure(ctx, user.ID, "login", err, details)
		metrics.RecordAuthAttempt(false)
		writeError(w, http.StatusInternalServerError, codeInternal, "Internal server error")
		return
	}

	now := time.Now().UTC()
	session := &Session{
		Token:     token,
		SubjectID: user.ID,
		CSRFToken: uuid.NewString(),
		CreatedAt: now,
		ExpiresAt: now.Add(h.issuer.Lifetime()),
	}
	if err := h.registry.Create(ctx, session); err != nil {
		h.engine.Failure(ctx, user.ID, "login", err, details)
		metrics.RecordAuthAttempt(false)
		writeError(w, http.StatusInternalServerError, codeInternal, "Internal server error")
		return
	}

	if err := h.users.RecordLogin(ctx, user.ID, now); err != nil {
		logging.Warn().Err(err).Str("user_id", user.ID).Msg("Failed to record login time")
	}

	// A successful login does not count against the auth window.
	if h.limiter != nil {
		h.limiter.Forgive(audit.ClientIP(r), ratelimit.ClassAuth)
	}

	metrics.RecordAuthAttempt(true)
	metrics.ActiveSessions.Inc()
	h.engine.Auth(ctx, user.ID, "login_success", details)

	writeJSON(w, http.StatusOK, LoginResponse{
		Token:     token,
		CSRFToken: session.CSRFToken,
		ExpiresAt: session.ExpiresAt,
		User:      user.Public(),
	})
}

// Logout revokes the current session. Revoking an already revoked
// session succeeds.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, _ := UserFrom(ctx)
	session, ok := SessionFrom(ctx)
	if !ok {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "Access token required")
		return
	}

	if err := h.registry.Revoke(ctx, session.Token); err != nil {
		h.engine.Failure(ctx, session.SubjectID, "logout", err, audit.DetailsFromRequest(r))
		writeError(w, http.StatusInternalServerError, codeInternal, "Internal server error")
		return
	}

	metrics.ActiveSessions.Dec()
	subject := session.SubjectID
	if user != nil {
		subject = user.ID
	}
	h.engine.Auth(ctx, subject, "logout", audit.DetailsFromRequest(r))

	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

// Me returns the authenticated user's profile.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "Access token required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": user.Public()})
}

// CSRFToken issues a fresh CSRF token for the current session,
// replacing the previous one.
func (h *Handlers) CSRFToken(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "Access token required")
		return
	}

	token, err := h.guard.IssueToken(r.Context(), session.Token)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to issue CSRF token")
		writeError(w, http.StatusInternalServerError, codeInternal, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"csrf_token": token})
}
