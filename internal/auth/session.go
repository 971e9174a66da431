// CodeQuarry Admin - Learning Platform Administration Server
// Copyright 2026 CodeQuarry Maintainers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/codequarry/adminserver

// Package auth provides token issuing, the session registry, CSRF
// protection, and the authentication middleware pipeline.
package auth

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Session registry errors.
var (
	// ErrSessionNotFound is returned when a session does not exist or
	// has been revoked.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExpired is returned when a session exists but has
	// passed its expiry time.
	ErrSessionExpired = errors.New("session expired")
)

// Session binds an issued access token to its subject. The CSRF token
// is per-session; regenerating it replaces the previous value.
type Session struct {
	Token     string    `json:"token"`
	SubjectID string    `json:"subject_id"`
	CSRFToken string    `json:"csrf_token"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired reports whether the session has passed its expiry time.
func (s *Session) IsExpired() bool {
	return !s.ExpiresAt.IsZero() && time.Now().After(s.ExpiresAt)
}

// SessionRegistry tracks active sessions keyed by access token.
type SessionRegistry interface {
	// Create stores a new session.
	Create(ctx context.Context, session *Session) error

	// Get returns the session for a token. Returns ErrSessionNotFound
	// for unknown or revoked tokens, ErrSessionExpired past expiry.
	Get(ctx context.Context, token string) (*Session, error)

	// Revoke removes a session. Revoking an unknown token is a no-op.
	Revoke(ctx context.Context, token string) error

	// RevokeBySubject removes all sessions for a subject and returns
	// how many were removed.
	RevokeBySubject(ctx context.Context, subjectID string) (int, error)

	// SetCSRFToken replaces the session's CSRF token.
	SetCSRFToken(ctx context.Context, token, csrfToken string) error

	// Count returns the number of tracked sessions.
	Count(ctx context.Context) (int, error)

	// CleanupExpired removes expired sessions and returns how many
	// were removed.
	CleanupExpired(ctx context.Context) (int, error)

	// Close releases registry resources.
	Close() error
}

// MemorySessionRegistry implements SessionRegistry in memory. Sessions
// do not survive restarts; use the durable backend for that.
type MemorySessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemorySessionRegistry creates an empty in-memory registry.
func NewMemorySessionRegistry() *MemorySessionRegistry {
	return &MemorySessionRegistry{
		sessions: make(map[string]*Session),
	}
}

// Create stores a new session.
func (r *MemorySessionRegistry) Create(ctx context.Context, session *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *session
	r.sessions[session.Token] = &copied
	return nil
}

// Get returns the session for a token.
func (r *MemorySessionRegistry) Get(ctx context.Context, token string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[token]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if session.IsExpired() {
		return nil, ErrSessionExpired
	}

	copied := *session
	return &copied, nil
}

// Revoke removes a session. Idempotent.
func (r *MemorySessionRegistry) Revoke(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, token)
	return nil
}

// RevokeBySubject removes all sessions for a subject.
func (r *MemorySessionRegistry) RevokeBySubject(ctx context.Context, subjectID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for token, session := range r.sessions {
		if session.SubjectID == subjectID {
			delete(r.sessions, token)
			count++
		}
	}
	return count, nil
}

// SetCSRFToken replaces the session's CSRF token.
func (r *MemorySessionRegistry) SetCSRFToken(ctx context.Context, token, csrfToken string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[token]
	if !ok {
		return ErrSessionNotFound
	}
	session.CSRFToken = csrfToken
	return nil
}

// Count returns the number of tracked sessions.
func (r *MemorySessionRegistry) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions), nil
}

// CleanupExpired removes expired sessions.
func (r *MemorySessionRegistry) CleanupExpired(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for token, session := range r.sessions {
		if session.IsExpired() {
			delete(r.sessions, token)
			count++
		}
	}
	return count, nil
}

// Close is a no-op for the in-memory registry.
func (r *MemorySessionRegistry) Close() error {
	return nil
}
