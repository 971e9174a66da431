// CodeQuarry Admin - Learning Platform Administration Server
// Copyright 2026 CodeQuarry Maintainers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/codequarry/adminserver

package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/codequarry/adminserver/internal/audit"
)

func csrfRequest(method, csrfHeader string, session *Session) *http.Request {
	req := httptest.NewRequest(method, "/api/courses", nil)
	if csrfHeader != "" {
		req.Header.Set("X-CSRF-Token", csrfHeader)
	}
	if session != nil {
		ctx := context.WithValue(req.Context(), sessionContextKey, session)
		req = req.WithContext(ctx)
	}
	return req
}

func TestCSRFMiddlewareExemptMethods(t *testing.T) {
	stack := newTestStack(t)
	handler := stack.guard.Middleware(okHandler())

	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
		t.Run(method, func(t *testing.T) {
			// No session and no header; exempt methods pass anyway.
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, csrfRequest(method, "", nil))
			if rec.Code != http.StatusOK {
				t.Errorf("expected 200 for %s, got %d", method, rec.Code)
			}
		})
	}
}

func TestCSRFMiddlewareValidToken(t *testing.T) {
	stack := newTestStack(t)
	handler := stack.guard.Middleware(okHandler())

	session := &Session{Token: "tok-1", SubjectID: "user-1", CSRFToken: "csrf-value"}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, csrfRequest(http.MethodPost, "csrf-value", session))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCSRFMiddlewareRejections(t *testing.T) {
	stack := newTestStack(t)
	handler := stack.guard.Middleware(okHandler())
	session := &Session{Token: "tok-1", SubjectID: "user-1", CSRFToken: "csrf-value"}

	tests := []struct {
		name    string
		header  string
		session *Session
	}{
		{"MissingHeader", "", session},
		{"WrongToken", "wrong-value", session},
		{"NoSession", "csrf-value", nil},
		{"SessionWithoutToken", "anything", &Session{Token: "tok-2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, csrfRequest(http.MethodPost, tt.header, tt.session))
			if rec.Code != http.StatusForbidden {
				t.Errorf("expected 403, got %d", rec.Code)
			}
		})
	}

	result, err := stack.engine.Query(context.Background(), audit.QueryFilter{Action: "security_csrf_rejected"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if result.Total != len(tests) {
		t.Errorf("expected %d csrf audit entries, got %d", len(tests), result.Total)
	}
}

func TestCSRFIssueTokenReplacesPrevious(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()

	session := newSession("tok-1", "user-1", time.Hour)
	if err := stack.registry.Create(ctx, session); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	first, err := stack.guard.IssueToken(ctx, "tok-1")
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}
	second, err := stack.guard.IssueToken(ctx, "tok-1")
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}
	if first == second {
		t.Error("expected distinct tokens")
	}

	stored, err := stack.registry.Get(ctx, "tok-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored.CSRFToken != second {
		t.Errorf("expected only the latest token to be valid, registry holds %q", stored.CSRFToken)
	}

	// The replaced token no longer passes the middleware.
	handler := stack.guard.Middleware(okHandler())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, csrfRequest(http.MethodPost, first, stored))
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for replaced token, got %d", rec.Code)
	}
}

func TestCSRFIssueTokenUnknownSession(t *testing.T) {
	stack := newTestStack(t)
	if _, err := stack.guard.IssueToken(context.Background(), "unknown"); err == nil {
		t.Error("expected error for unknown session")
	}
}
