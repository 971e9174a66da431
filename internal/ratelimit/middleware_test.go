// CodeQuarry Admin - Learning Platform Administration Server
// Copyright 2026 CodeQuarry Maintainers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/codequarry/adminserver

package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/codequarry/adminserver/internal/audit"
	"github.com/codequarry/adminserver/internal/config"
)

func TestMiddlewareRejectsOverCeiling(t *testing.T) {
	cfg := config.RateLimitConfig{
		Auth: config.RateLimitPolicy{Limit: 2, Window: 15 * time.Minute},
	}
	limiter := New(cfg)
	store := audit.NewMemoryStore(100)
	engine := audit.NewEngine(store, nil, nil)
	t.Cleanup(func() { _ = engine.Close() })

	handler := Middleware(limiter, ClassAuth, engine)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	)

	makeRequest := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
		req.RemoteAddr = "203.0.113.5:49152"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := makeRequest(); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i+1, rec.Code)
		}
	}

	rec := makeRequest()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("3rd request status = %d, want 429", rec.Code)
	}

	retryAfter, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	if err != nil {
		t.Fatalf("Retry-After header not an integer: %v", err)
	}
	if retryAfter < 1 || retryAfter > int((15*time.Minute).Seconds()) {
		t.Errorf("Retry-After = %d, want within (0, 900]", retryAfter)
	}

	// Rejection is audited as a warning keyed by client address.
	result, err := engine.Query(context.Background(), audit.QueryFilter{Action: "security_rate_limited"})
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if result.Total != 1 {
		t.Fatalf("audit entries = %d, want 1", result.Total)
	}
	entry := result.Entries[0]
	if entry.Severity != audit.SeverityWarning {
		t.Errorf("severity = %q, want warning", entry.Severity)
	}
	if entry.Details.IP != "203.0.113.5" {
		t.Errorf("audit IP = %q, want 203.0.113.5", entry.Details.IP)
	}
}

func TestMiddlewarePrefersForwardedAddress(t *testing.T) {
	cfg := config.RateLimitConfig{
		API: config.RateLimitPolicy{Limit: 1, Window: time.Minute},
	}
	limiter := New(cfg)
	store := audit.NewMemoryStore(100)
	engine := audit.NewEngine(store, nil, nil)
	t.Cleanup(func() { _ = engine.Close() })

	handler := Middleware(limiter, ClassAPI, engine)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	)

	makeRequest := func(forwardedFor string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/courses", nil)
		req.RemoteAddr = "10.0.0.1:1234" // shared proxy address
		req.Header.Set("X-Forwarded-For", forwardedFor)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	if rec := makeRequest("198.51.100.1"); rec.Code != http.StatusOK {
		t.Fatalf("first client status = %d, want 200", rec.Code)
	}
	// A different client behind the same proxy gets its own window.
	if rec := makeRequest("198.51.100.2"); rec.Code != http.StatusOK {
		t.Fatalf("second client status = %d, want 200", rec.Code)
	}
	if rec := makeRequest("198.51.100.1"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("first client repeat status = %d, want 429", rec.Code)
	}
}
