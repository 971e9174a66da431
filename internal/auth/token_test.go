// CodeQuarry Admin - Learning Platform Administration Server
// Copyright 2026 CodeQuarry Maintainers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/codequarry/adminserver

package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/codequarry/adminserver/internal/config"
	"github.com/codequarry/adminserver/internal/store"
)

const testSecret = "test-secret-at-least-32-characters-long"

func newTestIssuer(t *testing.T, timeout time.Duration) *TokenIssuer {
	t.Helper()
	issuer, err := NewTokenIssuer(&config.SecurityConfig{
		JWTSecret:      testSecret,
		SessionTimeout: timeout,
	})
	if err != nil {
		t.Fatalf("NewTokenIssuer failed: %v", err)
	}
	return issuer
}

func TestNewTokenIssuerRequiresSecret(t *testing.T) {
	if _, err := NewTokenIssuer(&config.SecurityConfig{}); err == nil {
		t.Error("expected error for empty secret")
	}
	if _, err := NewTokenIssuer(nil); err == nil {
		t.Error("expected error for nil config")
	}
}

func TestTokenIssueAndVerify(t *testing.T) {
	issuer := newTestIssuer(t, time.Hour)
	user := &store.User{ID: "user-1", Email: "alice@example.com", Role: store.RoleAdmin}

	token, err := issuer.Issue(user)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Errorf("expected user_id user-1, got %q", claims.UserID)
	}
	if claims.Email != "alice@example.com" {
		t.Errorf("expected email alice@example.com, got %q", claims.Email)
	}
	if claims.Role != "admin" {
		t.Errorf("expected role admin, got %q", claims.Role)
	}
	if claims.Subject != "user-1" {
		t.Errorf("expected subject user-1, got %q", claims.Subject)
	}
}

func TestTokenVerifyRejects(t *testing.T) {
	issuer := newTestIssuer(t, time.Hour)
	user := &store.User{ID: "user-1", Email: "alice@example.com", Role: store.RoleViewer}

	token, err := issuer.Issue(user)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"Empty", ""},
		{"Garbage", "not-a-jwt"},
		{"TruncatedSignature", token[:len(token)-6]},
		{"TamperedPayload", tamperMiddleSegment(token)},
		{"AlgorithmNone", "eyJhbGciOiJub25lIiwidHlwIjoiSldUIn0.eyJ1c2VyX2lkIjoiYWRtaW4ifQ."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := issuer.Verify(tt.token); !errors.Is(err, ErrTokenInvalid) {
				t.Errorf("expected ErrTokenInvalid, got %v", err)
			}
		})
	}
}

func TestTokenVerifyWrongSecret(t *testing.T) {
	issuer := newTestIssuer(t, time.Hour)
	other, err := NewTokenIssuer(&config.SecurityConfig{
		JWTSecret:      "another-secret-also-32-characters-long!",
		SessionTimeout: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewTokenIssuer failed: %v", err)
	}

	token, err := issuer.Issue(&store.User{ID: "user-1"})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if _, err := other.Verify(token); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid with wrong secret, got %v", err)
	}
}

func TestTokenExpired(t *testing.T) {
	issuer := newTestIssuer(t, -time.Minute)

	token, err := issuer.Issue(&store.User{ID: "user-1"})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if _, err := issuer.Verify(token); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid for expired token, got %v", err)
	}
}

func TestTokenDefaultLifetime(t *testing.T) {
	issuer := newTestIssuer(t, 0)
	if issuer.Lifetime() != 24*time.Hour {
		t.Errorf("expected 24h default lifetime, got %v", issuer.Lifetime())
	}
}

func tamperMiddleSegment(token string) string {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return token
	}
	parts[1] = parts[1] + "xx"
	return strings.Join(parts, ".")
}
