// CodeQuarry Admin - Learning Platform Administration Server
// Copyright 2026 CodeQuarry Maintainers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/codequarry/adminserver

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/codequarry/adminserver/internal/config"
	"github.com/codequarry/adminserver/internal/store"
)

// ErrTokenInvalid is returned for any token that fails verification.
// Callers must not distinguish tampered from expired tokens externally.
var ErrTokenInvalid = errors.New("invalid token")

// Claims are the JWT claims carried by an access token.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer creates and verifies HMAC-SHA256 signed access tokens.
type TokenIssuer struct {
	secret  []byte
	timeout time.Duration
}

// NewTokenIssuer creates a token issuer from the security configuration.
// The secret is required; the token lifetime defaults to the configured
// session timeout.
func NewTokenIssuer(cfg *config.SecurityConfig) (*TokenIssuer, error) {
	if cfg == nil || cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt secret is required but was empty")
	}

	timeout := cfg.SessionTimeout
	if timeout <= 0 {
		timeout = 24 * time.Hour
	}

	return &TokenIssuer{
		secret:  []byte(cfg.JWTSecret),
		timeout: timeout,
	}, nil
}

// Issue creates a signed token for an authenticated user.
func (i *TokenIssuer) Issue(user *store.User) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(i.timeout)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Lifetime returns the configured token lifetime.
func (i *TokenIssuer) Lifetime() time.Duration {
	return i.timeout
}

// Verify validates a token string and returns its claims. Any failure,
// including malformed input, an unexpected signing algorithm, a bad
// signature, or an expired token, yields ErrTokenInvalid.
func (i *TokenIssuer) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
