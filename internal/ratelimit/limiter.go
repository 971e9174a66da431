// CodeQuarry Admin - Learning Platform Administration Server
// Copyright 2026 CodeQuarry Maintainers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/codequarry/adminserver

// Package ratelimit throttles abusive traffic with fixed request windows
// keyed by client address and route class. Three independent policies
// exist (general, auth, api); exhausting one never affects another.
package ratelimit

import (
	"sync"
	"time"

	"github.com/codequarry/adminserver/internal/config"
)

// Class names a route group sharing one rate-limit policy.
type Class string

const (
	// ClassGeneral covers all routes: 100 requests per 15 minutes by
	// default.
	ClassGeneral Class = "general"

	// ClassAuth covers login routes: 5 requests per 15 minutes by
	// default. Successful logins are forgiven and do not consume budget.
	ClassAuth Class = "auth"

	// ClassAPI covers general API routes: 60 requests per minute by
	// default.
	ClassAPI Class = "api"
)

// Policy is one fixed-window ceiling. A zero Limit disables the class.
type Policy struct {
	Limit  int
	Window time.Duration
}

// Decision is the outcome of an Allow check.
type Decision struct {
	// Allowed is false when the request exceeds the class ceiling.
	Allowed bool

	// Remaining is the budget left in the current window, never
	// negative.
	Remaining int

	// RetryAfter is the time until the window resets. Only meaningful
	// when Allowed is false; always at most the policy window.
	RetryAfter time.Duration
}

type windowKey struct {
	addr  string
	class Class
}

type window struct {
	count int
	start time.Time
}

// Limiter holds per-(address, class) fixed windows. Counts reset lazily
// when a window elapses; nothing persists across restarts. Safe for
// concurrent use.
type Limiter struct {
	mu       sync.Mutex
	policies map[Class]Policy
	windows  map[windowKey]*window
	disabled bool

	now func() time.Time // test override
}

// New creates a limiter from configuration.
func New(cfg config.RateLimitConfig) *Limiter {
	return &Limiter{
		policies: map[Class]Policy{
			ClassGeneral: {Limit: cfg.General.Limit, Window: cfg.General.Window},
			ClassAuth:    {Limit: cfg.Auth.Limit, Window: cfg.Auth.Window},
			ClassAPI:     {Limit: cfg.API.Limit, Window: cfg.API.Window},
		},
		windows:  make(map[windowKey]*window),
		disabled: cfg.Disabled,
		now:      time.Now,
	}
}

// Allow counts one request from addr against the class policy and reports
// whether it is within the ceiling. The (N+1)-th request inside a window
// with ceiling N is rejected with the time until the window resets.
func (l *Limiter) Allow(addr string, class Class) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	policy, ok := l.policies[class]
	if l.disabled || !ok || policy.Limit <= 0 {
		return Decision{Allowed: true, Remaining: -1}
	}

	now := l.now()
	key := windowKey{addr: addr, class: class}

	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= policy.Window {
		w = &window{start: now}
		l.windows[key] = w
	}

	w.count++

	if w.count > policy.Limit {
		retryAfter := policy.Window - now.Sub(w.start)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return Decision{Allowed: false, RetryAfter: retryAfter}
	}

	return Decision{Allowed: true, Remaining: policy.Limit - w.count}
}

// Forgive returns one unit of budget to addr for the class, used after a
// successful login so only failed attempts consume the auth budget. A
// no-op when no window exists or the count is already zero.
func (l *Limiter) Forgive(addr string, class Class) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := windowKey{addr: addr, class: class}
	if w, ok := l.windows[key]; ok && w.count > 0 {
		w.count--
	}
}

// Reset clears the window for addr and class. Admin escape hatch.
func (l *Limiter) Reset(addr string, class Class) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, windowKey{addr: addr, class: class})
}

// Len returns the number of live windows.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// Cleanup removes windows whose period has fully elapsed. Correctness
// never depends on this; expired windows also reset lazily in Allow.
func (l *Limiter) Cleanup() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for key, w := range l.windows {
		policy := l.policies[key.class]
		if now.Sub(w.start) >= policy.Window {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}
