// CodeQuarry Admin - Learning Platform Administration Server
// Copyright 2026 CodeQuarry Maintainers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/codequarry/adminserver

package ratelimit

import (
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/codequarry/adminserver/internal/audit"
	"github.com/codequarry/adminserver/internal/logging"
	"github.com/codequarry/adminserver/internal/metrics"
)

// Middleware enforces the class policy for every request passing through.
// A rejection writes a 429 with a Retry-After hint and records a
// warning-level audit entry keyed by client address; the request never
// reaches the handler.
func Middleware(limiter *Limiter, class Class, engine *audit.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr := audit.ClientIP(r)

			decision := limiter.Allow(addr, class)
			if decision.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			metrics.RateLimitRejections.WithLabelValues(string(class)).Inc()

			details := audit.DetailsFromRequest(r).
				WithExtra("route_class", string(class)).
				WithExtra("path", r.URL.Path).
				WithExtra("retry_after_secs", int(decision.RetryAfter.Seconds()))
			engine.Security(r.Context(), audit.SystemSubject, "rate_limited", details)

			writeRejection(w, decision.RetryAfter)
		})
	}
}

// writeRejection writes a standardized too-many-requests response.
func writeRejection(w http.ResponseWriter, retryAfter time.Duration) {
	secs := int(retryAfter.Seconds())
	if secs < 1 {
		secs = 1
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", fmt.Sprintf("%d", secs))
	w.WriteHeader(http.StatusTooManyRequests)

	response := map[string]interface{}{
		"success": false,
		"error": map[string]interface{}{
			"code":             "TOO_MANY_REQUESTS",
			"message":          fmt.Sprintf("Too many requests. Try again in %ds", secs),
			"retry_after_secs": secs,
		},
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logging.Error().Err(err).Msg("Error encoding rate-limit response")
	}
}
