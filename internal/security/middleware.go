// CodeQuarry Admin - Learning Platform Administration Server
// Copyright 2026 CodeQuarry Maintainers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/codequarry/adminserver

package security

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/codequarry/adminserver/internal/audit"
	"github.com/codequarry/adminserver/internal/logging"
	"github.com/codequarry/adminserver/internal/metrics"
)

// maxBodySnapshot bounds how much of a request body is buffered for
// detection and sanitization.
const maxBodySnapshot = 1 << 20 // 1 MiB

// Middleware screens every request against the attack signature set and
// sanitizes JSON bodies that pass. A signature match rejects with 400
// before sanitization or business logic runs, and audits the attempt.
func Middleware(detector *Detector, engine *audit.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := readBody(r)
			if err != nil {
				writeSecurityRejection(w, "Request body too large or unreadable")
				return
			}

			if name, matched := detector.Detect(Snapshot(r, body)); matched {
				metrics.ThreatDetections.WithLabelValues(name).Inc()

				details := audit.DetailsFromRequest(r).
					WithExtra("signature", name).
					WithExtra("path", r.URL.Path).
					WithExtra("method", r.Method)
				engine.Security(r.Context(), audit.SystemSubject, "suspicious_activity", details)

				logging.Warn().
					Str("signature", name).
					Str("path", r.URL.Path).
					Str("ip", audit.ClientIP(r)).
					Msg("Request blocked by threat signature")

				writeSecurityRejection(w, "Request rejected by security policy")
				return
			}

			if len(body) > 0 {
				body = sanitizeBody(r, body)
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			r.ContentLength = int64(len(body))

			next.ServeHTTP(w, r)
		})
	}
}

// readBody buffers the request body up to maxBodySnapshot.
func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySnapshot+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxBodySnapshot {
		return nil, io.ErrShortBuffer
	}
	return body, nil
}

// sanitizeBody strips script blocks from JSON string leaves. Bodies that
// are not valid JSON pass through untouched; the handler's own decoding
// will reject them if they matter.
func sanitizeBody(r *http.Request, body []byte) []byte {
	contentType := r.Header.Get("Content-Type")
	if !strings.Contains(contentType, "application/json") {
		return body
	}

	var parsed interface{}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return body
	}

	sanitized, err := json.Marshal(Sanitize(parsed))
	if err != nil {
		return body
	}
	return sanitized
}

// writeSecurityRejection writes a standardized policy-violation response.
func writeSecurityRejection(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)

	response := map[string]interface{}{
		"success": false,
		"error": map[string]interface{}{
			"code":    "SECURITY_POLICY_VIOLATION",
			"message": message,
		},
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logging.Error().Err(err).Msg("Error encoding security rejection")
	}
}
