// CodeQuarry Admin - Learning Platform Administration Server
// Copyright 2026 CodeQuarry Maintainers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/codequarry/adminserver

package audit

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP extracts the client address from a request, preferring proxy
// headers over the raw remote address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// First hop is the original client.
		if idx := strings.IndexByte(xff, ','); idx >= 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// DetailsFromRequest builds normalized details from an HTTP request. The
// session id, when known, is filled in by the caller.
func DetailsFromRequest(r *http.Request) Details {
	d := Details{
		IP:        ClientIP(r),
		UserAgent: r.UserAgent(),
		Referer:   r.Referer(),
	}
	d.Normalize()
	return d
}
