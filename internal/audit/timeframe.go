// CodeQuarry Admin - Learning Platform Administration Server
// Copyright 2026 CodeQuarry Maintainers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/codequarry/adminserver

package audit

import (
	"strconv"
	"strings"
	"time"
)

// DefaultTimeframe is the window used when a timeframe string cannot be
// parsed. Malformed input deliberately falls back instead of erroring.
const DefaultTimeframe = 24 * time.Hour

// ParseTimeframe converts a timeframe string of the form "<integer><unit>"
// into a duration. Units: h (hours), d (days), w (weeks), m (30-day
// months). Anything else, including non-positive amounts, yields
// DefaultTimeframe.
func ParseTimeframe(s string) time.Duration {
	s = strings.TrimSpace(strings.ToLower(s))
	if len(s) < 2 {
		return DefaultTimeframe
	}

	amount, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || amount <= 0 {
		return DefaultTimeframe
	}

	switch s[len(s)-1] {
	case 'h':
		return time.Duration(amount) * time.Hour
	case 'd':
		return time.Duration(amount) * 24 * time.Hour
	case 'w':
		return time.Duration(amount) * 7 * 24 * time.Hour
	case 'm':
		return time.Duration(amount) * 30 * 24 * time.Hour
	default:
		return DefaultTimeframe
	}
}
