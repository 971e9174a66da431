// CodeQuarry Admin - Learning Platform Administration Server
// Copyright 2026 CodeQuarry Maintainers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/codequarry/adminserver

// Package audit provides the security audit trail for the admin server.
// It records structured security and business events into a bounded
// in-memory window with an optional durable append-only sink, and answers
// filtered, paginated queries and time-windowed aggregate summaries.
package audit

import (
	"context"
	"strings"
	"time"
)

// Severity classifies an audit entry. Ordering is info < warning < error <
// critical; filtering and summaries rely on this ordering.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// severityRank orders severities for comparisons.
var severityRank = map[Severity]int{
	SeverityInfo:     0,
	SeverityWarning:  1,
	SeverityError:    2,
	SeverityCritical: 3,
}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	_, ok := severityRank[s]
	return ok
}

// AtLeast reports whether s is at least as severe as min.
func (s Severity) AtLeast(min Severity) bool {
	return severityRank[s] >= severityRank[min]
}

// SystemSubject is the sentinel subject for events with no acting user.
const SystemSubject = "system"

// UnknownValue fills normalized detail fields when the request did not
// carry the corresponding value.
const UnknownValue = "unknown"

// Details holds the normalized request context attached to every entry,
// plus an open extension map for action-specific data. After Normalize,
// the four fixed fields are never empty.
type Details struct {
	IP        string `json:"ip"`
	UserAgent string `json:"user_agent"`
	Referer   string `json:"referer"`
	SessionID string `json:"session_id"`

	// Extra carries action-specific values (reason codes, resource ids,
	// error messages). May be nil.
	Extra map[string]interface{} `json:"extra,omitempty"`
}

// Normalize fills empty fixed fields with UnknownValue.
func (d *Details) Normalize() {
	if d.IP == "" {
		d.IP = UnknownValue
	}
	if d.UserAgent == "" {
		d.UserAgent = UnknownValue
	}
	if d.Referer == "" {
		d.Referer = UnknownValue
	}
	if d.SessionID == "" {
		d.SessionID = UnknownValue
	}
}

// WithExtra returns a copy of d with key set in the extension map.
func (d Details) WithExtra(key string, value interface{}) Details {
	extra := make(map[string]interface{}, len(d.Extra)+1)
	for k, v := range d.Extra {
		extra[k] = v
	}
	extra[key] = value
	d.Extra = extra
	return d
}

// Entry is an immutable audit record. Once written, no field changes.
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`

	// SubjectID is the acting user id, or SystemSubject for unattributed
	// events.
	SubjectID string `json:"subject_id"`

	// Action is a namespaced action name such as "auth_login_failed" or
	// "course_created". The segment before the first underscore is the
	// action prefix used by summaries.
	Action string `json:"action"`

	Severity Severity `json:"severity"`
	Details  Details  `json:"details"`
}

// ActionPrefix returns the segment of the action name before the first
// underscore, or the whole action when it has no underscore.
func (e *Entry) ActionPrefix() string {
	if idx := strings.IndexByte(e.Action, '_'); idx >= 0 {
		return e.Action[:idx]
	}
	return e.Action
}

// QueryFilter selects entries from the in-memory window. Zero values mean
// "no constraint" for that dimension.
type QueryFilter struct {
	// SubjectID matches exactly.
	SubjectID string `json:"subject_id,omitempty"`

	// Action matches as a case-insensitive substring.
	Action string `json:"action,omitempty"`

	// Severity matches exactly.
	Severity Severity `json:"severity,omitempty"`

	// Since and Until bound the timestamp range, inclusive on both ends.
	Since *time.Time `json:"since,omitempty"`
	Until *time.Time `json:"until,omitempty"`

	// Page is 1-based. Values below 1 are treated as 1.
	Page int `json:"page,omitempty"`

	// PerPage defaults to DefaultPageSize when not positive.
	PerPage int `json:"per_page,omitempty"`
}

// DefaultPageSize is the page size used when a query does not specify one.
const DefaultPageSize = 50

// QueryResult is a page of entries plus pagination metadata. Total and
// TotalPages reflect the full filtered result set, not just this page.
type QueryResult struct {
	Entries    []Entry `json:"entries"`
	Total      int     `json:"total"`
	Page       int     `json:"page"`
	TotalPages int     `json:"total_pages"`
}

// Store is the bounded in-memory audit window. Implementations must be
// safe for concurrent use.
type Store interface {
	// Append adds an entry, evicting the oldest entry when the window is
	// full.
	Append(ctx context.Context, entry *Entry) error

	// Query returns entries matching the filter, newest first, paginated.
	Query(ctx context.Context, filter QueryFilter) (*QueryResult, error)

	// Since returns all entries with timestamps at or after t, newest
	// first.
	Since(ctx context.Context, t time.Time) ([]Entry, error)

	// Prune removes entries older than the cutoff and returns how many
	// were removed.
	Prune(ctx context.Context, olderThan time.Time) (int, error)

	// Len returns the number of entries currently held.
	Len() int
}
