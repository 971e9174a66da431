// CodeQuarry Admin - Learning Platform Administration Server
// Copyright 2026 CodeQuarry Maintainers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/codequarry/adminserver

package audit

import (
	"context"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codequarry/adminserver/internal/logging"
	"github.com/codequarry/adminserver/internal/metrics"
)

// Config holds engine settings.
type Config struct {
	// MaxEntries bounds the in-memory window.
	MaxEntries int

	// Retention is how long in-memory entries are kept before the prune
	// routine removes them.
	Retention time.Duration

	// PruneInterval is how often the prune routine runs.
	PruneInterval time.Duration

	// BufferSize is the size of the async sink write buffer.
	BufferSize int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxEntries:    DefaultMaxEntries,
		Retention:     30 * 24 * time.Hour,
		PruneInterval: time.Hour,
		BufferSize:    256,
	}
}

// Engine is the audit log engine. Record appends to the bounded in-memory
// window synchronously, so a query issued immediately after sees the
// entry; the durable sink append happens on a background writer and never
// stalls the recording request.
type Engine struct {
	config *Config
	store  Store
	sink   Sink

	sinkChan chan *Entry
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewEngine creates an audit engine. sink may be nil when no durable sink
// is configured.
func NewEngine(store Store, sink Sink, config *Config) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 256
	}

	e := &Engine{
		config:   config,
		store:    store,
		sink:     sink,
		sinkChan: make(chan *Entry, config.BufferSize),
		stopChan: make(chan struct{}),
	}

	if sink != nil {
		e.wg.Add(1)
		go e.sinkWriter()
	}

	return e
}

// sinkWriter drains buffered entries into the durable sink.
func (e *Engine) sinkWriter() {
	defer e.wg.Done()

	for {
		select {
		case <-e.stopChan:
			// Drain remaining entries before exiting
			for {
				select {
				case entry := <-e.sinkChan:
					e.appendToSink(entry)
				default:
					return
				}
			}
		case entry := <-e.sinkChan:
			e.appendToSink(entry)
		}
	}
}

// appendToSink writes one entry. Failures are logged and swallowed; a
// sink problem must never surface to the request that produced the entry.
func (e *Engine) appendToSink(entry *Entry) {
	if err := e.sink.Append(entry); err != nil {
		logging.Error().Err(err).Str("entry_id", entry.ID).Msg("Failed to append audit entry to sink")
	}
}

// Record creates an entry, normalizes its details, appends it to the
// in-memory window, queues it for the durable sink when one is
// configured, and emits a severity-mapped log line.
func (e *Engine) Record(ctx context.Context, subjectID, action string, details Details, severity Severity) *Entry {
	if subjectID == "" {
		subjectID = SystemSubject
	}
	if !severity.Valid() {
		severity = SeverityInfo
	}
	details.Normalize()

	entry := &Entry{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		SubjectID: subjectID,
		Action:    action,
		Severity:  severity,
		Details:   details,
	}

	if err := e.store.Append(ctx, entry); err != nil {
		logging.Error().Err(err).Str("action", action).Msg("Failed to append audit entry")
	}

	if e.sink != nil {
		select {
		case e.sinkChan <- entry:
		default:
			metrics.AuditSinkDrops.Inc()
			logging.Warn().Str("entry_id", entry.ID).Msg("Audit sink buffer full, dropping sink write")
		}
	}

	metrics.AuditEntriesRecorded.WithLabelValues(string(severity)).Inc()
	metrics.AuditWindowSize.Set(float64(e.store.Len()))

	e.logEntry(entry)
	return entry
}

// logEntry emits a console-visible line at the zerolog level matching the
// entry severity. Console format colors lines by level.
func (e *Engine) logEntry(entry *Entry) {
	var evt *zerolog.Event
	switch entry.Severity {
	case SeverityWarning:
		evt = logging.Warn()
	case SeverityError, SeverityCritical:
		evt = logging.Error()
	default:
		evt = logging.Info()
	}
	evt.Str("audit_id", entry.ID).
		Str("subject", entry.SubjectID).
		Str("action", entry.Action).
		Str("severity", string(entry.Severity)).
		Str("ip", entry.Details.IP).
		Msg("Audit event")
}

// Auth records an authentication-related event at info severity.
func (e *Engine) Auth(ctx context.Context, subjectID, action string, details Details) *Entry {
	return e.Record(ctx, subjectID, "auth_"+action, details, SeverityInfo)
}

// Security records a security-relevant event at warning severity.
func (e *Engine) Security(ctx context.Context, subjectID, action string, details Details) *Entry {
	return e.Record(ctx, subjectID, "security_"+action, details, SeverityWarning)
}

// Failure records an unexpected error at error severity, capturing the
// error message and a stack trace in the detail extension map.
func (e *Engine) Failure(ctx context.Context, subjectID, action string, err error, details Details) *Entry {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	details = details.WithExtra("error", msg)
	details = details.WithExtra("stack", string(debug.Stack()))
	return e.Record(ctx, subjectID, "error_"+action, details, SeverityError)
}

// Query returns entries matching the filter, newest first, paginated.
func (e *Engine) Query(ctx context.Context, filter QueryFilter) (*QueryResult, error) {
	return e.store.Query(ctx, filter)
}

// Summary aggregates security-relevant entries over a trailing window.
type Summary struct {
	// Timeframe is the resolved window as given, e.g. "24h" or "7d".
	Timeframe string `json:"timeframe"`

	// Since is the start of the window.
	Since time.Time `json:"since"`

	// Total counts entries in the window with severity warning or above.
	Total int `json:"total"`

	BySeverity     map[Severity]int `json:"by_severity"`
	ByActionPrefix map[string]int   `json:"by_action_prefix"`
	BySubject      map[string]int   `json:"by_subject"`

	// Suspicious lists entries whose action contains "suspicious" or
	// "attack".
	Suspicious []Entry `json:"suspicious"`
}

// Summarize aggregates warning-and-above entries recorded within the
// trailing timeframe window. Malformed timeframe strings fall back to 24
// hours.
func (e *Engine) Summarize(ctx context.Context, timeframe string) (*Summary, error) {
	window := ParseTimeframe(timeframe)
	since := time.Now().UTC().Add(-window)

	entries, err := e.store.Since(ctx, since)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		Timeframe:      timeframe,
		Since:          since,
		BySeverity:     make(map[Severity]int),
		ByActionPrefix: make(map[string]int),
		BySubject:      make(map[string]int),
		Suspicious:     []Entry{},
	}

	for i := range entries {
		entry := &entries[i]
		if !entry.Severity.AtLeast(SeverityWarning) {
			continue
		}

		summary.Total++
		summary.BySeverity[entry.Severity]++
		summary.ByActionPrefix[entry.ActionPrefix()]++
		summary.BySubject[entry.SubjectID]++

		action := strings.ToLower(entry.Action)
		if strings.Contains(action, "suspicious") || strings.Contains(action, "attack") {
			summary.Suspicious = append(summary.Suspicious, *entry)
		}
	}

	return summary, nil
}

// ExportResult reports the outcome of an export. Failures are carried in
// the result, never returned as errors.
type ExportResult struct {
	Success bool   `json:"success"`
	Count   int    `json:"count"`
	Error   string `json:"error,omitempty"`
}

// Export writes the filtered in-memory entries to path as
// newline-delimited JSON. Pagination on the filter is ignored; the full
// filtered set is written.
func (e *Engine) Export(ctx context.Context, path string, filter QueryFilter) ExportResult {
	filter.Page = 1
	filter.PerPage = e.config.MaxEntries

	result, err := e.store.Query(ctx, filter)
	if err != nil {
		return ExportResult{Success: false, Error: err.Error()}
	}

	count, err := WriteNDJSON(path, result.Entries)
	if err != nil {
		logging.Error().Err(err).Str("path", path).Msg("Audit export failed")
		return ExportResult{Success: false, Count: count, Error: err.Error()}
	}

	logging.Info().Int("count", count).Str("path", path).Msg("Audit export complete")
	return ExportResult{Success: true, Count: count}
}

// Prune removes in-memory entries older than the retention horizon. The
// durable sink is never pruned.
func (e *Engine) Prune(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-e.config.Retention)
	return e.store.Prune(ctx, cutoff)
}

// Len returns the current in-memory window size.
func (e *Engine) Len() int {
	return e.store.Len()
}

// Close drains the sink buffer and shuts the engine down.
func (e *Engine) Close() error {
	e.stopOnce.Do(func() {
		close(e.stopChan)
	})
	e.wg.Wait()
	if e.sink != nil {
		return e.sink.Close()
	}
	return nil
}
