// CodeQuarry Admin - Learning Platform Administration Server
// Copyright 2026 CodeQuarry Maintainers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/codequarry/adminserver

package audit

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func newTestEngine(t *testing.T) (*Engine, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore(DefaultMaxEntries)
	engine := NewEngine(store, nil, nil)
	t.Cleanup(func() {
		if err := engine.Close(); err != nil {
			t.Errorf("Close() error: %v", err)
		}
	})
	return engine, store
}

func TestRecordNormalizesDetails(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)

	entry := engine.Record(ctx, "alice", "auth_login_success", Details{IP: "198.51.100.4"}, SeverityInfo)

	if entry.ID == "" {
		t.Error("entry ID not assigned")
	}
	if entry.Timestamp.IsZero() {
		t.Error("entry timestamp not assigned")
	}
	if entry.Details.IP != "198.51.100.4" {
		t.Errorf("IP = %q, want preserved value", entry.Details.IP)
	}
	for name, got := range map[string]string{
		"user_agent": entry.Details.UserAgent,
		"referer":    entry.Details.Referer,
		"session_id": entry.Details.SessionID,
	} {
		if got != UnknownValue {
			t.Errorf("%s = %q, want %q", name, got, UnknownValue)
		}
	}
}

func TestRecordDefaultsSubjectAndSeverity(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)

	entry := engine.Record(ctx, "", "sink_rotation", Details{}, Severity("bogus"))

	if entry.SubjectID != SystemSubject {
		t.Errorf("SubjectID = %q, want %q", entry.SubjectID, SystemSubject)
	}
	if entry.Severity != SeverityInfo {
		t.Errorf("Severity = %q, want %q", entry.Severity, SeverityInfo)
	}
}

func TestRecordQueryRoundTrip(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)

	engine.Auth(ctx, "alice", "login_success", Details{})
	engine.Security(ctx, "bob", "rate_limited", Details{IP: "203.0.113.9"})
	engine.Failure(ctx, "system", "handler_panic", errors.New("boom"), Details{})

	result, err := engine.Query(ctx, QueryFilter{Severity: SeverityWarning})
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if result.Total != 1 {
		t.Fatalf("Total = %d, want 1", result.Total)
	}
	if result.Entries[0].Action != "security_rate_limited" {
		t.Errorf("action = %q, want security_rate_limited", result.Entries[0].Action)
	}
}

func TestFailureCapturesErrorAndStack(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)

	entry := engine.Failure(ctx, "alice", "course_save", errors.New("disk full"), Details{})

	if entry.Severity != SeverityError {
		t.Errorf("Severity = %q, want %q", entry.Severity, SeverityError)
	}
	if entry.Action != "error_course_save" {
		t.Errorf("Action = %q, want error_course_save", entry.Action)
	}
	if entry.Details.Extra["error"] != "disk full" {
		t.Errorf("error extra = %v, want disk full", entry.Details.Extra["error"])
	}
	stack, _ := entry.Details.Extra["stack"].(string)
	if stack == "" {
		t.Error("stack extra not captured")
	}
}

func TestSummarize(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(t)

	now := time.Now().UTC()
	seed := []struct {
		subject  string
		action   string
		severity Severity
		age      time.Duration
	}{
		{"alice", "auth_login_failed", SeverityWarning, time.Hour},
		{"alice", "security_suspicious_input", SeverityWarning, 2 * time.Hour},
		{"bob", "security_attack_detected", SeverityCritical, 3 * time.Hour},
		{"bob", "error_handler_panic", SeverityError, 4 * time.Hour},
		{"carol", "auth_login_success", SeverityInfo, time.Hour},         // info excluded
		{"dave", "security_rate_limited", SeverityWarning, 48 * time.Hour}, // outside window
	}
	for _, s := range seed {
		if err := store.Append(ctx, testEntry(s.subject, s.action, s.severity, now.Add(-s.age))); err != nil {
			t.Fatalf("Append() error: %v", err)
		}
	}

	summary, err := engine.Summarize(ctx, "24h")
	if err != nil {
		t.Fatalf("Summarize() error: %v", err)
	}

	if summary.Total != 4 {
		t.Errorf("Total = %d, want 4", summary.Total)
	}
	if summary.BySeverity[SeverityWarning] != 2 {
		t.Errorf("warning count = %d, want 2", summary.BySeverity[SeverityWarning])
	}
	if summary.BySeverity[SeverityCritical] != 1 {
		t.Errorf("critical count = %d, want 1", summary.BySeverity[SeverityCritical])
	}
	if summary.ByActionPrefix["security"] != 2 {
		t.Errorf("security prefix count = %d, want 2", summary.ByActionPrefix["security"])
	}
	if summary.ByActionPrefix["auth"] != 1 {
		t.Errorf("auth prefix count = %d, want 1", summary.ByActionPrefix["auth"])
	}
	if summary.BySubject["alice"] != 2 {
		t.Errorf("alice count = %d, want 2", summary.BySubject["alice"])
	}
	if len(summary.Suspicious) != 2 {
		t.Errorf("suspicious count = %d, want 2", len(summary.Suspicious))
	}
}

func TestSummarizeMalformedTimeframeDefaults(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(t)

	now := time.Now().UTC()
	if err := store.Append(ctx, testEntry("alice", "security_rate_limited", SeverityWarning, now.Add(-12*time.Hour))); err != nil {
		t.Fatalf("Append() error: %v", err)
	}
	if err := store.Append(ctx, testEntry("alice", "security_rate_limited", SeverityWarning, now.Add(-36*time.Hour))); err != nil {
		t.Fatalf("Append() error: %v", err)
	}

	summary, err := engine.Summarize(ctx, "not-a-timeframe")
	if err != nil {
		t.Fatalf("Summarize() error: %v", err)
	}

	// Defaulted to 24h: only the 12h-old entry is inside the window.
	if summary.Total != 1 {
		t.Errorf("Total = %d, want 1 (24h fallback window)", summary.Total)
	}
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)

	engine.Auth(ctx, "alice", "login_success", Details{})
	engine.Security(ctx, "bob", "threat_detected", Details{})
	engine.Security(ctx, "bob", "rate_limited", Details{})

	path := filepath.Join(t.TempDir(), "export.ndjson")
	result := engine.Export(ctx, path, QueryFilter{SubjectID: "bob"})

	if !result.Success {
		t.Fatalf("Export() failed: %s", result.Error)
	}
	if result.Count != 2 {
		t.Errorf("Count = %d, want 2", result.Count)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer f.Close()

	lines := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("line %d is not valid JSON: %v", lines+1, err)
		}
		if entry.SubjectID != "bob" {
			t.Errorf("line %d subject = %q, want bob", lines+1, entry.SubjectID)
		}
		lines++
	}
	if lines != 2 {
		t.Errorf("export lines = %d, want 2", lines)
	}
}

func TestExportFailureReportedInResult(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)
	engine.Auth(ctx, "alice", "login_success", Details{})

	// A directory path cannot be opened as a file.
	result := engine.Export(ctx, t.TempDir(), QueryFilter{})

	if result.Success {
		t.Fatal("Export() to a directory reported success")
	}
	if result.Error == "" {
		t.Error("Export() failure carries no error message")
	}
}

func TestEngineWithFileSink(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "audit.log")

	sink, err := NewFileSink(path)
	if err != nil {
		t.Fatalf("NewFileSink() error: %v", err)
	}

	store := NewMemoryStore(100)
	engine := NewEngine(store, sink, nil)

	engine.Auth(ctx, "alice", "login_success", Details{})
	engine.Security(ctx, "bob", "rate_limited", Details{})

	// Close drains the async sink buffer.
	if err := engine.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sink: %v", err)
	}

	lines := 0
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("sink line %d is not valid JSON: %v", lines+1, err)
		}
		lines++
	}
	if lines != 2 {
		t.Errorf("sink lines = %d, want 2", lines)
	}
}

func TestEnginePrune(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(100)
	engine := NewEngine(store, nil, &Config{
		MaxEntries:    100,
		Retention:     30 * 24 * time.Hour,
		PruneInterval: time.Hour,
		BufferSize:    16,
	})
	t.Cleanup(func() { _ = engine.Close() })

	now := time.Now().UTC()
	if err := store.Append(ctx, testEntry("u1", "auth_login_success", SeverityInfo, now.Add(-40*24*time.Hour))); err != nil {
		t.Fatalf("Append() error: %v", err)
	}
	if err := store.Append(ctx, testEntry("u1", "auth_login_success", SeverityInfo, now)); err != nil {
		t.Fatalf("Append() error: %v", err)
	}

	removed, err := engine.Prune(ctx)
	if err != nil {
		t.Fatalf("Prune() error: %v", err)
	}
	if removed != 1 {
		t.Errorf("Prune() removed = %d, want 1", removed)
	}
	if engine.Len() != 1 {
		t.Errorf("Len() = %d, want 1", engine.Len())
	}
}
