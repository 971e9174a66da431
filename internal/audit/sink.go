// CodeQuarry Admin - Learning Platform Administration Server
// Copyright 2026 CodeQuarry Maintainers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/codequarry/adminserver

package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/codequarry/adminserver/internal/logging"
	"github.com/codequarry/adminserver/internal/metrics"
)

// Sink is an append-only durable target for audit entries. Appends must
// never block request handling; the engine calls them from its async
// writer. The sink is never pruned by this subsystem.
type Sink interface {
	Append(entry *Entry) error
	Close() error
}

// FileSink appends newline-delimited JSON entries to a file. Writes go
// through a circuit breaker so a failing disk stops being hammered; while
// the breaker is open, appends fail fast and are logged, never surfaced
// to the request that produced the entry.
type FileSink struct {
	mu   sync.Mutex
	file *os.File
	path string
	cb   *gobreaker.CircuitBreaker[any]
}

// NewFileSink opens (or creates) the sink file for appending.
func NewFileSink(path string) (*FileSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create sink directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, fmt.Errorf("open sink file %s: %w", path, err)
	}

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "audit-sink",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Audit sink circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})

	return &FileSink{file: f, path: path, cb: cb}, nil
}

func breakerStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// Path returns the sink file location.
func (s *FileSink) Path() string {
	return s.path
}

// Append writes one entry as a JSON line.
func (s *FileSink) Append(entry *Entry) error {
	_, err := s.cb.Execute(func() (any, error) {
		data, err := json.Marshal(entry)
		if err != nil {
			return nil, fmt.Errorf("marshal entry: %w", err)
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if _, err := s.file.Write(append(data, '\n')); err != nil {
			return nil, fmt.Errorf("append to sink: %w", err)
		}
		return nil, nil
	})
	return err
}

// Close flushes and closes the sink file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

// WriteNDJSON writes entries as newline-delimited JSON to path, creating
// parent directories as needed. Used by exports; the regular sink file is
// never truncated by this.
func WriteNDJSON(path string, entries []Entry) (int, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return 0, fmt.Errorf("create export directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return 0, fmt.Errorf("open export file %s: %w", path, err)
	}
	defer f.Close()

	count := 0
	for i := range entries {
		data, err := json.Marshal(&entries[i])
		if err != nil {
			return count, fmt.Errorf("marshal entry %s: %w", entries[i].ID, err)
		}
		if _, err := f.Write(append(data, '\n')); err != nil {
			return count, fmt.Errorf("write export file: %w", err)
		}
		count++
	}

	if err := f.Sync(); err != nil {
		return count, fmt.Errorf("sync export file: %w", err)
	}
	return count, nil
}
