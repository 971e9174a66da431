// CodeQuarry Admin - Learning Platform Administration Server
// Copyright 2026 CodeQuarry Maintainers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/codequarry/adminserver

package audit

import (
	"context"
	"strings"
	"sync"
	"time"
)

// DefaultMaxEntries bounds the in-memory window when no size is given.
const DefaultMaxEntries = 1000

// MemoryStore implements Store as a bounded in-memory window. The oldest
// entry is evicted first when the window is full. Data is lost on restart;
// the durable sink, when enabled, is the persistent record.
type MemoryStore struct {
	mu         sync.RWMutex
	entries    []Entry
	maxEntries int
}

// NewMemoryStore creates a bounded in-memory audit store.
func NewMemoryStore(maxEntries int) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &MemoryStore{
		entries:    make([]Entry, 0, maxEntries),
		maxEntries: maxEntries,
	}
}

// Append adds an entry, evicting the oldest when the window is full.
func (s *MemoryStore) Append(ctx context.Context, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) >= s.maxEntries {
		drop := len(s.entries) - s.maxEntries + 1
		s.entries = append(s.entries[:0], s.entries[drop:]...)
	}
	s.entries = append(s.entries, *entry)
	return nil
}

// Query returns entries matching the filter, newest first, paginated.
// Filtering and sorting run over the full window before pagination.
func (s *MemoryStore) Query(ctx context.Context, filter QueryFilter) (*QueryResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []Entry
	for i := len(s.entries) - 1; i >= 0; i-- { // reverse for newest-first
		if matchesFilter(&s.entries[i], &filter) {
			matched = append(matched, s.entries[i])
		}
	}

	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = DefaultPageSize
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}

	total := len(matched)
	totalPages := (total + perPage - 1) / perPage
	if totalPages < 1 {
		totalPages = 1
	}

	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}

	pageEntries := make([]Entry, end-start)
	copy(pageEntries, matched[start:end])

	return &QueryResult{
		Entries:    pageEntries,
		Total:      total,
		Page:       page,
		TotalPages: totalPages,
	}, nil
}

// matchesFilter returns true when the entry satisfies every set filter
// dimension. Timestamp bounds are inclusive.
func matchesFilter(entry *Entry, filter *QueryFilter) bool {
	if filter.SubjectID != "" && entry.SubjectID != filter.SubjectID {
		return false
	}
	if filter.Action != "" &&
		!strings.Contains(strings.ToLower(entry.Action), strings.ToLower(filter.Action)) {
		return false
	}
	if filter.Severity != "" && entry.Severity != filter.Severity {
		return false
	}
	if filter.Since != nil && entry.Timestamp.Before(*filter.Since) {
		return false
	}
	if filter.Until != nil && entry.Timestamp.After(*filter.Until) {
		return false
	}
	return true
}

// Since returns all entries with timestamps at or after t, newest first.
func (s *MemoryStore) Since(ctx context.Context, t time.Time) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []Entry
	for i := len(s.entries) - 1; i >= 0; i-- {
		if !s.entries[i].Timestamp.Before(t) {
			results = append(results, s.entries[i])
		}
	}
	return results, nil
}

// Prune removes entries older than the cutoff and returns how many were
// removed. The durable sink is unaffected.
func (s *MemoryStore) Prune(ctx context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0]
	removed := 0
	for i := range s.entries {
		if s.entries[i].Timestamp.Before(olderThan) {
			removed++
		} else {
			kept = append(kept, s.entries[i])
		}
	}
	s.entries = kept
	return removed, nil
}

// Len returns the number of entries currently held.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
