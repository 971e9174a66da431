// CodeQuarry Admin - Learning Platform Administration Server
// Copyright 2026 CodeQuarry Maintainers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/codequarry/adminserver

package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// Key prefixes for BadgerDB storage.
const (
	sessionKeyPrefix        = "session:"
	sessionSubjectKeyPrefix = "session_subject:"
)

// BadgerSessionRegistry implements SessionRegistry on BadgerDB so
// sessions survive restarts.
type BadgerSessionRegistry struct {
	db *badger.DB
}

// NewBadgerSessionRegistry creates a BadgerDB-backed session registry.
func NewBadgerSessionRegistry(db *badger.DB) *BadgerSessionRegistry {
	return &BadgerSessionRegistry{db: db}
}

// Create stores a new session.
func (r *BadgerSessionRegistry) Create(ctx context.Context, session *Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	return r.db.Update(func(txn *badger.Txn) error {
		sessionKey := []byte(sessionKeyPrefix + session.Token)
		if err := txn.Set(sessionKey, data); err != nil {
			return fmt.Errorf("set session: %w", err)
		}

		// Subject mapping allows revoking all of a subject's sessions
		// without a full scan.
		subjectKey := []byte(sessionSubjectKeyPrefix + session.SubjectID + ":" + session.Token)
		if err := txn.Set(subjectKey, []byte(session.Token)); err != nil {
			return fmt.Errorf("set subject mapping: %w", err)
		}
		return nil
	})
}

// Get returns the session for a token.
func (r *BadgerSessionRegistry) Get(ctx context.Context, token string) (*Session, error) {
	var session Session

	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(sessionKeyPrefix + token))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrSessionNotFound
		}
		if err != nil {
			return fmt.Errorf("get session: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &session)
		})
	})
	if err != nil {
		return nil, err
	}

	if session.IsExpired() {
		return nil, ErrSessionExpired
	}
	return &session, nil
}

// Revoke removes a session. Idempotent.
func (r *BadgerSessionRegistry) Revoke(ctx context.Context, token string) error {
	var session Session
	found := false

	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(sessionKeyPrefix + token))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &session)
		})
	})
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	return r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(sessionKeyPrefix + token)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete session: %w", err)
		}
		if session.SubjectID != "" {
			subjectKey := []byte(sessionSubjectKeyPrefix + session.SubjectID + ":" + token)
			if err := txn.Delete(subjectKey); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("delete subject mapping: %w", err)
			}
		}
		return nil
	})
}

// RevokeBySubject removes all sessions for a subject.
func (r *BadgerSessionRegistry) RevokeBySubject(ctx context.Context, subjectID string) (int, error) {
	var tokens []string

	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(sessionSubjectKeyPrefix + subjectID + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				tokens = append(tokens, string(val))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("list subject sessions: %w", err)
	}

	count := 0
	for _, token := range tokens {
		if err := r.Revoke(ctx, token); err != nil {
			continue
		}
		count++
	}
	return count, nil
}

// SetCSRFToken replaces the session's CSRF token.
func (r *BadgerSessionRegistry) SetCSRFToken(ctx context.Context, token, csrfToken string) error {
	return r.db.Update(func(txn *badger.Txn) error {
		key := []byte(sessionKeyPrefix + token)
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrSessionNotFound
		}
		if err != nil {
			return fmt.Errorf("get session: %w", err)
		}

		var session Session
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &session)
		}); err != nil {
			return fmt.Errorf("unmarshal session: %w", err)
		}

		session.CSRFToken = csrfToken
		data, err := json.Marshal(&session)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}
		return txn.Set(key, data)
	})
}

// Count returns the number of tracked sessions.
func (r *BadgerSessionRegistry) Count(ctx context.Context) (int, error) {
	count := 0
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(sessionKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// CleanupExpired removes expired sessions.
func (r *BadgerSessionRegistry) CleanupExpired(ctx context.Context) (int, error) {
	var expired []string

	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(sessionKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var session Session
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &session)
			})
			if err != nil {
				continue
			}
			if session.IsExpired() {
				expired = append(expired, session.Token)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan sessions: %w", err)
	}

	count := 0
	for _, token := range expired {
		if err := r.Revoke(ctx, token); err != nil {
			continue
		}
		count++
	}
	return count, nil
}

// Close closes the underlying database.
func (r *BadgerSessionRegistry) Close() error {
	return r.db.Close()
}
