// CodeQuarry Admin - Learning Platform Administration Server
// Copyright 2026 CodeQuarry Maintainers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/codequarry/adminserver

package auth

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/codequarry/adminserver/internal/config"
)

// Session store backends.
const (
	// SessionStoreMemory keeps sessions in memory (default).
	SessionStoreMemory = "memory"

	// SessionStoreBadger persists sessions in BadgerDB.
	SessionStoreBadger = "badger"
)

// NewSessionRegistry creates the session registry selected by the
// security configuration. The caller owns the returned registry and
// must Close it on shutdown.
func NewSessionRegistry(cfg *config.SecurityConfig) (SessionRegistry, error) {
	if cfg == nil || cfg.SessionStore == "" || cfg.SessionStore == SessionStoreMemory {
		return NewMemorySessionRegistry(), nil
	}

	switch cfg.SessionStore {
	case SessionStoreBadger:
		opts := badger.DefaultOptions(cfg.SessionStorePath)
		opts.Logger = nil // badger's own logging is too chatty
		db, err := badger.Open(opts)
		if err != nil {
			return nil, fmt.Errorf("open badger session store: %w", err)
		}
		return NewBadgerSessionRegistry(db), nil
	default:
		return nil, fmt.Errorf("unknown session store type: %q", cfg.SessionStore)
	}
}
