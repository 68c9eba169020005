// Horologium - Multi-Source Calendar Aggregation and Conflict Resolution
// Copyright 2026 Horologium Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/horologium/horologium

// Package store is the BadgerDB persistence layer for events, conflicts,
// sync status rows, sync logs, and source connections. Values are JSON;
// keys are prefixed per record type and iterated by prefix for range
// reads.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/horologium/horologium/internal/config"
	"github.com/horologium/horologium/internal/logging"
)

// Key prefixes. Sync log keys embed a nanosecond timestamp so prefix
// iteration returns rows in creation order.
const (
	eventKeyPrefix      = "event:"
	conflictKeyPrefix   = "conflict:"
	syncStatusKeyPrefix = "syncstatus:"
	syncLogKeyPrefix    = "synclog:"
	connectionKeyPrefix = "connection:"
)

// Store wraps a Badger database.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the store at cfg.Path. An empty path opens an
// in-memory database, used by tests.
func Open(cfg config.StoreConfig) (*Store, error) {
	var opts badger.Options
	if cfg.Path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", cfg.Path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RunGC runs Badger's value-log garbage collector on the given interval
// until ctx is canceled. Intended to run in its own goroutine.
func (s *Store) RunGC(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// ErrNoRewrite just means there was nothing worth collecting.
			if err := s.db.RunValueLogGC(0.5); err != nil && err != badger.ErrNoRewrite {
				logging.Warn().Err(err).Msg("Badger value log GC failed")
			}
		}
	}
}
