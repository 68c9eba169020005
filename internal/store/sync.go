// Horologium - Multi-Source Calendar Aggregation and Conflict Resolution
// Copyright 2026 Horologium Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/horologium/horologium

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/horologium/horologium/internal/models"
)

// ErrSyncStatusNotFound is returned when a (user, source) pair has never
// been synced.
var ErrSyncStatusNotFound = errors.New("sync status not found")

func syncStatusKey(userID string, source models.Source) []byte {
	return []byte(syncStatusKeyPrefix + userID + ":" + string(source))
}

// PutSyncStatus overwrites the status row for one (user, source) pair.
func (s *Store) PutSyncStatus(ctx context.Context, status *models.SyncStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshal sync status: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(syncStatusKey(status.UserID, status.Source), data)
	})
}

// GetSyncStatus returns the status row for one (user, source) pair.
func (s *Store) GetSyncStatus(ctx context.Context, userID string, source models.Source) (*models.SyncStatus, error) {
	var status models.SyncStatus
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(syncStatusKey(userID, source))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrSyncStatusNotFound
		}
		if err != nil {
			return fmt.Errorf("get sync status: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &status)
		})
	})
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// ListSyncStatuses returns all status rows for a user.
func (s *Store) ListSyncStatuses(ctx context.Context, userID string) ([]models.SyncStatus, error) {
	var out []models.SyncStatus
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(syncStatusKeyPrefix + userID + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var status models.SyncStatus
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &status)
			}); err != nil {
				return err
			}
			out = append(out, status)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// syncLogTimeFormat is fixed width so key order matches time order.
// RFC3339Nano trims trailing zeros and would break lexicographic scans.
const syncLogTimeFormat = "2006-01-02T15:04:05.000000000Z"

// AppendSyncLog appends one sync attempt record. The key embeds the
// creation timestamp so prefix scans return logs in order; rows are never
// mutated afterwards.
func (s *Store) AppendSyncLog(ctx context.Context, entry *models.SyncLog) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal sync log: %w", err)
	}
	key := fmt.Sprintf("%s%s:%s", syncLogKeyPrefix,
		entry.CreatedAt.UTC().Format(syncLogTimeFormat), entry.ID)
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

// ListSyncLogs returns up to limit most recent sync log rows, newest
// first.
func (s *Store) ListSyncLogs(ctx context.Context, limit int) ([]models.SyncLog, error) {
	var out []models.SyncLog
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(syncLogKeyPrefix)
		// Reverse iteration seeks past the last key in the prefix range.
		seek := append(append([]byte{}, prefix...), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(out) >= limit {
				break
			}
			var entry models.SyncLog
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			}); err != nil {
				return err
			}
			out = append(out, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
