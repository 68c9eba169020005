// Horologium - Multi-Source Calendar Aggregation and Conflict Resolution
// Copyright 2026 Horologium Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/horologium/horologium

package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/horologium/horologium/internal/models"
)

// ErrConflictNotFound is returned when a conflict id has no stored row.
var ErrConflictNotFound = errors.New("conflict not found")

func conflictKey(id string) []byte {
	return []byte(conflictKeyPrefix + id)
}

// UpsertConflicts writes detected conflicts. Detection derives conflict
// IDs deterministically from their members, so re-detection of an
// unchanged event set overwrites the same rows instead of multiplying
// them. A row that is already resolved is left untouched: resolution is
// final and re-detection must not reopen it.
func (s *Store) UpsertConflicts(ctx context.Context, conflicts []models.Conflict) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for i := range conflicts {
			key := conflictKey(conflicts[i].ID)

			item, err := txn.Get(key)
			if err == nil {
				var existing models.Conflict
				if err := item.Value(func(val []byte) error {
					return json.Unmarshal(val, &existing)
				}); err != nil {
					return err
				}
				if existing.Resolved() {
					continue
				}
				// Preserve the original detection time across re-runs.
				conflicts[i].DetectedAt = existing.DetectedAt
			} else if !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("get conflict %s: %w", conflicts[i].ID, err)
			}

			data, err := json.Marshal(&conflicts[i])
			if err != nil {
				return fmt.Errorf("marshal conflict %s: %w", conflicts[i].ID, err)
			}
			if err := txn.Set(key, data); err != nil {
				return fmt.Errorf("set conflict %s: %w", conflicts[i].ID, err)
			}
		}
		return nil
	})
}

// GetConflict returns one conflict by id.
func (s *Store) GetConflict(ctx context.Context, id string) (*models.Conflict, error) {
	var conflict models.Conflict
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(conflictKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrConflictNotFound
		}
		if err != nil {
			return fmt.Errorf("get conflict %s: %w", id, err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &conflict)
		})
	})
	if err != nil {
		return nil, err
	}
	return &conflict, nil
}

// UpdateConflict applies mutate to the stored conflict inside one
// transaction. Domain errors returned by mutate abort the write and
// propagate unchanged, so callers can enforce resolve-once semantics
// atomically.
func (s *Store) UpdateConflict(ctx context.Context, id string, mutate func(*models.Conflict) error) error {
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(conflictKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrConflictNotFound
		}
		if err != nil {
			return fmt.Errorf("get conflict %s: %w", id, err)
		}

		var conflict models.Conflict
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &conflict)
		}); err != nil {
			return err
		}

		if err := mutate(&conflict); err != nil {
			return err
		}

		data, err := json.Marshal(&conflict)
		if err != nil {
			return fmt.Errorf("marshal conflict %s: %w", id, err)
		}
		return txn.Set(conflictKey(id), data)
	})
}

// ListConflicts returns stored conflicts, optionally only unresolved
// ones, ordered by detection time then id for stable output.
func (s *Store) ListConflicts(ctx context.Context, unresolvedOnly bool) ([]models.Conflict, error) {
	var out []models.Conflict
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(conflictKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var conflict models.Conflict
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &conflict)
			}); err != nil {
				return err
			}
			if unresolvedOnly && conflict.Resolved() {
				continue
			}
			out = append(out, conflict)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].DetectedAt.Equal(out[j].DetectedAt) {
			return out[i].DetectedAt.Before(out[j].DetectedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
