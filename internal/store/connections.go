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

	"github.com/horologium/horologium/internal/connection"
	"github.com/horologium/horologium/internal/models"
)

// ErrConnectionNotFound is returned when a (user, source) pair has no
// stored connection.
var ErrConnectionNotFound = errors.New("connection not found")

func connectionKey(userID string, source models.Source) []byte {
	return []byte(connectionKeyPrefix + userID + ":" + string(source))
}

// PutConnection creates or replaces a source connection.
func (s *Store) PutConnection(ctx context.Context, rec *connection.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal connection: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(connectionKey(rec.UserID, rec.Source), data)
	})
}

// GetConnection returns one connection.
func (s *Store) GetConnection(ctx context.Context, userID string, source models.Source) (*connection.Record, error) {
	var rec connection.Record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(connectionKey(userID, source))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrConnectionNotFound
		}
		if err != nil {
			return fmt.Errorf("get connection: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// DeleteConnection removes one connection. Deleting an absent connection
// is not an error.
func (s *Store) DeleteConnection(ctx context.Context, userID string, source models.Source) error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(connectionKey(userID, source))
		if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete connection: %w", err)
		}
		return nil
	})
}

// ListConnections returns a user's connections; with an empty userID it
// returns every stored connection (used by the periodic sync sweep).
func (s *Store) ListConnections(ctx context.Context, userID string) ([]connection.Record, error) {
	var out []connection.Record
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(connectionKeyPrefix)
		if userID != "" {
			prefix = []byte(connectionKeyPrefix + userID + ":")
		}
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec connection.Record
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
