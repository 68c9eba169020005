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
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/horologium/horologium/internal/models"
)

// ErrEventNotFound is returned when an event id has no stored row.
var ErrEventNotFound = errors.New("event not found")

func eventKey(id string) []byte {
	return []byte(eventKeyPrefix + id)
}

// UpsertEvents writes the events, keyed by their (source, sourceID)
// derived IDs. An existing row for the same booking is overwritten.
func (s *Store) UpsertEvents(ctx context.Context, events []models.Event) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for i := range events {
			data, err := json.Marshal(&events[i])
			if err != nil {
				return fmt.Errorf("marshal event %s: %w", events[i].ID, err)
			}
			if err := txn.Set(eventKey(events[i].ID), data); err != nil {
				return fmt.Errorf("set event %s: %w", events[i].ID, err)
			}
		}
		return nil
	})
}

// GetEvent returns one event by canonical id.
func (s *Store) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(eventKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrEventNotFound
		}
		if err != nil {
			return fmt.Errorf("get event %s: %w", id, err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &event)
		})
	})
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// GetEvents returns the stored events for the given ids, skipping ids
// with no row.
func (s *Store) GetEvents(ctx context.Context, ids []string) ([]models.Event, error) {
	out := make([]models.Event, 0, len(ids))
	err := s.db.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			item, err := txn.Get(eventKey(id))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("get event %s: %w", id, err)
			}
			var event models.Event
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &event)
			}); err != nil {
				return err
			}
			out = append(out, event)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// EventsInRange returns stored events intersecting [from, to), optionally
// filtered by owner and by source set, sorted ascending by start time.
func (s *Store) EventsInRange(ctx context.Context, userID string, from, to time.Time, sources []models.Source) ([]models.Event, error) {
	wanted := map[models.Source]bool{}
	for _, src := range sources {
		wanted[src] = true
	}

	var out []models.Event
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(eventKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var event models.Event
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &event)
			}); err != nil {
				return err
			}
			if !event.StartTime.Before(to) || !from.Before(event.EndTime) {
				continue
			}
			if len(wanted) > 0 && !wanted[event.Source] {
				continue
			}
			if userID != "" && event.Metadata.OwnerUserID != "" && event.Metadata.OwnerUserID != userID {
				continue
			}
			out = append(out, event)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out, nil
}
