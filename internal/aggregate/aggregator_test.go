// Horologium - Multi-Source Calendar Aggregation and Conflict Resolution
// Copyright 2026 Horologium Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/horologium/horologium

package aggregate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/horologium/horologium/internal/adapter"
	"github.com/horologium/horologium/internal/models"
)

// fakeAdapter serves canned raw events or a canned error.
type fakeAdapter struct {
	source models.Source
	raw    []adapter.RawEvent
	err    error
}

func (f *fakeAdapter) Source() models.Source { return f.source }

func (f *fakeAdapter) Pull(_ context.Context, _ string, _, _ string) ([]adapter.RawEvent, error) {
	return f.raw, f.err
}

func (f *fakeAdapter) Push(context.Context, string, []models.Event) (*adapter.PushResult, error) {
	return nil, adapter.ErrPushNotSupported
}

func (f *fakeAdapter) Authenticate(context.Context, string) (string, error) { return "", nil }
func (f *fakeAdapter) Disconnect(context.Context, string) error             { return nil }

// recordingStore remembers upserted events.
type recordingStore struct {
	upserted []models.Event
	err      error
}

func (s *recordingStore) UpsertEvents(_ context.Context, events []models.Event) error {
	if s.err != nil {
		return s.err
	}
	s.upserted = append(s.upserted, events...)
	return nil
}

func rawEvent(id, start, end string) adapter.RawEvent {
	return adapter.RawEvent{ID: id, Title: "Meeting " + id, Start: start, End: end}
}

func window() (time.Time, time.Time) {
	return time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
}

func TestAggregateMergesAndSorts(t *testing.T) {
	registry := adapter.NewRegistry(
		&fakeAdapter{source: models.SourceInternal, raw: []adapter.RawEvent{
			rawEvent("b", "2026-03-10T12:00:00Z", "2026-03-10T13:00:00Z"),
		}},
		&fakeAdapter{source: models.SourceCRM, raw: []adapter.RawEvent{
			rawEvent("a", "2026-03-10T09:00:00Z", "2026-03-10T10:00:00Z"),
		}},
	)

	a := New(registry, nil, time.Second)
	start, end := window()
	result, err := a.Aggregate(context.Background(), "u1", start, end, nil)
	if err != nil {
		t.Fatalf("aggregate failed: %v", err)
	}

	if len(result.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(result.Events))
	}
	if !result.Events[0].StartTime.Before(result.Events[1].StartTime) {
		t.Error("events not sorted by start time")
	}
	if len(result.SourceErrors) != 0 {
		t.Errorf("unexpected source errors: %+v", result.SourceErrors)
	}
}

func TestAggregateDedupInvariant(t *testing.T) {
	// Two records with identical (source, sourceID) must collapse to one.
	registry := adapter.NewRegistry(
		&fakeAdapter{source: models.SourceCRM, raw: []adapter.RawEvent{
			rawEvent("same", "2026-03-10T09:00:00Z", "2026-03-10T10:00:00Z"),
			rawEvent("same", "2026-03-10T09:00:00Z", "2026-03-10T10:00:00Z"),
		}},
	)

	a := New(registry, nil, time.Second)
	start, end := window()
	result, err := a.Aggregate(context.Background(), "u1", start, end, nil)
	if err != nil {
		t.Fatalf("aggregate failed: %v", err)
	}

	if len(result.Events) != 1 {
		t.Fatalf("identity dedup failed: expected 1 event, got %d", len(result.Events))
	}
	if result.Deduplicated != 1 {
		t.Errorf("expected deduplicated count 1, got %d", result.Deduplicated)
	}
}

func TestAggregateHeuristicDedup(t *testing.T) {
	attendee := []adapter.RawAttendee{{Email: "lead@example.com"}}
	registry := adapter.NewRegistry(
		&fakeAdapter{source: models.SourceInternal, raw: []adapter.RawEvent{
			{ID: "a", Title: "Review", Start: "2026-03-10T10:00:00Z", End: "2026-03-10T11:00:00Z", Attendees: attendee},
		}},
		&fakeAdapter{source: models.SourceBookingLink, raw: []adapter.RawEvent{
			// Same booking seen through the booking link: starts 2 minutes
			// later, same lead attendee, marked synced.
			{ID: "b", Title: "Review (booked)", Start: "2026-03-10T10:02:00Z", End: "2026-03-10T11:02:00Z", Attendees: attendee, Synced: true},
		}},
	)

	a := New(registry, nil, time.Second)
	start, end := window()
	result, err := a.Aggregate(context.Background(), "u1", start, end, nil)
	if err != nil {
		t.Fatalf("aggregate failed: %v", err)
	}

	if len(result.Events) != 1 {
		t.Fatalf("heuristic dedup failed: expected 1 event, got %d", len(result.Events))
	}
	// The synced record wins the collision.
	if result.Events[0].Source != models.SourceBookingLink {
		t.Errorf("expected synced event to win, got source %s", result.Events[0].Source)
	}
}

func TestAggregatePartialFailureIsolation(t *testing.T) {
	registry := adapter.NewRegistry(
		&fakeAdapter{source: models.SourceInternal, raw: []adapter.RawEvent{
			rawEvent("a", "2026-03-10T09:00:00Z", "2026-03-10T10:00:00Z"),
		}},
		&fakeAdapter{source: models.SourceOAuth, err: adapter.NewError(models.SourceOAuth, adapter.KindUnreachable, errors.New("connection refused"))},
		&fakeAdapter{source: models.SourceCRM, raw: []adapter.RawEvent{
			rawEvent("c", "2026-03-10T11:00:00Z", "2026-03-10T12:00:00Z"),
		}},
	)

	a := New(registry, nil, time.Second)
	start, end := window()
	result, err := a.Aggregate(context.Background(), "u1", start, end, nil)
	if err != nil {
		t.Fatalf("aggregate must not fail on a single source error: %v", err)
	}

	if len(result.Events) != 2 {
		t.Errorf("expected events from the 2 healthy sources, got %d", len(result.Events))
	}
	if len(result.SourceErrors) != 1 {
		t.Fatalf("expected exactly 1 source error, got %d", len(result.SourceErrors))
	}
	if result.SourceErrors[0].Source != models.SourceOAuth {
		t.Errorf("expected oauth-calendar error, got %s", result.SourceErrors[0].Source)
	}
}

func TestAggregateDropsMalformedRecords(t *testing.T) {
	registry := adapter.NewRegistry(
		&fakeAdapter{source: models.SourceCRM, raw: []adapter.RawEvent{
			rawEvent("good", "2026-03-10T09:00:00Z", "2026-03-10T10:00:00Z"),
			{ID: "bad", Title: "No end time", Start: "2026-03-10T09:00:00Z"},
		}},
	)

	a := New(registry, nil, time.Second)
	start, end := window()
	result, err := a.Aggregate(context.Background(), "u1", start, end, nil)
	if err != nil {
		t.Fatalf("aggregate failed: %v", err)
	}

	if len(result.Events) != 1 {
		t.Errorf("expected 1 surviving event, got %d", len(result.Events))
	}
	if result.Dropped != 1 {
		t.Errorf("expected dropped count 1, got %d", result.Dropped)
	}
}

func TestAggregatePersistenceIsBestEffort(t *testing.T) {
	registry := adapter.NewRegistry(
		&fakeAdapter{source: models.SourceCRM, raw: []adapter.RawEvent{
			rawEvent("a", "2026-03-10T09:00:00Z", "2026-03-10T10:00:00Z"),
		}},
	)
	store := &recordingStore{err: errors.New("disk full")}

	a := New(registry, store, time.Second)
	start, end := window()
	result, err := a.Aggregate(context.Background(), "u1", start, end, nil)
	if err != nil {
		t.Fatalf("aggregate must return its result despite persistence failure: %v", err)
	}
	if len(result.Events) != 1 {
		t.Errorf("expected the in-memory result, got %d events", len(result.Events))
	}
}

func TestAggregateSourceFilter(t *testing.T) {
	registry := adapter.NewRegistry(
		&fakeAdapter{source: models.SourceInternal, raw: []adapter.RawEvent{
			rawEvent("a", "2026-03-10T09:00:00Z", "2026-03-10T10:00:00Z"),
		}},
		&fakeAdapter{source: models.SourceCRM, raw: []adapter.RawEvent{
			rawEvent("b", "2026-03-10T11:00:00Z", "2026-03-10T12:00:00Z"),
		}},
	)

	a := New(registry, nil, time.Second)
	start, end := window()
	result, err := a.Aggregate(context.Background(), "u1", start, end, []models.Source{models.SourceCRM})
	if err != nil {
		t.Fatalf("aggregate failed: %v", err)
	}
	if len(result.Events) != 1 || result.Events[0].Source != models.SourceCRM {
		t.Errorf("source filter not applied: %+v", result.Events)
	}
}

func TestAggregateRejectsInvertedWindow(t *testing.T) {
	a := New(adapter.NewRegistry(), nil, time.Second)
	start, end := window()
	if _, err := a.Aggregate(context.Background(), "u1", end, start, nil); err == nil {
		t.Error("expected error for end before start")
	}
}
