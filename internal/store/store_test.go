// Horologium - Multi-Source Calendar Aggregation and Conflict Resolution
// Copyright 2026 Horologium Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/horologium/horologium

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/horologium/horologium/internal/config"
	"github.com/horologium/horologium/internal/connection"
	"github.com/horologium/horologium/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(config.StoreConfig{Path: ""})
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func storedEvent(id string, source models.Source, owner string, start time.Time, dur time.Duration) models.Event {
	return models.Event{
		ID:        string(source) + ":" + id,
		Source:    source,
		SourceID:  id,
		Title:     "Meeting " + id,
		StartTime: start,
		EndTime:   start.Add(dur),
		Metadata:  models.EventMetadata{OwnerUserID: owner},
	}
}

func TestEventUpsertAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	e := storedEvent("a", models.SourceCRM, "u1", start, time.Hour)
	if err := s.UpsertEvents(ctx, []models.Event{e}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	got, err := s.GetEvent(ctx, e.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Title != e.Title || !got.StartTime.Equal(e.StartTime) {
		t.Errorf("stored event mismatch: %+v", got)
	}

	// Re-upsert overwrites rather than duplicating.
	e.Title = "Renamed"
	if err := s.UpsertEvents(ctx, []models.Event{e}); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetEvent(ctx, e.ID)
	if got.Title != "Renamed" {
		t.Errorf("upsert did not overwrite: %q", got.Title)
	}

	if _, err := s.GetEvent(ctx, "missing"); !errors.Is(err, ErrEventNotFound) {
		t.Errorf("expected ErrEventNotFound, got %v", err)
	}
}

func TestGetEventsSkipsMissing(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	e := storedEvent("a", models.SourceCRM, "u1", start, time.Hour)
	if err := s.UpsertEvents(ctx, []models.Event{e}); err != nil {
		t.Fatal(err)
	}

	events, err := s.GetEvents(ctx, []string{e.ID, "crm-calendar:missing"})
	if err != nil {
		t.Fatalf("get events failed: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("expected missing ids skipped, got %d events", len(events))
	}
}

func TestEventsInRange(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	events := []models.Event{
		storedEvent("a", models.SourceInternal, "u1", day.Add(9*time.Hour), time.Hour),
		storedEvent("b", models.SourceCRM, "u1", day.Add(14*time.Hour), time.Hour),
		storedEvent("c", models.SourceCRM, "u2", day.Add(10*time.Hour), time.Hour),
		storedEvent("d", models.SourceCRM, "u1", day.Add(30*time.Hour), time.Hour),
	}
	if err := s.UpsertEvents(ctx, events); err != nil {
		t.Fatal(err)
	}

	got, err := s.EventsInRange(ctx, "u1", day, day.Add(24*time.Hour), nil)
	if err != nil {
		t.Fatalf("range query failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events for u1 on the day, got %d", len(got))
	}
	if !got[0].StartTime.Before(got[1].StartTime) {
		t.Error("events not sorted by start time")
	}

	// Source filter.
	got, err = s.EventsInRange(ctx, "u1", day, day.Add(24*time.Hour), []models.Source{models.SourceCRM})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Source != models.SourceCRM {
		t.Errorf("source filter not applied: %+v", got)
	}
}

func TestConflictUpsertPreservesResolution(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	detected := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	c := models.Conflict{
		ID:         "c1",
		Type:       models.ConflictTimeOverlap,
		Severity:   models.SeverityLow,
		EventIDs:   []string{"internal:a", "crm-calendar:b"},
		DetectedAt: detected,
	}
	if err := s.UpsertConflicts(ctx, []models.Conflict{c}); err != nil {
		t.Fatal(err)
	}

	// Resolve it.
	err := s.UpdateConflict(ctx, "c1", func(c *models.Conflict) error {
		resolvedAt := detected.Add(time.Hour)
		c.ResolvedAt = &resolvedAt
		c.Resolution = models.StrategyManual
		c.ResolvedBy = "alice"
		return nil
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}

	// Re-detection writes the same row again, unresolved.
	c.DetectedAt = detected.Add(2 * time.Hour)
	if err := s.UpsertConflicts(ctx, []models.Conflict{c}); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetConflict(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Resolved() {
		t.Error("re-detection must not reopen a resolved conflict")
	}
	if got.ResolvedBy != "alice" {
		t.Errorf("resolution stamp lost: %+v", got)
	}
}

func TestConflictUpsertPreservesDetectedAt(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	detected := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	c := models.Conflict{ID: "c1", Type: models.ConflictDuplicate, Severity: models.SeverityMedium, EventIDs: []string{"a", "b"}, DetectedAt: detected}
	if err := s.UpsertConflicts(ctx, []models.Conflict{c}); err != nil {
		t.Fatal(err)
	}

	c.DetectedAt = detected.Add(time.Hour)
	if err := s.UpsertConflicts(ctx, []models.Conflict{c}); err != nil {
		t.Fatal(err)
	}

	got, _ := s.GetConflict(ctx, "c1")
	if !got.DetectedAt.Equal(detected) {
		t.Errorf("re-detection must keep the original detection time, got %v", got.DetectedAt)
	}
}

func TestUpdateConflictDomainErrorAborts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	c := models.Conflict{ID: "c1", Type: models.ConflictResource, Severity: models.SeverityHigh, EventIDs: []string{"a", "b"}, DetectedAt: time.Now().UTC()}
	if err := s.UpsertConflicts(ctx, []models.Conflict{c}); err != nil {
		t.Fatal(err)
	}

	domainErr := errors.New("nope")
	err := s.UpdateConflict(ctx, "c1", func(c *models.Conflict) error {
		c.ResolvedBy = "should not persist"
		return domainErr
	})
	if !errors.Is(err, domainErr) {
		t.Fatalf("expected the domain error back, got %v", err)
	}

	got, _ := s.GetConflict(ctx, "c1")
	if got.ResolvedBy != "" {
		t.Error("aborted mutation must not persist")
	}

	if err := s.UpdateConflict(ctx, "missing", func(*models.Conflict) error { return nil }); !errors.Is(err, ErrConflictNotFound) {
		t.Errorf("expected ErrConflictNotFound, got %v", err)
	}
}

func TestListConflictsUnresolvedFilter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	resolvedAt := now.Add(time.Hour)

	conflicts := []models.Conflict{
		{ID: "open", Type: models.ConflictTimeOverlap, Severity: models.SeverityLow, EventIDs: []string{"a", "b"}, DetectedAt: now},
		{ID: "done", Type: models.ConflictTimeOverlap, Severity: models.SeverityLow, EventIDs: []string{"c", "d"}, DetectedAt: now, ResolvedAt: &resolvedAt, Resolution: models.StrategyManual},
	}
	if err := s.UpsertConflicts(ctx, conflicts); err != nil {
		t.Fatal(err)
	}

	all, err := s.ListConflicts(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 conflicts, got %d", len(all))
	}

	open, err := s.ListConflicts(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(open) != 1 || open[0].ID != "open" {
		t.Errorf("unresolved filter broken: %+v", open)
	}
}

func TestSyncStatusRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	status := &models.SyncStatus{
		UserID:     "u1",
		Source:     models.SourceCRM,
		Status:     models.SyncSuccess,
		LastSyncAt: time.Now().UTC(),
	}
	if err := s.PutSyncStatus(ctx, status); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetSyncStatus(ctx, "u1", models.SourceCRM)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.SyncSuccess {
		t.Errorf("unexpected status %+v", got)
	}

	if _, err := s.GetSyncStatus(ctx, "u1", models.SourceOAuth); !errors.Is(err, ErrSyncStatusNotFound) {
		t.Errorf("expected ErrSyncStatusNotFound, got %v", err)
	}

	statuses, err := s.ListSyncStatuses(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(statuses) != 1 {
		t.Errorf("expected 1 status, got %d", len(statuses))
	}
}

func TestSyncLogOrderingAndLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		entry := &models.SyncLog{
			ID:        string(rune('a' + i)),
			Source:    models.SourceCRM,
			Operation: models.OpSync,
			Status:    models.OutcomeSuccess,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.AppendSyncLog(ctx, entry); err != nil {
			t.Fatal(err)
		}
	}

	logs, err := s.ListSyncLogs(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 3 {
		t.Fatalf("expected limit 3, got %d", len(logs))
	}
	// Newest first.
	if !logs[0].CreatedAt.After(logs[1].CreatedAt) {
		t.Errorf("logs not in reverse chronological order: %+v", logs)
	}
}

func TestConnectionCRUD(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := &connection.Record{
		UserID:      "u1",
		Source:      models.SourceCRM,
		Direction:   connection.DirectionPull,
		SyncEnabled: true,
		Config:      json.RawMessage(`{"url":"https://crm.example.com","api_key":"0123456789abcdef"}`),
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	if err := s.PutConnection(ctx, rec); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetConnection(ctx, "u1", models.SourceCRM)
	if err != nil {
		t.Fatal(err)
	}
	if !got.SyncEnabled || got.Direction != connection.DirectionPull {
		t.Errorf("unexpected record %+v", got)
	}

	all, err := s.ListConnections(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Errorf("expected 1 connection, got %d", len(all))
	}

	if err := s.DeleteConnection(ctx, "u1", models.SourceCRM); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetConnection(ctx, "u1", models.SourceCRM); !errors.Is(err, ErrConnectionNotFound) {
		t.Errorf("expected ErrConnectionNotFound after delete, got %v", err)
	}

	// Deleting an absent record is not an error.
	if err := s.DeleteConnection(ctx, "u1", models.SourceCRM); err != nil {
		t.Errorf("double delete should be a no-op, got %v", err)
	}
}
