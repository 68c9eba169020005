// Horologium - Multi-Source Calendar Aggregation and Conflict Resolution
// Copyright 2026 Horologium Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/horologium/horologium

package sync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/horologium/horologium/internal/adapter"
	"github.com/horologium/horologium/internal/config"
	"github.com/horologium/horologium/internal/connection"
	"github.com/horologium/horologium/internal/models"
)

// fakeStore is an in-memory Store.
type fakeStore struct {
	mu          sync.Mutex
	statuses    []models.SyncStatus
	logs        []models.SyncLog
	events      []models.Event
	stored      []models.Event
	connections []connection.Record
}

func (s *fakeStore) PutSyncStatus(_ context.Context, status *models.SyncStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, *status)
	return nil
}

func (s *fakeStore) AppendSyncLog(_ context.Context, entry *models.SyncLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, *entry)
	return nil
}

func (s *fakeStore) UpsertEvents(_ context.Context, events []models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stored = append(s.stored, events...)
	return nil
}

func (s *fakeStore) EventsInRange(_ context.Context, _ string, _, _ time.Time, _ []models.Source) ([]models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events, nil
}

func (s *fakeStore) ListConnections(_ context.Context, userID string) ([]connection.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []connection.Record
	for _, c := range s.connections {
		if userID == "" || c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *fakeStore) lastStatus() models.SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statuses[len(s.statuses)-1]
}

// countingAdapter fails the first failures pulls, then succeeds.
type countingAdapter struct {
	source   models.Source
	raw      []adapter.RawEvent
	failures int
	failKind adapter.ErrorKind
	pushErr  error
	pushed   int

	mu    sync.Mutex
	pulls int
}

func (f *countingAdapter) Source() models.Source { return f.source }

func (f *countingAdapter) Pull(context.Context, string, string, string) ([]adapter.RawEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pulls++
	if f.pulls <= f.failures {
		return nil, adapter.NewError(f.source, f.failKind, errors.New("boom"))
	}
	return f.raw, nil
}

func (f *countingAdapter) Push(_ context.Context, _ string, events []models.Event) (*adapter.PushResult, error) {
	if f.pushErr != nil {
		return nil, f.pushErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushed += len(events)
	return &adapter.PushResult{Success: true, Synced: len(events)}, nil
}

func (f *countingAdapter) Authenticate(context.Context, string) (string, error) { return "tok", nil }
func (f *countingAdapter) Disconnect(context.Context, string) error             { return nil }

func testSyncConfig() config.SyncConfig {
	return config.SyncConfig{
		Interval:       time.Minute,
		Lookback:       24 * time.Hour,
		Lookahead:      24 * time.Hour,
		AdapterTimeout: time.Second,
		RetryAttempts:  2,
		RetryDelay:     time.Millisecond,
	}
}

func conn(userID string, source models.Source, direction connection.SyncDirection, enabled bool) connection.Record {
	return connection.Record{
		UserID:      userID,
		Source:      source,
		Direction:   direction,
		SyncEnabled: enabled,
		Config:      json.RawMessage(`{}`),
	}
}

func TestSyncUserCalendarsPullSuccess(t *testing.T) {
	store := &fakeStore{connections: []connection.Record{
		conn("u1", models.SourceCRM, connection.DirectionPull, true),
	}}
	ad := &countingAdapter{source: models.SourceCRM, raw: []adapter.RawEvent{
		{ID: "1", Title: "x", Start: "2026-03-10T10:00:00Z", End: "2026-03-10T11:00:00Z"},
	}}
	m := NewManager(store, adapter.NewRegistry(ad), nil, testSyncConfig())

	results := m.SyncUserCalendars(context.Background(), "u1", "")
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if !results[0].Success || results[0].EventsSynced != 1 {
		t.Errorf("unexpected result: %+v", results[0])
	}

	if len(store.stored) != 1 {
		t.Fatalf("expected 1 stored event, got %d", len(store.stored))
	}
	stored := store.stored[0]
	if stored.Metadata.OwnerUserID != "u1" {
		t.Errorf("owner not stamped: %q", stored.Metadata.OwnerUserID)
	}
	if stored.Metadata.SyncStatus != models.EventSynced {
		t.Errorf("expected synced status, got %s", stored.Metadata.SyncStatus)
	}

	if got := store.lastStatus(); got.Status != models.SyncSuccess || got.EventsSynced != 1 {
		t.Errorf("unexpected final status: %+v", got)
	}
	if len(store.logs) != 1 || store.logs[0].Status != models.OutcomeSuccess {
		t.Errorf("expected one success log row, got %+v", store.logs)
	}
}

func TestSyncUserCalendarsRetriesTransientFailures(t *testing.T) {
	store := &fakeStore{connections: []connection.Record{
		conn("u1", models.SourceCRM, connection.DirectionPull, true),
	}}
	ad := &countingAdapter{
		source:   models.SourceCRM,
		failures: 2,
		failKind: adapter.KindUnreachable,
		raw: []adapter.RawEvent{
			{ID: "1", Title: "x", Start: "2026-03-10T10:00:00Z", End: "2026-03-10T11:00:00Z"},
		},
	}
	m := NewManager(store, adapter.NewRegistry(ad), nil, testSyncConfig())

	results := m.SyncUserCalendars(context.Background(), "u1", "")
	if !results[0].Success {
		t.Fatalf("expected success after retries, got %+v", results[0])
	}
	if ad.pulls != 3 {
		t.Errorf("expected 3 pull attempts, got %d", ad.pulls)
	}
}

func TestSyncUserCalendarsFailsFastOnAuthError(t *testing.T) {
	store := &fakeStore{connections: []connection.Record{
		conn("u1", models.SourceCRM, connection.DirectionPull, true),
	}}
	ad := &countingAdapter{source: models.SourceCRM, failures: 99, failKind: adapter.KindAuth}
	m := NewManager(store, adapter.NewRegistry(ad), nil, testSyncConfig())

	results := m.SyncUserCalendars(context.Background(), "u1", "")
	if results[0].Success {
		t.Fatal("expected failure")
	}
	if ad.pulls != 1 {
		t.Errorf("auth errors must not be retried, got %d attempts", ad.pulls)
	}
	if got := store.lastStatus(); got.Status != models.SyncFailed || got.ErrorMessage == "" {
		t.Errorf("expected failed status with message, got %+v", got)
	}
	if len(store.logs) != 1 || store.logs[0].Status != models.OutcomeFailed {
		t.Errorf("a log row must be written even on failure, got %+v", store.logs)
	}
}

func TestSyncUserCalendarsPartialFailureIsolation(t *testing.T) {
	store := &fakeStore{connections: []connection.Record{
		conn("u1", models.SourceCRM, connection.DirectionPull, true),
		conn("u1", models.SourceBookingLink, connection.DirectionPull, true),
	}}
	good := &countingAdapter{source: models.SourceCRM, raw: []adapter.RawEvent{
		{ID: "1", Title: "x", Start: "2026-03-10T10:00:00Z", End: "2026-03-10T11:00:00Z"},
	}}
	bad := &countingAdapter{source: models.SourceBookingLink, failures: 99, failKind: adapter.KindAuth}
	m := NewManager(store, adapter.NewRegistry(good, bad), nil, testSyncConfig())

	results := m.SyncUserCalendars(context.Background(), "u1", "")
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	succeeded, failed := 0, 0
	for _, res := range results {
		if res.Success {
			succeeded++
		} else {
			failed++
		}
	}
	if succeeded != 1 || failed != 1 {
		t.Errorf("expected 1 success and 1 failure, got %+v", results)
	}
}

func TestSyncUserCalendarsSourceFilter(t *testing.T) {
	store := &fakeStore{connections: []connection.Record{
		conn("u1", models.SourceCRM, connection.DirectionPull, true),
		conn("u1", models.SourceBookingLink, connection.DirectionPull, true),
	}}
	ad := &countingAdapter{source: models.SourceCRM}
	other := &countingAdapter{source: models.SourceBookingLink}
	m := NewManager(store, adapter.NewRegistry(ad, other), nil, testSyncConfig())

	results := m.SyncUserCalendars(context.Background(), "u1", models.SourceCRM)
	if len(results) != 1 || results[0].Source != models.SourceCRM {
		t.Fatalf("expected only the crm-calendar result, got %+v", results)
	}
	if other.pulls != 0 {
		t.Errorf("filtered-out source must not be pulled")
	}
}

func TestSyncUserCalendarsSkipsDisabledConnections(t *testing.T) {
	store := &fakeStore{connections: []connection.Record{
		conn("u1", models.SourceCRM, connection.DirectionPull, false),
	}}
	ad := &countingAdapter{source: models.SourceCRM}
	m := NewManager(store, adapter.NewRegistry(ad), nil, testSyncConfig())

	if results := m.SyncUserCalendars(context.Background(), "u1", ""); len(results) != 0 {
		t.Errorf("disabled connections must be skipped in a full run, got %+v", results)
	}
}

func TestSyncUserCalendarsInFlightGuard(t *testing.T) {
	store := &fakeStore{connections: []connection.Record{
		conn("u1", models.SourceCRM, connection.DirectionPull, true),
	}}
	ad := &countingAdapter{source: models.SourceCRM}
	m := NewManager(store, adapter.NewRegistry(ad), nil, testSyncConfig())

	if !m.tryAcquire("u1", models.SourceCRM) {
		t.Fatal("expected acquire to succeed")
	}
	results := m.SyncUserCalendars(context.Background(), "u1", "")
	if len(results) != 1 || results[0].Success {
		t.Fatalf("expected a skipped result, got %+v", results)
	}
	if results[0].Error != "sync already in progress" {
		t.Errorf("unexpected error: %q", results[0].Error)
	}

	m.release("u1", models.SourceCRM)
	results = m.SyncUserCalendars(context.Background(), "u1", "")
	if len(results) != 1 || !results[0].Success {
		t.Errorf("expected success after release, got %+v", results)
	}
}

func TestSyncUserCalendarsPushDirection(t *testing.T) {
	internalEvent := models.Event{
		ID:        "internal:1",
		Source:    models.SourceInternal,
		SourceID:  "1",
		Title:     "x",
		StartTime: time.Now().UTC(),
		EndTime:   time.Now().UTC().Add(time.Hour),
	}
	store := &fakeStore{
		connections: []connection.Record{
			conn("u1", models.SourceBookingLink, connection.DirectionBoth, true),
		},
		events: []models.Event{internalEvent},
	}
	ad := &countingAdapter{source: models.SourceBookingLink}
	m := NewManager(store, adapter.NewRegistry(ad), nil, testSyncConfig())

	results := m.SyncUserCalendars(context.Background(), "u1", "")
	if !results[0].Success {
		t.Fatalf("expected success, got %+v", results[0])
	}
	if ad.pushed != 1 {
		t.Errorf("expected 1 pushed event, got %d", ad.pushed)
	}
}

func TestSyncUserCalendarsPushNotSupportedTolerated(t *testing.T) {
	store := &fakeStore{
		connections: []connection.Record{
			conn("u1", models.SourceCRM, connection.DirectionBoth, true),
		},
		events: []models.Event{{
			ID: "internal:1", Source: models.SourceInternal, SourceID: "1", Title: "x",
			StartTime: time.Now().UTC(), EndTime: time.Now().UTC().Add(time.Hour),
		}},
	}
	ad := &countingAdapter{source: models.SourceCRM, pushErr: adapter.ErrPushNotSupported}
	m := NewManager(store, adapter.NewRegistry(ad), nil, testSyncConfig())

	results := m.SyncUserCalendars(context.Background(), "u1", "")
	if !results[0].Success {
		t.Errorf("a read-only source must not fail the run, got %+v", results[0])
	}
}

func TestSweepAllIsolatesUsers(t *testing.T) {
	store := &fakeStore{connections: []connection.Record{
		conn("u1", models.SourceCRM, connection.DirectionPull, true),
		conn("u2", models.SourceCRM, connection.DirectionPull, true),
	}}
	ad := &countingAdapter{source: models.SourceCRM}
	m := NewManager(store, adapter.NewRegistry(ad), nil, testSyncConfig())

	m.SweepAll(context.Background())
	if ad.pulls != 2 {
		t.Errorf("expected both users swept, got %d pulls", ad.pulls)
	}
}

type recordingDetector struct {
	mu   sync.Mutex
	runs int
	seen int
	err  error
}

func (d *recordingDetector) Run(_ context.Context, events []models.Event) ([]models.Conflict, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.runs++
	d.seen += len(events)
	return nil, d.err
}

func TestSweepAllRunsDetectionPerUser(t *testing.T) {
	store := &fakeStore{
		connections: []connection.Record{
			conn("u1", models.SourceCRM, connection.DirectionPull, true),
			conn("u2", models.SourceCRM, connection.DirectionPull, true),
		},
		events: []models.Event{{
			ID: "crm-calendar:1", Source: models.SourceCRM, SourceID: "1", Title: "x",
			StartTime: time.Now().UTC(), EndTime: time.Now().UTC().Add(time.Hour),
		}},
	}
	ad := &countingAdapter{source: models.SourceCRM}
	detector := &recordingDetector{}
	m := NewManager(store, adapter.NewRegistry(ad), detector, testSyncConfig())

	m.SweepAll(context.Background())
	if detector.runs != 2 {
		t.Errorf("expected one detection pass per user, got %d", detector.runs)
	}
	if detector.seen == 0 {
		t.Error("detection pass must receive the stored events")
	}
}

func TestSweepAllDetectionFailureIsNotFatal(t *testing.T) {
	store := &fakeStore{connections: []connection.Record{
		conn("u1", models.SourceCRM, connection.DirectionPull, true),
		conn("u2", models.SourceCRM, connection.DirectionPull, true),
	}}
	ad := &countingAdapter{source: models.SourceCRM}
	detector := &recordingDetector{err: errors.New("persist failed")}
	m := NewManager(store, adapter.NewRegistry(ad), detector, testSyncConfig())

	m.SweepAll(context.Background())
	if ad.pulls != 2 || detector.runs != 2 {
		t.Errorf("a failing detection pass must not stop the sweep: %d pulls, %d runs", ad.pulls, detector.runs)
	}
}

func TestManagerStartStop(t *testing.T) {
	store := &fakeStore{}
	m := NewManager(store, adapter.NewRegistry(), nil, testSyncConfig())

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := m.Start(context.Background()); err == nil {
		t.Error("second start must fail")
	}
	if err := m.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if err := m.Stop(); err == nil {
		t.Error("second stop must fail")
	}
}
