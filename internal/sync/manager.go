// Horologium - Multi-Source Calendar Aggregation and Conflict Resolution
// Copyright 2026 Horologium Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/horologium/horologium

// Package sync orchestrates per-source calendar synchronization. The
// manager owns SyncStatus rows and the append-only SyncLog; nothing else
// writes them.
//
// Concurrency model: a periodic sweep iterates users on a ticker, and
// manual triggers can arrive through the API at any time. A per
// (user, source) in-flight map is the re-entrancy guard; the status rows
// are bookkeeping, not locks. One source failing never blocks the other
// sources of the same user, and one user failing never stops the sweep.
package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/horologium/horologium/internal/adapter"
	"github.com/horologium/horologium/internal/config"
	"github.com/horologium/horologium/internal/connection"
	"github.com/horologium/horologium/internal/logging"
	"github.com/horologium/horologium/internal/models"
)

// Store is the persistence surface the manager needs.
type Store interface {
	PutSyncStatus(ctx context.Context, status *models.SyncStatus) error
	AppendSyncLog(ctx context.Context, entry *models.SyncLog) error
	UpsertEvents(ctx context.Context, events []models.Event) error
	EventsInRange(ctx context.Context, userID string, from, to time.Time, sources []models.Source) ([]models.Event, error)
	ListConnections(ctx context.Context, userID string) ([]connection.Record, error)
}

// Detector runs conflict detection over an event set, persisting what it
// finds. The sweep runs it per user after that user's sources synced so
// conflict rows stay current without waiting for a unified-view request.
type Detector interface {
	Run(ctx context.Context, events []models.Event) ([]models.Conflict, error)
}

// Manager drives periodic and on-demand synchronization.
type Manager struct {
	store    Store
	registry *adapter.Registry
	detector Detector
	cfg      config.SyncConfig

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup

	inflightMu sync.Mutex
	inflight   map[string]bool
}

// NewManager creates a sync manager. detector may be nil, which disables
// the post-sweep detection pass.
func NewManager(store Store, registry *adapter.Registry, detector Detector, cfg config.SyncConfig) *Manager {
	logging.Info().
		Dur("interval", cfg.Interval).
		Dur("lookback", cfg.Lookback).
		Dur("lookahead", cfg.Lookahead).
		Dur("adapter_timeout", cfg.AdapterTimeout).
		Int("retry_attempts", cfg.RetryAttempts).
		Msg("Sync manager config loaded")

	return &Manager{
		store:    store,
		registry: registry,
		detector: detector,
		cfg:      cfg,
		stopChan: make(chan struct{}),
		inflight: make(map[string]bool),
	}
}

// Start begins the periodic sweep loop.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("sync manager is already running")
	}
	m.running = true
	m.mu.Unlock()

	logging.Info().Msg("Starting sync manager...")

	m.wg.Add(1)
	go m.sweepLoop(ctx)

	return nil
}

// Stop gracefully stops the sweep loop and waits for in-flight work.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return fmt.Errorf("sync manager is not running")
	}
	m.running = false
	m.mu.Unlock()

	logging.Info().Msg("Stopping sync manager...")
	close(m.stopChan)
	m.wg.Wait()
	logging.Info().Msg("Sync manager stopped")
	return nil
}

// sweepLoop runs SweepAll on the configured interval. The next run is
// scheduled by the ticker, not by accumulating sleeps, so the schedule
// does not drift with run duration.
func (m *Manager) sweepLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.SweepAll(ctx)
		}
	}
}

// SweepAll syncs every user that has at least one sync-enabled
// connection. Users are independent: one user's failure is logged and
// the sweep continues.
func (m *Manager) SweepAll(ctx context.Context) {
	conns, err := m.store.ListConnections(ctx, "")
	if err != nil {
		logging.Error().Err(err).Msg("Sweep aborted: listing connections failed")
		return
	}

	users := make(map[string]bool)
	var order []string
	for i := range conns {
		if !conns[i].SyncEnabled {
			continue
		}
		if !users[conns[i].UserID] {
			users[conns[i].UserID] = true
			order = append(order, conns[i].UserID)
		}
	}

	logging.Debug().Int("users", len(order)).Msg("Sync sweep starting")
	for _, userID := range order {
		select {
		case <-m.stopChan:
			return
		case <-ctx.Done():
			return
		default:
		}
		results := m.SyncUserCalendars(ctx, userID, "")
		for _, res := range results {
			if !res.Success {
				logging.Warn().
					Str("user_id", userID).
					Str("source", string(res.Source)).
					Str("error", res.Error).
					Msg("Source sync failed during sweep")
			}
		}
		m.detectUser(ctx, userID)
	}
}

// detectUser runs the batch detection pass over one user's events in the
// sync window. Detection failures are logged, never fatal to the sweep.
func (m *Manager) detectUser(ctx context.Context, userID string) {
	if m.detector == nil {
		return
	}

	now := time.Now().UTC()
	events, err := m.store.EventsInRange(ctx, userID, now.Add(-m.cfg.Lookback), now.Add(m.cfg.Lookahead), nil)
	if err != nil {
		logging.Warn().Err(err).Str("user_id", userID).Msg("Detection pass skipped: event lookup failed")
		return
	}

	conflicts, err := m.detector.Run(ctx, events)
	if err != nil {
		logging.Warn().Err(err).Str("user_id", userID).Msg("Detection pass failed")
		return
	}
	logging.Debug().
		Str("user_id", userID).
		Int("events", len(events)).
		Int("conflicts", len(conflicts)).
		Msg("Detection pass finished")
}

// tryAcquire marks a (user, source) pair in-flight, returning false when
// a run for the pair is already underway (overlapping tick or manual
// trigger racing the sweep).
func (m *Manager) tryAcquire(userID string, source models.Source) bool {
	key := userID + "/" + string(source)
	m.inflightMu.Lock()
	defer m.inflightMu.Unlock()
	if m.inflight[key] {
		return false
	}
	m.inflight[key] = true
	return true
}

func (m *Manager) release(userID string, source models.Source) {
	m.inflightMu.Lock()
	defer m.inflightMu.Unlock()
	delete(m.inflight, userID+"/"+string(source))
}
