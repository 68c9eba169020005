// Horologium - Multi-Source Calendar Aggregation and Conflict Resolution
// Copyright 2026 Horologium Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/horologium/horologium

package sync

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/horologium/horologium/internal/adapter"
	"github.com/horologium/horologium/internal/connection"
	"github.com/horologium/horologium/internal/logging"
	"github.com/horologium/horologium/internal/metrics"
	"github.com/horologium/horologium/internal/models"
	"github.com/horologium/horologium/internal/normalize"
)

// SyncUserCalendars syncs every applicable source for one user, or just
// the given source when it is non-empty. The returned list holds one
// result per source; failures are entries in that list, never an
// aborting error for the whole call.
func (m *Manager) SyncUserCalendars(ctx context.Context, userID string, source models.Source) []models.SyncResult {
	conns, err := m.store.ListConnections(ctx, userID)
	if err != nil {
		logging.Error().Err(err).Str("user_id", userID).Msg("Listing user connections failed")
		return []models.SyncResult{}
	}

	results := make([]models.SyncResult, 0, len(conns))
	for i := range conns {
		conn := &conns[i]
		if source != "" && conn.Source != source {
			continue
		}
		if source == "" && !conn.SyncEnabled {
			continue
		}
		if m.registry.Get(conn.Source) == nil {
			results = append(results, models.SyncResult{
				Source: conn.Source,
				Error:  "source not enabled on this server",
			})
			continue
		}

		if !m.tryAcquire(userID, conn.Source) {
			results = append(results, models.SyncResult{
				Source: conn.Source,
				Error:  "sync already in progress",
			})
			continue
		}
		result := m.syncSource(ctx, userID, conn)
		m.release(userID, conn.Source)

		results = append(results, result)
	}
	return results
}

// syncSource runs one (user, source) sync attempt end to end: status row
// to in_progress, pull (and push when the connection's direction includes
// it), status row to success or failed, and exactly one sync log row no
// matter how the attempt ends.
func (m *Manager) syncSource(ctx context.Context, userID string, conn *connection.Record) models.SyncResult {
	began := time.Now()
	src := conn.Source

	m.setStatus(ctx, userID, src, models.SyncInProgress, 0, "")

	logEntry := &models.SyncLog{
		ID:        uuid.NewString(),
		UserID:    userID,
		Source:    src,
		Operation: models.OpSync,
		CreatedAt: began.UTC(),
	}

	synced := 0
	var errs []string

	if conn.Direction.Pulls() {
		n, err := m.pullSource(ctx, userID, src)
		synced += n
		metrics.SyncEventsProcessed.WithLabelValues(string(src), string(models.OpPull)).Add(float64(n))
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	if conn.Direction.Pushes() {
		n, err := m.pushSource(ctx, userID, src)
		synced += n
		metrics.SyncEventsProcessed.WithLabelValues(string(src), string(models.OpPush)).Add(float64(n))
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	logEntry.EventsProcessed = synced
	logEntry.Errors = errs
	logEntry.DurationMs = time.Since(began).Milliseconds()

	result := models.SyncResult{Source: src, EventsSynced: synced}
	switch {
	case len(errs) == 0:
		logEntry.Status = models.OutcomeSuccess
		result.Success = true
		m.setStatus(ctx, userID, src, models.SyncSuccess, synced, "")
	case synced > 0:
		logEntry.Status = models.OutcomePartial
		result.Error = errs[0]
		m.setStatus(ctx, userID, src, models.SyncFailed, synced, errs[0])
	default:
		logEntry.Status = models.OutcomeFailed
		result.Error = errs[0]
		m.setStatus(ctx, userID, src, models.SyncFailed, 0, errs[0])
	}

	metrics.SyncRunsTotal.WithLabelValues(string(src), string(logEntry.Status)).Inc()
	metrics.SyncDuration.WithLabelValues(string(src)).Observe(time.Since(began).Seconds())

	if err := m.store.AppendSyncLog(ctx, logEntry); err != nil {
		logging.Error().Err(err).Str("source", string(src)).Msg("Sync log write failed")
	}

	return result
}

// pullSource pulls the configured window from the adapter with retries,
// normalizes the records, and persists them. Malformed records are
// dropped with a warning, they never fail the run.
func (m *Manager) pullSource(ctx context.Context, userID string, src models.Source) (int, error) {
	now := time.Now().UTC()
	from := now.Add(-m.cfg.Lookback)
	to := now.Add(m.cfg.Lookahead)

	raw, err := m.pullWithRetry(ctx, userID, src, from, to)
	if err != nil {
		return 0, err
	}

	events := make([]models.Event, 0, len(raw))
	for _, record := range raw {
		event, err := normalize.Normalize(src, record)
		if err != nil {
			logging.Warn().
				Err(err).
				Str("source", string(src)).
				Str("source_id", record.ID).
				Msg("Dropping malformed record during sync")
			continue
		}
		event.Metadata.OwnerUserID = userID
		event.Metadata.SyncStatus = models.EventSynced
		event.Metadata.LastSyncedAt = &now
		events = append(events, event)
	}

	if len(events) > 0 {
		if err := m.store.UpsertEvents(ctx, events); err != nil {
			return 0, err
		}
	}
	return len(events), nil
}

// pullWithRetry retries transient adapter failures with the configured
// delay. Non-transient failures (auth, malformed responses) fail fast.
// Every individual attempt is bounded by the adapter timeout; a timeout
// is treated like any other adapter failure.
func (m *Manager) pullWithRetry(ctx context.Context, userID string, src models.Source, from, to time.Time) ([]adapter.RawEvent, error) {
	var lastErr error
	attempts := m.cfg.RetryAttempts + 1

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			logging.Debug().
				Str("source", string(src)).
				Int("attempt", attempt+1).
				Msg("Retrying source pull")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(m.cfg.RetryDelay):
			}
		}

		pullCtx, cancel := context.WithTimeout(ctx, m.cfg.AdapterTimeout)
		began := time.Now()
		raw, err := m.registry.Get(src).Pull(pullCtx, userID,
			from.Format(time.RFC3339), to.Format(time.RFC3339))
		cancel()

		errKind := ""
		if err != nil {
			errKind = string(adapter.KindOf(err))
		}
		metrics.ObserveAdapterCall(string(src), "pull", began, errKind)

		if err == nil {
			return raw, nil
		}
		lastErr = err
		if !adapter.IsTransient(err) {
			break
		}
	}
	return nil, lastErr
}

// pushSource mirrors the user's internal-calendar events in the sync
// window out to the remote source. Sources that do not accept pushes are
// skipped silently.
func (m *Manager) pushSource(ctx context.Context, userID string, src models.Source) (int, error) {
	now := time.Now().UTC()
	events, err := m.store.EventsInRange(ctx, userID,
		now.Add(-m.cfg.Lookback), now.Add(m.cfg.Lookahead),
		[]models.Source{models.SourceInternal})
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	pushCtx, cancel := context.WithTimeout(ctx, m.cfg.AdapterTimeout)
	defer cancel()

	began := time.Now()
	result, err := m.registry.Get(src).Push(pushCtx, userID, events)
	errKind := ""
	if err != nil {
		errKind = string(adapter.KindOf(err))
	}
	metrics.ObserveAdapterCall(string(src), "push", began, errKind)

	if err != nil {
		if errors.Is(err, adapter.ErrPushNotSupported) {
			logging.Debug().Str("source", string(src)).Msg("Source does not accept pushes, skipping")
			return 0, nil
		}
		return 0, err
	}
	return result.Synced, nil
}

func (m *Manager) setStatus(ctx context.Context, userID string, src models.Source, state models.SyncState, synced int, errMsg string) {
	status := &models.SyncStatus{
		UserID:       userID,
		Source:       src,
		Status:       state,
		LastSyncAt:   time.Now().UTC(),
		EventsSynced: synced,
		ErrorMessage: errMsg,
	}
	if err := m.store.PutSyncStatus(ctx, status); err != nil {
		logging.Error().
			Err(err).
			Str("user_id", userID).
			Str("source", string(src)).
			Msg("Sync status write failed")
	}
}
