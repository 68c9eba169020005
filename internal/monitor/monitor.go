// Horologium - Multi-Source Calendar Aggregation and Conflict Resolution
// Copyright 2026 Horologium Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/horologium/horologium

// Package monitor is the realtime risk classifier on the event-creation
// path. It inspects only a narrow window around the new event, so its
// cost is bounded and independent of calendar size, and it bypasses the
// periodic batch detector entirely.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/horologium/horologium/internal/config"
	"github.com/horologium/horologium/internal/insight"
	"github.com/horologium/horologium/internal/logging"
	"github.com/horologium/horologium/internal/metrics"
	"github.com/horologium/horologium/internal/models"
)

// EventStore is the slice of persistence the monitor needs.
type EventStore interface {
	EventsInRange(ctx context.Context, userID string, from, to time.Time, sources []models.Source) ([]models.Event, error)
}

// Monitor classifies a newly created event against its time neighborhood
// and emits severity-graded alerts. It owns a bounded ring of recent
// alerts for the API to surface; no other component writes it.
type Monitor struct {
	store    EventStore
	analyzer insight.Analyzer
	window   time.Duration
	timeout  time.Duration

	mu     sync.Mutex
	recent []models.Alert
	next   int
	filled bool
}

// New creates a monitor. analyzer may be nil; advisory alerts are then
// skipped and only the deterministic classification runs.
func New(store EventStore, analyzer insight.Analyzer, cfg config.MonitorConfig, advisoryTimeout time.Duration) *Monitor {
	return &Monitor{
		store:    store,
		analyzer: analyzer,
		window:   cfg.Window,
		timeout:  advisoryTimeout,
		recent:   make([]models.Alert, cfg.RecentAlerts),
	}
}

// MonitorNewEvent classifies event against stored events within the
// configured window around it. The store lookup failing degrades to
// advisory-only output; a creation must never fail because the risk
// check could not run.
func (m *Monitor) MonitorNewEvent(ctx context.Context, event *models.Event) []models.Alert {
	from := event.StartTime.Add(-m.window)
	to := event.EndTime.Add(m.window)

	nearby, err := m.store.EventsInRange(ctx, event.Metadata.OwnerUserID, from, to, nil)
	if err != nil {
		logging.Warn().Err(err).Str("event_id", event.ID).Msg("Risk window lookup failed")
		nearby = nil
	}

	now := time.Now().UTC()
	var alerts []models.Alert
	for i := range nearby {
		other := &nearby[i]
		if other.ID == event.ID {
			continue
		}
		if !event.Overlaps(other) {
			continue
		}

		alerts = append(alerts, models.Alert{
			ID:        uuid.NewString(),
			Type:      models.AlertDoubleBooking,
			Severity:  doubleBookingSeverity(event, other),
			Message:   fmt.Sprintf("Overlaps with %q (%s)", other.Title, other.Source),
			EventID:   event.ID,
			RelatedID: other.ID,
			CreatedAt: now,
		})

		if loc := event.NormalizedLocation(); loc != "" && loc == other.NormalizedLocation() {
			alerts = append(alerts, models.Alert{
				ID:        uuid.NewString(),
				Type:      models.AlertResourceConflict,
				Severity:  models.SeverityHigh,
				Message:   fmt.Sprintf("Location %q already booked by %q", event.Location, other.Title),
				EventID:   event.ID,
				RelatedID: other.ID,
				CreatedAt: now,
			})
		}
	}

	alerts = append(alerts, m.advisoryAlerts(ctx, event, nearby)...)

	for i := range alerts {
		metrics.AlertsEmitted.WithLabelValues(string(alerts[i].Type), string(alerts[i].Severity)).Inc()
	}
	m.remember(alerts)
	return alerts
}

// doubleBookingSeverity grades an overlap: a shared attendee means the
// same person is in two places at once (critical), a shared location
// means a physical collision (high), anything else is split attention
// (medium).
func doubleBookingSeverity(event, other *models.Event) models.Severity {
	if event.SharesAttendee(other) {
		return models.SeverityCritical
	}
	if loc := event.NormalizedLocation(); loc != "" && loc == other.NormalizedLocation() {
		return models.SeverityHigh
	}
	return models.SeverityMedium
}

// advisoryAlerts runs the best-effort advisory step. Its output is
// additive only; failures and empty results are both fine.
func (m *Monitor) advisoryAlerts(ctx context.Context, event *models.Event, nearby []models.Event) []models.Alert {
	if m.analyzer == nil {
		return nil
	}

	events := append([]models.Event{*event}, nearby...)
	analysis := insight.Advise(ctx, m.analyzer, m.timeout, events, nil)

	now := time.Now().UTC()
	out := make([]models.Alert, 0, len(analysis.Alerts))
	for _, alert := range analysis.Alerts {
		alert.ID = uuid.NewString()
		alert.Type = models.AlertAdvisory
		if alert.Severity == "" {
			alert.Severity = models.SeverityLow
		}
		if alert.EventID == "" {
			alert.EventID = event.ID
		}
		alert.CreatedAt = now
		out = append(out, alert)
	}
	return out
}

// remember appends alerts to the bounded ring, overwriting the oldest
// entries once full.
func (m *Monitor) remember(alerts []models.Alert) {
	if len(alerts) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, alert := range alerts {
		m.recent[m.next] = alert
		m.next++
		if m.next == len(m.recent) {
			m.next = 0
			m.filled = true
		}
	}
}

// RecentAlerts returns the retained alerts, newest first.
func (m *Monitor) RecentAlerts() []models.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	size := m.next
	if m.filled {
		size = len(m.recent)
	}
	out := make([]models.Alert, 0, size)
	for i := 1; i <= size; i++ {
		idx := (m.next - i + len(m.recent)) % len(m.recent)
		out = append(out, m.recent[idx])
	}
	return out
}
