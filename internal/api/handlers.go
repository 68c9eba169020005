// Horologium - Multi-Source Calendar Aggregation and Conflict Resolution
// Copyright 2026 Horologium Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/horologium/horologium

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/horologium/horologium/internal/adapter"
	"github.com/horologium/horologium/internal/aggregate"
	"github.com/horologium/horologium/internal/connection"
	"github.com/horologium/horologium/internal/models"
)

// Store is the persistence surface the handlers need.
type Store interface {
	ListConflicts(ctx context.Context, unresolvedOnly bool) ([]models.Conflict, error)
	GetEvents(ctx context.Context, ids []string) ([]models.Event, error)
	UpsertEvents(ctx context.Context, events []models.Event) error
	PutConnection(ctx context.Context, rec *connection.Record) error
	GetConnection(ctx context.Context, userID string, source models.Source) (*connection.Record, error)
	DeleteConnection(ctx context.Context, userID string, source models.Source) error
	ListConnections(ctx context.Context, userID string) ([]connection.Record, error)
	ListSyncStatuses(ctx context.Context, userID string) ([]models.SyncStatus, error)
	ListSyncLogs(ctx context.Context, limit int) ([]models.SyncLog, error)
}

// Aggregator produces the unified event view.
type Aggregator interface {
	Aggregate(ctx context.Context, userID string, start, end time.Time, sources []models.Source) (*aggregate.Result, error)
}

// Detector runs conflict detection over an event set.
type Detector interface {
	Run(ctx context.Context, events []models.Event) ([]models.Conflict, error)
}

// Resolver resolves conflicts.
type Resolver interface {
	Resolve(ctx context.Context, conflictID string, strategy models.Strategy, resolvedBy string) error
	AutoResolve(ctx context.Context, conflicts []models.Conflict, strategy models.Strategy, resolvedBy string) (int, error)
}

// Syncer triggers sync runs.
type Syncer interface {
	SyncUserCalendars(ctx context.Context, userID string, source models.Source) []models.SyncResult
}

// RiskMonitor classifies new events and retains recent alerts.
type RiskMonitor interface {
	MonitorNewEvent(ctx context.Context, event *models.Event) []models.Alert
	RecentAlerts() []models.Alert
}

// Handler holds the dependencies of all HTTP handlers.
type Handler struct {
	store      Store
	aggregator Aggregator
	detector   Detector
	resolver   Resolver
	syncer     Syncer
	monitor    RiskMonitor
	registry   *adapter.Registry
	startTime  time.Time
}

// NewHandler wires the handler dependencies.
func NewHandler(store Store, aggregator Aggregator, detector Detector, resolver Resolver, syncer Syncer, monitor RiskMonitor, registry *adapter.Registry) *Handler {
	return &Handler{
		store:      store,
		aggregator: aggregator,
		detector:   detector,
		resolver:   resolver,
		syncer:     syncer,
		monitor:    monitor,
		registry:   registry,
		startTime:  time.Now(),
	}
}

// Health reports overall service health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	rw.Success(map[string]interface{}{
		"status":         "healthy",
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
		"sources":        h.registry.Sources(),
	})
}

// HealthLive is the liveness probe.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]string{"status": "alive"})
}

// HealthReady is the readiness probe: ready once the store answers.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if _, err := h.store.ListSyncStatuses(r.Context(), ""); err != nil {
		rw.Error(http.StatusServiceUnavailable, ErrCodeStorageError, "store not ready")
		return
	}
	rw.Success(map[string]string{"status": "ready"})
}

// RecentAlerts returns the monitor's retained alerts, newest first.
func (h *Handler) RecentAlerts(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(h.monitor.RecentAlerts())
}
