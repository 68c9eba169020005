// Horologium - Multi-Source Calendar Aggregation and Conflict Resolution
// Copyright 2026 Horologium Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/horologium/horologium

// Package metrics registers the Prometheus collectors instrumenting
// adapter calls, sync runs, conflict detection, and the API surface.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Adapter metrics
	AdapterCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "adapter_call_duration_seconds",
			Help:    "Duration of source adapter calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source", "operation"},
	)

	AdapterCallErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adapter_call_errors_total",
			Help: "Total number of source adapter call failures",
		},
		[]string{"source", "operation", "kind"},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "adapter_circuit_breaker_state",
			Help: "Circuit breaker state per source (0=closed, 1=half-open, 2=open)",
		},
		[]string{"source"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adapter_circuit_breaker_transitions_total",
			Help: "Total circuit breaker state transitions",
		},
		[]string{"source", "from", "to"},
	)

	// Sync metrics
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_runs_total",
			Help: "Total sync runs by source and outcome",
		},
		[]string{"source", "status"},
	)

	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sync_duration_seconds",
			Help:    "Duration of per-source sync runs in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"source"},
	)

	SyncEventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_events_processed_total",
			Help: "Total events processed by sync runs",
		},
		[]string{"source", "operation"},
	)

	// Aggregation metrics
	EventsAggregated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "events_aggregated_total",
			Help: "Total events returned by aggregation calls",
		},
	)

	EventsDeduplicated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "events_deduplicated_total",
			Help: "Total events merged away by deduplication",
		},
	)

	// Conflict metrics
	ConflictsDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conflicts_detected_total",
			Help: "Total conflicts detected by type and severity",
		},
		[]string{"type", "severity"},
	)

	ConflictsResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conflicts_resolved_total",
			Help: "Total conflicts resolved by strategy",
		},
		[]string{"strategy"},
	)

	// Realtime monitor metrics
	AlertsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monitor_alerts_total",
			Help: "Total realtime alerts emitted by type and severity",
		},
		[]string{"type", "severity"},
	)

	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)
)

// ObserveAdapterCall records one adapter call's duration and, on failure,
// its error class.
func ObserveAdapterCall(source, operation string, start time.Time, errKind string) {
	AdapterCallDuration.WithLabelValues(source, operation).Observe(time.Since(start).Seconds())
	if errKind != "" {
		AdapterCallErrors.WithLabelValues(source, operation, errKind).Inc()
	}
}

// ObserveAPIRequest records one API request.
func ObserveAPIRequest(method, endpoint string, status int, start time.Time) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(time.Since(start).Seconds())
}
