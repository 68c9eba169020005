// Horologium - Multi-Source Calendar Aggregation and Conflict Resolution
// Copyright 2026 Horologium Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/horologium/horologium

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/horologium/horologium/internal/config"
)

// NewRouter builds the chi router with the full middleware stack and
// every route.
func NewRouter(handler *Handler, cfg config.APIConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(CORS(cfg))
	r.Use(RequestLogging())

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Get("/", handler.Health)
		r.Get("/live", handler.HealthLive)
		r.Get("/ready", handler.HealthReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(RateLimit(cfg))
		r.Use(PrometheusMetrics())

		r.Get("/calendar/unified", handler.UnifiedView)
		r.Post("/events", handler.CreateEvent)
		r.Get("/alerts/recent", handler.RecentAlerts)

		r.Route("/conflicts", func(r chi.Router) {
			r.Get("/", handler.ListConflicts)
			r.Post("/auto-resolve", handler.AutoResolveConflicts)
			r.Post("/{conflictID}/resolve", handler.ResolveConflict)
		})

		r.Route("/sync", func(r chi.Router) {
			r.Get("/status", handler.SyncStatuses)
			r.Get("/logs", handler.SyncLogs)
			r.Post("/{userID}", handler.TriggerSync)
		})

		r.Route("/connections", func(r chi.Router) {
			r.Get("/", handler.ListConnections)
			r.Put("/{userID}/{source}", handler.UpsertConnection)
			r.Delete("/{userID}/{source}", handler.DeleteConnection)
			r.Post("/{userID}/{source}/test", handler.TestConnection)
		})
	})

	return r
}
