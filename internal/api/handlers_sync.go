// Horologium - Multi-Source Calendar Aggregation and Conflict Resolution
// Copyright 2026 Horologium Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/horologium/horologium

package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/horologium/horologium/internal/models"
)

// TriggerSync runs an immediate sync for one user, optionally limited to
// a single source (?source=). The per-source result list is returned as
// is; partial failure is a 200 with failed entries, not an error status.
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	userID := chi.URLParam(r, "userID")

	var source models.Source
	if raw := r.URL.Query().Get("source"); raw != "" {
		source = models.Source(raw)
		if !source.Valid() {
			rw.BadRequest("unknown source " + strconv.Quote(raw))
			return
		}
	}

	results := h.syncer.SyncUserCalendars(r.Context(), userID, source)
	rw.Success(results)
}

// SyncStatuses lists sync status rows, optionally for one user
// (?user_id=).
func (h *Handler) SyncStatuses(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	statuses, err := h.store.ListSyncStatuses(r.Context(), r.URL.Query().Get("user_id"))
	if err != nil {
		rw.StorageError(err)
		return
	}
	rw.Success(statuses)
}

// SyncLogs lists the most recent sync log rows (?limit=, default 50).
func (h *Handler) SyncLogs(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			rw.BadRequest("limit must be a positive integer")
			return
		}
		limit = n
	}

	logs, err := h.store.ListSyncLogs(r.Context(), limit)
	if err != nil {
		rw.StorageError(err)
		return
	}
	rw.Success(logs)
}
