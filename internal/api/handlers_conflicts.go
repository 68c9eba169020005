// Horologium - Multi-Source Calendar Aggregation and Conflict Resolution
// Copyright 2026 Horologium Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/horologium/horologium

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/horologium/horologium/internal/conflict"
	"github.com/horologium/horologium/internal/models"
)

// ListConflicts lists conflicts, optionally only unresolved ones
// (?unresolved=true).
func (h *Handler) ListConflicts(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	unresolvedOnly := r.URL.Query().Get("unresolved") == "true"
	conflicts, err := h.store.ListConflicts(r.Context(), unresolvedOnly)
	if err != nil {
		rw.StorageError(err)
		return
	}
	rw.Success(conflicts)
}

// ResolveConflict resolves one conflict with the requested strategy.
// Resolution is final: re-resolving with a different strategy is a 409.
func (h *Handler) ResolveConflict(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	conflictID := chi.URLParam(r, "conflictID")

	var req resolveConflictRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}

	err := h.resolver.Resolve(r.Context(), conflictID, models.Strategy(req.Strategy), req.ResolvedBy)
	switch {
	case errors.Is(err, conflict.ErrConflictNotFound):
		rw.NotFound("conflict not found")
		return
	case errors.Is(err, conflict.ErrAlreadyResolved):
		rw.Conflict("conflict already resolved with a different strategy")
		return
	case errors.Is(err, conflict.ErrInvalidStrategy):
		rw.BadRequest(err.Error())
		return
	case err != nil:
		rw.StorageError(err)
		return
	}

	rw.Success(map[string]string{
		"conflict_id": conflictID,
		"strategy":    req.Strategy,
	})
}

// AutoResolveConflicts applies a strategy to every unresolved low and
// medium severity conflict and reports how many were resolved.
func (h *Handler) AutoResolveConflicts(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req autoResolveRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}

	conflicts, err := h.store.ListConflicts(r.Context(), true)
	if err != nil {
		rw.StorageError(err)
		return
	}

	resolved, err := h.resolver.AutoResolve(r.Context(), conflicts, models.Strategy(req.Strategy), req.ResolvedBy)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	rw.Success(map[string]int{"resolved_count": resolved})
}
