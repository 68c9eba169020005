// Horologium - Multi-Source Calendar Aggregation and Conflict Resolution
// Copyright 2026 Horologium Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/horologium/horologium

package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/horologium/horologium/internal/connection"
	"github.com/horologium/horologium/internal/logging"
	"github.com/horologium/horologium/internal/models"
	"github.com/horologium/horologium/internal/store"
)

// ListConnections lists connections, optionally for one user (?user_id=).
// Credential payloads are omitted from the listing.
func (h *Handler) ListConnections(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	conns, err := h.store.ListConnections(r.Context(), r.URL.Query().Get("user_id"))
	if err != nil {
		rw.StorageError(err)
		return
	}
	for i := range conns {
		conns[i].Config = nil
	}
	rw.Success(conns)
}

// UpsertConnection creates or replaces one user's connection to a source.
// The provider config is validated before anything is stored; no network
// call happens on this path.
func (h *Handler) UpsertConnection(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	userID := chi.URLParam(r, "userID")
	source := models.Source(chi.URLParam(r, "source"))

	var req upsertConnectionRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}

	now := time.Now().UTC()
	rec := &connection.Record{
		UserID:      userID,
		Source:      source,
		Direction:   connection.SyncDirection(req.Direction),
		SyncEnabled: req.SyncEnabled,
		Config:      req.Config,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if existing, err := h.store.GetConnection(r.Context(), userID, source); err == nil {
		rec.CreatedAt = existing.CreatedAt
	}

	msgs, err := connection.ValidateRecord(rec)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if len(msgs) > 0 {
		rw.ValidationError("invalid connection config", msgs)
		return
	}

	if err := h.store.PutConnection(r.Context(), rec); err != nil {
		rw.StorageError(err)
		return
	}

	rec.Config = nil
	rw.Created(rec)
}

// DeleteConnection removes a connection and tells the adapter to drop
// any provider-side state. The adapter call is best-effort: the local
// record is gone either way.
func (h *Handler) DeleteConnection(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	userID := chi.URLParam(r, "userID")
	source := models.Source(chi.URLParam(r, "source"))

	if err := h.store.DeleteConnection(r.Context(), userID, source); err != nil {
		rw.StorageError(err)
		return
	}

	if a := h.registry.Get(source); a != nil {
		if err := a.Disconnect(r.Context(), userID); err != nil {
			logging.Ctx(r.Context()).Warn().
				Err(err).
				Str("source", string(source)).
				Msg("Provider-side disconnect failed")
		}
	}

	rw.NoContent()
}

// TestConnection validates a stored connection's config and probes the
// source with an authentication call.
func (h *Handler) TestConnection(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	userID := chi.URLParam(r, "userID")
	source := models.Source(chi.URLParam(r, "source"))

	rec, err := h.store.GetConnection(r.Context(), userID, source)
	if errors.Is(err, store.ErrConnectionNotFound) {
		rw.NotFound("connection not found")
		return
	}
	if err != nil {
		rw.StorageError(err)
		return
	}

	msgs, err := connection.ValidateRecord(rec)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if len(msgs) > 0 {
		rw.ValidationError("invalid connection config", msgs)
		return
	}

	a := h.registry.Get(source)
	if a == nil {
		rw.BadRequest("source not enabled on this server")
		return
	}

	token, err := a.Authenticate(r.Context(), userID)
	if err != nil {
		rw.Success(map[string]interface{}{
			"ok":    false,
			"error": err.Error(),
		})
		return
	}

	resp := map[string]interface{}{"ok": true}
	// An auth URL instead of a token means the OAuth grant is pending.
	if strings.HasPrefix(token, "https://") || strings.HasPrefix(token, "http://") {
		resp["auth_url"] = token
	}
	rw.Success(resp)
}
