// Horologium - Multi-Source Calendar Aggregation and Conflict Resolution
// Copyright 2026 Horologium Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/horologium/horologium

package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/horologium/horologium/internal/aggregate"
	"github.com/horologium/horologium/internal/logging"
	"github.com/horologium/horologium/internal/models"
)

// unifiedViewResponse is the payload of the unified calendar endpoint.
type unifiedViewResponse struct {
	Events        []models.Event          `json:"events"`
	ConflictCount int                     `json:"conflict_count"`
	DateRange     dateRange               `json:"date_range"`
	SourceErrors  []aggregate.SourceError `json:"source_errors,omitempty"`
	Deduplicated  int                     `json:"deduplicated"`
}

type dateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// UnifiedView aggregates all requested sources over a window and runs
// conflict detection on the merged set. Partial source failures are
// reported in the payload, not as an HTTP error.
func (h *Handler) UnifiedView(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	start, end, err := parseTimeRange(r)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	userID := r.URL.Query().Get("user_id")
	sources, err := parseSources(r.URL.Query().Get("sources"))
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	result, err := h.aggregator.Aggregate(r.Context(), userID, start, end, sources)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	conflicts, err := h.detector.Run(r.Context(), result.Events)
	if err != nil {
		// Detection succeeded in memory; only persistence failed. The
		// view is still correct.
		logging.Ctx(r.Context()).Warn().Err(err).Msg("Conflict persistence failed during unified view")
	}

	rw.Success(unifiedViewResponse{
		Events:        result.Events,
		ConflictCount: len(conflicts),
		DateRange:     dateRange{Start: start.UTC(), End: end.UTC()},
		SourceErrors:  result.SourceErrors,
		Deduplicated:  result.Deduplicated,
	})
}

// CreateEvent creates an internal calendar event and runs the realtime
// risk classifier against it. Alerts are returned alongside the event;
// they warn, they never block creation.
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req createEventRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}

	start, _ := time.Parse(time.RFC3339, req.Start)
	end, _ := time.Parse(time.RFC3339, req.End)
	if !end.After(start) {
		rw.BadRequest("end must be after start")
		return
	}

	sourceID := uuid.NewString()
	event := models.Event{
		ID:        string(models.SourceInternal) + ":" + sourceID,
		Source:    models.SourceInternal,
		SourceID:  sourceID,
		Title:     req.Title,
		StartTime: start.UTC(),
		EndTime:   end.UTC(),
		Location:  req.Location,
		Metadata: models.EventMetadata{
			OwnerUserID: req.UserID,
			SyncStatus:  models.EventPending,
		},
	}
	for _, a := range req.Attendees {
		event.Attendees = append(event.Attendees, models.Attendee{
			Email: strings.ToLower(a.Email),
			Name:  a.Name,
		})
	}

	if err := h.store.UpsertEvents(r.Context(), []models.Event{event}); err != nil {
		rw.StorageError(err)
		return
	}

	alerts := h.monitor.MonitorNewEvent(r.Context(), &event)

	rw.Created(map[string]interface{}{
		"event":  event,
		"alerts": alerts,
	})
}

// parseSources parses a comma-separated sources filter.
func parseSources(raw string) ([]models.Source, error) {
	if raw == "" {
		return nil, nil
	}
	var sources []models.Source
	for _, part := range strings.Split(raw, ",") {
		src := models.Source(strings.TrimSpace(part))
		if !src.Valid() {
			return nil, fmt.Errorf("unknown source %q", src)
		}
		sources = append(sources, src)
	}
	return sources, nil
}
