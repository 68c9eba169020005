// Horologium - Multi-Source Calendar Aggregation and Conflict Resolution
// Copyright 2026 Horologium Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/horologium/horologium

// Package normalize converts provider-native raw event records into the
// canonical Event shape. Normalization is pure: no I/O, no clock reads
// beyond parsing timestamps carried in the record itself.
package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/horologium/horologium/internal/adapter"
	"github.com/horologium/horologium/internal/models"
)

const dateOnlyLayout = "2006-01-02"

// MalformedRecordError reports a raw record that cannot become a valid
// Event. Callers drop such records with a logged warning; they never
// propagate into the aggregation path.
type MalformedRecordError struct {
	Source models.Source
	Field  string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed %s record: %s: %s", e.Source, e.Field, e.Reason)
}

func malformed(source models.Source, field, reason string) error {
	return &MalformedRecordError{Source: source, Field: field, Reason: reason}
}

// Normalize maps one raw record from the given source into a canonical
// Event. Required fields are title, start, and end; end must be strictly
// after start. All timestamps come out in UTC.
func Normalize(source models.Source, raw adapter.RawEvent) (models.Event, error) {
	if !source.Valid() {
		return models.Event{}, malformed(source, "source", "unknown source")
	}
	if raw.ID == "" {
		return models.Event{}, malformed(source, "id", "missing provider identifier")
	}
	if strings.TrimSpace(raw.Title) == "" {
		return models.Event{}, malformed(source, "title", "missing")
	}
	if raw.Start == "" {
		return models.Event{}, malformed(source, "start", "missing")
	}
	if raw.End == "" {
		return models.Event{}, malformed(source, "end", "missing")
	}

	start, startAllDay, err := parseEventTime(source, "start", raw.Start)
	if err != nil {
		return models.Event{}, err
	}
	end, endAllDay, err := parseEventTime(source, "end", raw.End)
	if err != nil {
		return models.Event{}, err
	}

	allDay := startAllDay || endAllDay
	if allDay && end.Equal(start) {
		// Single-date all-day events arrive with identical date fields.
		end = start.Add(24 * time.Hour)
	}
	if !end.After(start) {
		return models.Event{}, malformed(source, "end", "not after start")
	}

	attendees := make([]models.Attendee, 0, len(raw.Attendees))
	for _, ra := range raw.Attendees {
		email := strings.ToLower(strings.TrimSpace(ra.Email))
		if email == "" {
			continue
		}
		attendees = append(attendees, models.Attendee{Email: email, Name: ra.Name})
	}

	event := models.Event{
		ID:        EventID(source, raw.ID),
		Source:    source,
		SourceID:  raw.ID,
		Title:     strings.TrimSpace(raw.Title),
		StartTime: start,
		EndTime:   end,
		Location:  strings.TrimSpace(raw.Location),
		Attendees: attendees,
		AllDay:    allDay,
		Metadata: models.EventMetadata{
			OwnerUserID: raw.Owner,
			SyncStatus:  models.EventPending,
		},
	}

	if raw.Synced {
		event.Metadata.SyncStatus = models.EventSynced
	}
	if raw.UpdatedAt != "" {
		if t, err := time.Parse(time.RFC3339, raw.UpdatedAt); err == nil {
			t = t.UTC()
			event.Metadata.LastSyncedAt = &t
		}
	}

	return event, nil
}

// EventID derives the canonical event identifier from the (source,
// sourceID) pair. Deterministic IDs make repeated normalization of the
// same booking idempotent and let the store upsert by key.
func EventID(source models.Source, sourceID string) string {
	return fmt.Sprintf("%s:%s", source, sourceID)
}

// parseEventTime interprets a provider-formatted time field. Calendar
// sources (internal ICS, OAuth calendars) emit bare dates for all-day
// events; the booking-link and CRM APIs always emit timed RFC3339 values,
// so a bare date from them is a malformed record rather than an all-day
// marker.
func parseEventTime(source models.Source, field, value string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), false, nil
	}

	switch source {
	case models.SourceInternal, models.SourceOAuth:
		if t, err := time.ParseInLocation(dateOnlyLayout, value, time.UTC); err == nil {
			return t, true, nil
		}
	}

	return time.Time{}, false, malformed(source, field, fmt.Sprintf("unparseable time %q", value))
}
