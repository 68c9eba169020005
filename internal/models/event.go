// Horologium - Multi-Source Calendar Aggregation and Conflict Resolution
// Copyright 2026 Horologium Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/horologium/horologium

// Package models defines the canonical data shapes shared across the
// aggregation, conflict detection, and sync orchestration components.
package models

import (
	"strings"
	"time"
)

// Source identifies an external system of record for scheduling data.
type Source string

// Known sources. Internal is the system's own operations calendar; all
// other sources are remote.
const (
	SourceInternal    Source = "internal"
	SourceBookingLink Source = "booking-link"
	SourceOAuth       Source = "oauth-calendar"
	SourceCRM         Source = "crm-calendar"
)

// AllSources lists every supported source in a stable order.
var AllSources = []Source{SourceInternal, SourceBookingLink, SourceOAuth, SourceCRM}

// Valid reports whether s is one of the known sources.
func (s Source) Valid() bool {
	switch s {
	case SourceInternal, SourceBookingLink, SourceOAuth, SourceCRM:
		return true
	}
	return false
}

// EventSyncStatus tracks where an event stands relative to its source.
type EventSyncStatus string

const (
	EventSynced   EventSyncStatus = "synced"
	EventPending  EventSyncStatus = "pending"
	EventConflict EventSyncStatus = "conflict"
)

// Attendee is a participant on an event. Email is stored lower-cased so
// attendee comparison across sources is case-insensitive.
type Attendee struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// EventMetadata carries sync bookkeeping attached to an event.
type EventMetadata struct {
	OwnerUserID  string          `json:"owner_user_id,omitempty"`
	SyncStatus   EventSyncStatus `json:"sync_status"`
	LastSyncedAt *time.Time      `json:"last_synced_at,omitempty"`
}

// Event is the canonical, source-agnostic calendar event. Once produced by
// the normalizer it is treated as immutable. The pair (Source, SourceID) is
// globally unique: two events sharing the pair are the same underlying
// booking and must never both survive deduplication.
type Event struct {
	ID        string        `json:"id"`
	Source    Source        `json:"source"`
	SourceID  string        `json:"source_id"`
	Title     string        `json:"title"`
	StartTime time.Time     `json:"start_time"` // UTC
	EndTime   time.Time     `json:"end_time"`   // UTC, strictly after StartTime
	Location  string        `json:"location,omitempty"`
	Attendees []Attendee    `json:"attendees,omitempty"`
	Metadata  EventMetadata `json:"metadata"`
	AllDay    bool          `json:"all_day"`
}

// Duration returns the event length.
func (e *Event) Duration() time.Duration {
	return e.EndTime.Sub(e.StartTime)
}

// Overlaps reports whether two events share any span of time.
// Back-to-back events (e.End == other.Start) do not overlap.
func (e *Event) Overlaps(other *Event) bool {
	return e.StartTime.Before(other.EndTime) && other.StartTime.Before(e.EndTime)
}

// PrimaryAttendee returns the lower-cased email of the first attendee, or
// the empty string if the event has none. Used as the dedup key component.
func (e *Event) PrimaryAttendee() string {
	if len(e.Attendees) == 0 {
		return ""
	}
	return strings.ToLower(e.Attendees[0].Email)
}

// HasAttendee reports whether the event lists the given email
// (case-insensitive).
func (e *Event) HasAttendee(email string) bool {
	email = strings.ToLower(email)
	for _, a := range e.Attendees {
		if strings.ToLower(a.Email) == email {
			return true
		}
	}
	return false
}

// SharesAttendee reports whether any attendee appears on both events.
func (e *Event) SharesAttendee(other *Event) bool {
	for _, a := range e.Attendees {
		if other.HasAttendee(a.Email) {
			return true
		}
	}
	return false
}

// NormalizedLocation returns the location trimmed and lower-cased for
// resource comparison. Empty locations never match each other.
func (e *Event) NormalizedLocation() string {
	return strings.ToLower(strings.TrimSpace(e.Location))
}

// EffectiveSyncTime is the timestamp used by the newest_wins resolution
// strategy: LastSyncedAt when present, StartTime otherwise.
func (e *Event) EffectiveSyncTime() time.Time {
	if e.Metadata.LastSyncedAt != nil {
		return *e.Metadata.LastSyncedAt
	}
	return e.StartTime
}
