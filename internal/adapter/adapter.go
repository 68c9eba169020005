// Horologium - Multi-Source Calendar Aggregation and Conflict Resolution
// Copyright 2026 Horologium Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/horologium/horologium

// Package adapter defines the source adapter contract and the provider
// clients for each external scheduling system. Every adapter call is
// bounded by the caller's context; adapters never block indefinitely.
package adapter

import (
	"context"

	"github.com/horologium/horologium/internal/models"
)

// RawAttendee is a participant as reported by a provider.
type RawAttendee struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// RawEvent is a provider-native event record before normalization.
// Start and End are provider-formatted strings: RFC3339 for timed events,
// a bare date (2006-01-02) for all-day events. The normalizer owns the
// interpretation rules per source.
type RawEvent struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Start     string        `json:"start"`
	End       string        `json:"end"`
	Location  string        `json:"location,omitempty"`
	Attendees []RawAttendee `json:"attendees,omitempty"`
	Owner     string        `json:"owner,omitempty"`
	UpdatedAt string        `json:"updated_at,omitempty"`
	Synced    bool          `json:"synced,omitempty"`
}

// PushResult summarizes one push call.
type PushResult struct {
	Success bool     `json:"success"`
	Synced  int      `json:"synced"`
	Errors  []string `json:"errors,omitempty"`
}

// SourceAdapter is the contract every external scheduling system client
// implements. Pull returning an empty slice means "no data"; source
// trouble is always reported through a typed *Error so the orchestrator
// can tell the two apart.
type SourceAdapter interface {
	// Source identifies the system this adapter talks to.
	Source() models.Source

	// Pull fetches raw events in [start, end) for a user.
	Pull(ctx context.Context, userID string, start, end string) ([]RawEvent, error)

	// Push writes events back to the source. Adapters for read-only
	// sources return ErrPushNotSupported.
	Push(ctx context.Context, userID string, events []models.Event) (*PushResult, error)

	// Authenticate verifies credentials, returning a token or an
	// authorization URL the user must visit.
	Authenticate(ctx context.Context, userID string) (string, error)

	// Disconnect tears down the user's connection to the source.
	Disconnect(ctx context.Context, userID string) error
}

// Registry holds the enabled adapters keyed by source.
type Registry struct {
	adapters map[models.Source]SourceAdapter
}

// NewRegistry builds a registry from the given adapters.
func NewRegistry(adapters ...SourceAdapter) *Registry {
	r := &Registry{adapters: make(map[models.Source]SourceAdapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Source()] = a
	}
	return r
}

// Get returns the adapter for a source, or nil when the source is not
// enabled.
func (r *Registry) Get(source models.Source) SourceAdapter {
	return r.adapters[source]
}

// Sources returns the enabled sources in the canonical order.
func (r *Registry) Sources() []models.Source {
	out := make([]models.Source, 0, len(r.adapters))
	for _, s := range models.AllSources {
		if _, ok := r.adapters[s]; ok {
			out = append(out, s)
		}
	}
	return out
}

// Len returns the number of enabled adapters.
func (r *Registry) Len() int { return len(r.adapters) }
