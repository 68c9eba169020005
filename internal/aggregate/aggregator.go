// Horologium - Multi-Source Calendar Aggregation and Conflict Resolution
// Copyright 2026 Horologium Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/horologium/horologium

// Package aggregate merges events from all enabled source adapters into
// one deduplicated, time-ordered view. Adapter failures are isolated per
// source: the caller always gets the events the healthy sources produced,
// plus an explicit per-source error list.
package aggregate

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/horologium/horologium/internal/adapter"
	"github.com/horologium/horologium/internal/logging"
	"github.com/horologium/horologium/internal/metrics"
	"github.com/horologium/horologium/internal/models"
	"github.com/horologium/horologium/internal/normalize"
)

// dedupWindow is the rounding granularity of the heuristic dedup key.
// Events starting within the same 5-minute bucket with the same primary
// attendee are treated as one booking seen through two sources.
const dedupWindow = 5 * time.Minute

// EventStore is the slice of persistence the aggregator needs.
type EventStore interface {
	UpsertEvents(ctx context.Context, events []models.Event) error
}

// SourceError reports one source that failed during aggregation.
type SourceError struct {
	Source models.Source `json:"source"`
	Error  string        `json:"error"`
}

// Result is the outcome of one aggregation call.
type Result struct {
	Events       []models.Event `json:"events"`
	SourceErrors []SourceError  `json:"source_errors,omitempty"`
	Deduplicated int            `json:"deduplicated"`
	Dropped      int            `json:"dropped"`
}

// Aggregator orchestrates pulls across the adapter registry.
type Aggregator struct {
	registry *adapter.Registry
	store    EventStore
	timeout  time.Duration
}

// New creates an aggregator. timeout bounds each individual adapter pull.
func New(registry *adapter.Registry, store EventStore, timeout time.Duration) *Aggregator {
	return &Aggregator{registry: registry, store: store, timeout: timeout}
}

// pullOutcome carries one source's pull result across the fan-in channel.
type pullOutcome struct {
	source models.Source
	raw    []adapter.RawEvent
	err    error
}

// Aggregate pulls the window [start, end) from every requested source
// concurrently, normalizes, deduplicates, persists best-effort, and
// returns the merged set sorted ascending by start time. A failing
// source contributes a SourceError entry instead of aborting the call.
func (a *Aggregator) Aggregate(ctx context.Context, userID string, start, end time.Time, sources []models.Source) (*Result, error) {
	if !end.After(start) {
		return nil, errors.New("aggregate: end must be after start")
	}

	requested := a.resolveSources(sources)
	if len(requested) == 0 {
		return &Result{Events: []models.Event{}}, nil
	}

	startStr := start.UTC().Format(time.RFC3339)
	endStr := end.UTC().Format(time.RFC3339)

	outcomes := make(chan pullOutcome, len(requested))
	for _, src := range requested {
		go func(src models.Source) {
			pullCtx, cancel := context.WithTimeout(ctx, a.timeout)
			defer cancel()

			began := time.Now()
			raw, err := a.registry.Get(src).Pull(pullCtx, userID, startStr, endStr)
			errKind := ""
			if err != nil {
				errKind = string(adapter.KindOf(err))
			}
			metrics.ObserveAdapterCall(string(src), "pull", began, errKind)
			outcomes <- pullOutcome{source: src, raw: raw, err: err}
		}(src)
	}

	result := &Result{}
	var normalized []models.Event
	for range requested {
		outcome := <-outcomes
		if outcome.err != nil {
			logging.Warn().
				Err(outcome.err).
				Str("source", string(outcome.source)).
				Msg("Source pull failed, excluding from aggregation")
			result.SourceErrors = append(result.SourceErrors, SourceError{
				Source: outcome.source,
				Error:  outcome.err.Error(),
			})
			continue
		}
		for _, raw := range outcome.raw {
			event, err := normalize.Normalize(outcome.source, raw)
			if err != nil {
				result.Dropped++
				logging.Warn().
					Err(err).
					Str("source", string(outcome.source)).
					Str("source_id", raw.ID).
					Msg("Dropping malformed record")
				continue
			}
			normalized = append(normalized, event)
		}
	}

	sort.Slice(result.SourceErrors, func(i, j int) bool {
		return result.SourceErrors[i].Source < result.SourceErrors[j].Source
	})

	merged, deduped := dedupe(normalized)
	result.Events = merged
	result.Deduplicated = deduped

	metrics.EventsAggregated.Add(float64(len(merged)))
	metrics.EventsDeduplicated.Add(float64(deduped))

	// Best-effort write-through: the caller gets the freshly aggregated
	// set even when persistence fails.
	if a.store != nil && len(merged) > 0 {
		if err := a.store.UpsertEvents(ctx, merged); err != nil {
			logging.Error().Err(err).Int("events", len(merged)).Msg("Event persistence failed, returning in-memory result")
		}
	}

	return result, nil
}

// resolveSources intersects the requested sources with the enabled ones;
// an empty request means every enabled source.
func (a *Aggregator) resolveSources(sources []models.Source) []models.Source {
	enabled := a.registry.Sources()
	if len(sources) == 0 {
		return enabled
	}
	var out []models.Source
	for _, src := range enabled {
		for _, want := range sources {
			if src == want {
				out = append(out, src)
				break
			}
		}
	}
	return out
}

// dedupKey is the heuristic merge key: rounded start and end plus the
// primary attendee. It accepts false negatives (distinct back-to-back
// meetings with the same lead attendee can collide); cross-source
// duplicates it misses are the conflict detector's job.
type dedupKey struct {
	start    int64
	end      int64
	attendee string
}

// dedupe merges events sharing an exact (source, sourceID) pair or the
// heuristic key, then sorts the survivors by start time. When two events
// collide, the one with syncStatus synced wins; ties go to the event with
// more attendees populated.
func dedupe(events []models.Event) ([]models.Event, int) {
	byIdentity := make(map[string]models.Event, len(events))
	order := make([]string, 0, len(events))
	deduped := 0

	// Exact identity first: same (source, sourceID) is the same booking,
	// never two rows.
	for _, event := range events {
		existing, ok := byIdentity[event.ID]
		if !ok {
			byIdentity[event.ID] = event
			order = append(order, event.ID)
			continue
		}
		deduped++
		byIdentity[event.ID] = preferEvent(existing, event)
	}

	byKey := make(map[dedupKey]string, len(byIdentity))
	merged := make([]models.Event, 0, len(byIdentity))
	for _, id := range order {
		event := byIdentity[id]
		key := dedupKey{
			start:    event.StartTime.Truncate(dedupWindow).Unix(),
			end:      event.EndTime.Truncate(dedupWindow).Unix(),
			attendee: event.PrimaryAttendee(),
		}
		winnerID, ok := byKey[key]
		if !ok {
			byKey[key] = id
			merged = append(merged, event)
			continue
		}
		deduped++
		for i := range merged {
			if merged[i].ID == winnerID {
				winner := preferEvent(merged[i], event)
				merged[i] = winner
				byKey[key] = winner.ID
				break
			}
		}
	}

	sort.Slice(merged, func(i, j int) bool {
		if !merged[i].StartTime.Equal(merged[j].StartTime) {
			return merged[i].StartTime.Before(merged[j].StartTime)
		}
		return merged[i].ID < merged[j].ID
	})
	return merged, deduped
}

// preferEvent picks the survivor of a dedup collision: synced beats
// non-synced, then more attendees beats fewer, then the incumbent stays.
func preferEvent(a, b models.Event) models.Event {
	aSynced := a.Metadata.SyncStatus == models.EventSynced
	bSynced := b.Metadata.SyncStatus == models.EventSynced
	if aSynced != bSynced {
		if bSynced {
			return b
		}
		return a
	}
	if len(b.Attendees) > len(a.Attendees) {
		return b
	}
	return a
}
