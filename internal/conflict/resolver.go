// Horologium - Multi-Source Calendar Aggregation and Conflict Resolution
// Copyright 2026 Horologium Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/horologium/horologium

package conflict

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/horologium/horologium/internal/logging"
	"github.com/horologium/horologium/internal/metrics"
	"github.com/horologium/horologium/internal/models"
	"github.com/horologium/horologium/internal/store"
)

// Domain errors surfaced to resolver callers.
var (
	// ErrConflictNotFound reports an unknown conflict id.
	ErrConflictNotFound = errors.New("conflict not found")

	// ErrAlreadyResolved reports an attempt to re-resolve with a
	// different strategy. Re-resolving with the same strategy is a no-op.
	ErrAlreadyResolved = errors.New("conflict already resolved")

	// ErrInvalidStrategy reports an unknown resolution strategy.
	ErrInvalidStrategy = errors.New("invalid resolution strategy")

	// errSameResolution signals the no-op re-resolve path internally.
	errSameResolution = errors.New("same resolution")
)

// ResolverStore is the slice of persistence the resolver needs. The
// update is transactional: a domain error from the mutation aborts the
// write.
type ResolverStore interface {
	GetConflict(ctx context.Context, id string) (*models.Conflict, error)
	UpdateConflict(ctx context.Context, id string, mutate func(*models.Conflict) error) error
}

// Resolver applies resolution strategies to conflicts and records the
// decision. It owns only the resolved* fields of a conflict.
type Resolver struct {
	store ResolverStore
	now   func() time.Time
}

// NewResolver creates a resolver. now may be nil outside of tests.
func NewResolver(store ResolverStore, now func() time.Time) *Resolver {
	if now == nil {
		now = time.Now
	}
	return &Resolver{store: store, now: now}
}

// Resolve marks a conflict resolved with the given strategy, stamping
// who and when. Resolution is final: a second call with a different
// strategy fails with ErrAlreadyResolved; with the same strategy it is a
// no-op. A persistence failure here is fatal to this write and reported,
// so the caller never believes an unrecorded resolution took effect.
func (r *Resolver) Resolve(ctx context.Context, conflictID string, strategy models.Strategy, resolvedBy string) error {
	if !strategy.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStrategy, strategy)
	}

	err := r.store.UpdateConflict(ctx, conflictID, func(c *models.Conflict) error {
		if c.Resolved() {
			if c.Resolution == strategy {
				return errSameResolution
			}
			return ErrAlreadyResolved
		}
		resolvedAt := r.now().UTC()
		c.ResolvedAt = &resolvedAt
		c.Resolution = strategy
		c.ResolvedBy = resolvedBy
		return nil
	})

	switch {
	case errors.Is(err, errSameResolution):
		return nil
	case errors.Is(err, store.ErrConflictNotFound):
		// Translate the persistence sentinel so callers match on the
		// domain error regardless of which store backs the resolver.
		return fmt.Errorf("%w: %s", ErrConflictNotFound, conflictID)
	case err != nil:
		return err
	}

	metrics.ConflictsResolved.WithLabelValues(string(strategy)).Inc()
	logging.Info().
		Str("conflict_id", conflictID).
		Str("strategy", string(strategy)).
		Str("resolved_by", resolvedBy).
		Msg("Conflict resolved")
	return nil
}

// ApplyResolution computes which of the conflict's events win under the
// strategy. Pure: no persistence side effect, callers decide how to act
// on the winning set.
//
//   - local_wins keeps internal-source events only
//   - remote_wins keeps non-internal events only
//   - newest_wins keeps the single most recently synced event
//   - manual returns all events unchanged for human adjudication
//
// Strategies that would eliminate every event (local_wins with no
// internal member, remote_wins with none remote) fall back to returning
// all events; losing information is worse than leaving the pick to a
// human.
func ApplyResolution(conflict *models.Conflict, events []models.Event, strategy models.Strategy) []models.Event {
	switch strategy {
	case models.StrategyLocalWins:
		return keepWhere(events, func(e *models.Event) bool {
			return e.Source == models.SourceInternal
		})
	case models.StrategyRemoteWins:
		return keepWhere(events, func(e *models.Event) bool {
			return e.Source != models.SourceInternal
		})
	case models.StrategyNewestWins:
		if len(events) == 0 {
			return events
		}
		newest := 0
		for i := 1; i < len(events); i++ {
			if events[i].EffectiveSyncTime().After(events[newest].EffectiveSyncTime()) {
				newest = i
			}
		}
		return []models.Event{events[newest]}
	default: // manual and anything unknown
		return events
	}
}

func keepWhere(events []models.Event, keep func(*models.Event) bool) []models.Event {
	var out []models.Event
	for i := range events {
		if keep(&events[i]) {
			out = append(out, events[i])
		}
	}
	if len(out) == 0 {
		return events
	}
	return out
}

// AutoResolve applies the strategy to every conflict of low or medium
// severity and returns how many were resolved. High and critical
// conflicts are never auto-resolved: an automatic decision on a
// high-severity collision risks silently canceling a real commitment.
// Individual failures are logged and skipped, not fatal to the batch.
func (r *Resolver) AutoResolve(ctx context.Context, conflicts []models.Conflict, strategy models.Strategy, resolvedBy string) (int, error) {
	if !strategy.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidStrategy, strategy)
	}

	resolved := 0
	for i := range conflicts {
		c := &conflicts[i]
		if c.Resolved() {
			continue
		}
		if c.Severity.AtLeast(models.SeverityHigh) {
			logging.Debug().
				Str("conflict_id", c.ID).
				Str("severity", string(c.Severity)).
				Msg("Skipping auto-resolve for high-severity conflict")
			continue
		}
		if err := r.Resolve(ctx, c.ID, strategy, resolvedBy); err != nil {
			logging.Warn().Err(err).Str("conflict_id", c.ID).Msg("Auto-resolve failed for conflict")
			continue
		}
		resolved++
	}
	return resolved, nil
}
