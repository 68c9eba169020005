// Horologium - Multi-Source Calendar Aggregation and Conflict Resolution
// Copyright 2026 Horologium Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/horologium/horologium

// Package conflict detects and resolves scheduling conflicts between
// events from different sources. Detection is a pure batch computation:
// the same event set always yields the same conflict set, so re-running
// a pass over unchanged data is idempotent.
package conflict

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/horologium/horologium/internal/logging"
	"github.com/horologium/horologium/internal/metrics"
	"github.com/horologium/horologium/internal/models"
)

// duplicateStartWindow bounds how far apart two starts can be for the
// duplicate heuristic to consider them the same meeting.
const duplicateStartWindow = 5 * time.Minute

// titleSimilarityThreshold is the Jaccard word-similarity cutoff for the
// duplicate heuristic.
const titleSimilarityThreshold = 0.8

// ConflictStore is the slice of persistence the detector needs.
type ConflictStore interface {
	UpsertConflicts(ctx context.Context, conflicts []models.Conflict) error
}

// Detector finds conflicts in a pre-aggregated event set.
type Detector struct {
	store ConflictStore
	now   func() time.Time
}

// NewDetector creates a detector. now may be nil; it exists so tests can
// pin detection timestamps.
func NewDetector(store ConflictStore, now func() time.Time) *Detector {
	if now == nil {
		now = time.Now
	}
	return &Detector{store: store, now: now}
}

// Run detects conflicts in events and persists them. Persistence failure
// is returned to the caller but the detected set is still produced.
func (d *Detector) Run(ctx context.Context, events []models.Event) ([]models.Conflict, error) {
	conflicts := d.Detect(events)
	if len(conflicts) == 0 {
		return conflicts, nil
	}
	if d.store != nil {
		if err := d.store.UpsertConflicts(ctx, conflicts); err != nil {
			logging.Error().Err(err).Int("conflicts", len(conflicts)).Msg("Conflict persistence failed")
			return conflicts, err
		}
	}
	return conflicts, nil
}

// Detect is the pure detection pass: time-overlap and resource conflicts
// via a sweep over the start-sorted set, duplicates via the start-window
// heuristic. Events from the same source never conflict with each other;
// a same-source calendar is assumed internally consistent.
func (d *Detector) Detect(events []models.Event) []models.Conflict {
	sorted := make([]models.Event, len(events))
	copy(sorted, events)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].StartTime.Equal(sorted[j].StartTime) {
			return sorted[i].StartTime.Before(sorted[j].StartTime)
		}
		return sorted[i].ID < sorted[j].ID
	})

	detectedAt := d.now().UTC()
	var conflicts []models.Conflict

	// Sweep: once other.start >= event.end no later event can overlap,
	// so each inner scan stops early.
	for i := range sorted {
		for j := i + 1; j < len(sorted); j++ {
			if !sorted[j].StartTime.Before(sorted[i].EndTime) {
				break
			}
			if sorted[i].Source == sorted[j].Source {
				continue
			}
			if !sorted[i].Overlaps(&sorted[j]) {
				continue
			}

			// A shared location upgrades the overlap to a resource
			// conflict: double-booked rooms and assets are graded high
			// because they imply a physical collision, not just split
			// attention.
			if loc := sorted[i].NormalizedLocation(); loc != "" && loc == sorted[j].NormalizedLocation() {
				conflicts = append(conflicts, newConflict(
					models.ConflictResource, models.SeverityHigh, detectedAt,
					sorted[i].ID, sorted[j].ID))
				continue
			}

			conflicts = append(conflicts, newConflict(
				models.ConflictTimeOverlap,
				overlapSeverity(&sorted[i], &sorted[j]),
				detectedAt,
				sorted[i].ID, sorted[j].ID))
		}
	}

	conflicts = append(conflicts, d.detectDuplicates(sorted, detectedAt)...)

	for i := range conflicts {
		metrics.ConflictsDetected.WithLabelValues(string(conflicts[i].Type), string(conflicts[i].Severity)).Inc()
	}
	return conflicts
}

// detectDuplicates flags cross-source events starting within five minutes
// of each other whose titles are near-identical or whose primary attendee
// matches.
func (d *Detector) detectDuplicates(sorted []models.Event, detectedAt time.Time) []models.Conflict {
	var conflicts []models.Conflict
	for i := range sorted {
		for j := i + 1; j < len(sorted); j++ {
			gap := sorted[j].StartTime.Sub(sorted[i].StartTime)
			if gap > duplicateStartWindow {
				break
			}
			if sorted[i].Source == sorted[j].Source {
				continue
			}

			sameLead := sorted[i].PrimaryAttendee() != "" &&
				sorted[i].PrimaryAttendee() == sorted[j].PrimaryAttendee()
			if sameLead || jaccardTitleSimilarity(sorted[i].Title, sorted[j].Title) > titleSimilarityThreshold {
				conflicts = append(conflicts, newConflict(
					models.ConflictDuplicate, models.SeverityMedium, detectedAt,
					sorted[i].ID, sorted[j].ID))
			}
		}
	}
	return conflicts
}

// overlapSeverity grades a time overlap by the share of the shorter
// event consumed: above 80% high, above 50% medium, otherwise low.
func overlapSeverity(a, b *models.Event) models.Severity {
	overlapStart := a.StartTime
	if b.StartTime.After(overlapStart) {
		overlapStart = b.StartTime
	}
	overlapEnd := a.EndTime
	if b.EndTime.Before(overlapEnd) {
		overlapEnd = b.EndTime
	}
	overlap := overlapEnd.Sub(overlapStart)

	shorter := a.Duration()
	if b.Duration() < shorter {
		shorter = b.Duration()
	}
	if shorter <= 0 {
		return models.SeverityLow
	}

	ratio := float64(overlap) / float64(shorter)
	switch {
	case ratio > 0.8:
		return models.SeverityHigh
	case ratio > 0.5:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// jaccardTitleSimilarity computes word-set Jaccard similarity of two
// titles, case-insensitive.
func jaccardTitleSimilarity(a, b string) float64 {
	aWords := wordSet(a)
	bWords := wordSet(b)
	if len(aWords) == 0 || len(bWords) == 0 {
		return 0
	}

	intersection := 0
	for w := range aWords {
		if bWords[w] {
			intersection++
		}
	}
	union := len(aWords) + len(bWords) - intersection
	return float64(intersection) / float64(union)
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[w] = true
	}
	return set
}

// newConflict builds a conflict with a deterministic ID derived from its
// type and member events, so repeated detection passes over unchanged
// data upsert the same rows.
func newConflict(typ models.ConflictType, severity models.Severity, detectedAt time.Time, eventIDs ...string) models.Conflict {
	members := make([]string, len(eventIDs))
	copy(members, eventIDs)
	sort.Strings(members)

	h := sha256.New()
	h.Write([]byte(typ))
	for _, id := range members {
		h.Write([]byte{0})
		h.Write([]byte(id))
	}

	return models.Conflict{
		ID:         hex.EncodeToString(h.Sum(nil)[:16]),
		Type:       typ,
		Severity:   severity,
		EventIDs:   members,
		DetectedAt: detectedAt,
	}
}
