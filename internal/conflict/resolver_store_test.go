// Horologium - Multi-Source Calendar Aggregation and Conflict Resolution
// Copyright 2026 Horologium Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/horologium/horologium

package conflict

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/horologium/horologium/internal/config"
	"github.com/horologium/horologium/internal/models"
	"github.com/horologium/horologium/internal/store"
)

func openResolverStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(config.StoreConfig{Path: ""})
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestResolveUnknownConflictThroughStore(t *testing.T) {
	s := openResolverStore(t)
	r := NewResolver(s, nil)

	err := r.Resolve(context.Background(), "no-such-id", models.StrategyManual, "alice")
	if !errors.Is(err, ErrConflictNotFound) {
		t.Fatalf("expected ErrConflictNotFound through the store, got %v", err)
	}
}

func TestResolveFinalityThroughStore(t *testing.T) {
	s := openResolverStore(t)
	ctx := context.Background()
	r := NewResolver(s, nil)

	c := models.Conflict{
		ID:         "c1",
		Type:       models.ConflictTimeOverlap,
		Severity:   models.SeverityLow,
		EventIDs:   []string{"internal:a", "crm-calendar:b"},
		DetectedAt: time.Now().UTC(),
	}
	if err := s.UpsertConflicts(ctx, []models.Conflict{c}); err != nil {
		t.Fatal(err)
	}

	if err := r.Resolve(ctx, "c1", models.StrategyLocalWins, "alice"); err != nil {
		t.Fatalf("first resolve failed: %v", err)
	}
	if err := r.Resolve(ctx, "c1", models.StrategyRemoteWins, "bob"); !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("expected ErrAlreadyResolved, got %v", err)
	}
	// Same strategy again is a no-op.
	if err := r.Resolve(ctx, "c1", models.StrategyLocalWins, "bob"); err != nil {
		t.Fatalf("same-strategy re-resolve must be a no-op: %v", err)
	}

	got, err := s.GetConflict(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Resolution != models.StrategyLocalWins || got.ResolvedBy != "alice" {
		t.Errorf("resolution stamp mutated: %+v", got)
	}
}
