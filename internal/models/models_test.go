// Horologium - Multi-Source Calendar Aggregation and Conflict Resolution
// Copyright 2026 Horologium Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/horologium/horologium

package models

import (
	"testing"
	"time"
)

func TestSourceValid(t *testing.T) {
	for _, s := range AllSources {
		if !s.Valid() {
			t.Errorf("%q must be valid", s)
		}
	}
	for _, s := range []Source{"", "fax", "Internal"} {
		if s.Valid() {
			t.Errorf("%q must be invalid", s)
		}
	}
}

func TestEventOverlaps(t *testing.T) {
	base := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	a := Event{StartTime: base, EndTime: base.Add(time.Hour)}

	tests := []struct {
		name  string
		other Event
		want  bool
	}{
		{"partial overlap", Event{StartTime: base.Add(30 * time.Minute), EndTime: base.Add(90 * time.Minute)}, true},
		{"containment", Event{StartTime: base.Add(10 * time.Minute), EndTime: base.Add(20 * time.Minute)}, true},
		{"back to back", Event{StartTime: base.Add(time.Hour), EndTime: base.Add(2 * time.Hour)}, false},
		{"disjoint", Event{StartTime: base.Add(3 * time.Hour), EndTime: base.Add(4 * time.Hour)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.Overlaps(&tt.other); got != tt.want {
				t.Errorf("Overlaps = %v, want %v", got, tt.want)
			}
			// Overlap is symmetric.
			if got := tt.other.Overlaps(&a); got != tt.want {
				t.Errorf("reverse Overlaps = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSharesAttendeeCaseInsensitive(t *testing.T) {
	a := Event{Attendees: []Attendee{{Email: "Lead@Example.com"}}}
	b := Event{Attendees: []Attendee{{Email: "lead@example.com"}, {Email: "other@example.com"}}}
	if !a.SharesAttendee(&b) {
		t.Error("attendee comparison must ignore case")
	}
	c := Event{Attendees: []Attendee{{Email: "nobody@example.com"}}}
	if a.SharesAttendee(&c) {
		t.Error("no shared attendee expected")
	}
}

func TestNormalizedLocation(t *testing.T) {
	e := Event{Location: "  Bay 1 "}
	if e.NormalizedLocation() != "bay 1" {
		t.Errorf("got %q", e.NormalizedLocation())
	}
	if (&Event{}).NormalizedLocation() != "" {
		t.Error("empty location must normalize to empty")
	}
}

func TestEffectiveSyncTime(t *testing.T) {
	start := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	synced := start.Add(time.Hour)

	e := Event{StartTime: start}
	if !e.EffectiveSyncTime().Equal(start) {
		t.Error("without a sync timestamp the start time is used")
	}
	e.Metadata.LastSyncedAt = &synced
	if !e.EffectiveSyncTime().Equal(synced) {
		t.Error("sync timestamp must win when present")
	}
}

func TestSeverityAtLeast(t *testing.T) {
	if !SeverityCritical.AtLeast(SeverityHigh) {
		t.Error("critical >= high")
	}
	if !SeverityHigh.AtLeast(SeverityHigh) {
		t.Error("high >= high")
	}
	if SeverityMedium.AtLeast(SeverityHigh) {
		t.Error("medium < high")
	}
	if Severity("bogus").AtLeast(SeverityLow) {
		t.Error("unknown severities rank below everything")
	}
}

func TestStrategyValid(t *testing.T) {
	for _, s := range []Strategy{StrategyLocalWins, StrategyRemoteWins, StrategyNewestWins, StrategyManual} {
		if !s.Valid() {
			t.Errorf("%q must be valid", s)
		}
	}
	if Strategy("coin_flip").Valid() {
		t.Error("unknown strategy must be invalid")
	}
}
