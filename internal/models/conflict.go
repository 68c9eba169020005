// Horologium - Multi-Source Calendar Aggregation and Conflict Resolution
// Copyright 2026 Horologium Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/horologium/horologium

package models

import "time"

// ConflictType classifies a detected inconsistency between events.
type ConflictType string

const (
	ConflictTimeOverlap ConflictType = "time_overlap"
	ConflictDuplicate   ConflictType = "duplicate"
	ConflictResource    ConflictType = "resource"
)

// Severity grades how urgent a conflict or alert is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// rank orders severities for comparison; higher is more urgent.
func (s Severity) rank() int {
	switch s {
	case SeverityLow:
		return 0
	case SeverityMedium:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 3
	}
	return -1
}

// AtLeast reports whether s is equal to or more urgent than other.
func (s Severity) AtLeast(other Severity) bool {
	return s.rank() >= other.rank()
}

// Strategy is the policy used to pick the winning event(s) of a conflict.
type Strategy string

const (
	StrategyLocalWins  Strategy = "local_wins"
	StrategyRemoteWins Strategy = "remote_wins"
	StrategyNewestWins Strategy = "newest_wins"
	StrategyManual     Strategy = "manual"
)

// Valid reports whether s is a known resolution strategy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyLocalWins, StrategyRemoteWins, StrategyNewestWins, StrategyManual:
		return true
	}
	return false
}

// Conflict records a detected inconsistency between two or more events.
// Conflicts are created by the detector, resolved at most once by the
// resolver, and never deleted (audit trail).
type Conflict struct {
	ID         string       `json:"id"`
	Type       ConflictType `json:"type"`
	Severity   Severity     `json:"severity"`
	EventIDs   []string     `json:"event_ids"` // at least two
	DetectedAt time.Time    `json:"detected_at"`
	ResolvedAt *time.Time   `json:"resolved_at,omitempty"`
	Resolution Strategy     `json:"resolution,omitempty"`
	ResolvedBy string       `json:"resolved_by,omitempty"`
}

// Resolved reports whether the conflict has been marked resolved.
func (c *Conflict) Resolved() bool {
	return c.ResolvedAt != nil
}
