// Horologium - Multi-Source Calendar Aggregation and Conflict Resolution
// Copyright 2026 Horologium Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/horologium/horologium

package models

import "time"

// AlertType classifies a realtime risk alert.
type AlertType string

const (
	AlertDoubleBooking    AlertType = "double_booking"
	AlertResourceConflict AlertType = "resource_conflict"
	AlertAdvisory         AlertType = "advisory"
)

// Alert is an immediate, severity-graded warning emitted on the
// event-creation path. Advisory alerts are additive and never override
// the deterministic double-booking and resource alerts.
type Alert struct {
	ID        string    `json:"id"`
	Type      AlertType `json:"type"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
	EventID   string    `json:"event_id"`
	RelatedID string    `json:"related_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
