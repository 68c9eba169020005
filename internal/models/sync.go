// Horologium - Multi-Source Calendar Aggregation and Conflict Resolution
// Copyright 2026 Horologium Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/horologium/horologium

package models

import "time"

// SyncState is the per-(user, source) synchronization status.
type SyncState string

const (
	SyncIdle       SyncState = "idle"
	SyncInProgress SyncState = "in_progress"
	SyncSuccess    SyncState = "success"
	SyncFailed     SyncState = "failed"
)

// SyncStatus holds the current sync state for one (user, source) pair.
// It is mutated only by the sync orchestrator; status rows are overwritten
// on each run, they are not a concurrency control mechanism.
type SyncStatus struct {
	UserID       string    `json:"user_id"`
	Source       Source    `json:"source"`
	Status       SyncState `json:"status"`
	LastSyncAt   time.Time `json:"last_sync_at"`
	EventsSynced int       `json:"events_synced"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// SyncOperation names the direction of a sync attempt.
type SyncOperation string

const (
	OpPull SyncOperation = "pull"
	OpPush SyncOperation = "push"
	OpSync SyncOperation = "sync"
)

// SyncOutcome is the recorded result class of a sync attempt.
type SyncOutcome string

const (
	OutcomeSuccess SyncOutcome = "success"
	OutcomeFailed  SyncOutcome = "failed"
	OutcomePartial SyncOutcome = "partial"
)

// SyncLog is one append-only record per sync attempt. Rows are never
// mutated or deleted; they feed reliability analytics.
type SyncLog struct {
	ID              string        `json:"id"`
	UserID          string        `json:"user_id,omitempty"`
	Source          Source        `json:"source"`
	Operation       SyncOperation `json:"operation"`
	Status          SyncOutcome   `json:"status"`
	EventsProcessed int           `json:"events_processed"`
	Errors          []string      `json:"errors,omitempty"`
	DurationMs      int64         `json:"duration_ms"`
	CreatedAt       time.Time     `json:"created_at"`
}

// SyncResult is the per-source outcome returned by a sync orchestrator run.
type SyncResult struct {
	Source       Source `json:"source"`
	Success      bool   `json:"success"`
	EventsSynced int    `json:"events_synced"`
	Error        string `json:"error,omitempty"`
}
