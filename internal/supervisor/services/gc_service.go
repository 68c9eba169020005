// Horologium - Multi-Source Calendar Aggregation and Conflict Resolution
// Copyright 2026 Horologium Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/horologium/horologium

package services

import (
	"context"
	"time"
)

// GCRunner matches the store's value-log garbage collection loop.
type GCRunner interface {
	RunGC(ctx context.Context, interval time.Duration)
}

// StoreGCService runs the store's garbage collector as a supervised
// service.
type StoreGCService struct {
	store    GCRunner
	interval time.Duration
}

// NewStoreGCService creates the wrapper.
func NewStoreGCService(store GCRunner, interval time.Duration) *StoreGCService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &StoreGCService{store: store, interval: interval}
}

// Serve implements suture.Service. RunGC blocks until ctx is canceled.
func (s *StoreGCService) Serve(ctx context.Context) error {
	s.store.RunGC(ctx, s.interval)
	return ctx.Err()
}

// String implements fmt.Stringer for suture's log messages.
func (s *StoreGCService) String() string { return "store-gc" }
