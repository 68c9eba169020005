// Horologium - Multi-Source Calendar Aggregation and Conflict Resolution
// Copyright 2026 Horologium Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/horologium/horologium

// Package main is the entry point for the Horologium server.
//
// Horologium aggregates calendar events from multiple sources (the
// internal operations calendar, a booking-link service, OAuth calendars,
// and CRM calendars) into one deduplicated view, detects scheduling
// conflicts between them, and keeps the sources synchronized on a timer.
//
// Startup order:
//
//  1. Configuration (koanf: defaults, optional YAML file, environment)
//  2. Logging (zerolog)
//  3. Store (BadgerDB)
//  4. Source adapters for every enabled source, each wrapped in a
//     circuit breaker with rate limiting
//  5. Aggregator, conflict detector and resolver, sync orchestrator,
//     realtime monitor, advisory analyzer
//  6. Supervisor tree (suture): background layer (sync manager, store
//     GC) and API layer (HTTP server)
//
// The server shuts down gracefully on SIGINT and SIGTERM: the HTTP
// server drains, the sync manager waits for in-flight runs, and the
// store is closed last.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/horologium/horologium/internal/adapter"
	"github.com/horologium/horologium/internal/aggregate"
	"github.com/horologium/horologium/internal/api"
	"github.com/horologium/horologium/internal/config"
	"github.com/horologium/horologium/internal/conflict"
	"github.com/horologium/horologium/internal/insight"
	"github.com/horologium/horologium/internal/logging"
	"github.com/horologium/horologium/internal/monitor"
	"github.com/horologium/horologium/internal/store"
	"github.com/horologium/horologium/internal/supervisor"
	"github.com/horologium/horologium/internal/supervisor/services"
	syncpkg "github.com/horologium/horologium/internal/sync"
)

// adapterCallsPerSecond is the per-source rate limit applied by the
// breaker wrapper.
const adapterCallsPerSecond = 5.0

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Caller: cfg.Log.Caller,
	})

	logging.Info().
		Str("store_path", cfg.Store.Path).
		Int("port", cfg.Server.Port).
		Msg("Starting Horologium")

	db, err := store.Open(cfg.Store)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open store")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()

	registry := buildRegistry(cfg)
	if registry.Len() == 0 {
		logging.Warn().Msg("No sources enabled; aggregation and sync will be empty")
	} else {
		logging.Info().Interface("sources", registry.Sources()).Msg("Source adapters initialized")
	}

	aggregator := aggregate.New(registry, db, cfg.Sync.AdapterTimeout)
	detector := conflict.NewDetector(db, nil)
	resolver := conflict.NewResolver(db, nil)
	syncManager := syncpkg.NewManager(db, registry, detector, cfg.Sync)

	analyzer := insight.NewHTTPAnalyzer(cfg.Insight)
	var riskAnalyzer insight.Analyzer
	if analyzer != nil {
		riskAnalyzer = analyzer
	}
	riskMonitor := monitor.New(db, riskAnalyzer, cfg.Monitor, cfg.Insight.Timeout)

	handler := api.NewHandler(db, aggregator, detector, resolver, syncManager, riskMonitor, registry)
	router := api.NewRouter(handler, cfg.API)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddBackgroundService(services.NewSyncService(syncManager))
	tree.AddBackgroundService(services.NewStoreGCService(db, cfg.Store.GCInterval))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.Timeout))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Str("addr", server.Addr).Msg("Supervisor tree starting")
	if err := tree.Serve(ctx); err != nil && err != context.Canceled {
		logging.Error().Err(err).Msg("Supervisor tree exited with error")
	}
	logging.Info().Msg("Horologium stopped")
}

// buildRegistry constructs an adapter for every enabled source, each
// wrapped in a circuit breaker with rate limiting.
func buildRegistry(cfg *config.Config) *adapter.Registry {
	var adapters []adapter.SourceAdapter
	if cfg.Sources.Internal.Enabled {
		adapters = append(adapters,
			adapter.NewBreakerAdapter(adapter.NewICSAdapter(cfg.Sources.Internal), adapterCallsPerSecond))
	}
	if cfg.Sources.BookingLink.Enabled {
		adapters = append(adapters,
			adapter.NewBreakerAdapter(adapter.NewBookingLinkAdapter(cfg.Sources.BookingLink), adapterCallsPerSecond))
	}
	if cfg.Sources.OAuth.Enabled {
		adapters = append(adapters,
			adapter.NewBreakerAdapter(adapter.NewOAuthCalendarAdapter(cfg.Sources.OAuth), adapterCallsPerSecond))
	}
	if cfg.Sources.CRM.Enabled {
		adapters = append(adapters,
			adapter.NewBreakerAdapter(adapter.NewCRMAdapter(cfg.Sources.CRM), adapterCallsPerSecond))
	}
	return adapter.NewRegistry(adapters...)
}
