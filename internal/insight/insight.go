// Horologium - Multi-Source Calendar Aggregation and Conflict Resolution
// Copyright 2026 Horologium Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/horologium/horologium

// Package insight is the best-effort advisory collaborator. Its alerts
// and recommendations are additive: they never block or alter the
// deterministic classification of the monitor, and any failure here is
// swallowed and replaced with a static fallback list.
package insight

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/horologium/horologium/internal/config"
	"github.com/horologium/horologium/internal/logging"
	"github.com/horologium/horologium/internal/models"
)

// Analysis is the advisory output: free-text recommendations plus
// optional supplementary alerts (missing attendee, timezone mismatch
// and similar soft risks).
type Analysis struct {
	Recommendations []string       `json:"recommendations"`
	Alerts          []models.Alert `json:"alerts,omitempty"`
}

// Analyzer produces advisory analysis for a set of events and their
// detected conflicts.
type Analyzer interface {
	Analyze(ctx context.Context, events []models.Event, conflicts []models.Conflict) (*Analysis, error)
}

// fallbackRecommendations is returned whenever the real analyzer is
// unavailable or fails.
var fallbackRecommendations = []string{
	"Review overlapping meetings and decline or reschedule low-priority ones",
	"Add buffer time between back-to-back meetings",
	"Confirm shared rooms are booked through a single calendar",
}

// Fallback returns the static analysis used when no analyzer is
// configured or the configured one fails.
func Fallback() *Analysis {
	recs := make([]string, len(fallbackRecommendations))
	copy(recs, fallbackRecommendations)
	return &Analysis{Recommendations: recs}
}

// HTTPAnalyzer posts events and conflicts to an external advisory
// service.
type HTTPAnalyzer struct {
	url    string
	client *http.Client
}

// NewHTTPAnalyzer builds an analyzer from config. Returns nil when the
// advisory service is disabled; callers treat a nil analyzer as
// fallback-only.
func NewHTTPAnalyzer(cfg config.InsightConfig) *HTTPAnalyzer {
	if !cfg.Enabled || cfg.URL == "" {
		return nil
	}
	return &HTTPAnalyzer{
		url:    cfg.URL,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type analyzeRequest struct {
	Events    []models.Event    `json:"events"`
	Conflicts []models.Conflict `json:"conflicts"`
}

// Analyze calls the advisory service. Callers must treat any error as
// "no advice", not as an operation failure.
func (a *HTTPAnalyzer) Analyze(ctx context.Context, events []models.Event, conflicts []models.Conflict) (*Analysis, error) {
	body, err := json.Marshal(analyzeRequest{Events: events, Conflicts: conflicts})
	if err != nil {
		return nil, fmt.Errorf("encoding analyze request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url+"/v1/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building analyze request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("advisory service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("advisory service returned status %d", resp.StatusCode)
	}

	var analysis Analysis
	if err := json.NewDecoder(resp.Body).Decode(&analysis); err != nil {
		return nil, fmt.Errorf("decoding analyze response: %w", err)
	}
	return &analysis, nil
}

// Advise wraps an analyzer call so that failure can never leak to the
// caller: a nil analyzer, an error, or a timeout all yield the static
// fallback. The deadline is enforced here so a slow advisory service
// cannot stall the latency-sensitive paths that call it.
func Advise(ctx context.Context, analyzer Analyzer, timeout time.Duration, events []models.Event, conflicts []models.Conflict) *Analysis {
	if analyzer == nil {
		return Fallback()
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	analysis, err := analyzer.Analyze(ctx, events, conflicts)
	if err != nil || analysis == nil {
		logging.Debug().Err(err).Msg("Advisory analysis failed, using fallback")
		return Fallback()
	}
	if len(analysis.Recommendations) == 0 {
		analysis.Recommendations = Fallback().Recommendations
	}
	return analysis
}
