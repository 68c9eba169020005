// Horologium - Multi-Source Calendar Aggregation and Conflict Resolution
// Copyright 2026 Horologium Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/horologium/horologium

package adapter

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/horologium/horologium/internal/logging"
	"github.com/horologium/horologium/internal/metrics"
	"github.com/horologium/horologium/internal/models"
)

// BreakerAdapter wraps a SourceAdapter with a circuit breaker and a rate
// limiter. The breaker prevents a flapping provider from being hammered
// during sweeps; the limiter protects providers from burst load when many
// users sync at once.
//
// The breaker uses real time for its interval and timeout accounting. That
// timing only governs recovery, not data integrity; unit tests should
// exercise the wrapped adapter directly.
type BreakerAdapter struct {
	inner   SourceAdapter
	cb      *gobreaker.CircuitBreaker[any]
	limiter *rate.Limiter
}

// NewBreakerAdapter wraps inner with breaker and limiter protection.
// The breaker opens after a 60% failure rate over at least 10 requests,
// resets its counts every minute, and probes recovery after two minutes.
func NewBreakerAdapter(inner SourceAdapter, callsPerSecond float64) *BreakerAdapter {
	name := string(inner.Source())

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			if ratio >= 0.6 {
				logging.Warn().
					Str("source", name).
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", ratio*100).
					Msg("Opening adapter circuit")
				return true
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("source", name).
				Str("from", stateString(from)).
				Str("to", stateString(to)).
				Msg("Adapter circuit state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, stateString(from), stateString(to)).Inc()
		},
	})

	limit := rate.Limit(callsPerSecond)
	if callsPerSecond <= 0 {
		limit = rate.Inf
	}

	return &BreakerAdapter{
		inner:   inner,
		cb:      cb,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// execute runs fn behind the limiter and breaker, mapping breaker
// rejections to a transient adapter error.
func (b *BreakerAdapter) execute(ctx context.Context, fn func() (any, error)) (any, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, NewError(b.inner.Source(), KindTimeout, err)
	}

	result, err := b.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, NewError(b.inner.Source(), KindUnreachable, err)
		}
		return nil, err
	}
	return result, nil
}

// Source implements SourceAdapter.
func (b *BreakerAdapter) Source() models.Source { return b.inner.Source() }

// Pull implements SourceAdapter with breaker protection.
func (b *BreakerAdapter) Pull(ctx context.Context, userID string, start, end string) ([]RawEvent, error) {
	result, err := b.execute(ctx, func() (any, error) {
		return b.inner.Pull(ctx, userID, start, end)
	})
	if err != nil {
		return nil, err
	}
	events, ok := result.([]RawEvent)
	if !ok {
		return nil, NewError(b.inner.Source(), KindBadResponse, errors.New("unexpected breaker result type"))
	}
	return events, nil
}

// Push implements SourceAdapter with breaker protection. Push-unsupported
// errors bypass the breaker's failure accounting so a read-only source
// never trips it.
func (b *BreakerAdapter) Push(ctx context.Context, userID string, events []models.Event) (*PushResult, error) {
	result, err := b.execute(ctx, func() (any, error) {
		res, err := b.inner.Push(ctx, userID, events)
		if errors.Is(err, ErrPushNotSupported) {
			return (*PushResult)(nil), nil
		}
		return res, err
	})
	if err != nil {
		return nil, err
	}
	res, ok := result.(*PushResult)
	if !ok {
		return nil, NewError(b.inner.Source(), KindBadResponse, errors.New("unexpected breaker result type"))
	}
	if res == nil {
		return nil, ErrPushNotSupported
	}
	return res, nil
}

// Authenticate implements SourceAdapter; auth probes go through the
// breaker so a dead provider fails fast on connection tests too.
func (b *BreakerAdapter) Authenticate(ctx context.Context, userID string) (string, error) {
	result, err := b.execute(ctx, func() (any, error) {
		return b.inner.Authenticate(ctx, userID)
	})
	if err != nil {
		return "", err
	}
	token, _ := result.(string)
	return token, nil
}

// Disconnect implements SourceAdapter. Disconnects are not breaker-guarded;
// tearing down a connection should work even when the provider is flapping.
func (b *BreakerAdapter) Disconnect(ctx context.Context, userID string) error {
	return b.inner.Disconnect(ctx, userID)
}

func stateFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
