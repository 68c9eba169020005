// Horologium - Multi-Source Calendar Aggregation and Conflict Resolution
// Copyright 2026 Horologium Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/horologium/horologium

package adapter

import (
	"errors"
	"fmt"

	"github.com/horologium/horologium/internal/models"
)

// ErrPushNotSupported is returned by Push on read-only sources.
var ErrPushNotSupported = errors.New("push not supported by this source")

// ErrorKind classifies adapter failures. The orchestrator retries
// transient kinds and fails fast on the rest.
type ErrorKind string

const (
	KindUnreachable ErrorKind = "unreachable"
	KindAuth        ErrorKind = "auth"
	KindRateLimit   ErrorKind = "rate_limit"
	KindBadResponse ErrorKind = "bad_response"
	KindTimeout     ErrorKind = "timeout"
)

// Error is the typed failure every adapter call surfaces. It is
// distinguishable from "no data" (an empty pull result) by construction.
type Error struct {
	Source models.Source
	Kind   ErrorKind
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s adapter: %s: %v", e.Source, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Transient reports whether retrying the call later could succeed.
func (e *Error) Transient() bool {
	switch e.Kind {
	case KindUnreachable, KindRateLimit, KindTimeout:
		return true
	}
	return false
}

// NewError wraps err as a typed adapter error.
func NewError(source models.Source, kind ErrorKind, err error) *Error {
	return &Error{Source: source, Kind: kind, Err: err}
}

// KindOf extracts the error kind from an adapter error chain, or
// KindBadResponse when err carries no typed adapter error.
func KindOf(err error) ErrorKind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindBadResponse
}

// IsTransient reports whether err is a transient adapter error.
func IsTransient(err error) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Transient()
}
