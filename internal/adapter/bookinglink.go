// Horologium - Multi-Source Calendar Aggregation and Conflict Resolution
// Copyright 2026 Horologium Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/horologium/horologium

package adapter

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/horologium/horologium/internal/config"
	"github.com/horologium/horologium/internal/models"
)

// BookingLinkAdapter talks to the booking-link service's REST API with an
// API key. Bookings can be pulled and pushed.
type BookingLinkAdapter struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewBookingLinkAdapter creates the booking-link adapter.
func NewBookingLinkAdapter(cfg config.BookingLinkConfig) *BookingLinkAdapter {
	return &BookingLinkAdapter{
		baseURL: cfg.URL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{},
	}
}

// Source implements SourceAdapter.
func (a *BookingLinkAdapter) Source() models.Source { return models.SourceBookingLink }

// Pull implements SourceAdapter.
func (a *BookingLinkAdapter) Pull(ctx context.Context, userID string, start, end string) ([]RawEvent, error) {
	q := url.Values{}
	q.Set("user", userID)
	q.Set("from", start)
	q.Set("to", end)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/v1/bookings?%s", a.baseURL, q.Encode()), nil)
	if err != nil {
		return nil, NewError(models.SourceBookingLink, KindBadResponse, err)
	}
	a.setAuth(req)

	var payload struct {
		Bookings []RawEvent `json:"bookings"`
	}
	if err := doJSON(a.client, req, models.SourceBookingLink, &payload); err != nil {
		return nil, err
	}
	return payload.Bookings, nil
}

// Push implements SourceAdapter. Events are sent one batch at a time; the
// service reports per-item failures in the response body.
func (a *BookingLinkAdapter) Push(ctx context.Context, userID string, events []models.Event) (*PushResult, error) {
	req, err := jsonRequest(ctx, http.MethodPost,
		fmt.Sprintf("%s/v1/bookings/import?user=%s", a.baseURL, url.QueryEscape(userID)),
		map[string]any{"events": events})
	if err != nil {
		return nil, NewError(models.SourceBookingLink, KindBadResponse, err)
	}
	a.setAuth(req)

	var result PushResult
	if err := doJSON(a.client, req, models.SourceBookingLink, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Authenticate implements SourceAdapter by probing the key against the
// service's identity endpoint.
func (a *BookingLinkAdapter) Authenticate(ctx context.Context, userID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/v1/me", nil)
	if err != nil {
		return "", NewError(models.SourceBookingLink, KindBadResponse, err)
	}
	a.setAuth(req)

	if err := doJSON(a.client, req, models.SourceBookingLink, nil); err != nil {
		return "", err
	}
	return a.apiKey, nil
}

// Disconnect implements SourceAdapter.
func (a *BookingLinkAdapter) Disconnect(ctx context.Context, userID string) error {
	req, err := jsonRequest(ctx, http.MethodDelete,
		fmt.Sprintf("%s/v1/connections/%s", a.baseURL, url.PathEscape(userID)), nil)
	if err != nil {
		return NewError(models.SourceBookingLink, KindBadResponse, err)
	}
	a.setAuth(req)
	return doJSON(a.client, req, models.SourceBookingLink, nil)
}

func (a *BookingLinkAdapter) setAuth(req *http.Request) {
	req.Header.Set("X-API-Key", a.apiKey)
}
