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

// CRMAdapter talks to the third-party CRM's calendar API. The CRM exposes
// meetings tied to deals and contacts; only the scheduling fields are
// consumed here. The CRM calendar is pull-only.
type CRMAdapter struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewCRMAdapter creates the CRM calendar adapter.
func NewCRMAdapter(cfg config.CRMCalendarConfig) *CRMAdapter {
	return &CRMAdapter{
		baseURL: cfg.URL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{},
	}
}

// Source implements SourceAdapter.
func (a *CRMAdapter) Source() models.Source { return models.SourceCRM }

// Pull implements SourceAdapter.
func (a *CRMAdapter) Pull(ctx context.Context, userID string, start, end string) ([]RawEvent, error) {
	q := url.Values{}
	q.Set("owner", userID)
	q.Set("starts_after", start)
	q.Set("starts_before", end)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/v2/meetings?%s", a.baseURL, q.Encode()), nil)
	if err != nil {
		return nil, NewError(models.SourceCRM, KindBadResponse, err)
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	var payload struct {
		Meetings []RawEvent `json:"meetings"`
	}
	if err := doJSON(a.client, req, models.SourceCRM, &payload); err != nil {
		return nil, err
	}
	return payload.Meetings, nil
}

// Push implements SourceAdapter; CRM meetings are owned by the CRM.
func (a *CRMAdapter) Push(ctx context.Context, userID string, events []models.Event) (*PushResult, error) {
	return nil, ErrPushNotSupported
}

// Authenticate implements SourceAdapter.
func (a *CRMAdapter) Authenticate(ctx context.Context, userID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/api/v2/account", nil)
	if err != nil {
		return "", NewError(models.SourceCRM, KindBadResponse, err)
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	if err := doJSON(a.client, req, models.SourceCRM, nil); err != nil {
		return "", err
	}
	return a.apiKey, nil
}

// Disconnect implements SourceAdapter; API-key access has no server-side
// grant to revoke, so disconnecting is local-only.
func (a *CRMAdapter) Disconnect(ctx context.Context, userID string) error {
	return nil
}
