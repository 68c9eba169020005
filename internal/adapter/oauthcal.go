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

	"golang.org/x/oauth2"

	"github.com/horologium/horologium/internal/config"
	"github.com/horologium/horologium/internal/models"
)

// OAuthCalendarAdapter talks to a generic OAuth-protected calendar API.
// Its HTTP client refreshes access tokens transparently through an
// oauth2.TokenSource seeded with the stored refresh token.
type OAuthCalendarAdapter struct {
	baseURL string
	oauth   *oauth2.Config
	client  *http.Client
}

// NewOAuthCalendarAdapter creates the OAuth calendar adapter. The client
// is built once at construction; oauth2's transport caches and refreshes
// the access token across calls.
func NewOAuthCalendarAdapter(cfg config.OAuthCalendarConfig) *OAuthCalendarAdapter {
	oc := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: cfg.TokenURL},
	}

	ts := oc.TokenSource(context.Background(), &oauth2.Token{RefreshToken: cfg.RefreshToken})

	return &OAuthCalendarAdapter{
		baseURL: cfg.URL,
		oauth:   oc,
		client:  oauth2.NewClient(context.Background(), ts),
	}
}

// Source implements SourceAdapter.
func (a *OAuthCalendarAdapter) Source() models.Source { return models.SourceOAuth }

// Pull implements SourceAdapter.
func (a *OAuthCalendarAdapter) Pull(ctx context.Context, userID string, start, end string) ([]RawEvent, error) {
	q := url.Values{}
	q.Set("calendar", userID)
	q.Set("timeMin", start)
	q.Set("timeMax", end)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/events?%s", a.baseURL, q.Encode()), nil)
	if err != nil {
		return nil, NewError(models.SourceOAuth, KindBadResponse, err)
	}

	var payload struct {
		Items []RawEvent `json:"items"`
	}
	if err := doJSON(a.client, req, models.SourceOAuth, &payload); err != nil {
		return nil, err
	}
	return payload.Items, nil
}

// Push implements SourceAdapter.
func (a *OAuthCalendarAdapter) Push(ctx context.Context, userID string, events []models.Event) (*PushResult, error) {
	req, err := jsonRequest(ctx, http.MethodPost,
		fmt.Sprintf("%s/events/batch?calendar=%s", a.baseURL, url.QueryEscape(userID)),
		map[string]any{"items": events})
	if err != nil {
		return nil, NewError(models.SourceOAuth, KindBadResponse, err)
	}

	var result PushResult
	if err := doJSON(a.client, req, models.SourceOAuth, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Authenticate implements SourceAdapter. With a usable refresh token the
// token source yields an access token; without one the caller gets the
// provider's authorization URL to complete the grant.
func (a *OAuthCalendarAdapter) Authenticate(ctx context.Context, userID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/me", nil)
	if err != nil {
		return "", NewError(models.SourceOAuth, KindBadResponse, err)
	}
	if err := doJSON(a.client, req, models.SourceOAuth, nil); err != nil {
		if KindOf(err) == KindAuth {
			return a.oauth.AuthCodeURL(userID, oauth2.AccessTypeOffline), err
		}
		return "", err
	}
	return "authenticated", nil
}

// Disconnect implements SourceAdapter by revoking the grant.
func (a *OAuthCalendarAdapter) Disconnect(ctx context.Context, userID string) error {
	req, err := jsonRequest(ctx, http.MethodPost, a.baseURL+"/revoke", nil)
	if err != nil {
		return NewError(models.SourceOAuth, KindBadResponse, err)
	}
	return doJSON(a.client, req, models.SourceOAuth, nil)
}
