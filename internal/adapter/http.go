// Horologium - Multi-Source Calendar Aggregation and Conflict Resolution
// Copyright 2026 Horologium Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/horologium/horologium

package adapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/horologium/horologium/internal/models"
)

// doJSON issues req through client, classifies transport and status
// failures as typed adapter errors, and decodes a 2xx body into out when
// out is non-nil.
func doJSON(client *http.Client, req *http.Request, source models.Source, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(req.Context().Err(), context.DeadlineExceeded) {
			return NewError(source, KindTimeout, err)
		}
		return NewError(source, KindUnreachable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return NewError(source, KindAuth, fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode == http.StatusTooManyRequests:
		return NewError(source, KindRateLimit, fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode >= 500:
		return NewError(source, KindUnreachable, fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		return NewError(source, KindBadResponse, fmt.Errorf("status %d", resp.StatusCode))
	}

	if out == nil {
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return NewError(source, KindUnreachable, fmt.Errorf("read body: %w", err))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return NewError(source, KindBadResponse, fmt.Errorf("decode body: %w", err))
	}
	return nil
}

// jsonRequest builds a request with a JSON-encoded body.
func jsonRequest(ctx context.Context, method, url string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}
