// Horologium - Multi-Source Calendar Aggregation and Conflict Resolution
// Copyright 2026 Horologium Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/horologium/horologium

package adapter

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"github.com/horologium/horologium/internal/config"
	"github.com/horologium/horologium/internal/models"
)

// ICSAdapter reads the internal operations calendar from an ICS feed.
// The feed is read-only: Push is not supported.
type ICSAdapter struct {
	feedURL string
	client  *http.Client
}

// NewICSAdapter creates the internal-calendar adapter.
func NewICSAdapter(cfg config.InternalSourceConfig) *ICSAdapter {
	return &ICSAdapter{
		feedURL: cfg.FeedURL,
		client:  &http.Client{},
	}
}

// Source implements SourceAdapter.
func (a *ICSAdapter) Source() models.Source { return models.SourceInternal }

// Pull fetches the feed and returns the VEVENTs inside [start, end).
// start and end are RFC3339 timestamps.
func (a *ICSAdapter) Pull(ctx context.Context, userID string, start, end string) ([]RawEvent, error) {
	from, to, err := parseWindow(start, end)
	if err != nil {
		return nil, NewError(models.SourceInternal, KindBadResponse, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.feedURL, nil)
	if err != nil {
		return nil, NewError(models.SourceInternal, KindBadResponse, err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, NewError(models.SourceInternal, KindUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		kind := KindUnreachable
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			kind = KindAuth
		}
		return nil, NewError(models.SourceInternal, kind, fmt.Errorf("feed status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewError(models.SourceInternal, KindUnreachable, fmt.Errorf("read feed: %w", err))
	}

	raw, err := decodeICS(strings.NewReader(string(body)), from, to)
	if err != nil {
		return nil, NewError(models.SourceInternal, KindBadResponse, err)
	}
	return raw, nil
}

// decodeICS decodes every calendar object in r and keeps VEVENTs that
// intersect [from, to).
func decodeICS(r io.Reader, from, to time.Time) ([]RawEvent, error) {
	decoder := ical.NewDecoder(r)
	var out []RawEvent

	for {
		cal, err := decoder.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode calendar: %w", err)
		}

		for _, comp := range cal.Children {
			if comp.Name != ical.CompEvent {
				continue
			}
			raw, eventStart, eventEnd, ok := componentToRaw(comp)
			if !ok {
				continue
			}
			if eventStart.Before(to) && from.Before(eventEnd) {
				out = append(out, raw)
			}
		}
	}
	return out, nil
}

// componentToRaw maps one VEVENT into a RawEvent. Date-only DTSTART/DTEND
// values stay date-formatted so the normalizer can detect all-day events.
func componentToRaw(comp *ical.Component) (RawEvent, time.Time, time.Time, bool) {
	raw := RawEvent{Synced: true}

	if p := comp.Props.Get(ical.PropUID); p != nil {
		raw.ID = p.Value
	}
	if p := comp.Props.Get(ical.PropSummary); p != nil {
		raw.Title = p.Value
	}
	if p := comp.Props.Get(ical.PropLocation); p != nil {
		raw.Location = p.Value
	}
	if p := comp.Props.Get(ical.PropOrganizer); p != nil {
		raw.Owner = strings.TrimPrefix(strings.ToLower(p.Value), "mailto:")
	}
	for _, p := range comp.Props.Values(ical.PropAttendee) {
		email := strings.TrimPrefix(strings.ToLower(p.Value), "mailto:")
		name := p.Params.Get(ical.ParamCommonName)
		raw.Attendees = append(raw.Attendees, RawAttendee{Email: email, Name: name})
	}
	if p := comp.Props.Get(ical.PropLastModified); p != nil {
		if t, err := p.DateTime(time.UTC); err == nil {
			raw.UpdatedAt = t.UTC().Format(time.RFC3339)
		}
	}

	startProp := comp.Props.Get(ical.PropDateTimeStart)
	endProp := comp.Props.Get(ical.PropDateTimeEnd)
	if startProp == nil || endProp == nil {
		return raw, time.Time{}, time.Time{}, false
	}

	start, startStr, err := icsTime(startProp)
	if err != nil {
		return raw, time.Time{}, time.Time{}, false
	}
	end, endStr, err := icsTime(endProp)
	if err != nil {
		return raw, time.Time{}, time.Time{}, false
	}

	raw.Start = startStr
	raw.End = endStr
	return raw, start, end, true
}

// icsTime parses an ICS date or date-time property. Date-only values are
// rendered as 2006-01-02, timed values as RFC3339 in UTC.
func icsTime(prop *ical.Prop) (time.Time, string, error) {
	if prop.Params.Get(ical.ParamValue) == "DATE" || len(prop.Value) == 8 {
		t, err := time.ParseInLocation("20060102", prop.Value, time.UTC)
		if err != nil {
			return time.Time{}, "", fmt.Errorf("parse date %q: %w", prop.Value, err)
		}
		return t, t.Format("2006-01-02"), nil
	}
	t, err := prop.DateTime(time.UTC)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("parse datetime %q: %w", prop.Value, err)
	}
	t = t.UTC()
	return t, t.Format(time.RFC3339), nil
}

// Push implements SourceAdapter; the ICS feed is read-only.
func (a *ICSAdapter) Push(ctx context.Context, userID string, events []models.Event) (*PushResult, error) {
	return nil, ErrPushNotSupported
}

// Authenticate verifies the feed is reachable. ICS feeds carry their
// credential in the URL, so a HEAD probe is the whole check.
func (a *ICSAdapter) Authenticate(ctx context.Context, userID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, a.feedURL, nil)
	if err != nil {
		return "", NewError(models.SourceInternal, KindBadResponse, err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return "", NewError(models.SourceInternal, KindUnreachable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", NewError(models.SourceInternal, KindAuth, fmt.Errorf("feed status %d", resp.StatusCode))
	}
	return "ok", nil
}

// Disconnect implements SourceAdapter; nothing to tear down for a feed.
func (a *ICSAdapter) Disconnect(ctx context.Context, userID string) error {
	return nil
}

// parseWindow parses the RFC3339 window bounds shared by all adapters.
func parseWindow(start, end string) (time.Time, time.Time, error) {
	from, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse window start %q: %w", start, err)
	}
	to, err := time.Parse(time.RFC3339, end)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse window end %q: %w", end, err)
	}
	return from, to, nil
}
