// Horologium - Multi-Source Calendar Aggregation and Conflict Resolution
// Copyright 2026 Horologium Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/horologium/horologium

package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/horologium/horologium/internal/validation"
)

// createEventRequest is the payload for creating an internal event.
type createEventRequest struct {
	Title     string `json:"title" validate:"required,min=1,max=512"`
	Start     string `json:"start" validate:"required,rfc3339"`
	End       string `json:"end" validate:"required,rfc3339"`
	Location  string `json:"location" validate:"max=512"`
	UserID    string `json:"user_id" validate:"required"`
	Attendees []struct {
		Email string `json:"email" validate:"required,email"`
		Name  string `json:"name" validate:"max=256"`
	} `json:"attendees" validate:"dive"`
}

// resolveConflictRequest is the payload for resolving one conflict.
type resolveConflictRequest struct {
	Strategy   string `json:"strategy" validate:"required,oneof=local_wins remote_wins newest_wins manual"`
	ResolvedBy string `json:"resolved_by" validate:"required,min=1,max=256"`
}

// autoResolveRequest is the payload for batch auto-resolution.
type autoResolveRequest struct {
	Strategy   string `json:"strategy" validate:"required,oneof=local_wins remote_wins newest_wins manual"`
	ResolvedBy string `json:"resolved_by" validate:"required,min=1,max=256"`
}

// upsertConnectionRequest is the payload for creating or updating a
// source connection. Config is validated against the provider's own
// credential shape before anything touches the network.
type upsertConnectionRequest struct {
	Direction   string          `json:"direction" validate:"required,oneof=pull push both"`
	SyncEnabled bool            `json:"sync_enabled"`
	Config      json.RawMessage `json:"config" validate:"required"`
}

// decodeAndValidate decodes the JSON body into v and runs struct
// validation, writing the error response itself on failure.
func decodeAndValidate(rw *ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		rw.BadRequest(fmt.Sprintf("invalid JSON body: %v", err))
		return false
	}
	if err := validation.ValidateStruct(v); err != nil {
		var re *validation.RequestError
		if errors.As(err, &re) {
			rw.ValidationError("request validation failed", re.Fields())
		} else {
			rw.BadRequest(err.Error())
		}
		return false
	}
	return true
}

// parseTimeRange parses the required start/end query parameters.
func parseTimeRange(r *http.Request) (time.Time, time.Time, error) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")
	if startStr == "" || endStr == "" {
		return time.Time{}, time.Time{}, errors.New("start and end query parameters are required")
	}
	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start: %w", err)
	}
	end, err := time.Parse(time.RFC3339, endStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end: %w", err)
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, errors.New("end must be after start")
	}
	return start, end, nil
}
