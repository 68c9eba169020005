// Horologium - Multi-Source Calendar Aggregation and Conflict Resolution
// Copyright 2026 Horologium Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/horologium/horologium

// Package connection models per-user source connections. Each provider
// declares its own credential shape as a tagged variant; invalid configs
// are rejected before any network call is made.
package connection

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/horologium/horologium/internal/models"
	"github.com/horologium/horologium/internal/validation"
)

// SyncDirection controls which way events flow for a connection.
type SyncDirection string

const (
	DirectionPull SyncDirection = "pull"
	DirectionPush SyncDirection = "push"
	DirectionBoth SyncDirection = "both"
)

// Valid reports whether d is a known direction.
func (d SyncDirection) Valid() bool {
	switch d {
	case DirectionPull, DirectionPush, DirectionBoth:
		return true
	}
	return false
}

// Pulls reports whether the direction includes pulling.
func (d SyncDirection) Pulls() bool { return d == DirectionPull || d == DirectionBoth }

// Pushes reports whether the direction includes pushing.
func (d SyncDirection) Pushes() bool { return d == DirectionPush || d == DirectionBoth }

// Record is one user's connection to one source. Config holds the
// provider-specific credential variant, serialized by provider type.
type Record struct {
	UserID      string          `json:"user_id"`
	Source      models.Source   `json:"source"`
	Direction   SyncDirection   `json:"direction"`
	SyncEnabled bool            `json:"sync_enabled"`
	Config      json.RawMessage `json:"config"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ProviderConfig is the contract every provider credential variant
// satisfies: declare required/optional fields via validate tags and check
// them before any network call.
type ProviderConfig interface {
	// Validate returns one message per invalid or missing field, empty
	// when the config is usable.
	Validate() []string
}

// InternalConfig is the internal ICS feed credential shape.
type InternalConfig struct {
	FeedURL string `json:"feed_url" validate:"required,url"`
}

// BookingLinkConfig is the booking-link service credential shape.
type BookingLinkConfig struct {
	URL    string `json:"url" validate:"required,url"`
	APIKey string `json:"api_key" validate:"required,min=16"`
}

// OAuthConfig is the OAuth calendar credential shape. RefreshToken is
// optional: absent means the grant flow has not completed yet.
type OAuthConfig struct {
	URL          string `json:"url" validate:"required,url"`
	ClientID     string `json:"client_id" validate:"required"`
	ClientSecret string `json:"client_secret" validate:"required"`
	TokenURL     string `json:"token_url" validate:"required,url"`
	RefreshToken string `json:"refresh_token" validate:"omitempty,min=8"`
}

// CRMConfig is the CRM calendar credential shape.
type CRMConfig struct {
	URL    string `json:"url" validate:"required,url"`
	APIKey string `json:"api_key" validate:"required,min=16"`
}

func validateStruct(s interface{}) []string {
	err := validation.ValidateStruct(s)
	if err == nil {
		return nil
	}
	var re *validation.RequestError
	if errors.As(err, &re) {
		msgs := make([]string, 0, len(re.Fields()))
		for _, fe := range re.Fields() {
			msgs = append(msgs, fe.Message)
		}
		return msgs
	}
	return []string{err.Error()}
}

// Validate implements ProviderConfig.
func (c *InternalConfig) Validate() []string { return validateStruct(c) }

// Validate implements ProviderConfig.
func (c *BookingLinkConfig) Validate() []string { return validateStruct(c) }

// Validate implements ProviderConfig.
func (c *OAuthConfig) Validate() []string { return validateStruct(c) }

// Validate implements ProviderConfig.
func (c *CRMConfig) Validate() []string { return validateStruct(c) }

// ParseConfig decodes the provider-specific config variant for a source.
// Unknown sources and undecodable payloads are errors; field-level
// problems are reported by the variant's Validate.
func ParseConfig(source models.Source, raw json.RawMessage) (ProviderConfig, error) {
	var cfg ProviderConfig
	switch source {
	case models.SourceInternal:
		cfg = &InternalConfig{}
	case models.SourceBookingLink:
		cfg = &BookingLinkConfig{}
	case models.SourceOAuth:
		cfg = &OAuthConfig{}
	case models.SourceCRM:
		cfg = &CRMConfig{}
	default:
		return nil, fmt.Errorf("unknown source %q", source)
	}
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("decode %s config: %w", source, err)
	}
	return cfg, nil
}

// ValidateRecord checks a connection record end to end: source, direction,
// and the provider config variant. Returns field messages, empty when ok.
func ValidateRecord(rec *Record) ([]string, error) {
	var msgs []string
	if rec.UserID == "" {
		msgs = append(msgs, "user_id is required")
	}
	if !rec.Source.Valid() {
		msgs = append(msgs, fmt.Sprintf("unknown source %q", rec.Source))
		return msgs, nil
	}
	if !rec.Direction.Valid() {
		msgs = append(msgs, fmt.Sprintf("unknown direction %q", rec.Direction))
	}
	cfg, err := ParseConfig(rec.Source, rec.Config)
	if err != nil {
		return nil, err
	}
	msgs = append(msgs, cfg.Validate()...)
	return msgs, nil
}
