// Horologium - Multi-Source Calendar Aggregation and Conflict Resolution
// Copyright 2026 Horologium Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/horologium/horologium

// Package config defines application configuration and its koanf-based
// layered loading: built-in defaults, then an optional YAML file, then
// environment variables (highest priority).
package config

import (
	"fmt"
	"time"
)

// Config is the root application configuration.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Log     LogConfig     `koanf:"log"`
	Store   StoreConfig   `koanf:"store"`
	Sync    SyncConfig    `koanf:"sync"`
	Sources SourcesConfig `koanf:"sources"`
	Monitor MonitorConfig `koanf:"monitor"`
	Insight InsightConfig `koanf:"insight"`
	API     APIConfig     `koanf:"api"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// StoreConfig configures the BadgerDB persistence layer.
type StoreConfig struct {
	// Path is the BadgerDB directory. Empty means in-memory (tests).
	Path string `koanf:"path"`
	// GCInterval is how often the value-log garbage collector runs.
	GCInterval time.Duration `koanf:"gc_interval"`
}

// SyncConfig configures the sync orchestrator.
type SyncConfig struct {
	// Interval between periodic sweeps across all sync-enabled users.
	Interval time.Duration `koanf:"interval"`
	// Lookback and Lookahead bound the time window pulled from adapters.
	Lookback  time.Duration `koanf:"lookback"`
	Lookahead time.Duration `koanf:"lookahead"`
	// AdapterTimeout bounds every single adapter call. A timeout is treated
	// identically to an adapter failure.
	AdapterTimeout time.Duration `koanf:"adapter_timeout"`
	// RetryAttempts and RetryDelay control retries of transient adapter errors.
	RetryAttempts int           `koanf:"retry_attempts"`
	RetryDelay    time.Duration `koanf:"retry_delay"`
}

// SourcesConfig groups the per-provider source configurations.
type SourcesConfig struct {
	Internal    InternalSourceConfig `koanf:"internal"`
	BookingLink BookingLinkConfig    `koanf:"booking_link"`
	OAuth       OAuthCalendarConfig  `koanf:"oauth_calendar"`
	CRM         CRMCalendarConfig    `koanf:"crm_calendar"`
}

// InternalSourceConfig configures the internal operations calendar, which
// is consumed as an ICS feed.
type InternalSourceConfig struct {
	Enabled bool   `koanf:"enabled"`
	FeedURL string `koanf:"feed_url"`
}

// BookingLinkConfig configures the booking-link service source.
type BookingLinkConfig struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url"`
	APIKey  string `koanf:"api_key"`
}

// OAuthCalendarConfig configures the generic OAuth calendar source.
type OAuthCalendarConfig struct {
	Enabled      bool   `koanf:"enabled"`
	URL          string `koanf:"url"`
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
	TokenURL     string `koanf:"token_url"`
	RefreshToken string `koanf:"refresh_token"`
}

// CRMCalendarConfig configures the third-party CRM calendar source.
type CRMCalendarConfig struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url"`
	APIKey  string `koanf:"api_key"`
}

// MonitorConfig configures the realtime risk classifier.
type MonitorConfig struct {
	// Window is the half-width of the lookup window around a new event.
	Window time.Duration `koanf:"window"`
	// RecentAlerts bounds the in-memory ring buffer of recent alerts.
	RecentAlerts int `koanf:"recent_alerts"`
}

// InsightConfig configures the best-effort advisory collaborator.
type InsightConfig struct {
	Enabled bool          `koanf:"enabled"`
	URL     string        `koanf:"url"`
	Timeout time.Duration `koanf:"timeout"`
}

// APIConfig configures API behavior.
type APIConfig struct {
	DefaultPageSize int           `koanf:"default_page_size"`
	MaxPageSize     int           `koanf:"max_page_size"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// defaultConfig returns the built-in defaults, applied before file and
// environment overrides.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8484,
			Timeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Store: StoreConfig{
			Path:       "/data/horologium",
			GCInterval: 10 * time.Minute,
		},
		Sync: SyncConfig{
			Interval:       5 * time.Minute,
			Lookback:       24 * time.Hour,
			Lookahead:      30 * 24 * time.Hour,
			AdapterTimeout: 15 * time.Second,
			RetryAttempts:  3,
			RetryDelay:     2 * time.Second,
		},
		Sources: SourcesConfig{
			Internal:    InternalSourceConfig{Enabled: false},
			BookingLink: BookingLinkConfig{Enabled: false},
			OAuth:       OAuthCalendarConfig{Enabled: false},
			CRM:         CRMCalendarConfig{Enabled: false},
		},
		Monitor: MonitorConfig{
			Window:       time.Hour,
			RecentAlerts: 256,
		},
		Insight: InsightConfig{
			Enabled: false,
			Timeout: 5 * time.Second,
		},
		API: APIConfig{
			DefaultPageSize: 50,
			MaxPageSize:     500,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
	}
}

// Validate checks cross-field constraints that koanf cannot express.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Sync.Interval < time.Minute {
		return fmt.Errorf("sync.interval %s below minimum 1m", c.Sync.Interval)
	}
	if c.Sync.AdapterTimeout <= 0 {
		return fmt.Errorf("sync.adapter_timeout must be positive")
	}
	if c.Sync.RetryAttempts < 0 {
		return fmt.Errorf("sync.retry_attempts must not be negative")
	}
	if c.Monitor.Window <= 0 {
		return fmt.Errorf("monitor.window must be positive")
	}
	if c.Monitor.RecentAlerts < 1 {
		return fmt.Errorf("monitor.recent_alerts must be at least 1")
	}
	if c.API.MaxPageSize < c.API.DefaultPageSize {
		return fmt.Errorf("api.max_page_size %d below default_page_size %d",
			c.API.MaxPageSize, c.API.DefaultPageSize)
	}
	if c.Sources.Internal.Enabled && c.Sources.Internal.FeedURL == "" {
		return fmt.Errorf("sources.internal.feed_url required when enabled")
	}
	if c.Sources.BookingLink.Enabled && c.Sources.BookingLink.URL == "" {
		return fmt.Errorf("sources.booking_link.url required when enabled")
	}
	if c.Sources.OAuth.Enabled && c.Sources.OAuth.URL == "" {
		return fmt.Errorf("sources.oauth_calendar.url required when enabled")
	}
	if c.Sources.CRM.Enabled && c.Sources.CRM.URL == "" {
		return fmt.Errorf("sources.crm_calendar.url required when enabled")
	}
	return nil
}
