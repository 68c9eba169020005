// Horologium - Multi-Source Calendar Aggregation and Conflict Resolution
// Copyright 2026 Horologium Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/horologium/horologium

package config

import (
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	if cfg.Server.Port != 8484 {
		t.Errorf("unexpected default port %d", cfg.Server.Port)
	}
	if cfg.Sync.Lookahead != 30*24*time.Hour {
		t.Errorf("unexpected default lookahead %s", cfg.Sync.Lookahead)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port out of range", func(c *Config) { c.Server.Port = 0 }},
		{"sync interval too short", func(c *Config) { c.Sync.Interval = time.Second }},
		{"zero adapter timeout", func(c *Config) { c.Sync.AdapterTimeout = 0 }},
		{"negative retries", func(c *Config) { c.Sync.RetryAttempts = -1 }},
		{"zero monitor window", func(c *Config) { c.Monitor.Window = 0 }},
		{"zero alert ring", func(c *Config) { c.Monitor.RecentAlerts = 0 }},
		{"max page below default", func(c *Config) { c.API.MaxPageSize = 10 }},
		{"internal enabled without feed", func(c *Config) { c.Sources.Internal.Enabled = true }},
		{"booking enabled without url", func(c *Config) { c.Sources.BookingLink.Enabled = true }},
		{"oauth enabled without url", func(c *Config) { c.Sources.OAuth.Enabled = true }},
		{"crm enabled without url", func(c *Config) { c.Sources.CRM.Enabled = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_PATH", "/nonexistent/horologium.yaml")
	t.Setenv("HORO_SERVER_PORT", "9999")
	t.Setenv("HORO_SYNC_INTERVAL", "10m")
	t.Setenv("HORO_SOURCES__CRM_CALENDAR__ENABLED", "true")
	t.Setenv("HORO_SOURCES__CRM_CALENDAR__URL", "https://crm.example.com")
	t.Setenv("HORO_SOURCES__CRM_CALENDAR__API_KEY", "0123456789abcdef")

	// CONFIG_PATH points at a missing file on purpose: load must fail rather
	// than silently skip an explicitly requested file.
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing CONFIG_PATH file")
	}

	t.Setenv("CONFIG_PATH", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("env override lost: port %d", cfg.Server.Port)
	}
	if cfg.Sync.Interval != 10*time.Minute {
		t.Errorf("env override lost: interval %s", cfg.Sync.Interval)
	}
	if !cfg.Sources.CRM.Enabled || cfg.Sources.CRM.URL != "https://crm.example.com" {
		t.Errorf("double-underscore env mapping broken: %+v", cfg.Sources.CRM)
	}
}

func TestEnvTransform(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"HORO_SERVER_PORT", "server.port"},
		{"HORO_LOG_LEVEL", "log.level"},
		{"HORO_SOURCES__BOOKING_LINK__API_KEY", "sources.booking_link.api_key"},
		{"HORO_SYNC_INTERVAL", "sync.interval"},
	}
	for _, tt := range tests {
		if got := envTransform(tt.in); got != tt.want {
			t.Errorf("envTransform(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
