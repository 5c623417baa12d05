// GPS Realtime Tracker - Fleet Dashboard and Traccar Session Relay
// Copyright 2026 8Technologia
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/8technologia/gps-realtime-tracker

// Package config loads and validates application configuration from
// defaults, an optional YAML file, and environment variables.
package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config is the root application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Upstream UpstreamConfig `koanf:"upstream"`
	Map      MapConfig      `koanf:"map"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	StaticDir       string        `koanf:"static_dir"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// UpstreamConfig holds the Traccar server connection settings.
// Email and Password may be empty at startup; authentication against
// the upstream then fails lazily on first use rather than at boot.
type UpstreamConfig struct {
	URL      string        `koanf:"url"`
	Email    string        `koanf:"email"`
	Password string        `koanf:"password"`
	Timeout  time.Duration `koanf:"timeout"`
}

// MapConfig holds settings exposed to the browser frontend.
type MapConfig struct {
	MapboxToken string `koanf:"mapbox_token"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Validate checks the configuration for structural errors. Missing
// upstream credentials are not an error here: the relay reports them
// as an authentication failure when a request actually needs them.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be positive, got %s", c.Server.ShutdownTimeout)
	}
	if c.Upstream.URL == "" {
		return fmt.Errorf("upstream.url is required")
	}
	u, err := url.Parse(c.Upstream.URL)
	if err != nil {
		return fmt.Errorf("upstream.url is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("upstream.url must use http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("upstream.url is missing a host")
	}
	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("upstream.timeout must be positive, got %s", c.Upstream.Timeout)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
