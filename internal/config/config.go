// CodeQuarry Admin - Learning Platform Administration Server
// Copyright 2026 CodeQuarry Maintainers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/codequarry/adminserver

// Package config provides layered configuration loading for the admin server.
// Settings come from built-in defaults, an optional YAML config file, and
// environment variables, in increasing order of precedence (Koanf v2).
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the admin server.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Security  SecurityConfig  `koanf:"security"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Audit     AuditConfig     `koanf:"audit"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`

	// Environment selects error verbosity: "development" returns detailed
	// internal error messages, "production" returns generic ones.
	Environment string `koanf:"environment"`

	// CORSOrigins lists allowed origins for the admin SPA.
	CORSOrigins []string `koanf:"cors_origins"`
}

// SecurityConfig holds authentication and session settings.
type SecurityConfig struct {
	// JWTSecret signs access tokens. Minimum 32 characters.
	JWTSecret string `koanf:"jwt_secret"`

	// SessionTimeout bounds access token and session lifetime.
	SessionTimeout time.Duration `koanf:"session_timeout"`

	// SessionStore selects the session registry backend: "memory" or "badger".
	SessionStore string `koanf:"session_store"`

	// SessionStorePath is the on-disk location for the badger backend.
	SessionStorePath string `koanf:"session_store_path"`

	// AdminEmail and AdminPassword seed the initial admin account.
	AdminEmail    string `koanf:"admin_email"`
	AdminPassword string `koanf:"admin_password"`
}

// RateLimitPolicy describes one fixed-window rate limit.
type RateLimitPolicy struct {
	// Limit is the maximum number of counted requests per window.
	Limit int `koanf:"limit"`

	// Window is the fixed window duration.
	Window time.Duration `koanf:"window"`
}

// RateLimitConfig holds the three route-class policies.
// Each is independently overridable; a zero Limit disables that class.
type RateLimitConfig struct {
	Disabled bool            `koanf:"disabled"` // for CI / load testing
	General  RateLimitPolicy `koanf:"general"`
	Auth     RateLimitPolicy `koanf:"auth"`
	API      RateLimitPolicy `koanf:"api"`
}

// AuditConfig holds audit log engine settings.
type AuditConfig struct {
	// MaxEntries bounds the in-memory window; oldest entries drop first.
	MaxEntries int `koanf:"max_entries"`

	// Retention is how long in-memory entries are kept before pruning.
	Retention time.Duration `koanf:"retention"`

	// PruneInterval is how often the prune service runs.
	PruneInterval time.Duration `koanf:"prune_interval"`

	// SinkEnabled turns on the durable append-only NDJSON sink.
	SinkEnabled bool `koanf:"sink_enabled"`

	// SinkPath is the durable sink file location.
	SinkPath string `koanf:"sink_path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// IsProduction reports whether the server runs with production error policy.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	if err := c.validateRateLimit(); err != nil {
		return err
	}
	return c.validateAudit()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	switch c.Server.Environment {
	case "development", "production":
		return nil
	default:
		return fmt.Errorf("server.environment must be development or production, got %q", c.Server.Environment)
	}
}

func (c *Config) validateSecurity() error {
	if c.Security.JWTSecret == "" {
		return fmt.Errorf("security.jwt_secret is required")
	}
	if len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("security.jwt_secret must be at least 32 characters, got %d", len(c.Security.JWTSecret))
	}
	if c.Security.SessionTimeout <= 0 {
		return fmt.Errorf("security.session_timeout must be positive")
	}
	switch c.Security.SessionStore {
	case "memory":
	case "badger":
		if c.Security.SessionStorePath == "" {
			return fmt.Errorf("security.session_store_path is required for the badger session store")
		}
	default:
		return fmt.Errorf("security.session_store must be memory or badger, got %q", c.Security.SessionStore)
	}
	if c.Security.AdminEmail != "" && c.Security.AdminPassword == "" {
		return fmt.Errorf("security.admin_password is required when security.admin_email is set")
	}
	if c.Security.AdminPassword != "" && len(c.Security.AdminPassword) < 8 {
		return fmt.Errorf("security.admin_password must be at least 8 characters")
	}
	return nil
}

func (c *Config) validateRateLimit() error {
	for _, p := range []struct {
		name   string
		policy RateLimitPolicy
	}{
		{"general", c.RateLimit.General},
		{"auth", c.RateLimit.Auth},
		{"api", c.RateLimit.API},
	} {
		if p.policy.Limit < 0 {
			return fmt.Errorf("rate_limit.%s.limit must not be negative", p.name)
		}
		if p.policy.Limit > 0 && p.policy.Window <= 0 {
			return fmt.Errorf("rate_limit.%s.window must be positive", p.name)
		}
	}
	return nil
}

func (c *Config) validateAudit() error {
	if c.Audit.MaxEntries <= 0 {
		return fmt.Errorf("audit.max_entries must be positive")
	}
	if c.Audit.SinkEnabled && c.Audit.SinkPath == "" {
		return fmt.Errorf("audit.sink_path is required when audit.sink_enabled is true")
	}
	return nil
}
