// CodeQuarry Admin - Learning Platform Administration Server
// Copyright 2026 CodeQuarry Maintainers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/codequarry/adminserver

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order
// of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/codequarry/config.yaml",
	"/etc/codequarry/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all defaults applied. These are loaded
// first, then overridden by the config file and environment variables.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8085,
			Timeout:     30 * time.Second,
			Environment: "development",
			CORSOrigins: []string{"*"},
		},
		Security: SecurityConfig{
			JWTSecret:        "",
			SessionTimeout:   24 * time.Hour,
			SessionStore:     "memory",
			SessionStorePath: "/data/sessions",
			AdminEmail:       "",
			AdminPassword:    "",
		},
		RateLimit: RateLimitConfig{
			Disabled: false,
			General:  RateLimitPolicy{Limit: 100, Window: 15 * time.Minute},
			Auth:     RateLimitPolicy{Limit: 5, Window: 15 * time.Minute},
			API:      RateLimitPolicy{Limit: 60, Window: time.Minute},
		},
		Audit: AuditConfig{
			MaxEntries:    1000,
			Retention:     30 * 24 * time.Hour,
			PruneInterval: time.Hour,
			SinkEnabled:   false,
			SinkPath:      "/data/audit.log",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load loads configuration using Koanf v2 with layered sources:
//
//  1. Defaults: built-in sensible defaults
//  2. Config file: optional YAML file (if one exists)
//  3. Environment variables: override any setting
func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Environment variable names map to koanf paths:
	// JWT_SECRET -> security.jwt_secret, AUDIT_SINK_PATH -> audit.sink_path
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// envMappings maps flat environment variable names to nested config paths.
// Variables not listed here are ignored so unrelated environment noise
// (PATH, HOME, ...) never leaks into the configuration.
var envMappings = map[string]string{
	"host":        "server.host",
	"port":        "server.port",
	"http_port":   "server.port",
	"environment": "server.environment",

	"jwt_secret":         "security.jwt_secret",
	"session_timeout":    "security.session_timeout",
	"session_store":      "security.session_store",
	"session_store_path": "security.session_store_path",
	"admin_email":        "security.admin_email",
	"admin_password":     "security.admin_password",

	"rate_limit_disabled":       "rate_limit.disabled",
	"rate_limit_general_limit":  "rate_limit.general.limit",
	"rate_limit_general_window": "rate_limit.general.window",
	"rate_limit_auth_limit":     "rate_limit.auth.limit",
	"rate_limit_auth_window":    "rate_limit.auth.window",
	"rate_limit_api_limit":      "rate_limit.api.limit",
	"rate_limit_api_window":     "rate_limit.api.window",

	"audit_max_entries":    "audit.max_entries",
	"audit_retention":      "audit.retention",
	"audit_prune_interval": "audit.prune_interval",
	"audit_sink_enabled":   "audit.sink_enabled",
	"audit_sink_path":      "audit.sink_path",

	"cors_origins": "server.cors_origins",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config
// paths. Unknown variables map to the empty string and are skipped.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// sliceConfigPaths lists config paths parsed as comma-separated slices when
// supplied through environment variables.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields. Env vars arrive as plain strings.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		raw := k.Get(path)
		s, ok := raw.(string)
		if !ok {
			continue
		}

		parts := strings.Split(s, ",")
		values := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				values = append(values, trimmed)
			}
		}

		if err := k.Set(path, values); err != nil {
			return fmt.Errorf("set %s: %w", path, err)
		}
	}
	return nil
}
