// Package config provides configuration loading and validation for the service.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds the runtime configuration for the API server and CLI.
// All values are sourced from environment variables (a .env file is loaded
// by main when present).
type Config struct {
	Port          int           `koanf:"port"`
	DatabaseURL   string        `koanf:"database_url"`
	WebhookSecret string        `koanf:"webhook_secret"`
	BackendURL    string        `koanf:"backend_url"`
	PollInterval  time.Duration `koanf:"poll_interval"`
}

// Load reads configuration from environment variables.
// Recognized variables: PORT, DATABASE_URL, WEBHOOK_SECRET, BACKEND_URL,
// POLL_INTERVAL (Go duration string, e.g. "5s").
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(env.Provider("", ".", strings.ToLower), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	// Defaults
	if !k.Exists("port") {
		k.Set("port", 8080)
	}
	if !k.Exists("poll_interval") {
		k.Set("poll_interval", "5s")
	}
	if !k.Exists("backend_url") {
		k.Set("backend_url", "http://localhost:8000")
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// ValidateServe checks the fields required to run the API server.
// WEBHOOK_SECRET is deliberately not required here: its absence is reported
// per-request as a server configuration error so webhook misconfiguration is
// triaged as operational rather than preventing startup of read endpoints.
func (c *Config) ValidateServe() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got: %d", c.Port)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive, got: %s", c.PollInterval)
	}
	return nil
}
