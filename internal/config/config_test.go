package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unsetEnv removes a variable for the test while restoring it afterwards.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	_ = os.Unsetenv(key)
}

func TestLoadDefaults(t *testing.T) {
	unsetEnv(t, "PORT")
	unsetEnv(t, "POLL_INTERVAL")
	unsetEnv(t, "BACKEND_URL")
	t.Setenv("DATABASE_URL", "postgres://localhost/ideators")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, "http://localhost:8000", cfg.BackendURL)
	assert.Equal(t, "postgres://localhost/ideators", cfg.DatabaseURL)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://localhost/ideators")
	t.Setenv("WEBHOOK_SECRET", "s3cret")
	t.Setenv("BACKEND_URL", "http://pipeline:8000")
	t.Setenv("POLL_INTERVAL", "10s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "s3cret", cfg.WebhookSecret)
	assert.Equal(t, "http://pipeline:8000", cfg.BackendURL)
	assert.Equal(t, 10*time.Second, cfg.PollInterval)
}

func TestValidateServe(t *testing.T) {
	base := Config{
		Port:         8080,
		DatabaseURL:  "postgres://localhost/ideators",
		PollInterval: 5 * time.Second,
	}

	t.Run("valid", func(t *testing.T) {
		cfg := base
		assert.NoError(t, cfg.ValidateServe())
	})

	t.Run("missing database url", func(t *testing.T) {
		cfg := base
		cfg.DatabaseURL = ""
		assert.Error(t, cfg.ValidateServe())
	})

	t.Run("port out of range", func(t *testing.T) {
		cfg := base
		cfg.Port = 70000
		assert.Error(t, cfg.ValidateServe())
	})

	t.Run("webhook secret not required at startup", func(t *testing.T) {
		cfg := base
		cfg.WebhookSecret = ""
		assert.NoError(t, cfg.ValidateServe())
	})
}
