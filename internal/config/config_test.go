package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, int64(10*1024*1024), cfg.Storage.MaxUploadBytes)
	assert.Equal(t, 7*24*time.Hour, cfg.History.SessionTTL)
	assert.Equal(t, 50, cfg.History.MaxItems)
	assert.Equal(t, 3, cfg.AI.MaxRetries)
	assert.False(t, cfg.AIEnabled())

	require.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	yaml := `
server:
  port: 9090
storage:
  max_upload_bytes: 5242880
history:
  max_items: 10
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, int64(5242880), cfg.Storage.MaxUploadBytes)
	assert.Equal(t, 10, cfg.History.MaxItems)
	// Unspecified values keep defaults.
	assert.Equal(t, 30*time.Minute, cfg.Storage.TempMaxAge)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "7001")
	t.Setenv("ANTHROPIC_API_KEY", "test-key")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7001, cfg.Server.Port)
	assert.Equal(t, "test-key", cfg.AI.APIKey)
	assert.Equal(t, "warn", cfg.Observability.LogLevel)
	assert.True(t, cfg.AIEnabled())
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"zero upload limit", func(c *Config) { c.Storage.MaxUploadBytes = 0 }},
		{"empty temp dir", func(c *Config) { c.Storage.TempDir = "" }},
		{"zero history cap", func(c *Config) { c.History.MaxItems = 0 }},
		{"zero session ttl", func(c *Config) { c.History.SessionTTL = 0 }},
		{"zero retries", func(c *Config) { c.AI.MaxRetries = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
