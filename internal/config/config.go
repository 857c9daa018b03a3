// Package config provides unified configuration loading for the converter service.
// Supports YAML files, environment variables, and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the converter service.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Storage       StorageConfig       `yaml:"storage"`
	History       HistoryConfig       `yaml:"history"`
	AI            AIConfig            `yaml:"ai"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
}

// StorageConfig holds upload and artifact storage settings.
type StorageConfig struct {
	TempDir        string        `yaml:"temp_dir"`
	GeneratedDir   string        `yaml:"generated_dir"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
	TempMaxAge     time.Duration `yaml:"temp_max_age"`
	ArtifactMaxAge time.Duration `yaml:"artifact_max_age"`
	SweepInterval  time.Duration `yaml:"sweep_interval"`
}

// HistoryConfig holds conversion history settings.
type HistoryConfig struct {
	SessionTTL    time.Duration `yaml:"session_ttl"`
	MaxItems      int           `yaml:"max_items"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	PreviewRows   int           `yaml:"preview_rows"`
}

// AIConfig holds settings for the hosted extraction model.
type AIConfig struct {
	APIKey         string        `yaml:"api_key"`
	Model          string        `yaml:"model"`
	BaseURL        string        `yaml:"base_url"`
	MaxRetries     int           `yaml:"max_retries"`
	RetryDelay     time.Duration `yaml:"retry_delay"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	ServiceName string `yaml:"service_name"`
}

// Load reads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8080,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     60 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 10 * time.Second,
		},
		Storage: StorageConfig{
			TempDir:        "/tmp/statement-converter/uploads",
			GeneratedDir:   "/tmp/statement-converter/generated",
			MaxUploadBytes: 10 * 1024 * 1024,
			TempMaxAge:     30 * time.Minute,
			ArtifactMaxAge: 24 * time.Hour,
			SweepInterval:  1 * time.Hour,
		},
		History: HistoryConfig{
			SessionTTL:    7 * 24 * time.Hour,
			MaxItems:      50,
			SweepInterval: 1 * time.Hour,
			PreviewRows:   10,
		},
		AI: AIConfig{
			Model:          "claude-3-5-sonnet-20241022",
			BaseURL:        "https://api.anthropic.com/v1/messages",
			MaxRetries:     3,
			RetryDelay:     1 * time.Second,
			RequestTimeout: 30 * time.Second,
		},
		Observability: ObservabilityConfig{
			LogLevel:    "debug",
			LogFormat:   "json",
			ServiceName: "statement-converter",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Storage.MaxUploadBytes < 1 {
		return fmt.Errorf("max_upload_bytes must be positive")
	}

	if c.Storage.TempDir == "" || c.Storage.GeneratedDir == "" {
		return fmt.Errorf("storage directories must be set")
	}

	if c.History.MaxItems < 1 {
		return fmt.Errorf("history max_items must be at least 1")
	}

	if c.History.SessionTTL <= 0 {
		return fmt.Errorf("history session_ttl must be positive")
	}

	if c.AI.MaxRetries < 1 {
		return fmt.Errorf("ai max_retries must be at least 1")
	}

	return nil
}

// AIEnabled returns true if a hosted extraction key is configured.
func (c *Config) AIEnabled() bool {
	return c.AI.APIKey != ""
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if v := os.Getenv("TEMP_DIR"); v != "" {
		cfg.Storage.TempDir = v
	}

	if v := os.Getenv("GENERATED_DIR"); v != "" {
		cfg.Storage.GeneratedDir = v
	}

	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Storage.MaxUploadBytes = n
		}
	}

	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.AI.APIKey = v
	}

	if v := os.Getenv("ANTHROPIC_MODEL"); v != "" {
		cfg.AI.Model = v
	}

	if v := os.Getenv("ANTHROPIC_BASE_URL"); v != "" {
		cfg.AI.BaseURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}
