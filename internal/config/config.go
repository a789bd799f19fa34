// Package config loads sandbox configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all sandbox configuration.
type Config struct {
	Sandbox SandboxConfig
	Engine  EngineConfig
	Storage StorageConfig
	Logging LogConfig
}

// SandboxConfig holds per-sandbox execution settings.
type SandboxConfig struct {
	TimeoutMS     int    `envconfig:"SANDBOX_TIMEOUT_MS" default:"1000"`
	BootstrapPath string `envconfig:"SANDBOX_BOOTSTRAP_PATH" default:"v8/libjs"`
	GasLimit      uint64 `envconfig:"SANDBOX_GAS_LIMIT" default:"0"`
	MaxLogEntries int    `envconfig:"SANDBOX_MAX_LOG_ENTRIES" default:"1000"`
	Contract      string `envconfig:"SANDBOX_CONTRACT" default:"contract"`
}

// EngineConfig holds engine limits.
type EngineConfig struct {
	MemoryLimitMB    int `envconfig:"SANDBOX_MEMORY_LIMIT_MB" default:"0"`
	MaxCallStackSize int `envconfig:"SANDBOX_MAX_CALL_STACK" default:"1024"`
}

// StorageConfig holds storage capability settings.
type StorageConfig struct {
	DSN               string `envconfig:"SANDBOX_STORAGE_DSN" default:":memory:"`
	CompressThreshold int    `envconfig:"SANDBOX_STORAGE_COMPRESS_THRESHOLD" default:"1024"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// Timeout returns the execution deadline.
func (c SandboxConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Sandbox: SandboxConfig{
			TimeoutMS:     1000,
			BootstrapPath: "v8/libjs",
			MaxLogEntries: 1000,
			Contract:      "contract",
		},
		Engine: EngineConfig{
			MaxCallStackSize: 1024,
		},
		Storage: StorageConfig{
			DSN:               ":memory:",
			CompressThreshold: 1024,
		},
		Logging: LogConfig{
			Level: "info",
		},
	}
}

// Validate rejects values no sandbox can run with.
func (c *Config) Validate() error {
	if c.Sandbox.TimeoutMS <= 0 {
		return fmt.Errorf("invalid config: SANDBOX_TIMEOUT_MS must be positive, got %d", c.Sandbox.TimeoutMS)
	}
	if c.Sandbox.MaxLogEntries < 0 {
		return fmt.Errorf("invalid config: SANDBOX_MAX_LOG_ENTRIES must not be negative")
	}
	if c.Sandbox.Contract == "" {
		return fmt.Errorf("invalid config: SANDBOX_CONTRACT must not be empty")
	}
	if c.Engine.MemoryLimitMB < 0 || c.Engine.MaxCallStackSize < 0 {
		return fmt.Errorf("invalid config: engine limits must not be negative")
	}
	if c.Storage.CompressThreshold < 0 {
		return fmt.Errorf("invalid config: SANDBOX_STORAGE_COMPRESS_THRESHOLD must not be negative")
	}
	return nil
}
