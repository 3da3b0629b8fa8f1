// Package config provides configuration loading and validation for the
// registry daemon.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment variable configuration
const EnvPrefix = "CASKD"

// Defaults applied when a field is absent from the configuration file
const (
	// DefaultRefreshInterval is the default period between refresh passes
	DefaultRefreshInterval = "6h"

	// DefaultDataDir is the default root for persisted state and caches
	DefaultDataDir = "./data"

	// DefaultAddress is the default HTTP listen address
	DefaultAddress = ":8080"
)

// Config represents the root configuration structure
type Config struct {
	// DefaultRepository is seeded into the repository list on first start
	DefaultRepository string `yaml:"defaultRepository"`

	// RefreshInterval is the period between background refresh passes,
	// as a Go duration string
	RefreshInterval string `yaml:"refreshInterval,omitempty"`

	// DataDir is the root directory for persisted state and index caches
	DataDir string `yaml:"dataDir,omitempty"`

	// Address is the HTTP listen address
	Address string `yaml:"address,omitempty"`

	// Metrics configures the telemetry endpoint
	Metrics MetricsConfig `yaml:"metrics,omitempty"`
}

// MetricsConfig configures metric collection and exposure
type MetricsConfig struct {
	// Enabled exposes Prometheus metrics on /metrics when true
	Enabled bool `yaml:"enabled"`
}

// Option defines the interface for configuration loader options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) && !filepath.IsLocal(realPath) {
			return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
		}

		cfg.path = realPath
		return nil
	}
}

// Load reads, defaults, and validates a configuration
func Load(opts ...Option) (*Config, error) {
	loader := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loader); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if loader.path != "" {
		// #nosec G304 -- path is validated by WithConfigPath
		data, err := os.ReadFile(loader.path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults fills in defaults for absent fields
func (c *Config) applyDefaults() {
	if c.RefreshInterval == "" {
		c.RefreshInterval = DefaultRefreshInterval
	}
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}
	if c.Address == "" {
		c.Address = DefaultAddress
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.DefaultRepository == "" {
		return fmt.Errorf("defaultRepository is required")
	}

	parsed, err := url.Parse(c.DefaultRepository)
	if err != nil {
		return fmt.Errorf("defaultRepository is not a valid URL: %w", err)
	}
	switch parsed.Scheme {
	case "http", "https", "git", "file":
	default:
		return fmt.Errorf("defaultRepository has unsupported scheme %q", parsed.Scheme)
	}

	interval, err := time.ParseDuration(c.RefreshInterval)
	if err != nil {
		return fmt.Errorf("refreshInterval is not a valid duration: %w", err)
	}
	if interval <= 0 {
		return fmt.Errorf("refreshInterval must be positive, got %s", c.RefreshInterval)
	}

	return nil
}

// GetRefreshInterval returns the parsed refresh interval.
// Validate must have passed.
func (c *Config) GetRefreshInterval() time.Duration {
	interval, err := time.ParseDuration(c.RefreshInterval)
	if err != nil {
		return 0
	}
	return interval
}

// StateDir is where the persisted repository list lives
func (c *Config) StateDir() string {
	return filepath.Join(c.DataDir, "state")
}

// CacheDir is where per-repository index caches live
func (c *Config) CacheDir() string {
	return filepath.Join(c.DataDir, "cache")
}
