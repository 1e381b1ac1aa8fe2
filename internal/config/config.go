// Package config loads sageops configuration from .sageops/config.yaml,
// applying defaults for anything unset and environment overrides on top.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file location relative to the working directory.
const DefaultPath = ".sageops/config.yaml"

// Config holds all sageops configuration.
type Config struct {
	// Backend connection
	Backend BackendConfig `yaml:"backend"`

	// Product generation defaults
	Product ProductConfig `yaml:"product"`

	// Research gate tuning
	Gate GateConfig `yaml:"gate"`

	// Workflow tuning
	Workflow WorkflowConfig `yaml:"workflow"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// BackendConfig configures the Sage backend connection.
type BackendConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`
}

// ProductConfig carries the defaults sent with plan and execute calls.
type ProductConfig struct {
	Market   string `yaml:"market"`
	Price    string `yaml:"price"`
	Sections int    `yaml:"sections"`
	Language string `yaml:"language"` // "auto" or a concrete tag like "ja"
}

// GateConfig tunes the research-readiness gate.
type GateConfig struct {
	DebounceMS    int    `yaml:"debounce_ms"`
	LookupTimeout string `yaml:"lookup_timeout"`
}

// WorkflowConfig tunes the orchestrator.
type WorkflowConfig struct {
	ErrorWindow string `yaml:"error_window"` // how long error/info messages stay visible
}

// LoggingConfig configures category file logging. The same block is read
// by the logging package at startup; category names map to an on/off
// switch, with unlisted categories enabled by default in debug mode.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL: "http://localhost:5000",
			Timeout: "120s",
		},
		Product: ProductConfig{
			Market:   "US",
			Price:    "$29",
			Sections: 5,
			Language: "auto",
		},
		Gate: GateConfig{
			DebounceMS:    600,
			LookupTimeout: "15s",
		},
		Workflow: WorkflowConfig{
			ErrorWindow: "7s",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file. A missing file is not an
// error; defaults apply.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save writes configuration to a YAML file, creating directories as needed.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if url := os.Getenv("SAGEOPS_BACKEND_URL"); url != "" {
		c.Backend.BaseURL = url
	}
	if timeout := os.Getenv("SAGEOPS_BACKEND_TIMEOUT"); timeout != "" {
		c.Backend.Timeout = timeout
	}
	if market := os.Getenv("SAGEOPS_MARKET"); market != "" {
		c.Product.Market = market
	}
	if price := os.Getenv("SAGEOPS_PRICE"); price != "" {
		c.Product.Price = price
	}
	if sections := os.Getenv("SAGEOPS_SECTIONS"); sections != "" {
		if n, err := strconv.Atoi(sections); err == nil && n > 0 {
			c.Product.Sections = n
		}
	}
	if lang := os.Getenv("SAGEOPS_LANGUAGE"); lang != "" {
		c.Product.Language = lang
	}
	if debug := os.Getenv("SAGEOPS_DEBUG"); debug != "" {
		if on, err := strconv.ParseBool(debug); err == nil {
			c.Logging.DebugMode = on
		}
	}
}

// BackendTimeout returns the backend call timeout as a duration.
func (c *Config) BackendTimeout() time.Duration {
	d, err := time.ParseDuration(c.Backend.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// GateDebounce returns the gate debounce window as a duration.
func (c *Config) GateDebounce() time.Duration {
	if c.Gate.DebounceMS <= 0 {
		return 600 * time.Millisecond
	}
	return time.Duration(c.Gate.DebounceMS) * time.Millisecond
}

// GateLookupTimeout returns the gate lookup timeout as a duration.
func (c *Config) GateLookupTimeout() time.Duration {
	d, err := time.ParseDuration(c.Gate.LookupTimeout)
	if err != nil {
		return 15 * time.Second
	}
	return d
}

// ErrorWindow returns the message display window as a duration.
func (c *Config) ErrorWindow() time.Duration {
	d, err := time.ParseDuration(c.Workflow.ErrorWindow)
	if err != nil {
		return 7 * time.Second
	}
	return d
}

// Validate checks the configuration for values the client cannot work with.
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend base_url not configured (set SAGEOPS_BACKEND_URL or backend.base_url)")
	}
	if c.Product.Sections <= 0 {
		return fmt.Errorf("product.sections must be positive, got %d", c.Product.Sections)
	}
	if c.Product.Market == "" {
		return fmt.Errorf("product.market must not be empty")
	}
	return nil
}
