// Manages server configuration stored in config.yaml.

// Package config holds the server settings read from config.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the name of the configuration file in the data directory.
const FileName = "config.yaml"

// Config stores all server-wide configuration.
//
// Loaded from config.yaml, defaults are used for every missing field.
type Config struct {
	// HTTP is the address to listen on.
	HTTP string `yaml:"http"`

	// Dataset is the path of the CSV dataset. Relative paths are resolved
	// against the data directory.
	Dataset string `yaml:"dataset"`

	// MaxRequestBodyBytes limits the size of any single HTTP request body.
	// 0 means unlimited.
	MaxRequestBodyBytes int64 `yaml:"max_request_body_bytes"`

	// StrictRecords rejects appended records with negative age or children and
	// non-positive bmi or charges.
	StrictRecords bool `yaml:"strict_records"`

	// WatchDataset reloads the dataset when another process modifies it.
	WatchDataset bool `yaml:"watch_dataset"`

	// RateLimits defines rate limiting configuration.
	RateLimits RateLimits `yaml:"rate_limits"`

	// History configures the git history of the dataset file.
	History History `yaml:"history"`
}

// RateLimits defines rate limiting configuration (requests per minute).
type RateLimits struct {
	// MatchPerMin limits match queries. 0 means unlimited.
	MatchPerMin int `yaml:"match_per_min"`

	// WritePerMin limits record appends. 0 means unlimited.
	WritePerMin int `yaml:"write_per_min"`

	// ReadPerMin limits the other read endpoints. 0 means unlimited.
	ReadPerMin int `yaml:"read_per_min"`
}

// Validate checks that rate limit values are non-negative.
func (r *RateLimits) Validate() error {
	if r.MatchPerMin < 0 {
		return errors.New("match_per_min must be non-negative")
	}
	if r.WritePerMin < 0 {
		return errors.New("write_per_min must be non-negative")
	}
	if r.ReadPerMin < 0 {
		return errors.New("read_per_min must be non-negative")
	}
	return nil
}

// History configures committing the dataset file to git after each append.
type History struct {
	Enabled     bool   `yaml:"enabled"`
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
}

// Validate checks that the author is set when history is enabled.
func (h *History) Validate() error {
	if !h.Enabled {
		return nil
	}
	if h.AuthorName == "" {
		return errors.New("author_name is required when history is enabled")
	}
	if h.AuthorEmail == "" {
		return errors.New("author_email is required when history is enabled")
	}
	return nil
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTP:                "localhost:8000",
		Dataset:             "insurance.csv",
		MaxRequestBodyBytes: 64 * 1024, // 64 KiB
		WatchDataset:        true,
		RateLimits: RateLimits{
			MatchPerMin: 600,  // 10 req/s
			WritePerMin: 60,   // 1 req/s
			ReadPerMin:  6000, // 100 req/s
		},
		History: History{
			AuthorName:  "insurdash",
			AuthorEmail: "insurdash@localhost",
		},
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.HTTP == "" {
		return errors.New("http is required")
	}
	if c.Dataset == "" {
		return errors.New("dataset is required")
	}
	if c.MaxRequestBodyBytes < 0 {
		return errors.New("max_request_body_bytes must be non-negative")
	}
	if err := c.RateLimits.Validate(); err != nil {
		return fmt.Errorf("rate_limits: %w", err)
	}
	if err := c.History.Validate(); err != nil {
		return fmt.Errorf("history: %w", err)
	}
	return nil
}

// DatasetPath returns the dataset path, resolved against dataDir when
// relative.
func (c *Config) DatasetPath(dataDir string) string {
	if filepath.IsAbs(c.Dataset) {
		return c.Dataset
	}
	return filepath.Join(dataDir, c.Dataset)
}

// Load reads the configuration from path.
//
// A missing file yields Default(). Fields absent from the file keep their
// default value.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the -config flag.
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", filepath.Base(path), err)
	}
	return &cfg, nil
}

// Save writes the configuration to path.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}
