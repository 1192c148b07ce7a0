// Package config loads potion.yaml from the data directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the configuration file name inside the data directory.
const FileName = "potion.yaml"

// Author signs version commits when versioning is enabled.
type Author struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

// Config is the on-disk configuration. Every field has a working default;
// a missing file is not an error.
type Config struct {
	DataDir    string `yaml:"dataDir"`
	LogLevel   string `yaml:"logLevel"`
	Versioning bool   `yaml:"versioning"`
	Author     Author `yaml:"author"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		DataDir:  "./data",
		LogLevel: "info",
	}
}

// Load reads the configuration from dir, falling back to defaults for a
// missing file and for any unset field.
func Load(dir string) (*Config, error) {
	cfg := Default()
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if cfg.DataDir == "" {
		cfg.DataDir = Default().DataDir
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = Default().LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration to dir.
func (c *Config) Save(dir string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	path := filepath.Join(dir, FileName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// Validate checks field values.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	return nil
}
