// Package config loads converter settings from YAML or TOML files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/mrsinham/dicomexporter/internal/util"
)

// Config holds the converter settings. Command-line flags that were set
// explicitly take precedence over these values.
type Config struct {
	Compress       bool      `yaml:"compress" toml:"compress"`
	ConvertTo12Bit bool      `yaml:"convert_12_bits" toml:"convert_12_bits"`
	Overwrite      bool      `yaml:"overwrite" toml:"overwrite"`
	BlockSize      string    `yaml:"block_size" toml:"block_size"`
	Workers        int       `yaml:"workers" toml:"workers"`
	Log            LogConfig `yaml:"log" toml:"log"`
}

// LogConfig configures logging. An empty File logs to stderr.
type LogConfig struct {
	Level      string `yaml:"level" toml:"level"`
	File       string `yaml:"file" toml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" toml:"max_size_mb"`
	MaxAgeDays int    `yaml:"max_age_days" toml:"max_age_days"`
}

// Default returns the settings used when no file is given.
func Default() Config {
	return Config{
		Compress:  true,
		BlockSize: "10MB",
		Log: LogConfig{
			Level:      "warn",
			MaxSizeMB:  100,
			MaxAgeDays: 28,
		},
	}
}

// BlockSizeBytes returns BlockSize in bytes.
func (c Config) BlockSizeBytes() (int, error) {
	return util.ParseBlockSize(c.BlockSize)
}

// Validate checks values that would otherwise fail late in a conversion.
func (c Config) Validate() error {
	if _, err := c.BlockSizeBytes(); err != nil {
		return fmt.Errorf("block_size: %w", err)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxAgeDays < 0 {
		return fmt.Errorf("log rotation limits must be >= 0")
	}
	return nil
}

// Load reads path over the defaults. The format follows the extension:
// .yaml/.yml or .toml. Keys absent from the file keep their default value.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse YAML config: %w", err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return cfg, fmt.Errorf("parse TOML config: %w", err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config format %q (use .yaml, .yml or .toml)", ext)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path as YAML.
func Save(cfg Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
