// Package config provides configuration loading and management for sparsevol.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Ray marching parameters
	March struct {
		// StepSize is the world-space distance between consecutive samples
		StepSize float64 `yaml:"stepSize"`

		// MaxDistance is the default ray length when none is given
		MaxDistance float64 `yaml:"maxDistance"`
	} `yaml:"march"`

	// Logging parameters
	Logging struct {
		// Level is one of debug, info, warn or error
		Level string `yaml:"level"`

		// Encoding is console or json
		Encoding string `yaml:"encoding"`
	} `yaml:"logging"`

	// Output parameters
	Output struct {
		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`

		// JSON prints command results as JSON instead of text
		JSON bool `yaml:"json"`
	} `yaml:"output"`

	// Slice rendering parameters
	Slices struct {
		// Resolution is the pixel count along the longer image side
		Resolution int `yaml:"resolution"`

		// OutputDir is where rendered slices are written
		OutputDir string `yaml:"outputDir"`

		// Format is jpeg or png
		Format string `yaml:"format"`

		// Quality is the JPEG quality from 1 to 100
		Quality int `yaml:"quality"`
	} `yaml:"slices"`

	// Demo volume parameters
	Demo struct {
		// Radius of the demo sphere in voxels
		Radius int `yaml:"radius"`

		// Gap between the demo sphere and the demo slab in voxels
		Gap int `yaml:"gap"`

		// Compression used when writing the demo file (none or zstd)
		Compression string `yaml:"compression"`
	} `yaml:"demo"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default march parameters
	cfg.March.StepSize = 0.5
	cfg.March.MaxDistance = 1000

	// Set default logging parameters
	cfg.Logging.Level = "info"
	cfg.Logging.Encoding = "console"

	// Set default output parameters
	cfg.Output.Verbose = false
	cfg.Output.JSON = false

	// Set default slice parameters
	cfg.Slices.Resolution = 256
	cfg.Slices.OutputDir = "slices"
	cfg.Slices.Format = "png"
	cfg.Slices.Quality = 90

	// Set default demo parameters
	cfg.Demo.Radius = 24
	cfg.Demo.Gap = 16
	cfg.Demo.Compression = "zstd"

	return cfg
}

// Validate checks that every value is usable
func (c *Config) Validate() error {
	if !(c.March.StepSize > 0) {
		return errors.Errorf("march.stepSize must be positive, got %v", c.March.StepSize)
	}
	if !(c.March.MaxDistance > 0) {
		return errors.Errorf("march.maxDistance must be positive, got %v", c.March.MaxDistance)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Encoding {
	case "console", "json":
	default:
		return errors.Errorf("logging.encoding must be console or json, got %q", c.Logging.Encoding)
	}
	if c.Slices.Resolution < 2 {
		return errors.Errorf("slices.resolution must be at least 2, got %d", c.Slices.Resolution)
	}
	switch c.Slices.Format {
	case "png", "jpeg":
	default:
		return errors.Errorf("slices.format must be png or jpeg, got %q", c.Slices.Format)
	}
	if c.Slices.Quality < 1 || c.Slices.Quality > 100 {
		return errors.Errorf("slices.quality must be within 1..100, got %d", c.Slices.Quality)
	}
	if c.Demo.Radius < 1 || c.Demo.Gap < 0 {
		return errors.Errorf("demo radius must be positive and gap non-negative, got %d and %d", c.Demo.Radius, c.Demo.Gap)
	}
	switch c.Demo.Compression {
	case "none", "zstd":
	default:
		return errors.Errorf("demo.compression must be none or zstd, got %q", c.Demo.Compression)
	}
	return nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "error reading config file")
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "error parsing config file")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config file")
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "error creating config directory")
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "error marshaling config")
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return errors.Wrap(err, "error writing config file")
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
