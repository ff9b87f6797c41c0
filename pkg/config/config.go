// Package config provides configuration loading and management for voxeldist.
// It handles loading configuration from YAML files, with environment
// variable overrides, and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"voxeldist/pkg/distance"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// NumCores specifies how many CPU cores to use for parallel processing
		NumCores int `yaml:"numCores"`

		// ParallelThreshold is the number of point pairs above which the
		// extremes computation runs on multiple cores
		ParallelThreshold int `yaml:"parallelThreshold"`

		// TreeThreshold is the number of point pairs above which the
		// minimum-only computation uses a spatial index
		TreeThreshold int `yaml:"treeThreshold"`
	} `yaml:"processing"`

	// Extraction parameters
	Extraction struct {
		// Threshold selects voxels with values strictly above it
		Threshold float64 `yaml:"threshold"`

		// Label selects voxels with exactly this value instead of
		// thresholding; zero disables label selection
		Label float64 `yaml:"label"`

		// UseBoundary restricts extraction to voxels touching the
		// background, which is sufficient for extremes of disjoint masks
		UseBoundary bool `yaml:"useBoundary"`
	} `yaml:"extraction"`

	// Output parameters
	Output struct {
		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`

		// RenderDir is the directory for projection images; empty disables
		// rendering
		RenderDir string `yaml:"renderDir"`

		// Metrics enables the nearest-neighbor surface metrics report
		Metrics bool `yaml:"metrics"`
	} `yaml:"output"`
}

// envOverrides mirrors the configurable fields as optional environment
// variables. Pointer fields stay nil when the variable is unset, so only
// variables that are present override the file values.
type envOverrides struct {
	NumCores          *int     `envconfig:"NUM_CORES"`
	ParallelThreshold *int     `envconfig:"PARALLEL_THRESHOLD"`
	TreeThreshold     *int     `envconfig:"TREE_THRESHOLD"`
	Threshold         *float64 `envconfig:"THRESHOLD"`
	Label             *float64 `envconfig:"LABEL"`
	UseBoundary       *bool    `envconfig:"USE_BOUNDARY"`
	Verbose           *bool    `envconfig:"VERBOSE"`
	RenderDir         *string  `envconfig:"RENDER_DIR"`
	Metrics           *bool    `envconfig:"METRICS"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default processing parameters
	cfg.Processing.NumCores = runtime.NumCPU() // Use all available cores by default
	cfg.Processing.ParallelThreshold = distance.DefaultParallelThreshold
	cfg.Processing.TreeThreshold = distance.DefaultTreeThreshold

	// Set default extraction parameters
	cfg.Extraction.Threshold = 0
	cfg.Extraction.Label = 0
	cfg.Extraction.UseBoundary = false

	// Set default output parameters
	cfg.Output.Verbose = true
	cfg.Output.RenderDir = ""
	cfg.Output.Metrics = false

	return cfg
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
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides configuration fields from VOXELDIST_* environment
// variables. Unset variables leave the corresponding fields untouched.
func (cfg *Config) ApplyEnv() error {
	var env envOverrides
	if err := envconfig.Process("VOXELDIST", &env); err != nil {
		return fmt.Errorf("error reading environment overrides: %w", err)
	}

	if env.NumCores != nil {
		cfg.Processing.NumCores = *env.NumCores
	}
	if env.ParallelThreshold != nil {
		cfg.Processing.ParallelThreshold = *env.ParallelThreshold
	}
	if env.TreeThreshold != nil {
		cfg.Processing.TreeThreshold = *env.TreeThreshold
	}
	if env.Threshold != nil {
		cfg.Extraction.Threshold = *env.Threshold
	}
	if env.Label != nil {
		cfg.Extraction.Label = *env.Label
	}
	if env.UseBoundary != nil {
		cfg.Extraction.UseBoundary = *env.UseBoundary
	}
	if env.Verbose != nil {
		cfg.Output.Verbose = *env.Verbose
	}
	if env.RenderDir != nil {
		cfg.Output.RenderDir = *env.RenderDir
	}
	if env.Metrics != nil {
		cfg.Output.Metrics = *env.Metrics
	}

	return nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
