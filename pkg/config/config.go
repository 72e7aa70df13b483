// Package config provides configuration loading and management for lesionfilter.
// It handles loading configuration from YAML files, environment overrides and
// default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"lesionfilter/pkg/policy"
)

// Environment variables read by ApplyEnv
const (
	EnvBaseDir    = "LESIONFILTER_BASE_DIR"
	EnvMinRadius  = "LESIONFILTER_MIN_RADIUS"
	EnvPolicy     = "LESIONFILTER_POLICY"
	EnvLedgerPath = "LESIONFILTER_LEDGER"
	EnvLogLevel   = "LESIONFILTER_LOG_LEVEL"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// BaseDir is the root of the case tree to scan
		BaseDir string `yaml:"baseDir"`

		// MinRadius is the radius in mm of the smallest lesion that is kept
		MinRadius float64 `yaml:"minRadius"`

		// Policy selects the decision policy: "pregate" or "dilated"
		Policy string `yaml:"policy"`

		// OutputSuffix replaces ".nii.gz" in the name of accepted lesion files
		OutputSuffix string `yaml:"outputSuffix"`

		// StaleSuffixes are removed from the tree before a run
		StaleSuffixes []string `yaml:"staleSuffixes"`
	} `yaml:"processing"`

	// Output parameters
	Output struct {
		// DryRun evaluates every case without writing masks
		DryRun bool `yaml:"dryRun"`

		// PreviewDir receives overlay PNGs of accepted cases when set
		PreviewDir string `yaml:"previewDir"`

		// LedgerPath is the SQLite file runs are recorded in when set
		LedgerPath string `yaml:"ledgerPath"`

		// PlotPath receives a histogram of retained component volumes when set
		PlotPath string `yaml:"plotPath"`

		// LogLevel is one of debug, info, warn, error
		LogLevel string `yaml:"logLevel"`

		// Verbose controls console progress output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Processing.MinRadius = 1.5
	cfg.Processing.Policy = policy.NamePreGate
	cfg.Processing.OutputSuffix = "_new.nii.gz"
	cfg.Processing.StaleSuffixes = []string{"_new.nii.gz", "_new77777.nii.gz"}

	cfg.Output.LogLevel = "info"
	cfg.Output.Verbose = true

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// ApplyEnv loads .env files (if present) and overrides fields from
// LESIONFILTER_* environment variables. With no paths, ".env" in the
// working directory is tried.
func ApplyEnv(cfg *Config, envFiles ...string) error {
	// Best-effort: a missing .env is not an error
	_ = godotenv.Load(envFiles...)

	if v := strings.TrimSpace(os.Getenv(EnvBaseDir)); v != "" {
		cfg.Processing.BaseDir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvMinRadius)); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvMinRadius, v, err)
		}
		cfg.Processing.MinRadius = r
	}
	if v := strings.TrimSpace(os.Getenv(EnvPolicy)); v != "" {
		cfg.Processing.Policy = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLedgerPath)); v != "" {
		cfg.Output.LedgerPath = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Output.LogLevel = v
	}
	return nil
}

// Validate checks values that would otherwise fail deep inside a run
func (c *Config) Validate() error {
	if !(c.Processing.MinRadius > 0) {
		return fmt.Errorf("minRadius must be positive, got %g", c.Processing.MinRadius)
	}
	if _, err := policy.New(c.Processing.Policy, c.Processing.MinRadius); err != nil {
		return err
	}
	suffix := c.Processing.OutputSuffix
	if !strings.HasSuffix(suffix, ".nii.gz") || suffix == ".nii.gz" {
		return fmt.Errorf("outputSuffix %q must end in .nii.gz and add a marker before it", suffix)
	}
	return nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

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
