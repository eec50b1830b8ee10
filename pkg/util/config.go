// Package util provides configuration loading helpers for the self-healing
// trigger.
package util

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/supporttools/self-healing-trigger/pkg/types"
)

// DotEnvFile is loaded into the environment, when present, before config
// files are expanded.
var DotEnvFile = ".env"

// LoadConfig loads configuration from a file (YAML or JSON).
// The file format is determined by extension (.yaml, .yml, .json).
// Environment variables are substituted, defaults are applied, and validation is performed.
func LoadConfig(path string) (*types.SelfHealConfig, error) {
	if err := loadDotEnv(); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", DotEnvFile, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	// Substitute environment variables in raw data BEFORE parsing
	// so they also work in non-string fields (e.g., port: ${PORT})
	data = []byte(os.ExpandEnv(string(data)))

	config := baseConfig()

	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, config)
	case ".json":
		err = json.Unmarshal(data, config)
	default:
		// Try YAML first, then JSON
		err = yaml.Unmarshal(data, config)
		if err != nil {
			config = baseConfig()
			err = json.Unmarshal(data, config)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// LoadConfigOrDefault loads configuration from a file, or returns default if file doesn't exist.
func LoadConfigOrDefault(path string) (*types.SelfHealConfig, error) {
	if path == "" {
		return DefaultConfig()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig()
	}
	return LoadConfig(path)
}

// DefaultConfig returns the configuration used when no file is given:
// the CSV dataset directory, thresholds 100/500, the built-in platforms, and
// the metrics and health servers enabled.
func DefaultConfig() (*types.SelfHealConfig, error) {
	config := baseConfig()

	if dir := os.Getenv("SELFHEAL_SOURCE_PATH"); dir != "" {
		config.Source.Path = dir
	}

	if err := config.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("default config validation failed: %w", err)
	}

	return config, nil
}

// baseConfig holds the values a file must explicitly override. Thresholds
// are pre-set because zero is a valid threshold and cannot signal "unset".
func baseConfig() *types.SelfHealConfig {
	return &types.SelfHealConfig{
		APIVersion: types.DefaultAPIVersion,
		Kind:       types.DefaultKind,
		Thresholds: types.Thresholds{
			ErrorThreshold:   types.DefaultErrorThreshold,
			WarningThreshold: types.DefaultWarningThreshold,
		},
		Metrics: types.MetricsConfig{Enabled: true},
		Health:  types.HealthConfig{Enabled: true},
	}
}

// SaveConfig saves configuration to a file (YAML or JSON based on extension).
func SaveConfig(config *types.SelfHealConfig, path string) error {
	var (
		data []byte
		err  error
	)

	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(config)
	case ".json":
		data, err = json.MarshalIndent(config, "", "  ")
	default:
		return fmt.Errorf("unsupported file extension: %s (use .yaml, .yml, or .json)", filepath.Ext(path))
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ValidateConfigFile loads and validates a configuration file.
func ValidateConfigFile(path string) error {
	_, err := LoadConfig(path)
	return err
}

func loadDotEnv() error {
	if DotEnvFile == "" {
		return nil
	}
	if _, err := os.Stat(DotEnvFile); err == nil {
		return godotenv.Load(DotEnvFile)
	}
	return nil
}
