package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/supporttools/self-healing-trigger/pkg/logger"
	"github.com/supporttools/self-healing-trigger/pkg/types"
	"github.com/supporttools/self-healing-trigger/pkg/util"
)

// EnvPrefix is prepended to every flag name to form its environment variable,
// e.g. SELFHEAL_ERROR_THRESHOLD.
const EnvPrefix = "SELFHEAL"

// cli carries the state shared by all subcommands of one root command.
type cli struct {
	v *viper.Viper
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "self-healing-trigger",
		Short: "Self-Healing Trigger - threshold-driven remediation for monitored systems",
		Long: `Self-Healing Trigger reads per-system error and warning counts, compares
them against configured thresholds and runs the remediation handler of the
system's platform whenever a threshold is exceeded.

Examples:
  # Run one remediation pass and print the summary
  self-healing-trigger run --config /etc/self-healing-trigger/config.yaml

  # Preview what would run without executing anything
  self-healing-trigger run --dry-run --output json

  # Run continuously with metrics, health endpoints and config reload
  self-healing-trigger serve --config /etc/self-healing-trigger/config.yaml`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Path to configuration file (defaults are used when empty or missing)")
	flags.String("log-level", "", "Override log level (debug, info, warn, error, fatal)")
	flags.String("log-format", "", "Override log format (json, text)")
	flags.Int64("error-threshold", 0, "Override the error threshold")
	flags.Int64("warning-threshold", 0, "Override the warning threshold")
	flags.Bool("dry-run", false, "Record actions as Simulated without running commands")
	flags.Int("workers", 0, "Override the number of systems processed concurrently")
	flags.StringSlice("categories", nil, "Only run actions of these categories (update, restart, cleanup, reboot)")
	flags.String("source-path", "", "Override the stat source path")

	// Bind flags to viper
	for _, name := range []string{
		"config",
		"log-level",
		"log-format",
		"error-threshold",
		"warning-threshold",
		"dry-run",
		"workers",
		"categories",
		"source-path",
	} {
		if err := c.v.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", name, err))
		}
	}

	c.v.SetEnvPrefix(EnvPrefix)
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.v.AutomaticEnv()

	rootCmd.AddCommand(
		c.newRunCmd(),
		c.newServeCmd(),
		c.newPlatformsCmd(),
		c.newValidateCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

// loadConfiguration loads and validates the configuration with proper precedence:
// 1. Start with file config or defaults if file doesn't exist
// 2. Apply flag and environment overrides
// 3. Re-validate the final configuration
func (c *cli) loadConfiguration() (*types.SelfHealConfig, error) {
	path := c.v.GetString("config")

	config, err := util.LoadConfigOrDefault(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}

	if err := c.applyFlagOverrides(config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed after applying overrides: %w", err)
	}
	return config, nil
}

// applyFlagOverrides applies flags and SELFHEAL_* variables that were
// explicitly set on top of the loaded configuration.
func (c *cli) applyFlagOverrides(config *types.SelfHealConfig) error {
	v := c.v

	if v.IsSet("log-level") {
		logger.Infof("Overriding log level: %s -> %s", config.Settings.LogLevel, v.GetString("log-level"))
		config.Settings.LogLevel = v.GetString("log-level")
	}
	if v.IsSet("log-format") {
		logger.Infof("Overriding log format: %s -> %s", config.Settings.LogFormat, v.GetString("log-format"))
		config.Settings.LogFormat = v.GetString("log-format")
	}
	if v.IsSet("error-threshold") {
		logger.Infof("Overriding error threshold: %d -> %d", config.Thresholds.ErrorThreshold, v.GetInt64("error-threshold"))
		config.Thresholds.ErrorThreshold = v.GetInt64("error-threshold")
	}
	if v.IsSet("warning-threshold") {
		logger.Infof("Overriding warning threshold: %d -> %d", config.Thresholds.WarningThreshold, v.GetInt64("warning-threshold"))
		config.Thresholds.WarningThreshold = v.GetInt64("warning-threshold")
	}
	if v.IsSet("dry-run") && v.GetBool("dry-run") {
		logger.Infof("Enabling dry-run mode (commands will not run)")
		config.Remediation.DryRun = true
	}
	if v.IsSet("workers") {
		logger.Infof("Overriding workers: %d -> %d", config.Remediation.Workers, v.GetInt("workers"))
		config.Remediation.Workers = v.GetInt("workers")
	}
	if v.IsSet("categories") {
		config.Remediation.Categories = splitList(v.GetStringSlice("categories"))
		logger.Infof("Overriding action categories: %v", config.Remediation.Categories)
		if _, err := config.Remediation.Selection(); err != nil {
			return fmt.Errorf("%w: %v", types.ErrConfiguration, err)
		}
	}
	if v.IsSet("source-path") {
		logger.Infof("Overriding source path: %s -> %s", config.Source.Path, v.GetString("source-path"))
		config.Source.Path = v.GetString("source-path")
	}
	return nil
}

// splitList flattens comma separated entries; environment values arrive as a
// single string.
func splitList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
