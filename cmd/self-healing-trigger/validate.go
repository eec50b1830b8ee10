package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/supporttools/self-healing-trigger/pkg/logger"
	"github.com/supporttools/self-healing-trigger/pkg/remediators"
	"github.com/supporttools/self-healing-trigger/pkg/util"
)

func (c *cli) newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [config-file]",
		Short: "Validate a configuration file",
		Long: `Validate loads a configuration file, applies defaults, checks every
setting and builds the platform registry so duplicate or malformed platform
definitions are reported before the engine is deployed.

The file defaults to the one given with --config.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := c.v.GetString("config")
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return fmt.Errorf("no configuration file given")
			}

			config, err := util.LoadConfig(path)
			if err != nil {
				return err
			}
			registry, err := remediators.BuildRegistry(config.Remediation.Platforms, logger.ForComponent("registry"))
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Configuration %s is valid (%d platforms, source %s)\n",
				path, len(registry.Platforms()), config.Source.Type)
			return nil
		},
	}
}
