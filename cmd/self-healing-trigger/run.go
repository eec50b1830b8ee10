package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/supporttools/self-healing-trigger/pkg/logger"
)

func (c *cli) newRunCmd() *cobra.Command {
	var (
		output string
		hold   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one remediation pass over every monitored system",
		Long: `Run fetches the error and warning counts of every system, triggers the
platform handler of each system whose counts exceed the thresholds and
prints the pass summary.

The command exits non-zero only when setup fails: an invalid configuration,
a duplicate platform registration or a stat source that cannot be read at
all. Failed or simulated actions do not change the exit code.`,
		Example: `  # Run with the default dataset location
  self-healing-trigger run

  # Only clean up disks, print JSON
  self-healing-trigger run --categories cleanup --output json

  # Keep the metrics endpoint up for a scrape after the pass
  self-healing-trigger run --hold 1m`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutputFormat(output); err != nil {
				return err
			}
			return c.runOnce(cmd, output, hold)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "Output format (table, json)")
	cmd.Flags().DurationVar(&hold, "hold", 0, "Keep the metrics endpoint serving for this long after the pass")
	return cmd
}

func (c *cli) runOnce(cmd *cobra.Command, output string, hold time.Duration) error {
	config, err := c.loadConfiguration()
	if err != nil {
		return err
	}
	if err := setupLogging(config.Settings); err != nil {
		return err
	}
	defer logger.Close()

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	a, err := newApp(ctx, config)
	if err != nil {
		return err
	}
	defer a.Close()

	var stopMetrics func()
	if config.Metrics.Enabled {
		srv, err := a.newMetricsServer()
		if err != nil {
			return err
		}
		if err := srv.Start(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		stopMetrics = func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = srv.Shutdown(shutdownCtx)
		}
	}

	summary, err := a.orchestrator.RunPass(ctx)
	if err != nil {
		if stopMetrics != nil {
			stopMetrics()
		}
		return fmt.Errorf("remediation pass failed: %w", err)
	}

	if err := printSummary(cmd.OutOrStdout(), summary, output); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}

	if stopMetrics != nil {
		if hold > 0 {
			logger.Infof("Holding metrics endpoint open for %v", hold)
			select {
			case <-time.After(hold):
			case <-ctx.Done():
			}
		}
		stopMetrics()
	}

	if summary.Counts.Failed > 0 {
		logger.Warnf("%d remedial action(s) failed", summary.Counts.Failed)
	}
	return nil
}
