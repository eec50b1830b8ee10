package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/supporttools/self-healing-trigger/pkg/health"
	"github.com/supporttools/self-healing-trigger/pkg/logger"
	"github.com/supporttools/self-healing-trigger/pkg/reload"
	"github.com/supporttools/self-healing-trigger/pkg/types"
	"github.com/supporttools/self-healing-trigger/pkg/util"
)

// shutdownTimeout bounds how long serve waits for an in-flight pass.
const shutdownTimeout = 30 * time.Second

func (c *cli) newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run remediation passes continuously",
		Long: `Serve runs a remediation pass immediately and then once every
daemon.interval. It exposes the metrics endpoint and the health endpoints
(/healthz, /ready, /status, /remediation/history) while running.

When reload.enabled is set, thresholds, action categories, the pass timeout
and the log level are reloaded from the configuration file between passes.
An invalid file is rejected and the running configuration is kept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.serve(cmd)
		},
	}
}

func (c *cli) serve(cmd *cobra.Command) error {
	config, err := c.loadConfiguration()
	if err != nil {
		return err
	}
	if err := setupLogging(config.Settings); err != nil {
		return err
	}
	defer logger.Close()

	health.Version = Version
	logger.Infof("Self-Healing Trigger %s starting (interval=%v)", Version, config.Daemon.Interval)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := newApp(ctx, config)
	if err != nil {
		return err
	}
	defer a.Close()

	if config.Metrics.Enabled {
		metricsServer, err := a.newMetricsServer()
		if err != nil {
			return err
		}
		if err := metricsServer.Start(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	}

	var healthServer *health.Server
	if config.Health.Enabled {
		healthServer, err = health.NewServer(&health.Config{
			Enabled:     true,
			BindAddress: config.Health.BindAddress,
			Port:        config.Health.Port,
		})
		if err != nil {
			return err
		}
		healthServer.SetStatistics(a.orchestrator.Statistics())
		if a.history != nil {
			healthServer.SetRemediationHistory(a.history)
		}
		if err := healthServer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start health server: %w", err)
		}
		defer func() {
			if err := healthServer.Stop(); err != nil {
				logger.Warnf("Health server shutdown error: %v", err)
			}
		}()
	}

	configPath := c.v.GetString("config")
	if config.Reload.Enabled && configPath != "" {
		stopWatcher, err := startReload(ctx, configPath, config, a, c.reloadLoader())
		if err != nil {
			return err
		}
		defer stopWatcher()
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- a.orchestrator.Run(ctx, config.Daemon.Interval, func(summary *types.PassSummary, err error) {
			if err != nil {
				logger.WithError(err).Error("Remediation pass failed")
				return
			}
			if healthServer != nil {
				healthServer.UpdateSummary(summary)
			}
		})
	}()

	logger.Infof("Self-Healing Trigger started successfully")

	// Wait for shutdown signal, cancellation or loop error
	var runErr error
	select {
	case sig := <-sigChan:
		logger.Infof("Received signal %v, initiating graceful shutdown", sig)
	case <-ctx.Done():
		logger.Infof("Context cancelled, initiating graceful shutdown")
	case runErr = <-errChan:
		if runErr != nil {
			logger.Errorf("Pass loop error: %v", runErr)
		}
		cancel()
		return runErr
	}

	cancel()

	// Give the pass loop time to finish the pass in flight
	select {
	case runErr = <-errChan:
		logger.Infof("Graceful shutdown completed")
	case <-time.After(shutdownTimeout):
		logger.Warnf("Shutdown timeout exceeded, forcing exit")
	}

	logger.Infof("Self-Healing Trigger stopped")
	return runErr
}

// startReload watches configPath and applies hot changes to the running
// orchestrator between passes. The returned function stops the watcher.
func startReload(ctx context.Context, configPath string, config *types.SelfHealConfig, a *app, loader reload.Loader) (func(), error) {
	watcher, err := reload.NewConfigWatcher(configPath, config.Reload.DebounceInterval)
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}
	changes, err := watcher.Start(ctx)
	if err != nil {
		watcher.Stop()
		return nil, fmt.Errorf("failed to start config watcher: %w", err)
	}

	coordinator := reload.NewReloadCoordinator(configPath, config,
		reload.ApplyToTarget(a.orchestrator, setLogLevel), emitReloadEvent)
	coordinator.SetLoader(loader)
	go coordinator.Watch(ctx, changes)

	logger.Infof("Watching %s for configuration changes", configPath)
	return watcher.Stop, nil
}

// reloadLoader reads the config file and re-applies the flag and environment
// overrides the process was started with.
func (c *cli) reloadLoader() reload.Loader {
	return reload.WithOverrides(util.LoadConfig, c.applyFlagOverrides)
}

func setLogLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("%w: invalid log level %q", types.ErrConfiguration, level)
	}
	logger.SetLevel(lvl)
	return nil
}

func emitReloadEvent(severity reload.Severity, reason, message string) {
	entry := logger.WithField("reason", reason)
	if severity == reload.SeverityWarning {
		entry.Warn(message)
		return
	}
	entry.Info(message)
}
