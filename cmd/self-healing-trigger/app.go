package main

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/supporttools/self-healing-trigger/pkg/history"
	"github.com/supporttools/self-healing-trigger/pkg/logger"
	"github.com/supporttools/self-healing-trigger/pkg/metrics"
	"github.com/supporttools/self-healing-trigger/pkg/orchestrator"
	"github.com/supporttools/self-healing-trigger/pkg/remediators"
	"github.com/supporttools/self-healing-trigger/pkg/source"
	"github.com/supporttools/self-healing-trigger/pkg/types"
)

// app holds the components wired from one configuration.
type app struct {
	config          *types.SelfHealConfig
	registry        *remediators.Registry
	executor        *remediators.Executor
	metricsRegistry *prometheus.Registry
	metrics         *metrics.Metrics
	history         *history.Store
	orchestrator    *orchestrator.Orchestrator
}

// setupLogging configures the global logger from the configuration.
func setupLogging(settings types.GlobalSettings) error {
	if err := logger.Initialize(settings.LogLevel, settings.LogFormat, settings.LogOutput, settings.LogFile); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.WithFields(logrus.Fields{
		"level":  settings.LogLevel,
		"format": settings.LogFormat,
		"output": settings.LogOutput,
	}).Debug("Logging configured")
	return nil
}

// newApp builds the registry, executor, metrics, history and orchestrator.
// The registry is sealed before any pass can run.
func newApp(ctx context.Context, config *types.SelfHealConfig) (*app, error) {
	registry, err := remediators.BuildRegistry(config.Remediation.Platforms, logger.ForComponent("registry"))
	if err != nil {
		return nil, fmt.Errorf("failed to build platform registry: %w", err)
	}

	selection, err := config.Remediation.Selection()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrConfiguration, err)
	}

	dryRun := config.Remediation.DryRun || !config.Remediation.IsEnabled()
	if dryRun {
		logger.Infof("Dry-run mode: remedial commands will be recorded as Simulated")
	}

	executor, err := remediators.NewExecutor(remediators.ExecutorConfig{
		Runner:               remediators.NewExecRunner(),
		Probe:                remediators.NewPathProbe(),
		Logger:               logger.ForComponent("executor"),
		DryRun:               dryRun,
		CommandTimeout:       config.Remediation.CommandTimeout,
		MaxCommandsPerSecond: config.Remediation.MaxCommandsPerSecond,
		Selection:            selection,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create executor: %w", err)
	}

	metricsRegistry := metrics.NewRegistry()
	m := metrics.NewMetrics()
	if err := m.Register(metricsRegistry); err != nil {
		return nil, err
	}

	src, err := source.New(config.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to create stat source: %w", err)
	}

	a := &app{
		config:          config,
		registry:        registry,
		executor:        executor,
		metricsRegistry: metricsRegistry,
		metrics:         m,
	}

	orchConfig := orchestrator.Config{
		Source:      src,
		Registry:    registry,
		Executor:    executor,
		Metrics:     m,
		Thresholds:  config.Thresholds,
		Workers:     config.Remediation.Workers,
		PassTimeout: config.Remediation.PassTimeout,
		Logger:      logger.ForComponent("orchestrator"),
	}

	if config.History.Enabled {
		store, err := history.Open(ctx, config.History)
		if err != nil {
			return nil, fmt.Errorf("failed to open remediation history: %w", err)
		}
		a.history = store
		orchConfig.History = store
	}

	a.orchestrator, err = orchestrator.New(orchConfig)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}

	logger.Infof("Registered platforms: %v", registry.Platforms())
	return a, nil
}

// newMetricsServer builds the scrape server for the app's registry.
func (a *app) newMetricsServer() (*metrics.Server, error) {
	addr := net.JoinHostPort(a.config.Metrics.BindAddress, strconv.Itoa(a.config.Metrics.Port))
	return metrics.NewServer(addr, a.config.Metrics.Path, a.metricsRegistry)
}

// Close releases the history database.
func (a *app) Close() {
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			logger.Warnf("Failed to close remediation history: %v", err)
		}
	}
}
