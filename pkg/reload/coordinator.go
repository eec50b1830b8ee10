package reload

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/supporttools/self-healing-trigger/pkg/types"
	"github.com/supporttools/self-healing-trigger/pkg/util"
)

// Severity classifies reload events.
type Severity string

const (
	SeverityInfo    Severity = "Info"
	SeverityWarning Severity = "Warning"
)

// ReloadCallback is called when a configuration reload is needed.
// It receives the new configuration and the diff, and should apply the changes.
type ReloadCallback func(ctx context.Context, newConfig *types.SelfHealConfig, diff *ConfigDiff) error

// EventEmitter emits reload status events.
type EventEmitter func(severity Severity, reason, message string)

// Loader reads and validates a configuration file.
type Loader func(path string) (*types.SelfHealConfig, error)

// WithOverrides wraps load so that apply runs on every freshly loaded
// configuration before it is validated. Command-line and environment
// overrides stay in force across reloads this way.
func WithOverrides(load Loader, apply func(*types.SelfHealConfig) error) Loader {
	return func(path string) (*types.SelfHealConfig, error) {
		config, err := load(path)
		if err != nil {
			return nil, err
		}
		if err := apply(config); err != nil {
			return nil, err
		}
		if err := config.Validate(); err != nil {
			return nil, fmt.Errorf("configuration invalid after applying overrides: %w", err)
		}
		return config, nil
	}
}

// Target is the running engine a reload is applied to. Changes take effect
// from the next pass.
type Target interface {
	SetThresholds(t types.Thresholds) error
	SetSelection(sel types.ActionSelection)
	SetPassTimeout(d time.Duration) error
}

// ReloadCoordinator orchestrates configuration reload operations. An invalid
// file never replaces the active configuration.
type ReloadCoordinator struct {
	configPath       string
	currentConfig    *types.SelfHealConfig
	reloadCallback   ReloadCallback
	eventEmitter     EventEmitter
	loader           Loader
	mu               sync.Mutex
	reloadInProgress bool
}

// NewReloadCoordinator creates a new reload coordinator.
func NewReloadCoordinator(
	configPath string,
	initialConfig *types.SelfHealConfig,
	reloadCallback ReloadCallback,
	eventEmitter EventEmitter,
) *ReloadCoordinator {
	return &ReloadCoordinator{
		configPath:     configPath,
		currentConfig:  initialConfig,
		reloadCallback: reloadCallback,
		eventEmitter:   eventEmitter,
		loader:         util.LoadConfig,
	}
}

// SetLoader replaces the configuration loader.
func (rc *ReloadCoordinator) SetLoader(loader Loader) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.loader = loader
}

// TriggerReload attempts to reload the configuration from disk.
// This method is safe to call concurrently; only one reload happens at a time.
func (rc *ReloadCoordinator) TriggerReload(ctx context.Context) error {
	rc.mu.Lock()
	if rc.reloadInProgress {
		rc.mu.Unlock()
		return fmt.Errorf("reload already in progress")
	}
	rc.reloadInProgress = true
	loader := rc.loader
	rc.mu.Unlock()

	defer func() {
		rc.mu.Lock()
		rc.reloadInProgress = false
		rc.mu.Unlock()
	}()

	return rc.performReload(ctx, loader)
}

func (rc *ReloadCoordinator) performReload(ctx context.Context, loader Loader) error {
	startTime := time.Now()

	rc.emitEvent(SeverityInfo, "ConfigReloadStarted", "Configuration reload initiated")

	newConfig, err := loader(rc.configPath)
	if err != nil {
		rc.emitEvent(SeverityWarning, "ConfigReloadFailed",
			fmt.Sprintf("Keeping current configuration: %v", err))
		return fmt.Errorf("failed to load config: %w", err)
	}

	rc.mu.Lock()
	diff := ComputeConfigDiff(rc.currentConfig, newConfig)
	rc.mu.Unlock()

	if !diff.HasChanges() {
		rc.emitEvent(SeverityInfo, "ConfigReloadNoChanges",
			"Configuration reload completed with no changes")
		return nil
	}

	if len(diff.RestartRequired) > 0 {
		rc.emitEvent(SeverityWarning, "ConfigRestartRequired",
			fmt.Sprintf("Changes to %s take effect after restart", strings.Join(diff.RestartRequired, ", ")))
	}

	if diff.HasHotChanges() && rc.reloadCallback != nil {
		if err := rc.reloadCallback(ctx, newConfig, diff); err != nil {
			rc.emitEvent(SeverityWarning, "ConfigReloadFailed",
				fmt.Sprintf("Failed to apply configuration changes: %v", err))
			return fmt.Errorf("failed to apply changes: %w", err)
		}
	}

	rc.mu.Lock()
	rc.currentConfig = newConfig
	rc.mu.Unlock()

	rc.emitEvent(SeverityInfo, "ConfigReloadSucceeded", rc.buildReloadStats(diff, time.Since(startTime)))
	return nil
}

// buildReloadStats creates a summary message of what was reloaded.
func (rc *ReloadCoordinator) buildReloadStats(diff *ConfigDiff, duration time.Duration) string {
	changes := make([]string, 0, 4)
	if diff.ThresholdsChanged {
		changes = append(changes, "thresholds updated")
	}
	if diff.SelectionChanged {
		changes = append(changes, "action selection updated")
	}
	if diff.PassTimeoutChanged {
		changes = append(changes, "pass timeout updated")
	}
	if diff.LogLevelChanged {
		changes = append(changes, "log level updated")
	}

	msg := fmt.Sprintf("Configuration reload completed in %v. ", duration.Round(time.Millisecond))
	if len(changes) == 0 {
		return msg + "No hot changes applied."
	}
	return msg + "Changes: " + strings.Join(changes, ", ")
}

func (rc *ReloadCoordinator) emitEvent(severity Severity, reason, message string) {
	if rc.eventEmitter != nil {
		rc.eventEmitter(severity, reason, message)
	}
}

// GetCurrentConfig returns the current active configuration (thread-safe).
func (rc *ReloadCoordinator) GetCurrentConfig() *types.SelfHealConfig {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.currentConfig
}

// Watch triggers a reload for every change signalled on changes until the
// channel closes or ctx is cancelled. Failed reloads are reported through
// the event emitter and do not stop the loop.
func (rc *ReloadCoordinator) Watch(ctx context.Context, changes <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			_ = rc.TriggerReload(ctx)
		}
	}
}

// ApplyToTarget returns a callback that pushes hot changes into target.
// setLogLevel may be nil. Every value is checked before anything is applied
// so a bad reload leaves the target untouched.
func ApplyToTarget(target Target, setLogLevel func(level string) error) ReloadCallback {
	return func(ctx context.Context, newConfig *types.SelfHealConfig, diff *ConfigDiff) error {
		if err := newConfig.Thresholds.Validate(); err != nil {
			return err
		}
		selection, err := newConfig.Remediation.Selection()
		if err != nil {
			return fmt.Errorf("%w: %v", types.ErrConfiguration, err)
		}
		if newConfig.Remediation.PassTimeout < 0 {
			return fmt.Errorf("%w: pass timeout must not be negative", types.ErrConfiguration)
		}

		if diff.LogLevelChanged && setLogLevel != nil {
			if err := setLogLevel(newConfig.Settings.LogLevel); err != nil {
				return err
			}
		}
		if diff.ThresholdsChanged {
			if err := target.SetThresholds(newConfig.Thresholds); err != nil {
				return err
			}
		}
		if diff.SelectionChanged {
			target.SetSelection(selection)
		}
		if diff.PassTimeoutChanged {
			if err := target.SetPassTimeout(newConfig.Remediation.PassTimeout); err != nil {
				return err
			}
		}
		return nil
	}
}
