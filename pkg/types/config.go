// Package types defines configuration types for the self-healing trigger.
package types

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Package-level defaults
const (
	DefaultAPIVersion           = "selfheal.supporttools.io/v1alpha1"
	DefaultKind                 = "SelfHealConfig"
	DefaultLogLevel             = "info"
	DefaultLogFormat            = "text"
	DefaultLogOutput            = "stdout"
	DefaultErrorThreshold       = 100
	DefaultWarningThreshold     = 500
	DefaultSourceType           = SourceCSVDir
	DefaultSourcePath           = "/app/self-healing-trigger/dataset/system-logs/multiple-system-log-dataset/preprocessed-data"
	DefaultSourceTimeout        = "30s"
	DefaultSourceRetries        = 3
	DefaultErrorColumn          = "error"
	DefaultWarningColumn        = "warning"
	DefaultFileSuffix           = "_preprocessed"
	DefaultWorkers              = 4
	DefaultCommandTimeout       = "5m"
	DefaultPassTimeout          = "30m"
	DefaultMetricsBindAddress   = "0.0.0.0"
	DefaultMetricsPort          = 8000
	DefaultMetricsPath          = "/metrics"
	DefaultHealthBindAddress    = "0.0.0.0"
	DefaultHealthPort           = 8080
	DefaultHistoryPath          = "/var/lib/self-healing-trigger/history.db"
	DefaultHistoryMaxRecords    = 10000
	DefaultDaemonInterval       = "5m"
	DefaultReloadDebounce       = "500ms"
	MaxWorkers                  = 256
	MinDaemonInterval           = 1 * time.Second
	MinCommandTimeout           = 100 * time.Millisecond
	DefaultMaxCommandsPerSecond = 0
)

// Stat source types.
const (
	SourceCSVDir = "csv-dir"
	SourceFile   = "file"
	SourceHTTP   = "http"
)

var (
	configValidate = validator.New()

	// platform identifiers are used as metric label values and map keys
	platformNameRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)
)

// SelfHealConfig is the top-level configuration structure.
type SelfHealConfig struct {
	APIVersion string `json:"apiVersion" yaml:"apiVersion"`
	Kind       string `json:"kind" yaml:"kind"`

	Settings    GlobalSettings    `json:"settings" yaml:"settings"`
	Thresholds  Thresholds        `json:"thresholds" yaml:"thresholds"`
	Source      SourceConfig      `json:"source" yaml:"source"`
	Remediation RemediationConfig `json:"remediation" yaml:"remediation"`
	Metrics     MetricsConfig     `json:"metrics" yaml:"metrics"`
	Health      HealthConfig      `json:"health" yaml:"health"`
	History     HistoryConfig     `json:"history" yaml:"history"`
	Daemon      DaemonConfig      `json:"daemon" yaml:"daemon"`
	Reload      ReloadConfig      `json:"reload" yaml:"reload"`
}

// GlobalSettings contains logging configuration.
type GlobalSettings struct {
	LogLevel  string `json:"logLevel,omitempty" yaml:"logLevel,omitempty" validate:"oneof=debug info warn error fatal"`
	LogFormat string `json:"logFormat,omitempty" yaml:"logFormat,omitempty" validate:"oneof=json text"`
	LogOutput string `json:"logOutput,omitempty" yaml:"logOutput,omitempty" validate:"oneof=stdout stderr file"`
	LogFile   string `json:"logFile,omitempty" yaml:"logFile,omitempty"`
}

// SourceConfig selects and configures the StatSource.
type SourceConfig struct {
	Type string `json:"type" yaml:"type" validate:"oneof=csv-dir file http"`

	// Path is the directory (csv-dir) or document (file).
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// URL is the endpoint for the http source.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	TimeoutString string        `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Timeout       time.Duration `json:"-" yaml:"-"`

	Retries int `json:"retries,omitempty" yaml:"retries,omitempty" validate:"gte=0,lte=20"`

	// Column names summed by the csv-dir source.
	ErrorColumn   string `json:"errorColumn,omitempty" yaml:"errorColumn,omitempty"`
	WarningColumn string `json:"warningColumn,omitempty" yaml:"warningColumn,omitempty"`

	// FileSuffix is stripped from csv file names to derive the system id.
	FileSuffix string `json:"fileSuffix,omitempty" yaml:"fileSuffix,omitempty"`
}

// RemediationConfig controls handler execution.
type RemediationConfig struct {
	// Enabled defaults to true; a nil pointer means unset.
	Enabled *bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	DryRun  bool  `json:"dryRun,omitempty" yaml:"dryRun,omitempty"`

	Workers int `json:"workers,omitempty" yaml:"workers,omitempty" validate:"gte=0,lte=256"`

	CommandTimeoutString string        `json:"commandTimeout,omitempty" yaml:"commandTimeout,omitempty"`
	CommandTimeout       time.Duration `json:"-" yaml:"-"`

	PassTimeoutString string        `json:"passTimeout,omitempty" yaml:"passTimeout,omitempty"`
	PassTimeout       time.Duration `json:"-" yaml:"-"`

	// MaxCommandsPerSecond throttles command launches across all systems.
	// Zero disables throttling.
	MaxCommandsPerSecond float64 `json:"maxCommandsPerSecond,omitempty" yaml:"maxCommandsPerSecond,omitempty" validate:"gte=0"`

	// Categories selects which action categories run. Empty runs all.
	Categories []string `json:"categories,omitempty" yaml:"categories,omitempty"`

	// Platforms adds handlers beyond the built-in ones.
	Platforms []PlatformConfig `json:"platforms,omitempty" yaml:"platforms,omitempty" validate:"dive"`
}

// PlatformConfig declares an additional platform handler.
type PlatformConfig struct {
	Name    string         `json:"name" yaml:"name" validate:"required"`
	Actions []ActionConfig `json:"actions" yaml:"actions" validate:"dive"`
}

// ActionConfig declares one remedial action of a configured platform.
type ActionConfig struct {
	Label        string        `json:"label" yaml:"label" validate:"required"`
	Category     string        `json:"category" yaml:"category" validate:"required"`
	RequiredTool string        `json:"requiredTool,omitempty" yaml:"requiredTool,omitempty"`
	Command      []string      `json:"command" yaml:"command" validate:"required,min=1"`
	OutputChecks []OutputCheck `json:"outputChecks,omitempty" yaml:"outputChecks,omitempty"`
}

// MetricsConfig configures the scrape endpoint.
type MetricsConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	BindAddress string `json:"bindAddress,omitempty" yaml:"bindAddress,omitempty"`
	Port        int    `json:"port,omitempty" yaml:"port,omitempty" validate:"gte=0,lte=65535"`
	Path        string `json:"path,omitempty" yaml:"path,omitempty"`
}

// HealthConfig configures the health server.
type HealthConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	BindAddress string `json:"bindAddress,omitempty" yaml:"bindAddress,omitempty"`
	Port        int    `json:"port,omitempty" yaml:"port,omitempty" validate:"gte=0,lte=65535"`
}

// HistoryConfig configures the remediation report audit log.
type HistoryConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	Path       string `json:"path,omitempty" yaml:"path,omitempty"`
	MaxRecords int    `json:"maxRecords,omitempty" yaml:"maxRecords,omitempty" validate:"gte=0"`
}

// DaemonConfig configures the serve loop.
type DaemonConfig struct {
	IntervalString string        `json:"interval,omitempty" yaml:"interval,omitempty"`
	Interval       time.Duration `json:"-" yaml:"-"`
}

// ReloadConfig contains configuration hot reload settings. Reloads are
// applied between passes only.
type ReloadConfig struct {
	Enabled                bool          `json:"enabled" yaml:"enabled"`
	DebounceIntervalString string        `json:"debounceInterval,omitempty" yaml:"debounceInterval,omitempty"`
	DebounceInterval       time.Duration `json:"-" yaml:"-"`
}

// ApplyDefaults applies default values to the configuration and parses
// duration strings.
func (c *SelfHealConfig) ApplyDefaults() error {
	if c.APIVersion == "" {
		c.APIVersion = DefaultAPIVersion
	}
	if c.Kind == "" {
		c.Kind = DefaultKind
	}

	c.Settings.ApplyDefaults()

	if err := c.Source.ApplyDefaults(); err != nil {
		return fmt.Errorf("failed to apply defaults to source: %w", err)
	}
	if err := c.Remediation.ApplyDefaults(); err != nil {
		return fmt.Errorf("failed to apply defaults to remediation: %w", err)
	}

	c.Metrics.ApplyDefaults()
	c.Health.ApplyDefaults()
	c.History.ApplyDefaults()

	if c.Daemon.IntervalString == "" {
		c.Daemon.IntervalString = DefaultDaemonInterval
	}
	d, err := time.ParseDuration(c.Daemon.IntervalString)
	if err != nil {
		return fmt.Errorf("invalid daemon interval %q: %w", c.Daemon.IntervalString, err)
	}
	c.Daemon.Interval = d

	if c.Reload.DebounceIntervalString == "" {
		c.Reload.DebounceIntervalString = DefaultReloadDebounce
	}
	d, err = time.ParseDuration(c.Reload.DebounceIntervalString)
	if err != nil {
		return fmt.Errorf("invalid debounceInterval %q: %w", c.Reload.DebounceIntervalString, err)
	}
	c.Reload.DebounceInterval = d

	return nil
}

// ApplyDefaults applies default values to GlobalSettings.
func (s *GlobalSettings) ApplyDefaults() {
	if s.LogLevel == "" {
		s.LogLevel = DefaultLogLevel
	}
	if s.LogFormat == "" {
		s.LogFormat = DefaultLogFormat
	}
	if s.LogOutput == "" {
		s.LogOutput = DefaultLogOutput
	}
}

// ApplyDefaults applies default values to SourceConfig.
func (s *SourceConfig) ApplyDefaults() error {
	if s.Type == "" {
		s.Type = DefaultSourceType
	}
	if s.Type == SourceCSVDir && s.Path == "" {
		s.Path = DefaultSourcePath
	}
	if s.TimeoutString == "" {
		s.TimeoutString = DefaultSourceTimeout
	}
	d, err := time.ParseDuration(s.TimeoutString)
	if err != nil {
		return fmt.Errorf("invalid timeout %q: %w", s.TimeoutString, err)
	}
	s.Timeout = d
	if s.Retries == 0 {
		s.Retries = DefaultSourceRetries
	}
	if s.ErrorColumn == "" {
		s.ErrorColumn = DefaultErrorColumn
	}
	if s.WarningColumn == "" {
		s.WarningColumn = DefaultWarningColumn
	}
	if s.FileSuffix == "" {
		s.FileSuffix = DefaultFileSuffix
	}
	return nil
}

// ApplyDefaults applies default values to RemediationConfig.
func (r *RemediationConfig) ApplyDefaults() error {
	if r.Enabled == nil {
		enabled := true
		r.Enabled = &enabled
	}
	if r.Workers == 0 {
		r.Workers = DefaultWorkers
	}
	if r.CommandTimeoutString == "" {
		r.CommandTimeoutString = DefaultCommandTimeout
	}
	if r.PassTimeoutString == "" {
		r.PassTimeoutString = DefaultPassTimeout
	}

	var err error
	r.CommandTimeout, err = time.ParseDuration(r.CommandTimeoutString)
	if err != nil {
		return fmt.Errorf("invalid commandTimeout %q: %w", r.CommandTimeoutString, err)
	}
	r.PassTimeout, err = time.ParseDuration(r.PassTimeoutString)
	if err != nil {
		return fmt.Errorf("invalid passTimeout %q: %w", r.PassTimeoutString, err)
	}
	return nil
}

// IsEnabled reports whether remediation commands may run at all.
func (r *RemediationConfig) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// Selection converts the configured category names into an ActionSelection.
func (r *RemediationConfig) Selection() (ActionSelection, error) {
	categories := make([]ActionCategory, 0, len(r.Categories))
	for _, name := range r.Categories {
		c, err := ParseActionCategory(name)
		if err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return NewActionSelection(categories...), nil
}

// ApplyDefaults applies default values to MetricsConfig.
func (m *MetricsConfig) ApplyDefaults() {
	if m.BindAddress == "" {
		m.BindAddress = DefaultMetricsBindAddress
	}
	if m.Port == 0 {
		m.Port = DefaultMetricsPort
	}
	if m.Path == "" {
		m.Path = DefaultMetricsPath
	}
}

// ApplyDefaults applies default values to HealthConfig.
func (h *HealthConfig) ApplyDefaults() {
	if h.BindAddress == "" {
		h.BindAddress = DefaultHealthBindAddress
	}
	if h.Port == 0 {
		h.Port = DefaultHealthPort
	}
}

// ApplyDefaults applies default values to HistoryConfig.
func (h *HistoryConfig) ApplyDefaults() {
	if h.Path == "" {
		h.Path = DefaultHistoryPath
	}
	if h.MaxRecords == 0 {
		h.MaxRecords = DefaultHistoryMaxRecords
	}
}

// Validate validates the configuration. Every returned error wraps
// ErrConfiguration.
func (c *SelfHealConfig) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("%w: %s", ErrConfiguration, describeValidationError(err))
	}

	if err := c.Thresholds.Validate(); err != nil {
		return err
	}
	if err := c.Source.Validate(); err != nil {
		return fmt.Errorf("%w: source: %v", ErrConfiguration, err)
	}
	if err := c.Remediation.Validate(); err != nil {
		return fmt.Errorf("%w: remediation: %v", ErrConfiguration, err)
	}

	if c.Settings.LogOutput == "file" && c.Settings.LogFile == "" {
		return fmt.Errorf("%w: logFile must be specified when logOutput is 'file'", ErrConfiguration)
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("%w: metrics path must start with '/', got %q", ErrConfiguration, c.Metrics.Path)
	}
	if c.Metrics.Enabled && c.Health.Enabled &&
		c.Metrics.Port == c.Health.Port && c.Metrics.BindAddress == c.Health.BindAddress {
		return fmt.Errorf("%w: metrics and health servers cannot share port %d", ErrConfiguration, c.Metrics.Port)
	}
	if c.History.Enabled && c.History.Path == "" {
		return fmt.Errorf("%w: history path is required when history is enabled", ErrConfiguration)
	}
	if c.Daemon.Interval < MinDaemonInterval {
		return fmt.Errorf("%w: daemon interval must be at least %v, got %v", ErrConfiguration, MinDaemonInterval, c.Daemon.Interval)
	}
	if c.Reload.DebounceInterval < 0 {
		return fmt.Errorf("%w: debounceInterval must not be negative", ErrConfiguration)
	}
	return nil
}

// Validate validates SourceConfig cross-field rules.
func (s *SourceConfig) Validate() error {
	switch s.Type {
	case SourceCSVDir, SourceFile:
		if s.Path == "" {
			return fmt.Errorf("path is required for %s source", s.Type)
		}
	case SourceHTTP:
		if !strings.HasPrefix(s.URL, "http://") && !strings.HasPrefix(s.URL, "https://") {
			return fmt.Errorf("url must be http(s) for http source, got %q", s.URL)
		}
	}
	if s.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", s.Timeout)
	}
	return nil
}

// Validate validates RemediationConfig cross-field rules.
func (r *RemediationConfig) Validate() error {
	if r.Workers < 1 || r.Workers > MaxWorkers {
		return fmt.Errorf("workers must be between 1 and %d, got %d", MaxWorkers, r.Workers)
	}
	if r.CommandTimeout < MinCommandTimeout {
		return fmt.Errorf("commandTimeout must be at least %v, got %v", MinCommandTimeout, r.CommandTimeout)
	}
	if r.PassTimeout < 0 {
		return fmt.Errorf("passTimeout must not be negative, got %v", r.PassTimeout)
	}
	if _, err := r.Selection(); err != nil {
		return err
	}

	seen := make(map[string]bool, len(r.Platforms))
	for _, p := range r.Platforms {
		if !platformNameRegex.MatchString(p.Name) {
			return fmt.Errorf("invalid platform name %q", p.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("platform %q declared twice", p.Name)
		}
		seen[p.Name] = true
		for _, a := range p.Actions {
			if _, err := a.ToAction(); err != nil {
				return fmt.Errorf("platform %q: %w", p.Name, err)
			}
		}
	}
	return nil
}

// ToAction converts the declared action into a RemedialAction.
func (a ActionConfig) ToAction() (RemedialAction, error) {
	category, err := ParseActionCategory(a.Category)
	if err != nil {
		return RemedialAction{}, fmt.Errorf("action %q: %w", a.Label, err)
	}
	action := RemedialAction{
		Label:        a.Label,
		Category:     category,
		RequiredTool: a.RequiredTool,
		Command:      append([]string(nil), a.Command...),
		OutputChecks: append([]OutputCheck(nil), a.OutputChecks...),
	}
	if err := action.Validate(); err != nil {
		return RemedialAction{}, err
	}
	return action, nil
}

// describeValidationError flattens validator errors into one line.
func describeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s (got %v)", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value()))
		} else {
			parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
