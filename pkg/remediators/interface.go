package remediators

import (
	"context"
	"time"
)

// Logger provides optional logging functionality for the registry and
// executor without requiring a specific logging implementation.
type Logger interface {
	// Infof logs an informational message with formatting
	Infof(format string, args ...interface{})

	// Warnf logs a warning message with formatting
	Warnf(format string, args ...interface{})

	// Errorf logs an error message with formatting
	Errorf(format string, args ...interface{})
}

// CommandResult captures what a finished command produced.
type CommandResult struct {
	// Output is the combined stdout and stderr, truncated to the runner limit.
	Output string

	// ExitCode is -1 when the process never produced one.
	ExitCode int

	Duration time.Duration
}

// CommandRunner launches external commands. This allows for mocking in tests.
//
// Run returns an error wrapping types.ErrCommandTimeout when ctx's deadline
// expired, and types.ErrCommandFailed for a non-zero exit or a launch failure.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (CommandResult, error)
}

// Default execution values
const (
	// DefaultCommandTimeout bounds a single command when none is configured.
	DefaultCommandTimeout = 5 * time.Minute

	// DefaultWaitDelay is how long a cancelled command may hold its output
	// pipes open before Run gives up on them.
	DefaultWaitDelay = time.Second

	// DefaultMaxOutputSize caps captured command output.
	DefaultMaxOutputSize = 10 * 1024

	// maxDetailLength caps output echoed into an outcome detail.
	maxDetailLength = 512
)
