package types

import "errors"

// Error taxonomy. Only ErrConfiguration and ErrDuplicatePlatform abort the
// process; everything else is isolated to a system or a single action.
var (
	// ErrConfiguration marks invalid thresholds or settings. Fatal.
	ErrConfiguration = errors.New("configuration error")

	// ErrDuplicatePlatform marks a second registration of a platform id. Fatal.
	ErrDuplicatePlatform = errors.New("duplicate platform")

	// ErrRegistrySealed is returned when registering after startup.
	ErrRegistrySealed = errors.New("registry is sealed")

	// ErrSourceUnavailable means the stat source cannot list systems at all.
	ErrSourceUnavailable = errors.New("stat source unavailable")

	// ErrStatSource marks a per-system fetch failure. The system is skipped.
	ErrStatSource = errors.New("stat source error")

	// ErrInvalidStats marks negative or unnamed stats. The system is skipped.
	ErrInvalidStats = errors.New("invalid stats")

	// ErrCommandFailed marks a non-zero exit or invocation error.
	ErrCommandFailed = errors.New("command failed")

	// ErrCommandTimeout marks an invocation that exceeded its timeout.
	ErrCommandTimeout = errors.New("command timeout")
)
