package remediators

import (
	"fmt"
	"sort"
	"sync"

	"github.com/supporttools/self-healing-trigger/pkg/types"
)

// Registry maps platform identifiers to handlers.
//
// Registration happens during startup. Once Seal is called further
// registrations fail with types.ErrRegistrySealed, so the handler set is
// fixed for every pass that follows.
type Registry struct {
	// mu protects all internal state
	mu sync.RWMutex

	handlers map[string]*PlatformHandler
	sealed   bool

	// Optional logger
	logger Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]*PlatformHandler),
	}
}

// SetLogger sets an optional logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// Register adds a handler. It returns an error wrapping
// types.ErrDuplicatePlatform when the platform is already registered and
// types.ErrRegistrySealed after Seal.
func (r *Registry) Register(handler *PlatformHandler) error {
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}
	if handler.Platform == "" {
		return fmt.Errorf("handler platform cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("%w: cannot register platform %q", types.ErrRegistrySealed, handler.Platform)
	}
	if _, exists := r.handlers[handler.Platform]; exists {
		return fmt.Errorf("%w: %q is already registered", types.ErrDuplicatePlatform, handler.Platform)
	}

	r.handlers[handler.Platform] = handler
	r.logInfof("Registered platform handler: %s (%d actions)", handler.Platform, len(handler.Actions))
	return nil
}

// MustRegister is like Register but panics on error. Registration conflicts
// in built-in handlers are programming errors.
func (r *Registry) MustRegister(handler *PlatformHandler) {
	if err := r.Register(handler); err != nil {
		panic(err)
	}
}

// Seal makes the registry read-only.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

// Sealed reports whether Seal has been called.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Lookup returns the handler for platform, or an empty fallback handler when
// none is registered. It never fails.
func (r *Registry) Lookup(platform string) *PlatformHandler {
	r.mu.RLock()
	handler, exists := r.handlers[platform]
	r.mu.RUnlock()

	if exists {
		return handler
	}

	r.logWarnf("No specific remedial actions defined for %s", platform)
	return fallbackHandler(platform)
}

// IsRegistered checks whether a platform has a handler.
func (r *Registry) IsRegistered(platform string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.handlers[platform]
	return exists
}

// Platforms returns a sorted list of all registered platform identifiers.
func (r *Registry) Platforms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	platforms := make([]string, 0, len(r.handlers))
	for platform := range r.handlers {
		platforms = append(platforms, platform)
	}

	sort.Strings(platforms)
	return platforms
}

// logInfof logs an informational message if a logger is configured.
// Callers may hold the lock.
func (r *Registry) logInfof(format string, args ...interface{}) {
	if r.logger != nil {
		r.logger.Infof("[Registry] "+format, args...)
	}
}

// logWarnf logs a warning message if a logger is configured.
func (r *Registry) logWarnf(format string, args ...interface{}) {
	r.mu.RLock()
	logger := r.logger
	r.mu.RUnlock()
	if logger != nil {
		logger.Warnf("[Registry] "+format, args...)
	}
}
