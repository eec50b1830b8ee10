// Package source provides the StatSource implementations: a directory of
// preprocessed CSV files, a YAML/JSON document, and an HTTP endpoint.
package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/supporttools/self-healing-trigger/pkg/types"
)

// Retry backoff bounds shared by the sources.
const (
	initialBackoff = 100 * time.Millisecond
	maxBackoff     = 2 * time.Second
)

// malformedError marks content that is read fine but cannot be parsed.
// Reading it again gives the same result, so it is never retried.
type malformedError struct {
	err error
}

func (e malformedError) Error() string { return e.err.Error() }
func (e malformedError) Unwrap() error { return e.err }

// retryable reports whether a failed read is worth another attempt.
func retryable(ctx context.Context) func(error) bool {
	return func(err error) bool {
		if ctx.Err() != nil {
			return false
		}
		var malformed malformedError
		return !errors.As(err, &malformed)
	}
}

// New builds the StatSource selected by cfg.Type.
func New(cfg types.SourceConfig) (types.StatSource, error) {
	switch cfg.Type {
	case types.SourceCSVDir:
		return NewCSVDir(cfg)
	case types.SourceFile:
		return NewFile(cfg)
	case types.SourceHTTP:
		return NewHTTP(cfg, nil)
	default:
		return nil, fmt.Errorf("%w: unknown source type %q", types.ErrConfiguration, cfg.Type)
	}
}

// record is the wire shape shared by the file and http sources.
type record struct {
	System   string `json:"system" yaml:"system"`
	Platform string `json:"platform,omitempty" yaml:"platform,omitempty"`
	Errors   int64  `json:"errors" yaml:"errors"`
	Warnings int64  `json:"warnings" yaml:"warnings"`
}

func (r record) stats() types.SystemStats {
	return types.SystemStats{
		SystemID:     r.System,
		Platform:     r.Platform,
		ErrorCount:   r.Errors,
		WarningCount: r.Warnings,
	}
}

// snapshot indexes records by system, keeping first-seen order.
type snapshot struct {
	order []string
	stats map[string]types.SystemStats
}

func newSnapshot(records []record) (*snapshot, error) {
	s := &snapshot{stats: make(map[string]types.SystemStats, len(records))}
	for i, r := range records {
		if r.System == "" {
			return nil, fmt.Errorf("record %d has no system", i)
		}
		if _, dup := s.stats[r.System]; dup {
			return nil, fmt.Errorf("system %q listed twice", r.System)
		}
		s.order = append(s.order, r.System)
		s.stats[r.System] = r.stats()
	}
	return s, nil
}

func (s *snapshot) lookup(systemID string) (types.SystemStats, error) {
	if s == nil {
		return types.SystemStats{}, fmt.Errorf("%w: %s: systems not listed yet", types.ErrStatSource, systemID)
	}
	st, ok := s.stats[systemID]
	if !ok {
		return types.SystemStats{}, fmt.Errorf("%w: %s: unknown system", types.ErrStatSource, systemID)
	}
	return st, nil
}
