package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/supporttools/self-healing-trigger/pkg/types"
)

// PassHandler receives the outcome of each pass run by Run.
type PassHandler func(summary *types.PassSummary, err error)

// Run executes a pass immediately and then every interval until ctx is
// cancelled. A failed pass is reported to onPass and the loop continues.
func (o *Orchestrator) Run(ctx context.Context, interval time.Duration, onPass PassHandler) error {
	if interval <= 0 {
		return fmt.Errorf("%w: interval must be positive, got %v", types.ErrConfiguration, interval)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		summary, err := o.RunPass(ctx)
		if onPass != nil {
			onPass(summary, err)
		}

		select {
		case <-ctx.Done():
			o.logInfof("pass loop stopped: %v", ctx.Err())
			return nil
		case <-ticker.C:
		}
	}
}
