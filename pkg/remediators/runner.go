package remediators

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/supporttools/self-healing-trigger/pkg/types"
)

// ExecRunner is the default CommandRunner backed by os/exec.
//
// Each command runs in its own process group. When ctx ends the whole group
// is killed, so shells and sudo wrappers cannot keep the call alive through
// their children.
type ExecRunner struct {
	// MaxOutputSize caps captured output; zero uses DefaultMaxOutputSize.
	MaxOutputSize int

	// WaitDelay bounds how long Run waits for the output pipes to close after
	// the group is killed; zero uses DefaultWaitDelay.
	WaitDelay time.Duration
}

// NewExecRunner creates a runner with the default output cap.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{MaxOutputSize: DefaultMaxOutputSize, WaitDelay: DefaultWaitDelay}
}

// Run executes name with args and captures combined output.
func (e *ExecRunner) Run(ctx context.Context, name string, args ...string) (CommandResult, error) {
	start := time.Now()
	cmd := exec.CommandContext(ctx, name, args...)
	setProcessGroup(cmd)
	cmd.WaitDelay = e.WaitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = DefaultWaitDelay
	}

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()

	maxSize := e.MaxOutputSize
	if maxSize <= 0 {
		maxSize = DefaultMaxOutputSize
	}
	result := CommandResult{
		Output:   limitOutput(out.Bytes(), maxSize),
		Duration: time.Since(start),
	}

	if err == nil {
		return result, nil
	}

	result.ExitCode = -1
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return result, fmt.Errorf("%w: %s after %v", types.ErrCommandTimeout, name, result.Duration.Round(time.Millisecond))
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, fmt.Errorf("%w: %s exited with code %d", types.ErrCommandFailed, name, result.ExitCode)
	}
	return result, fmt.Errorf("%w: %s: %v", types.ErrCommandFailed, name, err)
}

// limitOutput truncates output if it exceeds maxSize.
func limitOutput(data []byte, maxSize int) string {
	if len(data) > maxSize {
		return string(data[:maxSize]) + "\n[output truncated]"
	}
	return string(data)
}
