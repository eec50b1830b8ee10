package remediators

import (
	"os/exec"
	"strings"
)

// PathProbe reports tool availability by searching PATH. It never executes
// the tool it looks up.
type PathProbe struct {
	lookPath func(file string) (string, error)
}

// NewPathProbe creates a probe backed by exec.LookPath.
func NewPathProbe() *PathProbe {
	return &PathProbe{lookPath: exec.LookPath}
}

// Available implements types.ToolProbe. Any lookup failure, including a
// panic in the lookup function, is reported as false.
func (p *PathProbe) Available(tool string) (found bool) {
	defer func() {
		if rec := recover(); rec != nil {
			found = false
		}
	}()

	tool = strings.TrimSpace(tool)
	if tool == "" {
		return false
	}
	_, err := p.lookPath(tool)
	return err == nil
}

// StaticProbe is a fixed availability table. Tools not listed are absent.
type StaticProbe map[string]bool

// Available implements types.ToolProbe.
func (s StaticProbe) Available(tool string) bool {
	return s[tool]
}
