//go:build !unix

package remediators

import "os/exec"

// setProcessGroup keeps the default cancellation, which kills only the
// direct child. WaitDelay still bounds how long Run blocks on its pipes.
func setProcessGroup(cmd *exec.Cmd) {}
