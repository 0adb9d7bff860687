//go:build windows

package integration

import "os/exec"

// setProcessGroup relies on exec's default cancellation, which kills the
// direct child only.
func setProcessGroup(cmd *exec.Cmd) {}

func killProcessGroup(cmd *exec.Cmd) {}
