//go:build !linux

// Package procattr configures CLI subprocesses so that a timed-out run can be
// killed together with everything it spawned.
package procattr

import (
	"os/exec"
	"syscall"
)

// Set puts cmd in its own process group. Parent-death signals are Linux only.
func Set(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}
