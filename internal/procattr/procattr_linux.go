//go:build linux

// Package procattr configures CLI subprocesses so that a timed-out run can be
// killed together with everything it spawned.
package procattr

import (
	"os/exec"
	"syscall"
)

// Set puts cmd in its own process group and asks the kernel to SIGKILL it
// if the gateway dies first.
func Set(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}
}
