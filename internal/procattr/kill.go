package procattr

import (
	"errors"
	"os"
	"syscall"
)

// KillGroup SIGKILLs the process group led by p. A group that already exited
// is not an error.
func KillGroup(p *os.Process) error {
	if p == nil {
		return nil
	}
	err := syscall.Kill(-p.Pid, syscall.SIGKILL)
	if errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return err
}
