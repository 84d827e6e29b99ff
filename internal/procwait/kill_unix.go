//go:build !windows

package procwait

import "golang.org/x/sys/unix"

// killHandle exists only on Windows, where the primary process handle
// cannot be shared safely across goroutines for termination.
type killHandle struct{}

func newKillHandle(pid int) *killHandle {
	return nil
}

func (h *killHandle) close() {}

// killByPid force-kills the child by pid. No pid means no-op; a child
// that already exited is not an error.
func (c *ChildProcess) killByPid() {
	if c.pid <= 0 {
		return
	}
	_ = unix.Kill(c.pid, unix.SIGKILL)
}
