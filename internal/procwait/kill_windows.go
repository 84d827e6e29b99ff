//go:build windows

package procwait

import "golang.org/x/sys/windows"

// killHandle is a termination-capable process handle opened at spawn
// time, independent of the primary handle's lifetime, so a kill can be
// issued from any goroutine without a lifetime conflict.
type killHandle struct {
	h windows.Handle
}

func newKillHandle(pid int) *killHandle {
	if pid <= 0 {
		return nil
	}
	h, err := windows.OpenProcess(windows.PROCESS_TERMINATE, false, uint32(pid))
	if err != nil {
		return nil
	}
	return &killHandle{h: h}
}

func (h *killHandle) close() {
	if h != nil && h.h != 0 {
		windows.CloseHandle(h.h)
		h.h = 0
	}
}

// killByPid terminates the child via the duplicated handle, falling
// back to opening a fresh handle by pid. Failures are swallowed: a
// process that already exited is not an error.
func (c *ChildProcess) killByPid() {
	if c.kill != nil && c.kill.h != 0 {
		_ = windows.TerminateProcess(c.kill.h, 1)
		return
	}
	if c.pid <= 0 {
		return
	}
	h, err := windows.OpenProcess(windows.PROCESS_TERMINATE, false, uint32(c.pid))
	if err != nil {
		return
	}
	defer windows.CloseHandle(h)
	_ = windows.TerminateProcess(h, 1)
}
