//go:build windows

package proctree

import (
	"golang.org/x/sys/windows"
)

// KillProcessGroup is a no-op on Windows: there is no kernel process
// group to signal without a job object.
func KillProcessGroup(pgid int, sig Signal) error {
	return nil
}

// KillTree terminates the direct process only. Reaching grandchildren
// would require job objects, which the spawn path does not use.
func KillTree(pid int, sig Signal) error {
	if pid <= 0 {
		return nil
	}
	h, err := windows.OpenProcess(windows.PROCESS_TERMINATE, false, uint32(pid))
	if err != nil {
		return err
	}
	defer windows.CloseHandle(h)
	return windows.TerminateProcess(h, 1)
}
