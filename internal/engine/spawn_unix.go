//go:build !windows

package engine

import (
	"os"
	"os/exec"

	"golang.org/x/sys/unix"
)

// shellCommand wraps the command text for the platform shell. The text
// is handed to the shell verbatim; no parsing happens here.
func shellCommand(command string) *exec.Cmd {
	return exec.Command("sh", "-lc", command)
}

// processGroup resolves the foreground process group of the PTY, so
// termination can reach descendants the shell spawned. Falls back to
// the child's own group, then to none.
func processGroup(ptmx *os.File, pid int) int {
	if pgid, err := unix.IoctlGetInt(int(ptmx.Fd()), unix.TIOCGPGRP); err == nil && pgid > 0 {
		return pgid
	}
	if pid > 0 {
		if pgid, err := unix.Getpgid(pid); err == nil && pgid > 0 {
			return pgid
		}
	}
	return 0
}
