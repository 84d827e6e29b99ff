//go:build windows

package engine

import (
	"os"
	"os/exec"
)

func shellCommand(command string) *exec.Cmd {
	return exec.Command("cmd", "/C", command)
}

// processGroup has no Windows equivalent; group-wide termination is
// handled as a no-op by proctree.
func processGroup(ptmx *os.File, pid int) int {
	return 0
}
