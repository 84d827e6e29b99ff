//go:build !windows

package proctree

import (
	"bufio"
	"bytes"
	"os/exec"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// KillProcessGroup signals every member of the process group.
func KillProcessGroup(pgid int, sig Signal) error {
	if pgid <= 0 {
		return nil
	}
	return unix.Kill(-pgid, unix.Signal(sig))
}

// KillTree signals pid and every live descendant of pid, children
// first. If the process table cannot be enumerated, only pid is
// signalled.
func KillTree(pid int, sig Signal) error {
	if pid <= 0 {
		return nil
	}
	for _, child := range descendants(pid, childMap()) {
		_ = unix.Kill(child, unix.Signal(sig))
	}
	return unix.Kill(pid, unix.Signal(sig))
}

// descendants returns the transitive children of pid from a ppid → pids
// index, breadth first.
func descendants(pid int, children map[int][]int) []int {
	var out []int
	queue := []int{pid}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		for _, child := range children[next] {
			out = append(out, child)
			queue = append(queue, child)
		}
	}
	return out
}

// childMap builds a ppid → pids index from `ps -eo pid=,ppid=`, which
// works on both Linux and macOS. Returns nil when ps is unavailable.
func childMap() map[int][]int {
	out, err := exec.Command("ps", "-eo", "pid=,ppid=").Output()
	if err != nil {
		return nil
	}
	return parsePSTable(out)
}

func parsePSTable(out []byte) map[int][]int {
	children := make(map[int][]int)
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 2 {
			continue
		}
		pid, err1 := strconv.Atoi(fields[0])
		ppid, err2 := strconv.Atoi(fields[1])
		if err1 != nil || err2 != nil {
			continue
		}
		children[ppid] = append(children[ppid], pid)
	}
	return children
}
