//go:build linux

package procwait

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// pollForStoppedChildren reports whether any direct child of this
// process is currently stopped. It inspects /proc rather than calling
// wait4(-1): reaping here would steal exit statuses from the
// exec.Cmd.Wait the completion path depends on.
func pollForStoppedChildren() bool {
	self := os.Getpid()
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return false
	}
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		state, ppid, ok := readProcStat(pid)
		if ok && ppid == self && (state == "T" || state == "t") {
			return true
		}
	}
	return false
}

// readProcStat extracts the state and ppid fields from /proc/<pid>/stat.
// The comm field may contain spaces and parentheses, so parsing resumes
// after the last ')'.
func readProcStat(pid int) (state string, ppid int, ok bool) {
	data, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "stat"))
	if err != nil {
		return "", 0, false
	}
	end := strings.LastIndexByte(string(data), ')')
	if end < 0 {
		return "", 0, false
	}
	fields := strings.Fields(string(data[end+1:]))
	if len(fields) < 2 {
		return "", 0, false
	}
	ppid, err = strconv.Atoi(fields[1])
	if err != nil {
		return "", 0, false
	}
	return fields[0], ppid, true
}
