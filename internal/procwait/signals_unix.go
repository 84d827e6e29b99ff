//go:build !windows

package procwait

import (
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"
)

// signalListeners holds the job-control signal subscriptions for one
// Wait call.
type signalListeners struct {
	stopped      chan os.Signal // SIGTSTP: terminal stop
	childChanged chan os.Signal // SIGCHLD: some child changed state
	interrupt    chan os.Signal // SIGINT
}

func newSignalListeners() *signalListeners {
	l := &signalListeners{
		stopped:      make(chan os.Signal, 1),
		childChanged: make(chan os.Signal, 1),
		interrupt:    make(chan os.Signal, 1),
	}
	signal.Notify(l.stopped, unix.SIGTSTP)
	signal.Notify(l.childChanged, unix.SIGCHLD)
	signal.Notify(l.interrupt, os.Interrupt)
	return l
}

func (l *signalListeners) stop() {
	signal.Stop(l.stopped)
	signal.Stop(l.childChanged)
	signal.Stop(l.interrupt)
}

func terminationSignal(ps *os.ProcessState) int {
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return int(ws.Signal())
	}
	return 0
}
