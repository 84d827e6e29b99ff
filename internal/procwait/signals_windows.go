//go:build windows

package procwait

import "os"

// signalListeners is inert on Windows: there is no SIGTSTP or SIGCHLD,
// so the stop and child-changed arms of the wait loop never fire (a
// receive on a nil channel blocks forever).
type signalListeners struct {
	stopped      chan os.Signal
	childChanged chan os.Signal
	interrupt    chan os.Signal
}

func newSignalListeners() *signalListeners {
	return &signalListeners{}
}

func (l *signalListeners) stop() {}

func pollForStoppedChildren() bool {
	return false
}

func terminationSignal(ps *os.ProcessState) int {
	return 0
}
