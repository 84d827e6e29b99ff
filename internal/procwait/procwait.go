// Package procwait waits on a spawned non-interactive child while
// staying responsive to job control. A wait races the child's
// completion against an optional cancellation token and the platform's
// stop/child-changed/interrupt signals, yielding exactly one of
// Completed, Stopped, or Cancelled per call. Stopped is not terminal:
// the caller may wait again on the same child.
package procwait

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
)

// Outcome tags the result of one Wait call.
type Outcome int

const (
	// Completed means the child terminated and its output was captured.
	Completed Outcome = iota
	// Stopped means the child was stopped by job control and may resume.
	Stopped
	// Cancelled means the cancellation token fired and a kill was attempted.
	Cancelled
)

// Output is the captured result of a completed child.
type Output struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// WaitResult is the outcome of one Wait call. Output is non-nil only
// for Completed.
type WaitResult struct {
	Outcome Outcome
	Output  *Output
}

type exitMsg struct {
	output *Output
	err    error
}

// ChildProcess tracks a started child being awaited. It owns the sole
// wait on the underlying command; the zero value is not usable.
type ChildProcess struct {
	pid   int // 0 when unknown
	exitc chan exitMsg
	kill  *killHandle // duplicated termination handle; nil off Windows

	latched *exitMsg
}

// New wraps an already-started command. stdout and stderr are the
// buffers the command was wired to write into; they are read only after
// the child exits. New takes over cmd.Wait.
func New(cmd *exec.Cmd, stdout, stderr *bytes.Buffer) *ChildProcess {
	pid := 0
	if cmd.Process != nil {
		pid = cmd.Process.Pid
	}
	c := &ChildProcess{
		pid:   pid,
		exitc: make(chan exitMsg, 1),
		kill:  newKillHandle(pid),
	}
	go func() {
		err := cmd.Wait()
		var exitErr *exec.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			c.exitc <- exitMsg{err: err}
			return
		}
		out := &Output{ExitCode: ExitCode(cmd.ProcessState)}
		if stdout != nil {
			out.Stdout = stdout.Bytes()
		}
		if stderr != nil {
			out.Stderr = stderr.Bytes()
		}
		c.exitc <- exitMsg{output: out}
	}()
	return c
}

// Pid returns the child's process id, or 0 if unknown.
func (c *ChildProcess) Pid() int {
	return c.pid
}

// Wait blocks until the child completes, stops, or the token fires.
// A nil token never fires. Interactive interrupts are transparent: the
// child receives them too, so the loop keeps waiting for one of the
// terminal conditions.
func (c *ChildProcess) Wait(tok Canceller) (WaitResult, error) {
	if c.latched != nil {
		return c.resolved(*c.latched)
	}

	listeners := newSignalListeners()
	defer listeners.stop()

	var cancelled <-chan struct{}
	if tok != nil {
		cancelled = tok.Done()
	}

	for {
		select {
		case msg := <-c.exitc:
			c.latched = &msg
			return c.resolved(msg)
		case <-cancelled:
			c.killByPid()
			return WaitResult{Outcome: Cancelled}, nil
		case <-listeners.stopped:
			return WaitResult{Outcome: Stopped}, nil
		case <-listeners.childChanged:
			if pollForStoppedChildren() {
				return WaitResult{Outcome: Stopped}, nil
			}
		case <-listeners.interrupt:
			// The child shares the terminal and got the interrupt too;
			// either it handles it or we observe its exit next.
		}
	}
}

func (c *ChildProcess) resolved(msg exitMsg) (WaitResult, error) {
	if msg.err != nil {
		return WaitResult{}, msg.err
	}
	return WaitResult{Outcome: Completed, Output: msg.output}, nil
}

// Release frees the duplicated kill handle, if any.
func (c *ChildProcess) Release() {
	if c.kill != nil {
		c.kill.close()
		c.kill = nil
	}
}

// Canceller is the cancellation surface Wait consumes.
type Canceller interface {
	Done() <-chan struct{}
}

// ExitCode maps a process state to a shell-style exit code: the plain
// code for a normal exit, 128+signal for a signal death.
func ExitCode(ps *os.ProcessState) int {
	if ps == nil {
		return -1
	}
	if code := ps.ExitCode(); code >= 0 {
		return code
	}
	if sig := terminationSignal(ps); sig > 0 {
		return 128 + sig
	}
	return -1
}
