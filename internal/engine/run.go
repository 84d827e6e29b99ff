package engine

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/creack/pty"

	"github.com/rsmidt/ptyhost/internal/cancel"
	"github.com/rsmidt/ptyhost/internal/proctree"
	"github.com/rsmidt/ptyhost/internal/procwait"
)

// run carries the loop state for one PTY run.
type run struct {
	opts    Options
	onChunk func(string)
	control <-chan controlMessage
	tok     *cancel.Token

	cmd    *exec.Cmd
	ptmx   *os.File
	pid    int
	pgid   int
	exitc  chan int
	events chan string

	exitCode   *int
	cancelled  bool
	timedOut   bool
	readerDone bool
	terminated bool

	drainDeadline time.Time // zero while unarmed
}

func runSession(ctx context.Context, opts Options, onChunk func(string), control <-chan controlMessage, onSpawn func(pid int)) Result {
	tok := cancel.NewToken(ctx, opts.Timeout)
	defer tok.Stop()

	r := &run{opts: opts, onChunk: onChunk, control: control, tok: tok}
	if err := r.spawn(); err != nil {
		return Result{Err: err}
	}
	if onSpawn != nil {
		onSpawn(r.pid)
	}
	return r.loop()
}

// spawn opens the PTY, starts the shell, and launches the reader and
// exit-watcher goroutines. Any failure here is fatal for the run.
func (r *run) spawn() error {
	cmd := shellCommand(r.opts.Command)
	if r.opts.Dir != "" {
		cmd.Dir = r.opts.Dir
	}
	cmd.Env = os.Environ()
	for k, v := range r.opts.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: r.opts.Rows, Cols: r.opts.Cols})
	if err != nil {
		return fmt.Errorf("start pty: %w", err)
	}
	r.cmd = cmd
	r.ptmx = ptmx
	if cmd.Process != nil {
		r.pid = cmd.Process.Pid
	}
	r.pgid = processGroup(ptmx, r.pid)

	r.events = make(chan string, 512)
	go readLoop(ptmx, r.events)

	r.exitc = make(chan int, 1)
	go func() {
		_ = cmd.Wait()
		r.exitc <- procwait.ExitCode(cmd.ProcessState)
	}()
	return nil
}

// loop is the run's heart: a fixed-interval tick multiplexing the
// cancellation heartbeat, the control queue, the reader stream, and the
// child's exit, with bounded per-tick work and bounded drain windows.
func (r *run) loop() Result {
	for r.exitCode == nil || !r.readerDone {
		r.checkHeartbeat()
		r.drainControl()
		r.drainReader()
		r.pollExit()

		if !r.drainDeadline.IsZero() && !time.Now().Before(r.drainDeadline) {
			// A detached grandchild can hold the PTY open indefinitely;
			// the deadline bounds the run regardless.
			break
		}
		if r.exitCode == nil || !r.readerDone {
			time.Sleep(tickInterval)
		}
	}

	if r.exitCode == nil {
		if r.terminated {
			select {
			case code := <-r.exitc:
				r.exitCode = &code
			default:
			}
		} else {
			code := <-r.exitc
			r.exitCode = &code
		}
	}

	r.ptmx.Close()
	r.finalDrain()

	return Result{ExitCode: r.exitCode, Cancelled: r.cancelled, TimedOut: r.timedOut}
}

func (r *run) checkHeartbeat() {
	if r.terminated {
		return
	}
	switch r.tok.Heartbeat() {
	case cancel.StatusTimeout:
		r.timedOut = true
		r.requestTerminate()
	case cancel.StatusCancelled:
		r.cancelled = true
		r.requestTerminate()
	}
}

func (r *run) drainControl() {
	for i := 0; i < controlMessagesPerTick; i++ {
		select {
		case msg := <-r.control:
			r.apply(msg)
		default:
			return
		}
	}
}

func (r *run) apply(msg controlMessage) {
	switch msg.kind {
	case ctrlInput:
		// Failures race with process exit and must not fail the run.
		_, _ = r.ptmx.WriteString(msg.data)
	case ctrlResize:
		_ = pty.Setsize(r.ptmx, &pty.Winsize{Rows: msg.rows, Cols: msg.cols})
	case ctrlKill:
		r.cancelled = true
		r.requestTerminate()
	}
}

func (r *run) drainReader() {
	for i := 0; i < readerEventsPerTick; i++ {
		select {
		case chunk, ok := <-r.events:
			if !ok {
				r.readerDone = true
				return
			}
			r.emit(chunk)
		default:
			return
		}
	}
}

func (r *run) pollExit() {
	if r.exitCode != nil {
		return
	}
	select {
	case code := <-r.exitc:
		r.exitCode = &code
		if !r.readerDone && r.drainDeadline.IsZero() {
			r.drainDeadline = time.Now().Add(postExitDrainWindow)
		}
	default:
	}
}

// requestTerminate runs the staged kill once and arms the drain window.
func (r *run) requestTerminate() {
	if r.terminated {
		return
	}
	r.terminate()
	r.terminated = true
	r.drainDeadline = time.Now().Add(postCancelDrainWindow)
}

// terminate escalates through the process group and the descendant
// tree: graceful first, then the direct child handle, then forceful.
// Deliberately not time-gated between stages. Every step is
// best-effort; an already-exited target is not an error.
func (r *run) terminate() {
	_ = proctree.KillProcessGroup(r.pgid, proctree.SigTerm)
	_ = proctree.KillTree(r.pid, proctree.SigTerm)
	if r.cmd.Process != nil {
		_ = r.cmd.Process.Kill()
	}
	_ = proctree.KillProcessGroup(r.pgid, proctree.SigKill)
	_ = proctree.KillTree(r.pid, proctree.SigKill)
}

// finalDrain gives a reader that never reached end-of-stream one last
// bounded window to hand over buffered output. The reader goroutine is
// never waited on unconditionally: with a descendant still holding the
// terminal it might not finish until the process exits.
func (r *run) finalDrain() {
	if r.readerDone {
		return
	}
	deadline := time.Now().Add(finalReaderDrainWindow)
	for time.Now().Before(deadline) {
		select {
		case chunk, ok := <-r.events:
			if !ok {
				r.readerDone = true
				return
			}
			r.emit(chunk)
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
}

func (r *run) emit(chunk string) {
	if r.onChunk != nil {
		r.onChunk(chunk)
	}
}
