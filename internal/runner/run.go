package runner

import (
	"sync"
	"time"

	"github.com/rsmidt/ptyhost/internal/engine"
	"github.com/rsmidt/ptyhost/internal/models"
)

const replayBufSize = 100 * 1024 // 100KB replay buffer

// Run is one live (or just-finished) command execution: the engine
// session plus the replay buffer and subscriber fan-out remote clients
// attach through.
type Run struct {
	ID        string
	Command   string
	Cwd       string
	Cols      uint16
	Rows      uint16
	StartedAt time.Time

	session *engine.Session
	done    chan struct{}

	resultMu sync.Mutex
	result   *models.RunResult

	replayMu  sync.Mutex
	replayBuf []byte

	subMu       sync.Mutex
	subscribers map[chan string]struct{}
	subsClosed  bool
}

// PID returns the child's process id, or 0 if not yet known.
func (r *Run) PID() int {
	return r.session.Pid()
}

// Done returns a channel closed when the run completes.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Result returns the structured result, or nil while still running.
func (r *Run) Result() *models.RunResult {
	r.resultMu.Lock()
	defer r.resultMu.Unlock()
	return r.result
}

// Write enqueues raw input for the run's PTY.
func (r *Run) Write(data string) error {
	return r.session.Write(data)
}

// Resize enqueues a terminal resize.
func (r *Run) Resize(cols, rows uint16) error {
	return r.session.Resize(cols, rows)
}

// Kill enqueues a termination request.
func (r *Run) Kill() error {
	return r.session.Kill()
}

// Replay returns a copy of the retained output for late attachers.
func (r *Run) Replay() []byte {
	r.replayMu.Lock()
	defer r.replayMu.Unlock()
	cp := make([]byte, len(r.replayBuf))
	copy(cp, r.replayBuf)
	return cp
}

// Subscribe returns a channel of output chunks and an unsubscribe
// function. The channel closes when the run ends.
func (r *Run) Subscribe() (<-chan string, func()) {
	ch := make(chan string, 256)
	r.subMu.Lock()
	if r.subsClosed {
		close(ch)
		r.subMu.Unlock()
		return ch, func() {}
	}
	r.subscribers[ch] = struct{}{}
	r.subMu.Unlock()

	unsub := func() {
		r.subMu.Lock()
		delete(r.subscribers, ch)
		r.subMu.Unlock()
	}
	return ch, unsub
}

// ingest is the engine's output sink: replay buffer plus fan-out.
// It never blocks the run loop; slow subscribers lose data.
func (r *Run) ingest(chunk string) {
	r.appendReplay(chunk)
	r.subMu.Lock()
	defer r.subMu.Unlock()
	for ch := range r.subscribers {
		select {
		case ch <- chunk:
		default:
			// Slow subscriber, drop data
		}
	}
}

func (r *Run) appendReplay(chunk string) {
	r.replayMu.Lock()
	defer r.replayMu.Unlock()
	r.replayBuf = append(r.replayBuf, chunk...)
	if len(r.replayBuf) > replayBufSize {
		r.replayBuf = r.replayBuf[len(r.replayBuf)-replayBufSize:]
	}
}

// finish records the result and releases all subscribers.
func (r *Run) finish(result models.RunResult) {
	r.resultMu.Lock()
	r.result = &result
	r.resultMu.Unlock()

	r.subMu.Lock()
	for ch := range r.subscribers {
		close(ch)
		delete(r.subscribers, ch)
	}
	r.subsClosed = true
	r.subMu.Unlock()

	close(r.done)
}

// Snapshot renders the run as a models.Run for API responses.
func (r *Run) Snapshot() models.Run {
	run := models.Run{
		ID:        r.ID,
		Command:   r.Command,
		Cwd:       r.Cwd,
		Cols:      int(r.Cols),
		Rows:      int(r.Rows),
		Status:    models.StatusRunning,
		StartedAt: r.StartedAt,
	}
	if pid := r.PID(); pid > 0 {
		run.PID = &pid
	}
	if res := r.Result(); res != nil {
		run.Status = models.StatusCompleted
		run.ExitCode = res.ExitCode
		run.Cancelled = res.Cancelled
		run.TimedOut = res.TimedOut
	}
	return run
}
