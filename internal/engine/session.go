// Package engine runs one command at a time inside a pseudo-terminal,
// streaming decoded output to a caller-supplied sink while accepting
// live input, resize, and kill directives. A run always ends with a
// structured Result, even under cancellation, timeout, or a child that
// leaves descendants holding the terminal open.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Named conditions for control-API misuse. Everything else that can go
// wrong mid-run degrades into the Result's flags instead of an error.
var (
	ErrAlreadyRunning = errors.New("session already running")
	ErrNotRunning     = errors.New("session not running")
	ErrControlBacklog = errors.New("session control queue full")
)

const (
	minCols, maxCols = 20, 400
	minRows, maxRows = 5, 200

	defaultCols = 120
	defaultRows = 40

	controlQueueDepth      = 256
	controlMessagesPerTick = 64
	readerEventsPerTick    = 256

	postCancelDrainWindow  = 300 * time.Millisecond
	postExitDrainWindow    = 300 * time.Millisecond
	finalReaderDrainWindow = 50 * time.Millisecond
	tickInterval           = 16 * time.Millisecond
)

// Options are the immutable parameters for one run.
type Options struct {
	// Command is handed verbatim to the shell.
	Command string
	// Dir is the working directory; empty inherits the process cwd.
	Dir string
	// Env entries are layered over the inherited environment.
	Env map[string]string
	// Timeout bounds the run; zero means none.
	Timeout time.Duration
	// Cols and Rows are clamped to [20,400] and [5,200]; zero picks the
	// defaults (120x40).
	Cols uint16
	Rows uint16
}

// Result is the final outcome of one run. ExitCode is nil only when the
// process could never be waited on. Setup failures arrive through Err.
type Result struct {
	ExitCode  *int
	Cancelled bool
	TimedOut  bool
	Err       error
}

type controlKind int

const (
	ctrlInput controlKind = iota
	ctrlResize
	ctrlKill
)

type controlMessage struct {
	kind controlKind
	data string
	cols uint16
	rows uint16
}

// Session owns at most one active run. The control channel doubles as
// the running/idle state: non-nil means a run is active.
type Session struct {
	mu      sync.Mutex
	control chan controlMessage
	pid     int
}

func NewSession() *Session {
	return &Session{}
}

// Running reports whether a run is currently active.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.control != nil
}

// Pid returns the active run's child process id, or 0 when idle or not
// yet spawned.
func (s *Session) Pid() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pid
}

func (s *Session) setPid(pid int) {
	s.mu.Lock()
	s.pid = pid
	s.mu.Unlock()
}

// Start begins a run and returns a channel that delivers exactly one
// Result. The control channel is registered before any asynchronous
// work, so Write/Resize/Kill issued immediately after Start are never
// lost. ctx supplies external cancellation; opts.Timeout the deadline.
// A second Start while a run is active fails with ErrAlreadyRunning.
func (s *Session) Start(ctx context.Context, opts Options, onChunk func(string)) (<-chan Result, error) {
	opts.Cols, opts.Rows = EffectiveSize(opts.Cols, opts.Rows)

	control := make(chan controlMessage, controlQueueDepth)
	s.mu.Lock()
	if s.control != nil {
		s.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	s.control = control
	s.mu.Unlock()

	results := make(chan Result, 1)
	go func() {
		res := runSession(ctx, opts, onChunk, control, s.setPid)

		// Back to Idle before the result is visible, so the caller can
		// Start again as soon as it sees the result.
		s.mu.Lock()
		s.control = nil
		s.pid = 0
		s.mu.Unlock()
		results <- res
	}()
	return results, nil
}

// Write enqueues raw input for the PTY.
func (s *Session) Write(data string) error {
	return s.send(controlMessage{kind: ctrlInput, data: data})
}

// Resize enqueues a terminal resize, clamped like Start's size.
func (s *Session) Resize(cols, rows uint16) error {
	return s.send(controlMessage{
		kind: ctrlResize,
		cols: clamp(cols, defaultCols, minCols, maxCols),
		rows: clamp(rows, defaultRows, minRows, maxRows),
	})
}

// Kill enqueues a termination request for the running command.
func (s *Session) Kill() error {
	return s.send(controlMessage{kind: ctrlKill})
}

func (s *Session) send(msg controlMessage) error {
	s.mu.Lock()
	control := s.control
	s.mu.Unlock()
	if control == nil {
		return ErrNotRunning
	}
	select {
	case control <- msg:
		return nil
	default:
		return ErrControlBacklog
	}
}

// EffectiveSize resolves requested dimensions to the terminal size a
// run actually gets: defaults for zero, then clamped to the supported
// range.
func EffectiveSize(cols, rows uint16) (cols2, rows2 uint16) {
	return clamp(cols, defaultCols, minCols, maxCols),
		clamp(rows, defaultRows, minRows, maxRows)
}

func clamp(v, def, lo, hi uint16) uint16 {
	if v == 0 {
		v = def
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
