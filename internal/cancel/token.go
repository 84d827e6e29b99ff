// Package cancel provides the cancellation token consumed by the wait
// and PTY engines. A token unifies an optional timeout and an optional
// caller-supplied cancellation context behind a non-blocking heartbeat.
package cancel

import (
	"context"
	"sync"
	"time"
)

// Status is the result of a heartbeat check.
type Status int

const (
	StatusOK Status = iota
	StatusTimeout
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusTimeout:
		return "timeout"
	case StatusCancelled:
		return "cancelled"
	default:
		return "ok"
	}
}

// Token reports whether a run should keep going. Once tripped it stays
// tripped: every later Heartbeat returns the same terminal status.
type Token struct {
	ctx    context.Context
	cancel context.CancelFunc
	timed  bool // a deadline was set

	mu      sync.Mutex
	tripped Status
}

// NewToken builds a token from an optional parent context and an
// optional timeout. A zero timeout means no deadline; such a token
// trips only through its parent or Stop.
func NewToken(parent context.Context, timeout time.Duration) *Token {
	if parent == nil {
		parent = context.Background()
	}
	t := &Token{}
	if timeout > 0 {
		t.ctx, t.cancel = context.WithTimeout(parent, timeout)
		t.timed = true
	} else {
		t.ctx, t.cancel = context.WithCancel(parent)
	}
	return t
}

// Heartbeat is a non-blocking check of the token's current status.
func (t *Token) Heartbeat() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.tripped != StatusOK {
		return t.tripped
	}
	select {
	case <-t.ctx.Done():
		if t.timed && t.ctx.Err() == context.DeadlineExceeded {
			t.tripped = StatusTimeout
		} else {
			t.tripped = StatusCancelled
		}
		return t.tripped
	default:
		return StatusOK
	}
}

// Done returns a channel closed when the token trips: deadline, parent
// cancellation, or Stop.
func (t *Token) Done() <-chan struct{} {
	return t.ctx.Done()
}

// Stop releases the token's resources and trips it. A waiter still
// selecting on Done observes the stop as a cancellation. Safe to call
// more than once.
func (t *Token) Stop() {
	t.cancel()
}
