// Package runner tracks live runs by id and bridges engine callbacks to
// remote clients and the history store.
package runner

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rsmidt/ptyhost/internal/db"
	"github.com/rsmidt/ptyhost/internal/engine"
	"github.com/rsmidt/ptyhost/internal/models"
)

// ErrRunNotFound is returned for control calls against unknown or
// already-finished runs.
var ErrRunNotFound = errors.New("run not found")

// Registry owns every live run.
type Registry struct {
	mu    sync.RWMutex
	runs  map[string]*Run
	store *db.Store // nil disables history
}

func NewRegistry(store *db.Store) *Registry {
	return &Registry{
		runs:  make(map[string]*Run),
		store: store,
	}
}

// Start launches a run and registers it. The returned Run is live
// immediately; its result arrives through Done/Result.
func (g *Registry) Start(req models.StartRequest) (*Run, error) {
	sess := engine.NewSession()
	cols, rows := engine.EffectiveSize(req.Cols, req.Rows)
	run := &Run{
		ID:          uuid.New().String(),
		Command:     req.Command,
		Cwd:         req.Cwd,
		Cols:        cols,
		Rows:        rows,
		StartedAt:   time.Now().UTC(),
		session:     sess,
		done:        make(chan struct{}),
		subscribers: make(map[chan string]struct{}),
	}

	opts := engine.Options{
		Command: req.Command,
		Dir:     req.Cwd,
		Env:     req.Env,
		Timeout: time.Duration(req.TimeoutMs) * time.Millisecond,
		Cols:    req.Cols,
		Rows:    req.Rows,
	}
	results, err := sess.Start(context.Background(), opts, run.ingest)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	g.runs[run.ID] = run
	g.mu.Unlock()

	g.recordStart(run)

	go func() {
		res := <-results
		g.settle(run, res)
	}()
	return run, nil
}

// settle finalizes a run: result latched, subscribers released, history
// updated, registry entry removed.
func (g *Registry) settle(run *Run, res engine.Result) {
	status := models.StatusCompleted
	if res.Err != nil {
		status = models.StatusFailed
		log.Printf("runner: run %s failed: %v", run.ID, res.Err)
	}
	result := models.RunResult{
		ExitCode:  res.ExitCode,
		Cancelled: res.Cancelled,
		TimedOut:  res.TimedOut,
	}
	run.finish(result)

	if g.store != nil {
		if err := g.store.FinishRun(run.ID, result, status, time.Now().UTC()); err != nil {
			log.Printf("runner: record finish for %s: %v", run.ID, err)
		}
	}

	g.mu.Lock()
	delete(g.runs, run.ID)
	g.mu.Unlock()
}

func (g *Registry) recordStart(run *Run) {
	if g.store == nil {
		return
	}
	snap := run.Snapshot()
	snap.Status = models.StatusRunning
	if err := g.store.InsertRun(snap); err != nil {
		log.Printf("runner: record start for %s: %v", run.ID, err)
	}
}

// Get returns a live run, or nil.
func (g *Registry) Get(id string) *Run {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.runs[id]
}

// List returns all live runs.
func (g *Registry) List() []*Run {
	g.mu.RLock()
	defer g.mu.RUnlock()
	runs := make([]*Run, 0, len(g.runs))
	for _, run := range g.runs {
		runs = append(runs, run)
	}
	return runs
}

// Write sends input to a live run.
func (g *Registry) Write(id, data string) error {
	run := g.Get(id)
	if run == nil {
		return ErrRunNotFound
	}
	return run.Write(data)
}

// Resize resizes a live run's terminal.
func (g *Registry) Resize(id string, cols, rows uint16) error {
	run := g.Get(id)
	if run == nil {
		return ErrRunNotFound
	}
	return run.Resize(cols, rows)
}

// Kill requests termination of a live run.
func (g *Registry) Kill(id string) error {
	run := g.Get(id)
	if run == nil {
		return ErrRunNotFound
	}
	return run.Kill()
}

// StopAll kills every live run and waits briefly for each to settle.
func (g *Registry) StopAll() {
	for _, run := range g.List() {
		if err := run.Kill(); err != nil {
			continue
		}
		select {
		case <-run.Done():
		case <-time.After(2 * time.Second):
			log.Printf("runner: run %s did not settle in time", run.ID)
		}
	}
}
