// Package processing runs session orchestrations as background goroutines
// inside the API process and keeps a handle to each so they can be listed and
// cancelled on shutdown.
package processing

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/dharsanguruparan/skypulse/internal/logger"
)

var (
	// ErrAlreadyRunning is returned when a session already has a live task.
	ErrAlreadyRunning = errors.New("session already running")
	// ErrClosed is returned by Launch after Shutdown has started.
	ErrClosed = errors.New("registry closed")
)

// Runner drives one session to completion.
type Runner interface {
	Run(ctx context.Context, sessionID string) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, sessionID string) error

func (f RunnerFunc) Run(ctx context.Context, sessionID string) error { return f(ctx, sessionID) }

// Task describes a live background run.
type Task struct {
	SessionID string
	StartedAt time.Time
}

type task struct {
	Task
	cancel context.CancelFunc
	done   chan struct{}
}

// Registry owns every in-process run. Runs are detached from the request that
// launched them and end only when the runner returns or Shutdown cancels them.
type Registry struct {
	runner Runner
	log    *logger.Logger

	base   context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	tasks  map[string]*task
	closed bool
	wg     sync.WaitGroup
}

// NewRegistry builds a Registry around runner.
func NewRegistry(runner Runner, log *logger.Logger) *Registry {
	base, cancel := context.WithCancel(context.Background())
	return &Registry{
		runner: runner,
		log:    log.With("component", "Registry"),
		base:   base,
		cancel: cancel,
		tasks:  make(map[string]*task),
	}
}

// Launch starts a background run for sessionID and returns immediately. The
// context only scopes the call itself; the run outlives it.
func (r *Registry) Launch(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if _, ok := r.tasks[sessionID]; ok {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(r.base)
	t := &task{
		Task:   Task{SessionID: sessionID, StartedAt: time.Now().UTC()},
		cancel: cancel,
		done:   make(chan struct{}),
	}
	r.tasks[sessionID] = t
	r.wg.Add(1)
	go r.run(ctx, t)
	return nil
}

func (r *Registry) run(ctx context.Context, t *task) {
	defer r.wg.Done()
	defer close(t.done)
	defer r.remove(t.SessionID)
	defer t.cancel()
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("session run panicked", "session_id", t.SessionID, "panic", p)
		}
	}()

	if err := r.runner.Run(ctx, t.SessionID); err != nil {
		r.log.Warn("session run ended with error", "session_id", t.SessionID, "error", err)
		return
	}
	r.log.Debug("session run finished", "session_id", t.SessionID, "elapsed", time.Since(t.StartedAt))
}

func (r *Registry) remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tasks, sessionID)
}

// Active lists live runs ordered by start time.
func (r *Registry) Active() []Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, t.Task)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].SessionID < out[j].SessionID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// Done returns a channel closed when the run for sessionID ends. Sessions
// without a live run yield an already closed channel.
func (r *Registry) Done(sessionID string) <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tasks[sessionID]; ok {
		return t.done
	}
	ch := make(chan struct{})
	close(ch)
	return ch
}

// Cancel stops the run for sessionID if one is live.
func (r *Registry) Cancel(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[sessionID]
	if ok {
		t.cancel()
	}
	return ok
}

// Shutdown refuses new launches, cancels live runs, and waits for them to
// return or for ctx to end.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
