// Package gate bounds how many tasks run at once and lets callers wait for
// the queue to drain. It knows nothing about browsers.
package gate

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

type Gate struct {
	limit int64
	sem   *semaphore.Weighted

	mu      sync.Mutex
	pending int // queued + active
	active  int
	drained chan struct{}
}

// New returns a gate that runs at most limit tasks concurrently.
func New(limit int) *Gate {
	if limit < 1 {
		limit = 1
	}
	drained := make(chan struct{})
	close(drained)
	return &Gate{
		limit:   int64(limit),
		sem:     semaphore.NewWeighted(int64(limit)),
		drained: drained,
	}
}

func (g *Gate) Limit() int {
	return int(g.limit)
}

// Run queues task and blocks until it has run, returning its result.
// Waiters are admitted in FIFO order. A task whose context ends while it is
// still queued never runs.
func Run[T any](ctx context.Context, g *Gate, task func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	g.enter()
	defer g.leave()

	if err := g.sem.Acquire(ctx, 1); err != nil {
		return zero, err
	}
	defer g.sem.Release(1)

	g.setActive(1)
	defer g.setActive(-1)

	return task(ctx)
}

// Do is Run for tasks without a result.
func (g *Gate) Do(ctx context.Context, task func(ctx context.Context) error) error {
	_, err := Run(ctx, g, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, task(ctx)
	})
	return err
}

// Wait blocks until no task is queued or active. It returns at once when the
// gate is already idle.
func (g *Gate) Wait(ctx context.Context) error {
	g.mu.Lock()
	ch := g.drained
	g.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Active is the number of tasks currently running.
func (g *Gate) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// Pending is the number of tasks queued or running.
func (g *Gate) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending
}

func (g *Gate) enter() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending == 0 {
		g.drained = make(chan struct{})
	}
	g.pending++
}

func (g *Gate) leave() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pending--
	if g.pending == 0 {
		close(g.drained)
	}
}

func (g *Gate) setActive(delta int) {
	g.mu.Lock()
	g.active += delta
	g.mu.Unlock()
}
