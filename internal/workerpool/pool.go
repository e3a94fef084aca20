// Package workerpool implements a worker pool with a fatal-error
// rendezvous shared by all tasks of one Pool, and a file-slot counting
// semaphore, both built on golang.org/x/sync — the same package
// github.com/docker/model-runner uses directly for supervising
// concurrent background work.
package workerpool

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Pool runs each task on its own goroutine; it does not cap how many
// tasks run at once. It forwards the first error any task returns to
// the pool's single rendezvous point, Wait. Once one
// task fails, the pool's context is cancelled; subsequent errors are
// discarded — the first error reported wins.
type Pool struct {
	group *errgroup.Group
	ctx   context.Context
}

// New returns a Pool bound to parent; cancelling parent (or a task
// failing) propagates to Context().
func New(parent context.Context) *Pool {
	g, ctx := errgroup.WithContext(parent)
	return &Pool{group: g, ctx: ctx}
}

// Go submits a task. No task is ever silently swallowed: its error (if
// any) is captured by Wait.
func (p *Pool) Go(task func() error) {
	p.group.Go(task)
}

// Wait blocks until every submitted task has returned, and yields the
// first error any of them reported (nil if all succeeded).
func (p *Pool) Wait() error {
	return p.group.Wait()
}

// Context returns the pool's context, cancelled as soon as the first
// task fails (or the parent is cancelled). Orchestrators select on
// Context().Done() to learn of a fatal error without waiting for every
// other task to unwind first.
func (p *Pool) Context() context.Context {
	return p.ctx
}

// FileSlots is a counting semaphore on distinct files in flight: it
// caps the number of distinct files allowed in flight at once,
// independent of how many sub-streams serve each one.
type FileSlots struct {
	sem *semaphore.Weighted
}

// NewFileSlots returns a semaphore pre-seeded with n permits.
func NewFileSlots(n int64) *FileSlots {
	return &FileSlots{sem: semaphore.NewWeighted(n)}
}

// Acquire blocks until a file slot is available or ctx is done.
func (f *FileSlots) Acquire(ctx context.Context) error {
	return f.sem.Acquire(ctx, 1)
}

// Release returns one file slot.
func (f *FileSlots) Release() {
	f.sem.Release(1)
}
