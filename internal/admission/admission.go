// Package admission bounds the number of concurrently in-flight workers,
// standing in for the original C proxy's POSIX counting semaphore
// (sem_wait/sem_post around MAX_CLIENTS in proxyserver.c) with
// golang.org/x/sync/semaphore's weighted semaphore, already a direct
// dependency of the proxy's ancestor codebase.
package admission

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Tokens is a counting admission gate with initial capacity MAX_CLIENTS
// (spec.md §3). Acquire must precede any per-request allocation beyond the
// accepted socket itself (spec.md §4.4's admission ordering rule); Release
// must run on every worker exit path.
type Tokens struct {
	sem *semaphore.Weighted
}

// New creates a Tokens gate that admits at most max concurrent holders.
func New(max int) *Tokens {
	return &Tokens{sem: semaphore.NewWeighted(int64(max))}
}

// Acquire blocks until a token is available or ctx is done.
func (t *Tokens) Acquire(ctx context.Context) error {
	return t.sem.Acquire(ctx, 1)
}

// Release returns a token to the pool. Safe to call from a defer on every
// worker exit path, including parse/fetch failures.
func (t *Tokens) Release() {
	t.sem.Release(1)
}
