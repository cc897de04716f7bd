// Package lockfile implements the per-root advisory lock (spec §5):
// generation numbers are allocated, a new generation is created, current
// is swapped, and the state file is written, all while holding this
// lock.
package lockfile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/flock"

	"github.com/stefan-hacks/pygr/internal/errmsg"
)

// LockHeldError reports the lock still being held by another process
// after the wait budget expires (spec §7, error kind LockHeld).
type LockHeldError struct{ Path string }

func (e *LockHeldError) Error() string          { return fmt.Sprintf("lock held: %s", e.Path) }
func (e *LockHeldError) ErrorKind() errmsg.Kind { return errmsg.KindLockHeld }

// Lock wraps an flock-based advisory lock on the root directory's lock
// file.
type Lock struct {
	flock *flock.Flock
}

// New returns a Lock for path (spec 4.A's config.LockFile).
func New(path string) *Lock {
	return &Lock{flock: flock.New(path)}
}

// defaultWaitBudget is how briefly a caller waits for a contended lock
// before surfacing LockHeld (spec §7: "Waited briefly, then surfaced").
const defaultWaitBudget = 2 * time.Second

// Acquire blocks for up to defaultWaitBudget trying to take the lock,
// then returns LockHeldError if it's still held elsewhere.
func (l *Lock) Acquire(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultWaitBudget)
	defer cancel()

	ok, err := l.flock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		return &LockHeldError{Path: l.flock.Path()}
	}
	if err != nil {
		return fmt.Errorf("lockfile: acquire %s: %w", l.flock.Path(), err)
	}
	if !ok {
		return &LockHeldError{Path: l.flock.Path()}
	}
	return nil
}

// Release drops the lock.
func (l *Lock) Release() error {
	return l.flock.Unlock()
}

// WithLock acquires the lock, runs fn, and releases it afterward
// regardless of fn's outcome. This is the shape every mutating CLI
// command uses to wrap its allocate-number -> create-gen -> swap-current
// -> write-state-file sequence (spec §5).
func WithLock(ctx context.Context, path string, fn func() error) error {
	l := New(path)
	if err := l.Acquire(ctx); err != nil {
		return err
	}
	defer l.Release()
	return fn()
}
