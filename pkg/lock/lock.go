// Package lock implements an exclusive lock on a local file, held by one
// cloudsupport process at a time.
package lock

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

var (
	// ErrLocked signifies a non-blocking attempt on a lock held elsewhere
	ErrLocked = errors.New("Lock held by another process")
	// ErrLockNotHeld signifies an attempt to operate on a released lock
	ErrLockNotHeld = errors.New("Lock not held")
)

// RetryDelay is the interval between attempts of a blocking Acquire
var RetryDelay = 100 * time.Millisecond

// Lock is an exclusive lock on a file
type Lock struct {
	f    *flock.Flock
	held bool
}

// Acquire will attempt to acquire the lock at path. If blocking is set it
// retries until ctx is done, otherwise it returns ErrLocked right away when
// the lock is held elsewhere.
func Acquire(ctx context.Context, path string, blocking bool) (*Lock, error) {
	if path == "" {
		return nil, errors.New("lock path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}

	f := flock.New(path)
	var (
		ok  bool
		err error
	)
	if blocking {
		ok, err = f.TryLockContext(ctx, RetryDelay)
	} else {
		ok, err = f.TryLock()
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLocked
	}
	return &Lock{f: f, held: true}, nil
}

// Path returns the lock file path
func (l *Lock) Path() string {
	return l.f.Path()
}

// Release will release the lock. The lock file is left in place.
func (l *Lock) Release() error {
	if !l.held {
		return ErrLockNotHeld
	}
	l.held = false
	return l.f.Unlock()
}

// ForState returns the lock path guarding a state store address
func ForState(path string) string {
	return filepath.Clean(path) + ".lock"
}
