// Package lock defines the mutual-exclusion contract used by background jobs
// that must run on a single replica at a time.
package lock

import (
	"context"
	"errors"
)

var ErrNotAcquired = errors.New("lock not acquired")

// Locker runs fn while holding the named lock. It returns ErrNotAcquired
// without calling fn when another holder owns the lock.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}
