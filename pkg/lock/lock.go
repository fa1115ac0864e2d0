// Package lock provides mutual exclusion keyed by an arbitrary string.
// Holders of different keys never wait for each other.
package lock

import (
	"context"
	"errors"
)

var ErrNotAcquired = errors.New("lock not acquired")

// Locker acquires an exclusive lock on key, waiting until ctx is done.
// On success it returns a function releasing the lock; it must be called exactly once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}
