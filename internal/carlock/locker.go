// Package carlock serialises work per car. Every booking write for a car
// runs while holding that car's lock, so the overlap check and the insert
// cannot interleave with another writer for the same car. Locks for
// different cars are independent.
package carlock

import (
	"context"
	"errors"
	"fmt"
)

// ErrTimeout is returned when the lock could not be taken before the
// context ended.
var ErrTimeout = errors.New("timed out waiting for car lock")

// Locker hands out exclusive per-key locks.
type Locker interface {
	// Acquire blocks until key is held or ctx is done. The returned
	// release func is safe to call more than once.
	Acquire(ctx context.Context, key string) (release func(), err error)
}

func timeoutError(key string, cause error) error {
	return fmt.Errorf("%w: %s: %v", ErrTimeout, key, cause)
}
