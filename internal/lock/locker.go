// Package lock serializes mutations that share a key.
package lock

import (
	"context"
	"errors"
)

// ErrTimeout is returned when a lock could not be acquired in time.
var ErrTimeout = errors.New("lock: timed out waiting for lock")

// Unlock releases a held lock. It is safe to call once.
type Unlock func()

// Locker grants at most one holder per key at a time.
type Locker interface {
	Lock(ctx context.Context, key string) (Unlock, error)
}

func waitErr(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	return ctx.Err()
}
