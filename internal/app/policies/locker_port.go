package policies

import (
	"context"
	"errors"
)

var ErrLockTimeout = errors.New("lock: timed out waiting for lock")

// Locker hands out advisory locks keyed by an arbitrary string, such as a listing id.
// Release must be called exactly once and is safe to call after ctx is done.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}
