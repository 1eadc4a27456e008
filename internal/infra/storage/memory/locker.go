package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rentals/internal/app/policies"
)

// Locker is a process-local keyed mutex. Waiters give up when their context ends or
// after Timeout.
type Locker struct {
	Timeout time.Duration

	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	slot chan struct{}
	refs int
}

func NewLocker(timeout time.Duration) *Locker {
	return &Locker{Timeout: timeout, locks: make(map[string]*keyLock)}
}

func (l *Locker) Acquire(ctx context.Context, key string) (func(), error) {
	kl := l.ref(key)
	if l.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.Timeout)
		defer cancel()
	}
	select {
	case kl.slot <- struct{}{}:
	case <-ctx.Done():
		l.unref(key, kl)
		return nil, fmt.Errorf("%w: %s: %v", policies.ErrLockTimeout, key, ctx.Err())
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			<-kl.slot
			l.unref(key, kl)
		})
	}, nil
}

func (l *Locker) ref(key string) *keyLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locks == nil {
		l.locks = make(map[string]*keyLock)
	}
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{slot: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	return kl
}

func (l *Locker) unref(key string, kl *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
}

var _ policies.Locker = (*Locker)(nil)
