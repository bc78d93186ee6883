// Package lock serializes mutating tool calls per contact number, so the
// conflict check always sees a consistent appointment snapshot.
package lock

import (
	"context"
	"errors"
	"sync"
)

var ErrLockNotAcquired = errors.New("contact lock not acquired")

// Locker guards the read + conflict-check + write critical section for one
// contact number.
type Locker interface {
	WithContactLock(ctx context.Context, contactNumber string, fn func(ctx context.Context) error) error
}

// LocalLocker is the single-process implementation, used when Redis is not
// configured and in tests.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *LocalLocker) WithContactLock(ctx context.Context, contactNumber string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	m, ok := l.locks[contactNumber]
	if !ok {
		m = &sync.Mutex{}
		l.locks[contactNumber] = m
	}
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}
