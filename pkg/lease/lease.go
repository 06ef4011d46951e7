// Package lease provides a lease-based exclusivity lock. Leases expire on
// their own, so a crashed holder never blocks the key forever.
package lease

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrHeld is returned when the key is currently leased by someone else.
var ErrHeld = errors.New("lease already held")

// Lease is a held lock. Release is idempotent and only removes the lock if
// this holder still owns it.
type Lease interface {
	Release(ctx context.Context) error
}

// Locker hands out leases keyed by string.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

// MemoryLocker is an in-process Locker for single-node deployments and
// tests.
type MemoryLocker struct {
	mu     sync.Mutex
	leases map[string]*memoryLease
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{leases: make(map[string]*memoryLease)}
}

type memoryLease struct {
	locker    *MemoryLocker
	key       string
	expiresAt time.Time
}

func (l *MemoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if held, ok := l.leases[key]; ok && time.Now().Before(held.expiresAt) {
		return nil, ErrHeld
	}

	lease := &memoryLease{locker: l, key: key, expiresAt: time.Now().Add(ttl)}
	l.leases[key] = lease
	return lease, nil
}

func (ml *memoryLease) Release(_ context.Context) error {
	ml.locker.mu.Lock()
	defer ml.locker.mu.Unlock()

	if held, ok := ml.locker.leases[ml.key]; ok && held == ml {
		delete(ml.locker.leases, ml.key)
	}
	return nil
}
