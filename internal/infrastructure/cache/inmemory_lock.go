package cache

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// InMemoryMaintenanceLock is a process-local MaintenanceLock for single
// instance deployments and tests. It does not coordinate across processes.
type InMemoryMaintenanceLock struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time
	now       func() time.Time
}

// NewInMemoryMaintenanceLock creates an unheld lock
func NewInMemoryMaintenanceLock() *InMemoryMaintenanceLock {
	return &InMemoryMaintenanceLock{now: time.Now}
}

// Acquire implements MaintenanceLock
func (l *InMemoryMaintenanceLock) Acquire(_ context.Context, ttl time.Duration) (Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.heldLocked() {
		return nil, ErrLockHeld
	}
	token, err := newToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate lock token: %w", err)
	}
	l.token = token
	l.expiresAt = l.now().Add(ttl)
	return &memoryLease{lock: l, token: token}, nil
}

// Held implements MaintenanceLock
func (l *InMemoryMaintenanceLock) Held(_ context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.heldLocked(), nil
}

func (l *InMemoryMaintenanceLock) heldLocked() bool {
	return l.token != "" && l.now().Before(l.expiresAt)
}

type memoryLease struct {
	lock  *InMemoryMaintenanceLock
	token string
}

func (m *memoryLease) Release(_ context.Context) error {
	m.lock.mu.Lock()
	defer m.lock.mu.Unlock()
	if m.lock.token != m.token || !m.lock.heldLocked() {
		return ErrLockLost
	}
	m.lock.token = ""
	return nil
}

var _ MaintenanceLock = (*InMemoryMaintenanceLock)(nil)
