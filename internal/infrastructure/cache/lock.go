// Package cache holds the maintenance lock that makes encryption key
// rotation mutually exclusive with recipient contact writes.
package cache

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"
)

// DefaultMaintenanceKey is the lock name used for key rotation
const DefaultMaintenanceKey = "groceryshare:maintenance:key-rotation"

var (
	// ErrLockHeld is returned by Acquire when another holder owns the lock
	ErrLockHeld = errors.New("maintenance lock is held")
	// ErrLockLost is returned by Release when the lease expired or was taken over
	ErrLockLost = errors.New("maintenance lock was lost")
)

// Lease is a held maintenance lock
type Lease interface {
	// Release frees the lock if this lease still owns it
	Release(ctx context.Context) error
}

// MaintenanceLock is an exclusive, expiring lock
type MaintenanceLock interface {
	// Acquire takes the lock for ttl or returns ErrLockHeld
	Acquire(ctx context.Context, ttl time.Duration) (Lease, error)
	// Held reports whether anyone currently holds the lock
	Held(ctx context.Context) (bool, error)
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
