package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/groceryshare/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryMaintenanceLock(t *testing.T) {
	ctx := context.Background()

	t.Run("acquire is exclusive", func(t *testing.T) {
		lock := NewInMemoryMaintenanceLock()

		lease, err := lock.Acquire(ctx, time.Minute)
		require.NoError(t, err)

		held, err := lock.Held(ctx)
		require.NoError(t, err)
		assert.True(t, held)

		_, err = lock.Acquire(ctx, time.Minute)
		assert.ErrorIs(t, err, ErrLockHeld)

		require.NoError(t, lease.Release(ctx))
		held, _ = lock.Held(ctx)
		assert.False(t, held)

		_, err = lock.Acquire(ctx, time.Minute)
		assert.NoError(t, err)
	})

	t.Run("expired lease can be taken over", func(t *testing.T) {
		lock := NewInMemoryMaintenanceLock()
		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		lock.now = func() time.Time { return now }

		first, err := lock.Acquire(ctx, time.Minute)
		require.NoError(t, err)

		now = now.Add(2 * time.Minute)
		held, _ := lock.Held(ctx)
		assert.False(t, held)

		second, err := lock.Acquire(ctx, time.Minute)
		require.NoError(t, err)

		assert.ErrorIs(t, first.Release(ctx), ErrLockLost)
		assert.NoError(t, second.Release(ctx))
	})

	t.Run("double release reports lost", func(t *testing.T) {
		lock := NewInMemoryMaintenanceLock()
		lease, err := lock.Acquire(ctx, time.Minute)
		require.NoError(t, err)
		require.NoError(t, lease.Release(ctx))
		assert.ErrorIs(t, lease.Release(ctx), ErrLockLost)
	})

	t.Run("concurrent acquirers get one winner", func(t *testing.T) {
		lock := NewInMemoryMaintenanceLock()
		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := lock.Acquire(ctx, time.Minute); err == nil {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})
}

func TestLockFactory_FallsBackWhenAllowed(t *testing.T) {
	unreachable := config.RedisConfig{Host: "127.0.0.1", Port: 1}

	_, _, err := NewLockFactory(unreachable).Create()
	assert.Error(t, err)

	lock, client, err := NewLockFactory(unreachable, WithInMemoryFallback(true)).Create()
	require.NoError(t, err)
	assert.Nil(t, client)
	assert.IsType(t, &InMemoryMaintenanceLock{}, lock)
}
