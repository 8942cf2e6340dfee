//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/groceryshare/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) config.RedisConfig {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "Failed to start Redis container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: Failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)
	return config.RedisConfig{Host: host, Port: port.Int()}
}

func TestIntegration_RedisMaintenanceLock(t *testing.T) {
	cfg := startRedis(t)
	ctx := context.Background()

	lock, client, err := NewLockFactory(cfg).Create()
	require.NoError(t, err)
	require.NotNil(t, client)
	defer client.Close()

	other := NewRedisMaintenanceLock(client, DefaultMaintenanceKey)

	lease, err := lock.Acquire(ctx, time.Minute)
	require.NoError(t, err)

	held, err := other.Held(ctx)
	require.NoError(t, err)
	assert.True(t, held)

	_, err = other.Acquire(ctx, time.Minute)
	assert.ErrorIs(t, err, ErrLockHeld)

	require.NoError(t, lease.Release(ctx))
	assert.ErrorIs(t, lease.Release(ctx), ErrLockLost)

	short, err := other.Acquire(ctx, 200*time.Millisecond)
	require.NoError(t, err)
	time.Sleep(400 * time.Millisecond)
	held, err = lock.Held(ctx)
	require.NoError(t, err)
	assert.False(t, held)
	assert.ErrorIs(t, short.Release(ctx), ErrLockLost)
}
