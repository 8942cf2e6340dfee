package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/groceryshare/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only if it still carries our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisMaintenanceLock implements MaintenanceLock with SET NX PX so that
// every server instance sees the same lock.
type RedisMaintenanceLock struct {
	client *redis.Client
	key    string
}

// NewRedisClient connects to Redis and pings it
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewRedisMaintenanceLock creates a lock stored under key
func NewRedisMaintenanceLock(client *redis.Client, key string) *RedisMaintenanceLock {
	if key == "" {
		key = DefaultMaintenanceKey
	}
	return &RedisMaintenanceLock{client: client, key: key}
}

// Acquire implements MaintenanceLock
func (l *RedisMaintenanceLock) Acquire(ctx context.Context, ttl time.Duration) (Lease, error) {
	token, err := newToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate lock token: %w", err)
	}
	ok, err := l.client.SetNX(ctx, l.key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire maintenance lock: %w", err)
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return &redisLease{lock: l, token: token}, nil
}

// Held implements MaintenanceLock
func (l *RedisMaintenanceLock) Held(ctx context.Context) (bool, error) {
	n, err := l.client.Exists(ctx, l.key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check maintenance lock: %w", err)
	}
	return n > 0, nil
}

type redisLease struct {
	lock  *RedisMaintenanceLock
	token string
}

func (r *redisLease) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, r.lock.client, []string{r.lock.key}, r.token).Int64()
	if err != nil {
		return fmt.Errorf("failed to release maintenance lock: %w", err)
	}
	if n == 0 {
		return ErrLockLost
	}
	return nil
}

var _ MaintenanceLock = (*RedisMaintenanceLock)(nil)
