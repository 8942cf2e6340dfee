package cache

import (
	"fmt"

	"github.com/groceryshare/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// LockFactory builds the maintenance lock from configuration
type LockFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// LockFactoryOption configures a LockFactory
type LockFactoryOption func(*LockFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) LockFactoryOption {
	return func(f *LockFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis falls back to a
// process-local lock. Only safe when a single process touches the database.
func WithInMemoryFallback(allow bool) LockFactoryOption {
	return func(f *LockFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewLockFactory creates a factory. Fallback is off by default.
func NewLockFactory(cfg config.RedisConfig, opts ...LockFactoryOption) *LockFactory {
	f := &LockFactory{
		redisConfig: cfg,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create returns the Redis lock, or the in-memory one if Redis is down and
// fallback is allowed. The returned client is nil for the in-memory lock.
func (f *LockFactory) Create() (MaintenanceLock, *redis.Client, error) {
	client, err := NewRedisClient(f.redisConfig)
	if err == nil {
		f.logger.Info("Using Redis maintenance lock", zap.String("addr", f.redisConfig.Addr()))
		return NewRedisMaintenanceLock(client, DefaultMaintenanceKey), client, nil
	}
	if !f.allowInMemoryFallback {
		return nil, nil, fmt.Errorf("redis required for maintenance lock but unavailable: %w", err)
	}
	f.logger.Warn("Redis unavailable, falling back to in-memory maintenance lock. "+
		"Key rotation will not be visible to other instances.",
		zap.Error(err),
	)
	return NewInMemoryMaintenanceLock(), nil, nil
}
