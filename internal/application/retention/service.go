package retention

import (
	"context"
	"time"

	appaudit "github.com/groceryshare/backend/internal/application/audit"
	"github.com/groceryshare/backend/internal/application/transaction"
	"github.com/groceryshare/backend/internal/domain/shared"
	"github.com/groceryshare/backend/internal/infrastructure/cache"
	"go.uber.org/zap"
)

// Job names reported to Metrics and the scheduler
const (
	JobExpireUploads = "expire_uploads"
	JobPurgeInactive = "purge_inactive"
	JobRotateKey     = "rotate_key"
)

// ArtifactStore removes ID-verification artifacts from object storage
type ArtifactStore interface {
	Delete(ctx context.Context, ref string) error
}

// Metrics receives sweep results
type Metrics interface {
	Swept(ctx context.Context, job string, affected int, err error)
}

type noopMetrics struct{}

func (noopMetrics) Swept(context.Context, string, int, error) {}

// Config holds the retention knobs
type Config struct {
	InactiveMonths int
	BatchSize      int
	RotationBatch  int
	LockTTL        time.Duration
}

// DefaultConfig returns the stock retention settings
func DefaultConfig() Config {
	return Config{
		InactiveMonths: 18,
		BatchSize:      100,
		RotationBatch:  200,
		LockTTL:        30 * time.Minute,
	}
}

func (c Config) batchSize() int {
	if c.BatchSize < 1 {
		return 100
	}
	return c.BatchSize
}

func (c Config) rotationBatch() int {
	if c.RotationBatch < 1 {
		return 200
	}
	return c.RotationBatch
}

func (c Config) lockTTL() time.Duration {
	if c.LockTTL <= 0 {
		return 30 * time.Minute
	}
	return c.LockTTL
}

// Service deletes and purges personal data on request or on schedule, and
// re-encrypts contact data when the key changes.
type Service struct {
	scope          transaction.Scope
	recorder       *appaudit.Recorder
	store          ArtifactStore
	lock           cache.MaintenanceLock
	config         Config
	logger         *zap.Logger
	eventPublisher shared.EventPublisher
	metrics        Metrics
	now            func() time.Time
}

// NewService creates a new retention Service. store and lock may be nil for
// callers that never expire uploads or rotate keys.
func NewService(
	scope transaction.Scope,
	recorder *appaudit.Recorder,
	store ArtifactStore,
	lock cache.MaintenanceLock,
	config Config,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		scope:    scope,
		recorder: recorder,
		store:    store,
		lock:     lock,
		config:   config,
		logger:   logger,
		metrics:  noopMetrics{},
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *Service) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetMetrics sets the sweep metrics sink
func (s *Service) SetMetrics(m Metrics) {
	if m != nil {
		s.metrics = m
	}
}

// SetClock overrides the time source
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// publishEvents publishes and clears pending aggregate events after commit
func (s *Service) publishEvents(ctx context.Context, aggregates ...shared.AggregateRoot) {
	for _, aggregate := range aggregates {
		events := aggregate.GetDomainEvents()
		if len(events) == 0 {
			continue
		}
		aggregate.ClearDomainEvents()
		if s.eventPublisher == nil {
			continue
		}
		if err := s.eventPublisher.Publish(ctx, events...); err != nil {
			s.logger.Warn("Failed to publish domain events",
				zap.String("aggregate_id", aggregate.GetID().String()),
				zap.Error(err),
			)
		}
	}
}
