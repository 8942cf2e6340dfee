// Package bootstrap assembles the infrastructure and application services
// shared by the server and the retention command.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	appaudit "github.com/groceryshare/backend/internal/application/audit"
	deliveryapp "github.com/groceryshare/backend/internal/application/delivery"
	"github.com/groceryshare/backend/internal/application/profile"
	"github.com/groceryshare/backend/internal/application/retention"
	"github.com/groceryshare/backend/internal/application/vetting"
	"github.com/groceryshare/backend/internal/infrastructure/cache"
	"github.com/groceryshare/backend/internal/infrastructure/config"
	"github.com/groceryshare/backend/internal/infrastructure/crypto"
	"github.com/groceryshare/backend/internal/infrastructure/event"
	"github.com/groceryshare/backend/internal/infrastructure/logger"
	"github.com/groceryshare/backend/internal/infrastructure/persistence"
	"github.com/groceryshare/backend/internal/infrastructure/storage"
	"github.com/groceryshare/backend/internal/infrastructure/telemetry"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const meterName = "groceryshare"

// Infra holds the long-lived connections of a process
type Infra struct {
	Config    *config.Config
	Logger    *zap.Logger
	Telemetry *telemetry.Telemetry
	DB        *persistence.Database
	Redis     *redis.Client // nil when the in-memory lock is used
	Lock      cache.MaintenanceLock
	Store     storage.ArtifactStore
	Cipher    *crypto.Gateway
	Bus       *event.InMemoryEventBus
	Metrics   *telemetry.DeliveryMetrics

	closers []func(context.Context) error
}

// NewLogger builds the process logger from cfg.Log
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	return logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// Open connects everything in cfg. Close releases whatever was opened, also
// after a failed Open.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Infra, error) {
	in := &Infra{Config: cfg, Logger: log}
	if err := in.open(ctx); err != nil {
		_ = in.Close(context.Background())
		return nil, err
	}
	return in, nil
}

func (in *Infra) open(ctx context.Context) error {
	cfg := in.Config

	tel, err := telemetry.Setup(ctx, cfg.Telemetry, in.Logger)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	in.Telemetry = tel
	in.closers = append(in.closers, tel.Shutdown)

	if tel.Logs.IsEnabled() {
		otelCore := tel.Logs.ZapCore(cfg.Telemetry.ServiceName, logger.ParseLevel(cfg.Log.Level))
		in.Logger = in.Logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(core, otelCore)
		}))
	}

	gormLog := logger.NewGormLogger(in.Logger, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
		logger.WithParameters(cfg.Telemetry.DBLogFullSQL),
	)
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		return err
	}
	in.DB = db
	in.closers = append(in.closers, func(context.Context) error { return db.Close() })
	in.Logger.Info("Database connected successfully")

	if err := telemetry.RegisterDBTracing(db.DB, cfg.Telemetry, in.Logger); err != nil {
		return fmt.Errorf("db tracing: %w", err)
	}
	meter := in.Meter()
	if sqlDB, err := db.DB.DB(); err == nil {
		reg, err := telemetry.RegisterDBPoolMetrics(meter, sqlDB)
		if err != nil {
			return fmt.Errorf("db pool metrics: %w", err)
		}
		in.closers = append(in.closers, func(context.Context) error { return reg.Unregister() })
	}

	if in.Metrics, err = telemetry.NewDeliveryMetrics(meter); err != nil {
		return err
	}

	lock, client, err := cache.NewLockFactory(cfg.Redis,
		cache.WithLogger(in.Logger),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	).Create()
	if err != nil {
		return err
	}
	in.Lock, in.Redis = lock, client
	if client != nil {
		in.closers = append(in.closers, func(context.Context) error { return client.Close() })
	}

	if in.Store, err = storage.New(ctx, &cfg.Storage, in.Logger); err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	if in.Cipher, err = crypto.FromConfig(cfg.Encryption); err != nil {
		return err
	}

	in.Bus = event.NewInMemoryEventBus(in.Logger)
	notifications := event.NewNotificationHandler(event.NewLogNotifier(in.Logger))
	in.Bus.Subscribe(notifications, notifications.EventTypes()...)
	in.closers = append(in.closers, in.Bus.Stop)
	return in.Bus.Start(ctx)
}

// Meter returns the process meter, a no-op one when metrics are disabled
func (in *Infra) Meter() metric.Meter {
	return in.Telemetry.Meter.Meter(meterName)
}

// Close releases resources in reverse order of acquisition
func (in *Infra) Close(ctx context.Context) error {
	var errs []error
	for i := len(in.closers) - 1; i >= 0; i-- {
		errs = append(errs, in.closers[i](ctx))
	}
	in.closers = nil
	return errors.Join(errs...)
}

// Services are the application services built over one Infra
type Services struct {
	Claims    *deliveryapp.ClaimService
	Views     *deliveryapp.ViewService
	Messages  *deliveryapp.MessageService
	Ratings   *deliveryapp.RatingService
	Profiles  *profile.Service
	Vetting   *vetting.Service
	Retention *retention.Service
	Audit     *appaudit.QueryService
}

// Policy maps the policy section of the configuration
func Policy(cfg config.PolicyConfig) deliveryapp.Policy {
	return deliveryapp.Policy{
		MaxActiveClaims:     cfg.MaxActiveClaims,
		AdminCancelRequeues: cfg.AdminCancelRequeues,
		MessagePollInterval: cfg.MessagePollInterval(),
	}
}

// RetentionConfig maps the retention knobs spread over the configuration
func RetentionConfig(cfg *config.Config) retention.Config {
	return retention.Config{
		InactiveMonths: cfg.Policy.InactivePurgeMonths,
		BatchSize:      cfg.Scheduler.BatchSize,
		RotationBatch:  cfg.Encryption.RotationBatch,
		LockTTL:        cfg.Encryption.LockTTL,
	}
}

// Services wires every application service to the shared infrastructure
func (in *Infra) Services() *Services {
	cfg := in.Config
	log := in.Logger
	scope := persistence.NewGormTransactionScope(in.DB.DB)
	recorder := appaudit.NewRecorder(log)
	policy := Policy(cfg.Policy)

	claims := deliveryapp.NewClaimService(scope, recorder, policy, log)
	claims.SetEventPublisher(in.Bus)
	claims.SetMetrics(in.Metrics)

	messages := deliveryapp.NewMessageService(scope, recorder, policy, log)
	messages.SetEventPublisher(in.Bus)

	ratings := deliveryapp.NewRatingService(scope, recorder, log)
	ratings.SetEventPublisher(in.Bus)

	profiles := profile.NewService(scope, in.Cipher, recorder, in.Lock, log)
	profiles.SetEventPublisher(in.Bus)

	ret := retention.NewService(scope, recorder, in.Store, in.Lock, RetentionConfig(cfg), log)
	ret.SetEventPublisher(in.Bus)
	ret.SetMetrics(in.Metrics)

	vet := vetting.NewService(scope, recorder, ret, in.Store, cfg.Policy.IDUploadExpiry(), log)
	vet.SetEventPublisher(in.Bus)

	return &Services{
		Claims:    claims,
		Views:     deliveryapp.NewViewService(scope, in.Cipher, recorder, log),
		Messages:  messages,
		Ratings:   ratings,
		Profiles:  profiles,
		Vetting:   vet,
		Retention: ret,
		Audit:     appaudit.NewQueryService(persistence.NewGormAuditRepository(in.DB.DB)),
	}
}
