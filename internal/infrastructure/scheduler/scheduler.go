package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/groceryshare/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// RetentionScheduler runs the retention sweeps on a fixed interval. Jobs run
// one after another; a failed job is retried with a delay and never stops
// the others.
type RetentionScheduler struct {
	config config.SchedulerConfig
	jobs   []Job
	logger *zap.Logger
	now    func() time.Time

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	runMu     sync.Mutex
	isRunning bool
	lastRuns  map[string]Run
}

// NewRetentionScheduler creates a scheduler for the given jobs
func NewRetentionScheduler(cfg config.SchedulerConfig, logger *zap.Logger, jobs ...Job) (*RetentionScheduler, error) {
	if len(jobs) == 0 {
		return nil, ErrNoJobs
	}
	if cfg.SweepInterval <= 0 {
		return nil, fmt.Errorf("%w: sweep interval must be positive", ErrInvalidConfig)
	}
	if cfg.RetryAttempts < 0 {
		return nil, fmt.Errorf("%w: retry attempts cannot be negative", ErrInvalidConfig)
	}
	seen := make(map[string]struct{}, len(jobs))
	for _, job := range jobs {
		if job.Name == "" || job.Run == nil {
			return nil, fmt.Errorf("%w: job needs a name and a function", ErrInvalidConfig)
		}
		if _, ok := seen[job.Name]; ok {
			return nil, fmt.Errorf("%w: duplicate job %q", ErrInvalidConfig, job.Name)
		}
		seen[job.Name] = struct{}{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetentionScheduler{
		config:   cfg,
		jobs:     jobs,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		lastRuns: make(map[string]Run),
	}, nil
}

// SetClock overrides the time source
func (s *RetentionScheduler) SetClock(now func() time.Time) {
	s.now = now
}

// Start starts the sweep loop
func (s *RetentionScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if !s.config.Enabled {
		s.mu.Unlock()
		s.logger.Info("Retention scheduler is disabled")
		return nil
	}
	s.isRunning = true
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go s.loop(ctx)

	s.logger.Info("Retention scheduler started",
		zap.Duration("interval", s.config.SweepInterval),
		zap.Int("jobs", len(s.jobs)),
		zap.Bool("run_immediately", s.config.RunImmediately),
	)
	return nil
}

// Stop gracefully stops the scheduler, waiting for a running sweep to end
func (s *RetentionScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Retention scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Retention scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the scheduler is running
func (s *RetentionScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

func (s *RetentionScheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	if s.config.RunImmediately {
		s.RunAll(ctx)
	}

	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Retention sweep loop stopping")
			return
		case <-ticker.C:
			s.RunAll(ctx)
		}
	}
}

// RunAll runs every job once, in registration order
func (s *RetentionScheduler) RunAll(ctx context.Context) []Run {
	runs := make([]Run, 0, len(s.jobs))
	for _, job := range s.jobs {
		if ctx.Err() != nil {
			break
		}
		runs = append(runs, s.execute(ctx, job))
	}
	return runs
}

// RunJob runs a single job by name, outside the interval
func (s *RetentionScheduler) RunJob(ctx context.Context, name string) (Run, error) {
	for _, job := range s.jobs {
		if job.Name == name {
			run := s.execute(ctx, job)
			if run.Status == JobStatusFailed {
				return run, errors.New(run.Error)
			}
			return run, nil
		}
	}
	return Run{}, fmt.Errorf("%w: %s", ErrUnknownJob, name)
}

// TriggerImmediate runs every job now in the background
func (s *RetentionScheduler) TriggerImmediate(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.Info("Triggering immediate retention sweep")
	go func() {
		defer s.wg.Done()
		s.RunAll(ctx)
	}()
	return nil
}

// LastRun returns the most recent run of a job
func (s *RetentionScheduler) LastRun(name string) (Run, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.lastRuns[name]
	return run, ok
}

// execute runs one job with a timeout per attempt and retries on failure.
// Sweeps never overlap.
func (s *RetentionScheduler) execute(ctx context.Context, job Job) Run {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	run := NewRun(job.Name, s.config.RetryAttempts)
	logger := s.logger.With(zap.String("job", job.Name), zap.String("run_id", run.ID.String()))

	for {
		run.Start(s.now())
		affected, err := s.attempt(ctx, job)
		if err == nil {
			run.Complete(affected, s.now())
			logger.Info("Retention job completed",
				zap.Int("affected", affected),
				zap.Int("retry_count", run.RetryCount),
			)
			break
		}

		run.Fail(err, s.now())
		if !run.ShouldRetry() || ctx.Err() != nil {
			logger.Error("Retention job failed",
				zap.Int("retry_count", run.RetryCount),
				zap.Error(err),
			)
			break
		}
		run.ScheduleRetry()
		logger.Warn("Retention job failed, retrying",
			zap.Int("retry_count", run.RetryCount),
			zap.Int("max_retries", run.MaxRetries),
			zap.Duration("delay", s.config.RetryDelay),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			run.Fail(ctx.Err(), s.now())
			return s.remember(*run)
		case <-time.After(s.config.RetryDelay):
		}
	}
	return s.remember(*run)
}

func (s *RetentionScheduler) attempt(ctx context.Context, job Job) (int, error) {
	jobCtx := ctx
	if s.config.JobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, s.config.JobTimeout)
		defer cancel()
	}
	return job.Run(jobCtx, s.now())
}

func (s *RetentionScheduler) remember(run Run) Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRuns[run.Job] = run
	return run
}
