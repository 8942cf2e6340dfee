package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned when triggering a stopped scheduler
	ErrSchedulerNotRunning = errors.New("scheduler is not running")

	// ErrUnknownJob is returned when a job name is not registered
	ErrUnknownJob = errors.New("unknown job")

	// ErrNoJobs is returned when a scheduler is built without jobs
	ErrNoJobs = errors.New("no jobs registered")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")
)
