package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the status of a job run
type JobStatus string

const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
)

// JobFunc performs one sweep and reports how many records it handled
type JobFunc func(ctx context.Context, now time.Time) (int, error)

// Job is a named sweep the scheduler runs every interval
type Job struct {
	Name string
	Run  JobFunc
}

// Run records one execution of a job, retries included
type Run struct {
	ID          uuid.UUID
	Job         string
	Status      JobStatus
	Affected    int
	Error       string
	StartedAt   *time.Time
	CompletedAt *time.Time
	RetryCount  int
	MaxRetries  int
}

// NewRun creates a pending run
func NewRun(job string, maxRetries int) *Run {
	return &Run{
		ID:         uuid.New(),
		Job:        job,
		Status:     JobStatusPending,
		MaxRetries: maxRetries,
	}
}

// Start marks the run as running
func (r *Run) Start(now time.Time) {
	r.Status = JobStatusRunning
	r.StartedAt = &now
	r.Error = ""
}

// Complete marks the run as successful
func (r *Run) Complete(affected int, now time.Time) {
	r.Status = JobStatusSuccess
	r.Affected = affected
	r.CompletedAt = &now
}

// Fail marks the run as failed
func (r *Run) Fail(err error, now time.Time) {
	r.Status = JobStatusFailed
	r.CompletedAt = &now
	r.Error = err.Error()
}

// ShouldRetry returns true if the run failed and has retries left
func (r *Run) ShouldRetry() bool {
	return r.Status == JobStatusFailed && r.RetryCount < r.MaxRetries
}

// ScheduleRetry resets the run for another attempt
func (r *Run) ScheduleRetry() {
	r.RetryCount++
	r.Status = JobStatusPending
	r.Error = ""
}
