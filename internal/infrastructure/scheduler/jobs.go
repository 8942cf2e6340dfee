package scheduler

import "github.com/groceryshare/backend/internal/application/retention"

// RetentionJobs returns the periodic sweeps of the retention service. Key
// rotation is operator-driven and is not scheduled.
func RetentionJobs(svc *retention.Service) []Job {
	return []Job{
		{Name: retention.JobExpireUploads, Run: svc.ExpireUploads},
		{Name: retention.JobPurgeInactive, Run: svc.PurgeInactive},
	}
}
