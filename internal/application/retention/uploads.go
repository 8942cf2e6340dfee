package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/groceryshare/backend/internal/application/transaction"
	"github.com/groceryshare/backend/internal/domain/audit"
	"github.com/groceryshare/backend/internal/domain/identity"
	"go.uber.org/zap"
)

// Upload removal triggers recorded on id_upload_expired entries
const (
	TriggerExpired  = "expired"
	TriggerReviewed = "reviewed"
)

// ExpireUploads deletes every ID upload past its deadline. The artifact goes
// first; if storage refuses, the row stays for the next sweep.
func (s *Service) ExpireUploads(ctx context.Context, now time.Time) (int, error) {
	if s.store == nil {
		return 0, fmt.Errorf("expire uploads: no artifact store configured")
	}
	seen := make(map[uuid.UUID]struct{})
	removed := 0

	for {
		if err := ctx.Err(); err != nil {
			s.metrics.Swept(ctx, JobExpireUploads, removed, err)
			return removed, err
		}
		var expired []identity.IDUpload
		err := s.scope.Execute(ctx, func(repos transaction.Repositories) error {
			var err error
			expired, err = repos.Uploads().FindExpired(ctx, now, s.config.batchSize())
			return err
		})
		if err != nil {
			err = fmt.Errorf("find expired uploads: %w", err)
			s.metrics.Swept(ctx, JobExpireUploads, removed, err)
			return removed, err
		}

		progressed := false
		for i := range expired {
			if _, ok := seen[expired[i].ID]; ok {
				continue
			}
			seen[expired[i].ID] = struct{}{}
			progressed = true
			if s.removeUpload(ctx, &expired[i], TriggerExpired) {
				removed++
			}
		}
		if !progressed {
			break
		}
	}

	s.metrics.Swept(ctx, JobExpireUploads, removed, nil)
	s.logger.Info("ID upload sweep finished", zap.Int("removed", removed))
	return removed, nil
}

// DeleteUploadsForVolunteer removes a volunteer's uploads once a review
// decision no longer needs them. The expiry sweep catches any leftovers.
func (s *Service) DeleteUploadsForVolunteer(ctx context.Context, volunteerID uuid.UUID) (int, error) {
	if s.store == nil {
		return 0, nil
	}
	var uploads []identity.IDUpload
	err := s.scope.Execute(ctx, func(repos transaction.Repositories) error {
		var err error
		uploads, err = repos.Uploads().FindByVolunteer(ctx, volunteerID)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("find volunteer uploads: %w", err)
	}
	removed := 0
	for i := range uploads {
		if s.removeUpload(ctx, &uploads[i], TriggerReviewed) {
			removed++
		}
	}
	return removed, nil
}

// removeUpload deletes the artifact, then the row and its audit entry.
// Failures are logged and reported as false.
func (s *Service) removeUpload(ctx context.Context, upload *identity.IDUpload, trigger string) bool {
	logger := s.logger.With(
		zap.String("upload_id", upload.ID.String()),
		zap.String("volunteer_id", upload.VolunteerID.String()),
	)
	if err := s.store.Delete(ctx, upload.ArtifactRef); err != nil {
		logger.Warn("Failed to delete ID artifact, will retry on next sweep", zap.Error(err))
		return false
	}
	err := s.scope.Execute(ctx, func(repos transaction.Repositories) error {
		if err := repos.Uploads().Delete(ctx, upload.ID); err != nil {
			return err
		}
		vid := upload.VolunteerID
		return s.recorder.Record(ctx, repos.Audit(), audit.ActionIDUploadExpired, identity.SystemActor,
			audit.Refs{VolunteerID: &vid},
			map[string]string{audit.MetaTrigger: trigger},
		)
	})
	if err != nil {
		logger.Error("Failed to delete ID upload record", zap.Error(err))
		return false
	}
	return true
}
