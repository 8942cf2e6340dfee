package retention

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/groceryshare/backend/internal/application/transaction"
	"github.com/groceryshare/backend/internal/domain/audit"
	"github.com/groceryshare/backend/internal/domain/delivery"
	"github.com/groceryshare/backend/internal/domain/identity"
	"github.com/groceryshare/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// PurgeResult summarises one recipient purge
type PurgeResult struct {
	RecipientID         uuid.UUID
	Trigger             identity.PurgeTrigger
	CanceledCount       int
	TombstoneVolunteers int
	PurgedAt            time.Time
}

// DeleteRecipient purges a recipient on their own request or an admin's.
// Open work is force-canceled, the tombstone is written, then contact data
// is overwritten, all in one transaction.
func (s *Service) DeleteRecipient(ctx context.Context, actor identity.Actor, recipientID uuid.UUID) (*PurgeResult, error) {
	if !actor.IsRecipient(recipientID) && !actor.IsAdmin() {
		return nil, shared.ErrForbidden
	}
	result, err := s.purge(ctx, actor, recipientID, identity.PurgeTriggerDeleted, time.Time{})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Recipient deleted",
		zap.String("recipient_id", recipientID.String()),
		zap.String("actor_role", actor.Role.String()),
		zap.Int("canceled", result.CanceledCount),
	)
	return result, nil
}

// PurgeInactive purges every recipient idle for longer than the configured
// number of months. Each recipient is purged in its own transaction; a
// failure is logged and the sweep pages past it.
func (s *Service) PurgeInactive(ctx context.Context, now time.Time) (int, error) {
	cutoff := identity.InactivityCutoff(now, s.config.InactiveMonths)
	limit := s.config.batchSize()
	var cursor identity.InactiveCursor
	purged := 0

	for {
		if err := ctx.Err(); err != nil {
			s.metrics.Swept(ctx, JobPurgeInactive, purged, err)
			return purged, err
		}
		var candidates []identity.Recipient
		err := s.scope.Execute(ctx, func(repos transaction.Repositories) error {
			var err error
			candidates, err = repos.Recipients().FindInactive(ctx, cutoff, cursor, limit)
			return err
		})
		if err != nil {
			err = fmt.Errorf("find inactive recipients: %w", err)
			s.metrics.Swept(ctx, JobPurgeInactive, purged, err)
			return purged, err
		}

		for i := range candidates {
			id := candidates[i].ID
			if _, err := s.purge(ctx, identity.SystemActor, id, identity.PurgeTriggerInactive, cutoff); err != nil {
				if errors.Is(err, errStillActive) {
					continue
				}
				s.logger.Error("Failed to purge inactive recipient",
					zap.String("recipient_id", id.String()),
					zap.Error(err),
				)
				continue
			}
			purged++
		}
		if len(candidates) < limit {
			break
		}
		cursor = identity.CursorOf(&candidates[len(candidates)-1])
	}

	s.metrics.Swept(ctx, JobPurgeInactive, purged, nil)
	s.logger.Info("Inactive recipient sweep finished",
		zap.Time("cutoff", cutoff),
		zap.Int("purged", purged),
	)
	return purged, nil
}

var errStillActive = errors.New("recipient became active")

// purge runs one recipient purge. A non-zero cutoff re-checks inactivity
// under the row lock so a recipient who came back in the meantime is kept.
func (s *Service) purge(
	ctx context.Context,
	actor identity.Actor,
	recipientID uuid.UUID,
	trigger identity.PurgeTrigger,
	cutoff time.Time,
) (*PurgeResult, error) {
	now := s.now()
	var recipient *identity.Recipient
	var canceled []*delivery.DeliveryRequest
	var tombstone *identity.Tombstone

	err := s.scope.Execute(ctx, func(repos transaction.Repositories) error {
		var err error
		recipient, err = repos.Recipients().FindByIDForUpdate(ctx, recipientID)
		if err != nil {
			return err
		}
		if recipient.IsDeleted() {
			return shared.NewDomainError(shared.CodeInvalidState, "Recipient has already been purged")
		}
		if !cutoff.IsZero() && !recipient.IsInactiveSince(cutoff) {
			return errStillActive
		}

		canceled, err = s.forceCancelAll(ctx, repos, recipientID, trigger, now)
		if err != nil {
			return err
		}

		volunteers, err := s.accessHistory(ctx, repos, recipientID, canceled)
		if err != nil {
			return err
		}
		tombstone, err = identity.NewTombstone(recipientID, volunteers, recipient.LastActiveAt, trigger, now)
		if err != nil {
			return err
		}
		if err := repos.Tombstones().Create(ctx, tombstone); err != nil {
			return err
		}

		if _, err := repos.Messages().DeleteByRecipient(ctx, recipientID); err != nil {
			return fmt.Errorf("delete recipient messages: %w", err)
		}
		if err := recipient.Purge(trigger, now); err != nil {
			return err
		}
		if err := repos.Recipients().SaveWithLock(ctx, recipient); err != nil {
			return err
		}

		rid := recipientID
		return s.recorder.Record(ctx, repos.Audit(), purgeAction(trigger), actor,
			audit.Refs{RecipientID: &rid},
			map[string]string{audit.MetaTrigger: string(trigger)},
		)
	})
	if err != nil {
		return nil, err
	}

	aggregates := make([]shared.AggregateRoot, 0, len(canceled)+1)
	for _, req := range canceled {
		aggregates = append(aggregates, req)
	}
	aggregates = append(aggregates, recipient)
	s.publishEvents(ctx, aggregates...)

	return &PurgeResult{
		RecipientID:         recipientID,
		Trigger:             trigger,
		CanceledCount:       len(canceled),
		TombstoneVolunteers: len(tombstone.VolunteerIDs),
		PurgedAt:            now,
	}, nil
}

func purgeAction(trigger identity.PurgeTrigger) audit.Action {
	if trigger == identity.PurgeTriggerInactive {
		return audit.ActionRecipientDataPurged
	}
	return audit.ActionRecipientDeleted
}

// forceCancelAll ends every non-terminal request of the recipient as the
// system actor and audits each cancellation.
func (s *Service) forceCancelAll(
	ctx context.Context,
	repos transaction.Repositories,
	recipientID uuid.UUID,
	trigger identity.PurgeTrigger,
	now time.Time,
) ([]*delivery.DeliveryRequest, error) {
	reqs, err := repos.Deliveries().FindNonTerminalByRecipient(ctx, recipientID)
	if err != nil {
		return nil, err
	}
	reason := "recipient " + string(trigger)
	out := make([]*delivery.DeliveryRequest, 0, len(reqs))
	for i := range reqs {
		req := &reqs[i]
		holder := req.VolunteerID
		if err := req.ForceCancel(reason, now); err != nil {
			return nil, err
		}
		if err := repos.Deliveries().SaveWithLock(ctx, req); err != nil {
			return nil, err
		}
		err := s.recorder.Record(ctx, repos.Audit(), audit.ActionDeliveryCanceled, identity.SystemActor,
			audit.DeliveryRefs(req.ID, req.RecipientID, holder),
			map[string]string{
				audit.MetaCanceledBy: string(delivery.CanceledBySystem),
				audit.MetaOutcome:    string(delivery.OutcomeCanceled),
			},
		)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, nil
}

// accessHistory collects every volunteer that ever held one of the
// recipient's requests: claims in the audit trail, last holders on the
// requests themselves, and holders released by this purge.
func (s *Service) accessHistory(
	ctx context.Context,
	repos transaction.Repositories,
	recipientID uuid.UUID,
	canceled []*delivery.DeliveryRequest,
) ([]uuid.UUID, error) {
	fromAudit, err := repos.Audit().DistinctClaimVolunteers(ctx, recipientID)
	if err != nil {
		return nil, fmt.Errorf("read claim history: %w", err)
	}
	fromRequests, err := repos.Deliveries().DistinctVolunteersByRecipient(ctx, recipientID)
	if err != nil {
		return nil, fmt.Errorf("read request history: %w", err)
	}
	ids := append(fromAudit, fromRequests...)
	for _, req := range canceled {
		if req.LastVolunteerID != nil {
			ids = append(ids, *req.LastVolunteerID)
		}
	}
	return identity.DedupeIDs(ids), nil
}
