package delivery

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	appaudit "github.com/groceryshare/backend/internal/application/audit"
	"github.com/groceryshare/backend/internal/application/transaction"
	"github.com/groceryshare/backend/internal/domain/audit"
	"github.com/groceryshare/backend/internal/domain/delivery"
	"github.com/groceryshare/backend/internal/domain/identity"
	"github.com/groceryshare/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// ClaimService runs the delivery claim lifecycle. Every transition and its
// audit entry commit in one transaction.
type ClaimService struct {
	scope          transaction.Scope
	recorder       *appaudit.Recorder
	policy         Policy
	logger         *zap.Logger
	eventPublisher shared.EventPublisher
	metrics        Metrics
	now            func() time.Time
}

// NewClaimService creates a new ClaimService
func NewClaimService(scope transaction.Scope, recorder *appaudit.Recorder, policy Policy, logger *zap.Logger) *ClaimService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClaimService{
		scope:    scope,
		recorder: recorder,
		policy:   policy,
		logger:   logger,
		metrics:  noopMetrics{},
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *ClaimService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetMetrics sets the lifecycle metrics sink
func (s *ClaimService) SetMetrics(m Metrics) {
	if m != nil {
		s.metrics = m
	}
}

// SetClock overrides the time source
func (s *ClaimService) SetClock(now func() time.Time) {
	s.now = now
}

// Create opens a new request for the calling recipient
func (s *ClaimService) Create(ctx context.Context, actor identity.Actor, input CreateRequestInput) (*RequestResponse, error) {
	if actor.Role != identity.RoleRecipient || actor.ProfileID == uuid.Nil {
		return nil, shared.ErrUnauthorized
	}
	now := s.now()

	var req *delivery.DeliveryRequest
	err := s.scope.Execute(ctx, func(repos transaction.Repositories) error {
		recipient, err := repos.Recipients().FindByID(ctx, actor.ProfileID)
		if err != nil {
			return err
		}
		if recipient.IsDeleted() {
			return shared.NewDomainError(shared.CodeInvalidState, "Recipient profile has been deleted")
		}

		req, err = delivery.NewDeliveryRequest(recipient.ID, input.pickup())
		if err != nil {
			return err
		}
		if err := repos.Deliveries().Create(ctx, req); err != nil {
			return err
		}
		if err := repos.Recipients().TouchActivity(ctx, recipient.ID, now); err != nil {
			return err
		}
		return s.recorder.Record(ctx, repos.Audit(), audit.ActionDeliveryCreated, actor,
			audit.DeliveryRefs(req.ID, req.RecipientID, nil), nil)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, req)
	resp := ToRequestResponse(req)
	return &resp, nil
}

// Claim hands an open request to the calling volunteer. The volunteer row
// lock serialises cap checks for one volunteer; the conditional update on
// the request decides races between volunteers.
func (s *ClaimService) Claim(ctx context.Context, actor identity.Actor, requestID uuid.UUID) (*RequestResponse, error) {
	if actor.Role != identity.RoleVolunteer || actor.ProfileID == uuid.Nil {
		return nil, shared.ErrUnauthorized
	}
	now := s.now()

	var req *delivery.DeliveryRequest
	err := s.scope.Execute(ctx, func(repos transaction.Repositories) error {
		volunteer, err := repos.Volunteers().FindByIDForUpdate(ctx, actor.ProfileID)
		if err != nil {
			return err
		}
		if !volunteer.CanClaim() {
			return shared.ErrVolunteerNotApproved
		}

		active, err := repos.Deliveries().CountActiveClaims(ctx, volunteer.ID)
		if err != nil {
			return err
		}
		if active >= s.policy.maxActiveClaims() {
			return shared.ErrCapExceeded
		}

		req, err = repos.Deliveries().FindByID(ctx, requestID)
		if err != nil {
			return err
		}
		expected := req.Version
		if err := req.Claim(volunteer.ID, now); err != nil {
			if errors.Is(err, shared.ErrTerminalState) {
				return shared.ErrAlreadyClaimed
			}
			return err
		}
		won, err := repos.Deliveries().ClaimIfOpen(ctx, req, expected)
		if err != nil {
			return err
		}
		if !won {
			return shared.ErrAlreadyClaimed
		}

		return s.recorder.Record(ctx, repos.Audit(), audit.ActionDeliveryClaimed, actor,
			audit.DeliveryRefs(req.ID, req.RecipientID, req.VolunteerID), nil)
	})
	s.metrics.ClaimAttempted(ctx, claimOutcome(err))
	if err != nil {
		if shared.IsConflict(err) {
			s.logger.Info("Claim lost",
				zap.String("request_id", requestID.String()),
				zap.String("volunteer_id", actor.ProfileID.String()),
				zap.Error(err),
			)
		}
		return nil, err
	}

	s.metrics.Transitioned(ctx, delivery.StatusOpen, delivery.StatusClaimed)
	s.publish(ctx, req)
	resp := ToRequestResponse(req)
	return &resp, nil
}

func claimOutcome(err error) string {
	switch {
	case err == nil:
		return ClaimOutcomeWon
	case errors.Is(err, shared.ErrCapExceeded):
		return ClaimOutcomeCapExceeded
	case errors.Is(err, shared.ErrVolunteerNotApproved):
		return ClaimOutcomeNotApproved
	case errors.Is(err, shared.ErrAlreadyClaimed), errors.Is(err, shared.ErrTerminalState):
		return ClaimOutcomeAlreadyClaimed
	}
	return ClaimOutcomeError
}

// MarkPickedUp records collection by the claim holder
func (s *ClaimService) MarkPickedUp(ctx context.Context, actor identity.Actor, requestID uuid.UUID) (*RequestResponse, error) {
	if actor.Role != identity.RoleVolunteer {
		return nil, shared.ErrUnauthorized
	}
	return s.transition(ctx, requestID, func(repos transaction.Repositories, req *delivery.DeliveryRequest, now time.Time) error {
		if err := req.MarkPickedUp(actor.ProfileID, now); err != nil {
			return err
		}
		if err := repos.Deliveries().SaveWithLock(ctx, req); err != nil {
			return err
		}
		return s.recorder.Record(ctx, repos.Audit(), audit.ActionDeliveryPickedUp, actor,
			audit.DeliveryRefs(req.ID, req.RecipientID, req.VolunteerID), nil)
	})
}

// Cancel ends the request or returns it to the pool, depending on who asks
func (s *ClaimService) Cancel(ctx context.Context, actor identity.Actor, requestID uuid.UUID, input CancelInput) (*RequestResponse, error) {
	return s.transition(ctx, requestID, func(repos transaction.Repositories, req *delivery.DeliveryRequest, now time.Time) error {
		holder := req.VolunteerID
		outcome, err := req.Cancel(actor, input.Reason, s.policy.cancelPolicy(), now)
		if err != nil {
			return err
		}
		if err := repos.Deliveries().SaveWithLock(ctx, req); err != nil {
			return err
		}
		if actor.Role == identity.RoleRecipient {
			if err := repos.Recipients().TouchActivity(ctx, req.RecipientID, now); err != nil {
				return err
			}
		}
		return s.recordCancel(ctx, repos, actor, req, holder, outcome)
	})
}

func (s *ClaimService) recordCancel(
	ctx context.Context,
	repos transaction.Repositories,
	actor identity.Actor,
	req *delivery.DeliveryRequest,
	holder *uuid.UUID,
	outcome delivery.CancelOutcome,
) error {
	canceledBy := actor.Role.String()
	meta := map[string]string{
		audit.MetaCanceledBy: canceledBy,
		audit.MetaOutcome:    string(outcome),
	}
	if outcome == delivery.OutcomeRequeued {
		meta[audit.MetaPriority] = strconv.Itoa(req.Priority)
	}
	return s.recorder.Record(ctx, repos.Audit(), audit.ActionDeliveryCanceled, actor,
		audit.DeliveryRefs(req.ID, req.RecipientID, holder), meta)
}

// Complete closes the request on the recipient's confirmation and refreshes
// the volunteer's derived stats in the same transaction.
func (s *ClaimService) Complete(ctx context.Context, actor identity.Actor, requestID uuid.UUID) (*RequestResponse, error) {
	if actor.Role != identity.RoleRecipient {
		return nil, shared.ErrUnauthorized
	}
	return s.transition(ctx, requestID, func(repos transaction.Repositories, req *delivery.DeliveryRequest, now time.Time) error {
		if err := req.Complete(actor.ProfileID, now); err != nil {
			return err
		}
		if err := repos.Deliveries().SaveWithLock(ctx, req); err != nil {
			return err
		}
		if err := refreshVolunteerStats(ctx, repos, *req.LastVolunteerID); err != nil {
			return err
		}
		if err := repos.Recipients().TouchActivity(ctx, req.RecipientID, now); err != nil {
			return err
		}
		return s.recorder.Record(ctx, repos.Audit(), audit.ActionDeliveryCompleted, actor,
			audit.DeliveryRefs(req.ID, req.RecipientID, req.LastVolunteerID), nil)
	})
}

type transitionFunc func(repos transaction.Repositories, req *delivery.DeliveryRequest, now time.Time) error

// transition loads the request under a row lock, applies fn, and publishes
// the resulting events once the transaction has committed.
func (s *ClaimService) transition(ctx context.Context, requestID uuid.UUID, fn transitionFunc) (*RequestResponse, error) {
	now := s.now()
	var req *delivery.DeliveryRequest
	var from delivery.Status
	err := s.scope.Execute(ctx, func(repos transaction.Repositories) error {
		var err error
		req, err = repos.Deliveries().FindByIDForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		from = req.Status
		return fn(repos, req, now)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Transitioned(ctx, from, req.Status)
	s.publish(ctx, req)
	resp := ToRequestResponse(req)
	return &resp, nil
}

// ListOpenPool returns open requests, highest priority first, then oldest
func (s *ClaimService) ListOpenPool(ctx context.Context, actor identity.Actor, query PoolQuery) (shared.Paginated[PoolItem], error) {
	if actor.Role != identity.RoleVolunteer && !actor.IsAdmin() {
		return shared.Paginated[PoolItem]{}, shared.ErrForbidden
	}
	filter := query.filter()

	var page shared.Paginated[PoolItem]
	err := s.scope.Execute(ctx, func(repos transaction.Repositories) error {
		reqs, total, err := repos.Deliveries().FindOpenPool(ctx, filter)
		if err != nil {
			return err
		}
		ids := make([]uuid.UUID, 0, len(reqs))
		for i := range reqs {
			ids = append(ids, reqs[i].RecipientID)
		}
		recipients, err := repos.Recipients().FindByIDs(ctx, identity.DedupeIDs(ids))
		if err != nil {
			return err
		}
		byID := make(map[uuid.UUID]*identity.Recipient, len(recipients))
		for i := range recipients {
			byID[recipients[i].ID] = &recipients[i]
		}

		items := make([]PoolItem, len(reqs))
		for i := range reqs {
			items[i] = toPoolItem(&reqs[i], byID[reqs[i].RecipientID])
		}
		page = shared.NewPaginated(items, total, filter.Page, filter.PageSize)
		return nil
	})
	return page, err
}

// ListMine returns the recipient's own requests or the volunteer's active claims
func (s *ClaimService) ListMine(ctx context.Context, actor identity.Actor, filter shared.Filter) (shared.Paginated[RequestResponse], error) {
	filter = filter.Normalize()
	var page shared.Paginated[RequestResponse]
	err := s.scope.Execute(ctx, func(repos transaction.Repositories) error {
		switch actor.Role {
		case identity.RoleRecipient:
			reqs, total, err := repos.Deliveries().FindByRecipient(ctx, actor.ProfileID, filter)
			if err != nil {
				return err
			}
			page = shared.NewPaginated(ToRequestResponses(reqs), total, filter.Page, filter.PageSize)
		case identity.RoleVolunteer:
			reqs, err := repos.Deliveries().FindActiveByVolunteer(ctx, actor.ProfileID)
			if err != nil {
				return err
			}
			page = shared.NewPaginated(ToRequestResponses(reqs), int64(len(reqs)), 1, max(len(reqs), 1))
		default:
			return shared.ErrForbidden
		}
		return nil
	})
	return page, err
}

func (s *ClaimService) publish(ctx context.Context, req *delivery.DeliveryRequest) {
	publishEvents(ctx, s.eventPublisher, s.logger, req)
}

// publishEvents publishes and clears pending aggregate events. Failures are
// logged, never returned: the transition has already committed.
func publishEvents(ctx context.Context, publisher shared.EventPublisher, logger *zap.Logger, aggregate shared.AggregateRoot) {
	events := aggregate.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	aggregate.ClearDomainEvents()
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, events...); err != nil {
		logger.Warn("Failed to publish domain events",
			zap.String("aggregate_id", aggregate.GetID().String()),
			zap.Error(err),
		)
	}
}
