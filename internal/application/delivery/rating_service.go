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

// RatingService records one rating per completed delivery
type RatingService struct {
	scope          transaction.Scope
	recorder       *appaudit.Recorder
	logger         *zap.Logger
	eventPublisher shared.EventPublisher
	now            func() time.Time
}

// NewRatingService creates a new RatingService
func NewRatingService(scope transaction.Scope, recorder *appaudit.Recorder, logger *zap.Logger) *RatingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RatingService{
		scope:    scope,
		recorder: recorder,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *RatingService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// Submit rates the volunteer of a completed request. A second rating for the
// same request fails with ALREADY_RATED.
func (s *RatingService) Submit(ctx context.Context, actor identity.Actor, requestID uuid.UUID, input RatingInput) (*RatingResponse, error) {
	now := s.now()
	var rating *delivery.Rating
	err := s.scope.Execute(ctx, func(repos transaction.Repositories) error {
		req, err := repos.Deliveries().FindByIDForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		rating, err = delivery.NewRating(req, actor, input.Score, input.Comment, now)
		if err != nil {
			return err
		}

		existing, err := repos.Ratings().FindByDelivery(ctx, req.ID)
		switch {
		case err == nil && existing != nil:
			return shared.ErrAlreadyRated
		case err != nil && !errors.Is(err, shared.ErrNotFound):
			return err
		}
		if err := repos.Ratings().Create(ctx, rating); err != nil {
			return err
		}
		if err := refreshVolunteerStats(ctx, repos, rating.VolunteerID); err != nil {
			return err
		}
		if err := repos.Recipients().TouchActivity(ctx, req.RecipientID, now); err != nil {
			return err
		}
		volunteerID := rating.VolunteerID
		return s.recorder.Record(ctx, repos.Audit(), audit.ActionRatingSubmitted, actor,
			audit.DeliveryRefs(req.ID, req.RecipientID, &volunteerID),
			map[string]string{audit.MetaScore: strconv.Itoa(rating.Score)})
	})
	if err != nil {
		return nil, err
	}

	if s.eventPublisher != nil {
		if err := s.eventPublisher.Publish(ctx, delivery.NewDeliveryRatedEvent(rating)); err != nil {
			s.logger.Warn("Failed to publish rating event", zap.Error(err))
		}
	}
	resp := toRatingResponse(rating)
	return &resp, nil
}
