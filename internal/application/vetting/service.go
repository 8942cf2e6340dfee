package vetting

import (
	"context"
	"errors"
	"fmt"
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

// UploadCleaner removes a volunteer's ID artifacts after a review decision
type UploadCleaner interface {
	DeleteUploadsForVolunteer(ctx context.Context, volunteerID uuid.UUID) (int, error)
}

// UploadURLIssuer hands out pre-signed upload URLs for ID artifacts
type UploadURLIssuer interface {
	UploadURL(ctx context.Context, ref, contentType string) (string, time.Time, error)
}

// Service handles volunteer registration and admin review
type Service struct {
	scope          transaction.Scope
	recorder       *appaudit.Recorder
	cleaner        UploadCleaner
	uploads        UploadURLIssuer
	uploadTTL      time.Duration
	logger         *zap.Logger
	eventPublisher shared.EventPublisher
	now            func() time.Time
}

// NewService creates a new vetting Service. cleaner and uploads may be nil.
func NewService(
	scope transaction.Scope,
	recorder *appaudit.Recorder,
	cleaner UploadCleaner,
	uploads UploadURLIssuer,
	uploadTTL time.Duration,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if uploadTTL <= 0 {
		uploadTTL = identity.DefaultIDUploadExpiry
	}
	return &Service{
		scope:     scope,
		recorder:  recorder,
		cleaner:   cleaner,
		uploads:   uploads,
		uploadTTL: uploadTTL,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *Service) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetClock overrides the time source
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Register creates a pending volunteer profile for the calling user
func (s *Service) Register(ctx context.Context, actor identity.Actor, input RegisterVolunteerInput) (*VolunteerResponse, error) {
	if actor.Role != identity.RoleVolunteer || actor.UserID == uuid.Nil {
		return nil, shared.ErrUnauthorized
	}
	var volunteer *identity.Volunteer
	err := s.scope.Execute(ctx, func(repos transaction.Repositories) error {
		existing, err := repos.Volunteers().FindByUserID(ctx, actor.UserID)
		switch {
		case err == nil && existing != nil:
			return shared.NewDomainError(shared.CodeConflict, "Volunteer profile already exists")
		case err != nil && !errors.Is(err, shared.ErrNotFound):
			return err
		}

		volunteer, err = identity.NewVolunteer(actor.UserID, input.FullName, input.PhotoRef,
			input.ServiceArea, input.AvailabilityNotes, input.Attested)
		if err != nil {
			return err
		}
		if err := repos.Volunteers().Create(ctx, volunteer); err != nil {
			return err
		}
		vid := volunteer.ID
		return s.recorder.Record(ctx, repos.Audit(), audit.ActionVolunteerRegistered, actor,
			audit.Refs{VolunteerID: &vid}, nil)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, volunteer)
	resp := ToVolunteerResponse(volunteer)
	return &resp, nil
}

// GetMine returns the calling volunteer's profile
func (s *Service) GetMine(ctx context.Context, actor identity.Actor) (*VolunteerResponse, error) {
	if actor.Role != identity.RoleVolunteer {
		return nil, shared.ErrForbidden
	}
	var resp VolunteerResponse
	err := s.scope.Execute(ctx, func(repos transaction.Repositories) error {
		v, err := s.resolveSelf(ctx, repos, actor)
		if err != nil {
			return err
		}
		resp = ToVolunteerResponse(v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// RegisterIDUpload records an ID artifact for the calling volunteer. The
// reference expires after the configured window.
func (s *Service) RegisterIDUpload(ctx context.Context, actor identity.Actor, input RegisterUploadInput) (*UploadResponse, error) {
	if actor.Role != identity.RoleVolunteer {
		return nil, shared.ErrForbidden
	}
	var upload *identity.IDUpload
	err := s.scope.Execute(ctx, func(repos transaction.Repositories) error {
		v, err := s.resolveSelf(ctx, repos, actor)
		if err != nil {
			return err
		}
		if v.Status != identity.VettingPending {
			return shared.NewDomainError(shared.CodeInvalidState, "ID uploads are only accepted while the application is pending")
		}
		ref := input.ArtifactRef
		if ref == "" {
			ref = fmt.Sprintf("id-uploads/%s/%s", v.ID, uuid.NewString())
		}
		upload, err = identity.NewIDUpload(v.ID, ref, s.uploadTTL)
		if err != nil {
			return err
		}
		if err := repos.Uploads().Create(ctx, upload); err != nil {
			return err
		}
		vid := v.ID
		return s.recorder.Record(ctx, repos.Audit(), audit.ActionIDUploadRegistered, actor,
			audit.Refs{VolunteerID: &vid}, nil)
	})
	if err != nil {
		return nil, err
	}

	resp := &UploadResponse{ID: upload.ID, ArtifactRef: upload.ArtifactRef, ExpiresAt: upload.ExpiresAt}
	if input.ArtifactRef == "" && s.uploads != nil {
		url, expires, err := s.uploads.UploadURL(ctx, upload.ArtifactRef, input.ContentType)
		if err != nil {
			return nil, fmt.Errorf("issue upload url: %w", err)
		}
		resp.UploadURL = url
		resp.URLExpires = &expires
	}
	return resp, nil
}

// ListPending returns volunteers awaiting review, oldest first
func (s *Service) ListPending(ctx context.Context, actor identity.Actor, filter shared.Filter) (shared.Paginated[VolunteerResponse], error) {
	if !actor.IsAdmin() {
		return shared.Paginated[VolunteerResponse]{}, shared.ErrForbidden
	}
	filter = filter.Normalize()
	var page shared.Paginated[VolunteerResponse]
	err := s.scope.Execute(ctx, func(repos transaction.Repositories) error {
		vs, total, err := repos.Volunteers().FindByStatus(ctx, identity.VettingPending, filter)
		if err != nil {
			return err
		}
		items := make([]VolunteerResponse, len(vs))
		for i := range vs {
			items[i] = ToVolunteerResponse(&vs[i])
		}
		page = shared.NewPaginated(items, total, filter.Page, filter.PageSize)
		return nil
	})
	return page, err
}

// Approve clears a pending, rejected or suspended volunteer to claim
func (s *Service) Approve(ctx context.Context, actor identity.Actor, volunteerID uuid.UUID) (*DecisionResponse, error) {
	return s.decide(ctx, actor, volunteerID, audit.ActionVolunteerApproved, true,
		func(v *identity.Volunteer, now time.Time) error { return v.Approve(actor.UserID, now) })
}

// Reject declines a pending application
func (s *Service) Reject(ctx context.Context, actor identity.Actor, volunteerID uuid.UUID, input DecisionInput) (*DecisionResponse, error) {
	return s.decide(ctx, actor, volunteerID, audit.ActionVolunteerRejected, true,
		func(v *identity.Volunteer, now time.Time) error { return v.Reject(actor.UserID, input.Reason, now) })
}

// Suspend stops an approved volunteer from claiming. Claims still in
// progress go back to the pool so the volunteer loses address access.
func (s *Service) Suspend(ctx context.Context, actor identity.Actor, volunteerID uuid.UUID, input DecisionInput) (*DecisionResponse, error) {
	return s.decide(ctx, actor, volunteerID, audit.ActionVolunteerSuspended, false,
		func(v *identity.Volunteer, now time.Time) error { return v.Suspend(actor.UserID, input.Reason, now) })
}

// Reinstate returns a suspended volunteer to approved
func (s *Service) Reinstate(ctx context.Context, actor identity.Actor, volunteerID uuid.UUID) (*DecisionResponse, error) {
	return s.decide(ctx, actor, volunteerID, audit.ActionVolunteerReinstated, false,
		func(v *identity.Volunteer, now time.Time) error { return v.Reinstate(actor.UserID, now) })
}

// decide applies one review decision under the volunteer row lock. A
// suspension also releases active claims in the same transaction.
func (s *Service) decide(
	ctx context.Context,
	actor identity.Actor,
	volunteerID uuid.UUID,
	action audit.Action,
	clearUploads bool,
	apply func(v *identity.Volunteer, now time.Time) error,
) (*DecisionResponse, error) {
	if !actor.IsAdmin() || actor.UserID == uuid.Nil {
		return nil, shared.ErrForbidden
	}
	now := s.now()
	var volunteer *identity.Volunteer
	var released []*delivery.DeliveryRequest

	err := s.scope.Execute(ctx, func(repos transaction.Repositories) error {
		var err error
		volunteer, err = repos.Volunteers().FindByIDForUpdate(ctx, volunteerID)
		if err != nil {
			return err
		}
		if err := apply(volunteer, now); err != nil {
			return err
		}
		if err := repos.Volunteers().SaveWithLock(ctx, volunteer); err != nil {
			return err
		}
		if volunteer.Status == identity.VettingSuspended {
			released, err = s.releaseClaims(ctx, repos, volunteer.ID, now)
			if err != nil {
				return err
			}
		}
		vid := volunteer.ID
		return s.recorder.Record(ctx, repos.Audit(), action, actor,
			audit.Refs{VolunteerID: &vid},
			map[string]string{audit.MetaDecision: volunteer.Status.String()},
		)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, volunteer)
	for _, req := range released {
		s.publish(ctx, req)
	}

	resp := &DecisionResponse{Volunteer: ToVolunteerResponse(volunteer), ReleasedClaims: len(released)}
	if clearUploads && s.cleaner != nil {
		removed, err := s.cleaner.DeleteUploadsForVolunteer(ctx, volunteer.ID)
		if err != nil {
			s.logger.Warn("Failed to remove ID uploads after review, the expiry sweep will retry",
				zap.String("volunteer_id", volunteer.ID.String()),
				zap.Error(err),
			)
		}
		resp.UploadsRemoved = removed
	}

	s.logger.Info("Volunteer review decision",
		zap.String("volunteer_id", volunteer.ID.String()),
		zap.String("status", volunteer.Status.String()),
		zap.Int("released_claims", len(released)),
	)
	return resp, nil
}

// releaseClaims returns the volunteer's active claims to the pool as the
// system actor
func (s *Service) releaseClaims(
	ctx context.Context,
	repos transaction.Repositories,
	volunteerID uuid.UUID,
	now time.Time,
) ([]*delivery.DeliveryRequest, error) {
	active, err := repos.Deliveries().FindActiveByVolunteer(ctx, volunteerID)
	if err != nil {
		return nil, err
	}
	out := make([]*delivery.DeliveryRequest, 0, len(active))
	for i := range active {
		req := &active[i]
		holder := req.VolunteerID
		outcome, err := req.Cancel(identity.SystemActor, "volunteer suspended", delivery.CancelPolicy{}, now)
		if err != nil {
			return nil, err
		}
		if err := repos.Deliveries().SaveWithLock(ctx, req); err != nil {
			return nil, err
		}
		err = s.recorder.Record(ctx, repos.Audit(), audit.ActionDeliveryCanceled, identity.SystemActor,
			audit.DeliveryRefs(req.ID, req.RecipientID, holder),
			map[string]string{
				audit.MetaCanceledBy: string(delivery.CanceledBySystem),
				audit.MetaOutcome:    string(outcome),
				audit.MetaPriority:   strconv.Itoa(req.Priority),
			},
		)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, nil
}

// resolveSelf finds the caller's volunteer profile, by profile ID when the
// token carries one and by user ID otherwise
func (s *Service) resolveSelf(ctx context.Context, repos transaction.Repositories, actor identity.Actor) (*identity.Volunteer, error) {
	if actor.ProfileID != uuid.Nil {
		v, err := repos.Volunteers().FindByID(ctx, actor.ProfileID)
		if err != nil {
			return nil, err
		}
		if v.UserID != actor.UserID {
			return nil, shared.ErrForbidden
		}
		return v, nil
	}
	return repos.Volunteers().FindByUserID(ctx, actor.UserID)
}

func (s *Service) publish(ctx context.Context, aggregate shared.AggregateRoot) {
	events := aggregate.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	aggregate.ClearDomainEvents()
	if s.eventPublisher == nil {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("Failed to publish domain events",
			zap.String("aggregate_id", aggregate.GetID().String()),
			zap.Error(err),
		)
	}
}
