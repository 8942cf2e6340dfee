package profile

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	appaudit "github.com/groceryshare/backend/internal/application/audit"
	"github.com/groceryshare/backend/internal/application/transaction"
	"github.com/groceryshare/backend/internal/domain/audit"
	"github.com/groceryshare/backend/internal/domain/identity"
	"github.com/groceryshare/backend/internal/domain/shared"
	"github.com/groceryshare/backend/internal/infrastructure/cache"
	"go.uber.org/zap"
)

// Service manages recipient profiles. Contact data is sealed before it
// reaches a repository and opened only for the owner or an audited admin.
type Service struct {
	scope          transaction.Scope
	cipher         identity.ContactCipher
	recorder       *appaudit.Recorder
	lock           cache.MaintenanceLock
	logger         *zap.Logger
	eventPublisher shared.EventPublisher
	now            func() time.Time
}

// NewService creates a new profile Service
func NewService(
	scope transaction.Scope,
	cipher identity.ContactCipher,
	recorder *appaudit.Recorder,
	lock cache.MaintenanceLock,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		scope:    scope,
		cipher:   cipher,
		recorder: recorder,
		lock:     lock,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
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

// RegisterRecipient creates the calling user's recipient profile
func (s *Service) RegisterRecipient(ctx context.Context, actor identity.Actor, input RegisterRecipientInput) (*RecipientResponse, error) {
	if actor.Role != identity.RoleRecipient || actor.UserID == uuid.Nil {
		return nil, shared.ErrUnauthorized
	}
	if err := s.refuseDuringRotation(ctx); err != nil {
		return nil, err
	}
	contact := input.Contact.contact()
	sealed, err := identity.SealContact(s.cipher, contact)
	if err != nil {
		return nil, err
	}
	recipient, err := identity.NewRecipient(actor.UserID, input.DisplayAlias, input.GeneralArea, sealed)
	if err != nil {
		return nil, err
	}
	if input.Latitude != nil && input.Longitude != nil {
		loc, err := identity.NewApproxLocation(*input.Latitude, *input.Longitude)
		if err != nil {
			return nil, err
		}
		recipient.SetLocation(loc)
	}

	err = s.scope.Execute(ctx, func(repos transaction.Repositories) error {
		existing, err := repos.Recipients().FindByUserID(ctx, actor.UserID)
		switch {
		case err == nil && existing != nil:
			return shared.NewDomainError(shared.CodeConflict, "Recipient profile already exists")
		case err != nil && !errors.Is(err, shared.ErrNotFound):
			return err
		}
		if err := repos.Recipients().Create(ctx, recipient); err != nil {
			return err
		}
		rid := recipient.ID
		return s.recorder.Record(ctx, repos.Audit(), audit.ActionRecipientRegistered, actor,
			audit.Refs{RecipientID: &rid}, nil, audit.Forbid(contact.Values()...))
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, recipient)

	resp := toRecipientResponse(recipient, &contact)
	return &resp, nil
}

// UpdateContact replaces the caller's contact data. Refused while a key
// rotation holds the maintenance lock.
func (s *Service) UpdateContact(ctx context.Context, actor identity.Actor, input ContactInput) (*RecipientResponse, error) {
	if actor.Role != identity.RoleRecipient {
		return nil, shared.ErrForbidden
	}
	if err := s.refuseDuringRotation(ctx); err != nil {
		return nil, err
	}
	contact := input.contact()
	sealed, err := identity.SealContact(s.cipher, contact)
	if err != nil {
		return nil, err
	}

	var recipient *identity.Recipient
	err = s.scope.Execute(ctx, func(repos transaction.Repositories) error {
		self, err := s.resolveSelf(ctx, repos, actor)
		if err != nil {
			return err
		}
		recipient, err = repos.Recipients().FindByIDForUpdate(ctx, self.ID)
		if err != nil {
			return err
		}
		if err := recipient.ReplaceContact(sealed, s.now()); err != nil {
			return err
		}
		if err := repos.Recipients().SaveWithLock(ctx, recipient); err != nil {
			return err
		}
		rid := recipient.ID
		return s.recorder.Record(ctx, repos.Audit(), audit.ActionRecipientContactUpdate, actor,
			audit.Refs{RecipientID: &rid}, nil, audit.Forbid(contact.Values()...))
	})
	if err != nil {
		return nil, err
	}

	resp := toRecipientResponse(recipient, &contact)
	return &resp, nil
}

// GetMine returns the caller's own profile with decrypted contact
func (s *Service) GetMine(ctx context.Context, actor identity.Actor) (*RecipientResponse, error) {
	if actor.Role != identity.RoleRecipient {
		return nil, shared.ErrForbidden
	}
	var resp RecipientResponse
	err := s.scope.Execute(ctx, func(repos transaction.Repositories) error {
		recipient, err := s.resolveSelf(ctx, repos, actor)
		if err != nil {
			return err
		}
		contact, err := s.open(recipient)
		if err != nil {
			return err
		}
		resp = toRecipientResponse(recipient, contact)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// AdminViewRecipient decrypts a recipient's contact for an admin. The read
// is audited in the same transaction before any plaintext is returned.
func (s *Service) AdminViewRecipient(ctx context.Context, actor identity.Actor, recipientID uuid.UUID) (*RecipientResponse, error) {
	if !actor.IsAdmin() {
		return nil, shared.ErrForbidden
	}
	var resp RecipientResponse
	err := s.scope.Execute(ctx, func(repos transaction.Repositories) error {
		recipient, err := repos.Recipients().FindByID(ctx, recipientID)
		if err != nil {
			return err
		}
		contact, err := s.open(recipient)
		if err != nil {
			return err
		}
		var forbid []string
		if contact != nil {
			forbid = contact.Values()
		}
		rid := recipient.ID
		if err := s.recorder.Record(ctx, repos.Audit(), audit.ActionAdminViewedRecipient, actor,
			audit.Refs{RecipientID: &rid}, nil, audit.Forbid(forbid...)); err != nil {
			return err
		}
		resp = toRecipientResponse(recipient, contact)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// open decrypts the contact; purged recipients have none
func (s *Service) open(r *identity.Recipient) (*identity.Contact, error) {
	if r.IsDeleted() {
		return nil, nil
	}
	contact, err := identity.OpenContact(s.cipher, r.Sealed)
	if err != nil {
		s.logger.Error("Failed to open recipient contact",
			zap.String("recipient_id", r.ID.String()),
			zap.Error(err),
		)
		return nil, err
	}
	return &contact, nil
}

func (s *Service) refuseDuringRotation(ctx context.Context) error {
	if s.lock == nil {
		return nil
	}
	held, err := s.lock.Held(ctx)
	if err != nil {
		return err
	}
	if held {
		return shared.ErrMaintenance
	}
	return nil
}

// resolveSelf finds the caller's profile, by profile ID when the token
// carries one and by user ID otherwise
func (s *Service) resolveSelf(ctx context.Context, repos transaction.Repositories, actor identity.Actor) (*identity.Recipient, error) {
	if actor.ProfileID != uuid.Nil {
		r, err := repos.Recipients().FindByID(ctx, actor.ProfileID)
		if err != nil {
			return nil, err
		}
		if r.UserID != actor.UserID {
			return nil, shared.ErrForbidden
		}
		return r, nil
	}
	return repos.Recipients().FindByUserID(ctx, actor.UserID)
}

func (s *Service) publish(ctx context.Context, r *identity.Recipient) {
	events := r.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	r.ClearDomainEvents()
	if s.eventPublisher == nil {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("Failed to publish domain events",
			zap.String("recipient_id", r.ID.String()),
			zap.Error(err),
		)
	}
}
