package delivery

import (
	"context"

	"github.com/google/uuid"
	appaudit "github.com/groceryshare/backend/internal/application/audit"
	"github.com/groceryshare/backend/internal/application/transaction"
	"github.com/groceryshare/backend/internal/domain/audit"
	"github.com/groceryshare/backend/internal/domain/delivery"
	"github.com/groceryshare/backend/internal/domain/identity"
	"github.com/groceryshare/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// ViewService applies the visibility resolver to single-request reads.
// Contact data is decrypted per call and only after the read is audited.
type ViewService struct {
	scope    transaction.Scope
	cipher   identity.ContactCipher
	recorder *appaudit.Recorder
	logger   *zap.Logger
}

// NewViewService creates a new ViewService
func NewViewService(scope transaction.Scope, cipher identity.ContactCipher, recorder *appaudit.Recorder, logger *zap.Logger) *ViewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ViewService{scope: scope, cipher: cipher, recorder: recorder, logger: logger}
}

// Get returns the request as the actor is allowed to see it. Viewers with no
// access get a generic Forbidden that does not reveal the request's state.
func (s *ViewService) Get(ctx context.Context, actor identity.Actor, requestID uuid.UUID) (*DeliveryView, error) {
	var view *DeliveryView
	err := s.scope.Execute(ctx, func(repos transaction.Repositories) error {
		req, err := repos.Deliveries().FindByID(ctx, requestID)
		if err != nil {
			return err
		}
		disclosure := delivery.Resolve(actor, req)
		if !disclosure.Visible() {
			return shared.ErrForbidden
		}

		recipient, err := repos.Recipients().FindByID(ctx, req.RecipientID)
		if err != nil {
			return err
		}
		view = &DeliveryView{Level: string(disclosure.Level)}
		switch disclosure.Level {
		case delivery.LevelListing, delivery.LevelHistory:
			item := toPoolItem(req, recipient)
			view.Listing = &item
		default:
			resp := ToRequestResponse(req)
			view.Request = &resp
		}

		if disclosure.VolunteerIdentity {
			if volunteerID := currentOrLastVolunteer(req); volunteerID != nil {
				v, err := repos.Volunteers().FindByID(ctx, *volunteerID)
				if err != nil {
					return err
				}
				view.Volunteer = toVolunteerSummary(v)
			}
		}

		if disclosure.Contact {
			contact, err := s.disclose(ctx, repos, actor, req, recipient, disclosure.AuditAction)
			if err != nil {
				return err
			}
			view.Contact = contact
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// disclose decrypts the recipient's contact and writes the access audit
// entry in the same transaction. Purged recipients disclose nothing.
func (s *ViewService) disclose(
	ctx context.Context,
	repos transaction.Repositories,
	actor identity.Actor,
	req *delivery.DeliveryRequest,
	recipient *identity.Recipient,
	action audit.Action,
) (*ContactView, error) {
	if recipient.IsDeleted() {
		return &ContactView{DisplayAlias: recipient.DisplayAlias, Purged: true}, nil
	}
	contact, err := identity.OpenContact(s.cipher, recipient.Sealed)
	if err != nil {
		s.logger.Error("Failed to open recipient contact",
			zap.String("recipient_id", recipient.ID.String()),
			zap.Error(err),
		)
		return nil, err
	}
	if action != "" {
		refs := audit.DeliveryRefs(req.ID, req.RecipientID, req.VolunteerID)
		if err := s.recorder.Record(ctx, repos.Audit(), action, actor, refs, nil, audit.Forbid(contact.Values()...)); err != nil {
			return nil, err
		}
	}
	return &ContactView{
		DisplayAlias: recipient.DisplayAlias,
		Address:      contact.Address,
		Phone:        contact.Phone,
		Notes:        contact.Notes,
	}, nil
}

func currentOrLastVolunteer(req *delivery.DeliveryRequest) *uuid.UUID {
	if req.VolunteerID != nil {
		return req.VolunteerID
	}
	return req.LastVolunteerID
}
