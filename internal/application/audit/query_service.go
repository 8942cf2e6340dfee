package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/groceryshare/backend/internal/domain/audit"
	"github.com/groceryshare/backend/internal/domain/identity"
	"github.com/groceryshare/backend/internal/domain/shared"
)

// QueryService serves the admin views of the audit log
type QueryService struct {
	repo audit.Repository
}

// NewQueryService creates a new QueryService
func NewQueryService(repo audit.Repository) *QueryService {
	return &QueryService{repo: repo}
}

// ListByDelivery returns a request's history in commit order
func (s *QueryService) ListByDelivery(ctx context.Context, actor identity.Actor, deliveryID uuid.UUID) ([]EntryResponse, error) {
	if !actor.IsAdmin() {
		return nil, shared.ErrForbidden
	}
	entries, err := s.repo.ListByDelivery(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	return ToEntryResponses(entries), nil
}

// ListByRecipient pages through entries referencing a recipient
func (s *QueryService) ListByRecipient(ctx context.Context, actor identity.Actor, recipientID uuid.UUID, filter shared.Filter) (shared.Paginated[EntryResponse], error) {
	if !actor.IsAdmin() {
		return shared.Paginated[EntryResponse]{}, shared.ErrForbidden
	}
	filter = filter.Normalize()
	entries, total, err := s.repo.ListByRecipient(ctx, recipientID, filter)
	if err != nil {
		return shared.Paginated[EntryResponse]{}, err
	}
	return shared.NewPaginated(ToEntryResponses(entries), total, filter.Page, filter.PageSize), nil
}

// ListByVolunteer pages through entries referencing a volunteer
func (s *QueryService) ListByVolunteer(ctx context.Context, actor identity.Actor, volunteerID uuid.UUID, filter shared.Filter) (shared.Paginated[EntryResponse], error) {
	if !actor.IsAdmin() {
		return shared.Paginated[EntryResponse]{}, shared.ErrForbidden
	}
	filter = filter.Normalize()
	entries, total, err := s.repo.ListByVolunteer(ctx, volunteerID, filter)
	if err != nil {
		return shared.Paginated[EntryResponse]{}, err
	}
	return shared.NewPaginated(ToEntryResponses(entries), total, filter.Page, filter.PageSize), nil
}

// ListRecent returns the newest entries since the given time
func (s *QueryService) ListRecent(ctx context.Context, actor identity.Actor, since time.Time, filter shared.Filter) (shared.Paginated[EntryResponse], error) {
	if !actor.IsAdmin() {
		return shared.Paginated[EntryResponse]{}, shared.ErrForbidden
	}
	filter = filter.Normalize()
	entries, total, err := s.repo.ListRecent(ctx, since, filter)
	if err != nil {
		return shared.Paginated[EntryResponse]{}, err
	}
	return shared.NewPaginated(ToEntryResponses(entries), total, filter.Page, filter.PageSize), nil
}
