package transaction

import (
	"context"

	"github.com/groceryshare/backend/internal/domain/audit"
	"github.com/groceryshare/backend/internal/domain/delivery"
	"github.com/groceryshare/backend/internal/domain/identity"
)

// Scope provides transactional access to every repository.
// It ensures that all operations within Execute are atomic.
type Scope interface {
	// Execute runs fn within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn succeeds, the transaction is committed.
	Execute(ctx context.Context, fn func(repos Repositories) error) error
}

// Repositories provides access to repositories bound to one transaction.
// State transitions and their audit entries go through the same instance.
type Repositories interface {
	Deliveries() delivery.DeliveryRequestRepository
	Messages() delivery.MessageRepository
	Ratings() delivery.RatingRepository
	Recipients() identity.RecipientRepository
	Volunteers() identity.VolunteerRepository
	Uploads() identity.IDUploadRepository
	Tombstones() identity.TombstoneRepository
	Audit() audit.Repository
}

// Set is a plain bundle of repositories. It implements Repositories and,
// through NoOpScope, lets tests run services without a database transaction.
type Set struct {
	DeliveryRepo  delivery.DeliveryRequestRepository
	MessageRepo   delivery.MessageRepository
	RatingRepo    delivery.RatingRepository
	RecipientRepo identity.RecipientRepository
	VolunteerRepo identity.VolunteerRepository
	UploadRepo    identity.IDUploadRepository
	TombstoneRepo identity.TombstoneRepository
	AuditRepo     audit.Repository
}

func (s *Set) Deliveries() delivery.DeliveryRequestRepository { return s.DeliveryRepo }
func (s *Set) Messages() delivery.MessageRepository           { return s.MessageRepo }
func (s *Set) Ratings() delivery.RatingRepository             { return s.RatingRepo }
func (s *Set) Recipients() identity.RecipientRepository       { return s.RecipientRepo }
func (s *Set) Volunteers() identity.VolunteerRepository       { return s.VolunteerRepo }
func (s *Set) Uploads() identity.IDUploadRepository           { return s.UploadRepo }
func (s *Set) Tombstones() identity.TombstoneRepository       { return s.TombstoneRepo }
func (s *Set) Audit() audit.Repository                        { return s.AuditRepo }

// NoOpScope is a scope that doesn't actually use transactions.
// This is useful for testing with mock repositories.
type NoOpScope struct {
	repos Repositories
}

// NewNoOpScope creates a NoOpScope over the given repositories
func NewNoOpScope(repos Repositories) *NoOpScope {
	return &NoOpScope{repos: repos}
}

// Execute runs fn directly with the wrapped repositories
func (s *NoOpScope) Execute(_ context.Context, fn func(repos Repositories) error) error {
	return fn(s.repos)
}

var (
	_ Scope        = (*NoOpScope)(nil)
	_ Repositories = (*Set)(nil)
)
