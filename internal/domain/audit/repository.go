package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/groceryshare/backend/internal/domain/shared"
)

// Repository persists audit entries. There is no update or delete.
type Repository interface {
	// Append stores the entry and assigns its Seq
	Append(ctx context.Context, entry *Entry) error

	ListByDelivery(ctx context.Context, deliveryID uuid.UUID) ([]Entry, error)
	ListByRecipient(ctx context.Context, recipientID uuid.UUID, filter shared.Filter) ([]Entry, int64, error)
	ListByVolunteer(ctx context.Context, volunteerID uuid.UUID, filter shared.Filter) ([]Entry, int64, error)
	ListRecent(ctx context.Context, since time.Time, filter shared.Filter) ([]Entry, int64, error)

	// DistinctClaimVolunteers returns every volunteer that ever claimed one
	// of the recipient's requests.
	DistinctClaimVolunteers(ctx context.Context, recipientID uuid.UUID) ([]uuid.UUID, error)
}
