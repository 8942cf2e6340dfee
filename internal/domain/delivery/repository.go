package delivery

import (
	"context"

	"github.com/google/uuid"
	"github.com/groceryshare/backend/internal/domain/shared"
)

// PoolFilter narrows the open pool listing
type PoolFilter struct {
	shared.Filter
	Area string
}

// DeliveryRequestRepository defines persistence for delivery requests
type DeliveryRequestRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*DeliveryRequest, error)
	// FindByIDForUpdate locks the row for the rest of the transaction
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*DeliveryRequest, error)
	Create(ctx context.Context, r *DeliveryRequest) error
	// SaveWithLock compares the version; a mismatch is a concurrency conflict
	SaveWithLock(ctx context.Context, r *DeliveryRequest) error
	// ClaimIfOpen writes a claimed request only if the row is still open at
	// the expected version. It returns false when another claim won.
	ClaimIfOpen(ctx context.Context, r *DeliveryRequest, expectedVersion int) (bool, error)

	CountActiveClaims(ctx context.Context, volunteerID uuid.UUID) (int64, error)
	CountCompletedByVolunteer(ctx context.Context, volunteerID uuid.UUID) (int64, error)

	// FindOpenPool orders by priority desc, then oldest first
	FindOpenPool(ctx context.Context, filter PoolFilter) ([]DeliveryRequest, int64, error)
	FindByRecipient(ctx context.Context, recipientID uuid.UUID, filter shared.Filter) ([]DeliveryRequest, int64, error)
	FindActiveByVolunteer(ctx context.Context, volunteerID uuid.UUID) ([]DeliveryRequest, error)
	FindNonTerminalByRecipient(ctx context.Context, recipientID uuid.UUID) ([]DeliveryRequest, error)
	// DistinctVolunteersByRecipient returns every last_volunteer_id seen on the recipient's requests
	DistinctVolunteersByRecipient(ctx context.Context, recipientID uuid.UUID) ([]uuid.UUID, error)
}

// MessageRepository defines persistence for messages
type MessageRepository interface {
	// Create assigns the message ID
	Create(ctx context.Context, m *Message) error
	ListAfter(ctx context.Context, deliveryID uuid.UUID, afterID int64, limit int) ([]Message, error)
	// MarkRead stamps every unread message up to uptoID not sent by readerID
	MarkRead(ctx context.Context, deliveryID, readerID uuid.UUID, uptoID int64) (int64, error)
	CountUnread(ctx context.Context, deliveryID, readerID uuid.UUID) (int64, error)
	// DeleteByRecipient removes the chat history of every request of a purged recipient
	DeleteByRecipient(ctx context.Context, recipientID uuid.UUID) (int64, error)
}

// RatingRepository defines persistence for ratings
type RatingRepository interface {
	// Create fails with ErrAlreadyRated on a duplicate delivery
	Create(ctx context.Context, rating *Rating) error
	FindByDelivery(ctx context.Context, deliveryID uuid.UUID) (*Rating, error)
	ScoresForVolunteer(ctx context.Context, volunteerID uuid.UUID) ([]int, error)
}
