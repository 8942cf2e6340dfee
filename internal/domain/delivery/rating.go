package delivery

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/groceryshare/backend/internal/domain/identity"
	"github.com/groceryshare/backend/internal/domain/shared"
)

const (
	MinScore = 1
	MaxScore = 5
)

// Rating is the recipient's score for a completed delivery. At most one per request.
type Rating struct {
	ID          uuid.UUID
	DeliveryID  uuid.UUID
	VolunteerID uuid.UUID
	RecipientID uuid.UUID
	Score       int
	Comment     string
	CreatedAt   time.Time
}

// NewRating validates that actor may rate r
func NewRating(r *DeliveryRequest, actor identity.Actor, score int, comment string, now time.Time) (*Rating, error) {
	if !actor.IsRecipient(r.RecipientID) {
		return nil, shared.ErrUnauthorized
	}
	if !r.CanBeRated() {
		return nil, shared.NewDomainError(shared.CodeInvalidState, "Only completed deliveries can be rated")
	}
	if score < MinScore || score > MaxScore {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Score must be between 1 and 5")
	}
	comment = strings.TrimSpace(comment)
	if len(comment) > 1000 {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Comment cannot exceed 1000 characters")
	}
	return &Rating{
		ID:          uuid.New(),
		DeliveryID:  r.ID,
		VolunteerID: *r.LastVolunteerID,
		RecipientID: r.RecipientID,
		Score:       score,
		Comment:     comment,
		CreatedAt:   now,
	}, nil
}
