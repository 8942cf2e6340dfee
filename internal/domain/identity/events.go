package identity

import (
	"github.com/google/uuid"
	"github.com/groceryshare/backend/internal/domain/shared"
)

// Aggregate type constants
const (
	AggregateTypeRecipient = "Recipient"
	AggregateTypeVolunteer = "Volunteer"
)

// Event type constants
const (
	EventTypeRecipientRegistered = "RecipientRegistered"
	EventTypeRecipientPurged     = "RecipientPurged"
	EventTypeVolunteerRegistered = "VolunteerRegistered"
	EventTypeVolunteerApproved   = "VolunteerApproved"
	EventTypeVolunteerRejected   = "VolunteerRejected"
	EventTypeVolunteerSuspended  = "VolunteerSuspended"
	EventTypeVolunteerReinstated = "VolunteerReinstated"
)

// RecipientRegisteredEvent is raised when a recipient profile is created
type RecipientRegisteredEvent struct {
	shared.BaseDomainEvent
	RecipientID uuid.UUID `json:"recipient_id"`
	UserID      uuid.UUID `json:"user_id"`
}

// NewRecipientRegisteredEvent creates a new RecipientRegisteredEvent
func NewRecipientRegisteredEvent(r *Recipient) *RecipientRegisteredEvent {
	return &RecipientRegisteredEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeRecipientRegistered, AggregateTypeRecipient, r.ID),
		RecipientID:     r.ID,
		UserID:          r.UserID,
	}
}

// RecipientPurgedEvent is raised when a recipient's contact data is destroyed
type RecipientPurgedEvent struct {
	shared.BaseDomainEvent
	RecipientID uuid.UUID    `json:"recipient_id"`
	Trigger     PurgeTrigger `json:"trigger"`
}

// NewRecipientPurgedEvent creates a new RecipientPurgedEvent
func NewRecipientPurgedEvent(r *Recipient, trigger PurgeTrigger) *RecipientPurgedEvent {
	return &RecipientPurgedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeRecipientPurged, AggregateTypeRecipient, r.ID),
		RecipientID:     r.ID,
		Trigger:         trigger,
	}
}

// VolunteerVettedEvent is raised on registration and every review decision
type VolunteerVettedEvent struct {
	shared.BaseDomainEvent
	VolunteerID uuid.UUID     `json:"volunteer_id"`
	UserID      uuid.UUID     `json:"user_id"`
	Status      VettingStatus `json:"status"`
	ReviewerID  uuid.UUID     `json:"reviewer_id,omitempty"`
}

// NewVolunteerVettedEvent creates a vetting event of the given type
func NewVolunteerVettedEvent(v *Volunteer, eventType string, reviewerID uuid.UUID) *VolunteerVettedEvent {
	return &VolunteerVettedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeVolunteer, v.ID),
		VolunteerID:     v.ID,
		UserID:          v.UserID,
		Status:          v.Status,
		ReviewerID:      reviewerID,
	}
}
