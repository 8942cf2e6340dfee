package delivery

import (
	"time"

	"github.com/google/uuid"
	"github.com/groceryshare/backend/internal/domain/shared"
)

// AggregateTypeDeliveryRequest is the aggregate type for delivery request events
const AggregateTypeDeliveryRequest = "DeliveryRequest"

// Event type constants
const (
	EventTypeDeliveryCreated   = "DeliveryCreated"
	EventTypeDeliveryClaimed   = "DeliveryClaimed"
	EventTypeDeliveryPickedUp  = "DeliveryPickedUp"
	EventTypeDeliveryRequeued  = "DeliveryRequeued"
	EventTypeDeliveryCanceled  = "DeliveryCanceled"
	EventTypeDeliveryCompleted = "DeliveryCompleted"
	EventTypeDeliveryRated     = "DeliveryRated"
	EventTypeMessageSent       = "MessageSent"
)

// DeliveryCreatedEvent is raised when a recipient opens a request
type DeliveryCreatedEvent struct {
	shared.BaseDomainEvent
	RequestID   uuid.UUID `json:"request_id"`
	RecipientID uuid.UUID `json:"recipient_id"`
	StoreName   string    `json:"store_name"`
	PickupTime  time.Time `json:"pickup_time"`
}

// NewDeliveryCreatedEvent creates a new DeliveryCreatedEvent
func NewDeliveryCreatedEvent(r *DeliveryRequest) *DeliveryCreatedEvent {
	return &DeliveryCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDeliveryCreated, AggregateTypeDeliveryRequest, r.ID),
		RequestID:       r.ID,
		RecipientID:     r.RecipientID,
		StoreName:       r.Pickup.StoreName,
		PickupTime:      r.Pickup.PickupTime,
	}
}

// DeliveryClaimedEvent is raised when a volunteer wins a claim
type DeliveryClaimedEvent struct {
	shared.BaseDomainEvent
	RequestID   uuid.UUID `json:"request_id"`
	RecipientID uuid.UUID `json:"recipient_id"`
	VolunteerID uuid.UUID `json:"volunteer_id"`
}

// NewDeliveryClaimedEvent creates a new DeliveryClaimedEvent
func NewDeliveryClaimedEvent(r *DeliveryRequest) *DeliveryClaimedEvent {
	return &DeliveryClaimedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDeliveryClaimed, AggregateTypeDeliveryRequest, r.ID),
		RequestID:       r.ID,
		RecipientID:     r.RecipientID,
		VolunteerID:     *r.VolunteerID,
	}
}

// DeliveryPickedUpEvent is raised when the holder collects the groceries
type DeliveryPickedUpEvent struct {
	shared.BaseDomainEvent
	RequestID   uuid.UUID `json:"request_id"`
	RecipientID uuid.UUID `json:"recipient_id"`
	VolunteerID uuid.UUID `json:"volunteer_id"`
}

// NewDeliveryPickedUpEvent creates a new DeliveryPickedUpEvent
func NewDeliveryPickedUpEvent(r *DeliveryRequest) *DeliveryPickedUpEvent {
	return &DeliveryPickedUpEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDeliveryPickedUp, AggregateTypeDeliveryRequest, r.ID),
		RequestID:       r.ID,
		RecipientID:     r.RecipientID,
		VolunteerID:     *r.VolunteerID,
	}
}

// DeliveryRequeuedEvent is raised when a held request goes back to the pool
type DeliveryRequeuedEvent struct {
	shared.BaseDomainEvent
	RequestID   uuid.UUID   `json:"request_id"`
	RecipientID uuid.UUID   `json:"recipient_id"`
	VolunteerID uuid.UUID   `json:"volunteer_id"`
	ReleasedBy  CancelActor `json:"released_by"`
	Priority    int         `json:"priority"`
}

// NewDeliveryRequeuedEvent creates a new DeliveryRequeuedEvent
func NewDeliveryRequeuedEvent(r *DeliveryRequest, volunteerID uuid.UUID, by CancelActor) *DeliveryRequeuedEvent {
	return &DeliveryRequeuedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDeliveryRequeued, AggregateTypeDeliveryRequest, r.ID),
		RequestID:       r.ID,
		RecipientID:     r.RecipientID,
		VolunteerID:     volunteerID,
		ReleasedBy:      by,
		Priority:        r.Priority,
	}
}

// DeliveryCanceledEvent is raised when a request ends without completion
type DeliveryCanceledEvent struct {
	shared.BaseDomainEvent
	RequestID   uuid.UUID   `json:"request_id"`
	RecipientID uuid.UUID   `json:"recipient_id"`
	VolunteerID *uuid.UUID  `json:"volunteer_id,omitempty"`
	CanceledBy  CancelActor `json:"canceled_by"`
}

// NewDeliveryCanceledEvent creates a new DeliveryCanceledEvent
func NewDeliveryCanceledEvent(r *DeliveryRequest, volunteerID *uuid.UUID, by CancelActor) *DeliveryCanceledEvent {
	return &DeliveryCanceledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDeliveryCanceled, AggregateTypeDeliveryRequest, r.ID),
		RequestID:       r.ID,
		RecipientID:     r.RecipientID,
		VolunteerID:     volunteerID,
		CanceledBy:      by,
	}
}

// DeliveryCompletedEvent is raised when the recipient confirms delivery
type DeliveryCompletedEvent struct {
	shared.BaseDomainEvent
	RequestID   uuid.UUID `json:"request_id"`
	RecipientID uuid.UUID `json:"recipient_id"`
	VolunteerID uuid.UUID `json:"volunteer_id"`
}

// NewDeliveryCompletedEvent creates a new DeliveryCompletedEvent
func NewDeliveryCompletedEvent(r *DeliveryRequest, volunteerID uuid.UUID) *DeliveryCompletedEvent {
	return &DeliveryCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDeliveryCompleted, AggregateTypeDeliveryRequest, r.ID),
		RequestID:       r.ID,
		RecipientID:     r.RecipientID,
		VolunteerID:     volunteerID,
	}
}

// DeliveryRatedEvent is raised once per completed request
type DeliveryRatedEvent struct {
	shared.BaseDomainEvent
	RequestID   uuid.UUID `json:"request_id"`
	VolunteerID uuid.UUID `json:"volunteer_id"`
	Score       int       `json:"score"`
}

// NewDeliveryRatedEvent creates a new DeliveryRatedEvent
func NewDeliveryRatedEvent(rating *Rating) *DeliveryRatedEvent {
	return &DeliveryRatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDeliveryRated, AggregateTypeDeliveryRequest, rating.DeliveryID),
		RequestID:       rating.DeliveryID,
		VolunteerID:     rating.VolunteerID,
		Score:           rating.Score,
	}
}

// MessageSentEvent is raised for every message. It never carries the body.
type MessageSentEvent struct {
	shared.BaseDomainEvent
	RequestID    uuid.UUID `json:"request_id"`
	MessageID    int64     `json:"message_id"`
	SenderUserID uuid.UUID `json:"sender_user_id"`
}

// NewMessageSentEvent creates a new MessageSentEvent
func NewMessageSentEvent(m *Message) *MessageSentEvent {
	return &MessageSentEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeMessageSent, AggregateTypeDeliveryRequest, m.DeliveryID),
		RequestID:       m.DeliveryID,
		MessageID:       m.ID,
		SenderUserID:    m.SenderUserID,
	}
}
