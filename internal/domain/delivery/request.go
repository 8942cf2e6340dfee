package delivery

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/groceryshare/backend/internal/domain/identity"
	"github.com/groceryshare/backend/internal/domain/shared"
)

// PickupDetails describes where and when groceries are collected.
// None of it is sensitive: the pickup address is the store's.
type PickupDetails struct {
	StoreName      string
	PickupAddress  string
	OrderName      string
	PickupTime     time.Time
	EstimatedItems string
}

// Validate checks required pickup fields
func (p PickupDetails) Validate() error {
	if strings.TrimSpace(p.StoreName) == "" {
		return shared.NewDomainError(shared.CodeInvalidInput, "Store name cannot be empty")
	}
	if len(p.StoreName) > 255 {
		return shared.NewDomainError(shared.CodeInvalidInput, "Store name cannot exceed 255 characters")
	}
	if strings.TrimSpace(p.PickupAddress) == "" {
		return shared.NewDomainError(shared.CodeInvalidInput, "Pickup address cannot be empty")
	}
	if len(p.PickupAddress) > 500 {
		return shared.NewDomainError(shared.CodeInvalidInput, "Pickup address cannot exceed 500 characters")
	}
	if strings.TrimSpace(p.OrderName) == "" {
		return shared.NewDomainError(shared.CodeInvalidInput, "Order name cannot be empty")
	}
	if len(p.OrderName) > 255 {
		return shared.NewDomainError(shared.CodeInvalidInput, "Order name cannot exceed 255 characters")
	}
	if p.PickupTime.IsZero() {
		return shared.NewDomainError(shared.CodeInvalidInput, "Pickup time is required")
	}
	if len(p.EstimatedItems) > 100 {
		return shared.NewDomainError(shared.CodeInvalidInput, "Item estimate cannot exceed 100 characters")
	}
	return nil
}

func (p PickupDetails) trimmed() PickupDetails {
	return PickupDetails{
		StoreName:      strings.TrimSpace(p.StoreName),
		PickupAddress:  strings.TrimSpace(p.PickupAddress),
		OrderName:      strings.TrimSpace(p.OrderName),
		PickupTime:     p.PickupTime.UTC(),
		EstimatedItems: strings.TrimSpace(p.EstimatedItems),
	}
}

// DeliveryRequest is the aggregate root of the claim lifecycle.
//
// VolunteerID is the current claim holder and is set exactly while the status
// is claimed or picked_up. LastVolunteerID keeps the most recent holder for
// history and ratings; it never grants access to anything.
type DeliveryRequest struct {
	shared.BaseAggregateRoot
	RecipientID        uuid.UUID
	VolunteerID        *uuid.UUID
	LastVolunteerID    *uuid.UUID
	Pickup             PickupDetails
	Status             Status
	Priority           int
	RequeueCount       int
	ClaimedAt          *time.Time
	PickedUpAt         *time.Time
	CompletedAt        *time.Time
	CanceledAt         *time.Time
	CanceledBy         *CancelActor
	CancellationReason string
}

// NewDeliveryRequest creates an open request for a recipient
func NewDeliveryRequest(recipientID uuid.UUID, pickup PickupDetails) (*DeliveryRequest, error) {
	if recipientID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Recipient ID cannot be empty")
	}
	if err := pickup.Validate(); err != nil {
		return nil, err
	}

	r := &DeliveryRequest{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		RecipientID:       recipientID,
		Pickup:            pickup.trimmed(),
		Status:            StatusOpen,
	}
	r.AddDomainEvent(NewDeliveryCreatedEvent(r))
	return r, nil
}

// IsHolder reports whether the volunteer currently holds the claim
func (r *DeliveryRequest) IsHolder(volunteerID uuid.UUID) bool {
	return r.VolunteerID != nil && *r.VolunteerID == volunteerID && r.Status.IsActiveClaim()
}

// HasHeld reports whether the volunteer holds or last held the request
func (r *DeliveryRequest) HasHeld(volunteerID uuid.UUID) bool {
	return (r.VolunteerID != nil && *r.VolunteerID == volunteerID) ||
		(r.LastVolunteerID != nil && *r.LastVolunteerID == volunteerID)
}

// IsOwner reports whether the recipient owns the request
func (r *DeliveryRequest) IsOwner(recipientID uuid.UUID) bool {
	return r.RecipientID == recipientID
}

// IsTerminal returns true once completed or canceled
func (r *DeliveryRequest) IsTerminal() bool {
	return r.Status.IsTerminal()
}

// Claim hands the request to a volunteer. Volunteer eligibility and the
// active-claim cap are checked by the caller under a row lock.
func (r *DeliveryRequest) Claim(volunteerID uuid.UUID, now time.Time) error {
	if volunteerID == uuid.Nil {
		return shared.NewDomainError(shared.CodeInvalidInput, "Volunteer ID cannot be empty")
	}
	switch {
	case r.Status.IsTerminal():
		return shared.ErrTerminalState
	case r.Status != StatusOpen:
		return shared.ErrAlreadyClaimed
	}

	r.Status = StatusClaimed
	r.VolunteerID = &volunteerID
	r.LastVolunteerID = &volunteerID
	r.ClaimedAt = &now
	r.PickedUpAt = nil
	r.Touch(now)

	r.AddDomainEvent(NewDeliveryClaimedEvent(r))
	return nil
}

// MarkPickedUp records that the holder collected the groceries
func (r *DeliveryRequest) MarkPickedUp(volunteerID uuid.UUID, now time.Time) error {
	if !r.HasHeld(volunteerID) {
		return shared.ErrUnauthorized
	}
	if r.Status.IsTerminal() {
		return shared.ErrTerminalState
	}
	if !r.IsHolder(volunteerID) {
		return shared.ErrUnauthorized
	}
	if !r.Status.CanTransitionTo(StatusPickedUp) {
		return shared.NewDomainError(shared.CodeInvalidState, fmt.Sprintf("Cannot mark request picked up in %s status", r.Status))
	}

	r.Status = StatusPickedUp
	r.PickedUpAt = &now
	r.Touch(now)

	r.AddDomainEvent(NewDeliveryPickedUpEvent(r))
	return nil
}

// Cancel applies the cancel policy for actor and returns what happened
func (r *DeliveryRequest) Cancel(actor identity.Actor, reason string, policy CancelPolicy, now time.Time) (CancelOutcome, error) {
	outcome, by, err := ResolveCancelOutcome(actor, r, policy)
	if err != nil {
		return "", err
	}
	reason = strings.TrimSpace(reason)
	if len(reason) > 500 {
		return "", shared.NewDomainError(shared.CodeInvalidInput, "Cancellation reason cannot exceed 500 characters")
	}
	if outcome == OutcomeRequeued {
		r.requeue(by, now)
		return outcome, nil
	}
	r.terminate(by, reason, now)
	return outcome, nil
}

// ForceCancel ends the request regardless of who holds it. Used when the
// recipient is deleted or purged.
func (r *DeliveryRequest) ForceCancel(reason string, now time.Time) error {
	if r.Status.IsTerminal() {
		return shared.ErrTerminalState
	}
	r.terminate(CanceledBySystem, reason, now)
	return nil
}

func (r *DeliveryRequest) requeue(by CancelActor, now time.Time) {
	released := *r.VolunteerID
	r.Status = StatusOpen
	r.VolunteerID = nil
	r.ClaimedAt = nil
	r.PickedUpAt = nil
	r.Priority += RequeuePriorityStep
	r.RequeueCount++
	r.Touch(now)

	r.AddDomainEvent(NewDeliveryRequeuedEvent(r, released, by))
}

func (r *DeliveryRequest) terminate(by CancelActor, reason string, now time.Time) {
	previous := r.VolunteerID
	r.Status = StatusCanceled
	r.VolunteerID = nil
	r.CanceledAt = &now
	r.CanceledBy = &by
	r.CancellationReason = reason
	r.Touch(now)

	r.AddDomainEvent(NewDeliveryCanceledEvent(r, previous, by))
}

// Complete closes the request. Only the owning recipient may confirm, from
// picked_up or directly from claimed when pickup was never confirmed.
func (r *DeliveryRequest) Complete(recipientID uuid.UUID, now time.Time) error {
	if !r.IsOwner(recipientID) {
		return shared.ErrUnauthorized
	}
	if r.Status.IsTerminal() {
		return shared.ErrTerminalState
	}
	if !r.Status.IsActiveClaim() || !r.Status.CanTransitionTo(StatusCompleted) {
		return shared.NewDomainError(shared.CodeInvalidState, fmt.Sprintf("Cannot complete request in %s status", r.Status))
	}

	volunteerID := *r.VolunteerID
	r.Status = StatusCompleted
	r.VolunteerID = nil
	r.LastVolunteerID = &volunteerID
	r.CompletedAt = &now
	r.Touch(now)

	r.AddDomainEvent(NewDeliveryCompletedEvent(r, volunteerID))
	return nil
}

// CanBeRated returns true once the request completed with a known volunteer
func (r *DeliveryRequest) CanBeRated() bool {
	return r.Status == StatusCompleted && r.LastVolunteerID != nil
}

// CheckInvariants verifies the holder/status relationship
func (r *DeliveryRequest) CheckInvariants() error {
	if !r.Status.IsValid() {
		return shared.NewDomainError(shared.CodeDataIntegrityViolated, "Unknown delivery status "+r.Status.String())
	}
	if r.Status.IsActiveClaim() != (r.VolunteerID != nil) {
		return shared.NewDomainError(shared.CodeDataIntegrityViolated,
			fmt.Sprintf("Volunteer reference does not match %s status", r.Status))
	}
	return nil
}
