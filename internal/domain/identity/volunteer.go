package identity

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/groceryshare/backend/internal/domain/shared"
)

// VettingStatus represents where a volunteer is in the review process
type VettingStatus string

const (
	VettingPending   VettingStatus = "pending"
	VettingApproved  VettingStatus = "approved"
	VettingSuspended VettingStatus = "suspended"
	VettingRejected  VettingStatus = "rejected"
)

// IsValid checks if the status is a valid value
func (s VettingStatus) IsValid() bool {
	switch s {
	case VettingPending, VettingApproved, VettingSuspended, VettingRejected:
		return true
	}
	return false
}

// String returns the string representation of VettingStatus
func (s VettingStatus) String() string {
	return string(s)
}

// CanTransitionTo checks if the status can transition to the target status
func (s VettingStatus) CanTransitionTo(target VettingStatus) bool {
	switch s {
	case VettingPending:
		return target == VettingApproved || target == VettingRejected
	case VettingApproved:
		return target == VettingSuspended
	case VettingSuspended:
		return target == VettingApproved
	case VettingRejected:
		return target == VettingApproved
	}
	return false
}

// Volunteer is a vetted person who claims and fulfils delivery requests
type Volunteer struct {
	shared.BaseAggregateRoot
	UserID            uuid.UUID
	FullName          string
	PhotoRef          string
	ServiceArea       string
	AvailabilityNotes string
	Status            VettingStatus
	AttestedAt        *time.Time
	ReviewedBy        *uuid.UUID
	ReviewedAt        *time.Time
	StatusReason      string
	Stats             VolunteerStats
}

// NewVolunteer registers a volunteer awaiting review. The conduct attestation
// must have been accepted.
func NewVolunteer(userID uuid.UUID, fullName, photoRef, serviceArea, availability string, attested bool) (*Volunteer, error) {
	if userID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "User ID cannot be empty")
	}
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Full name cannot be empty")
	}
	if len(fullName) > 255 {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Full name cannot exceed 255 characters")
	}
	serviceArea = strings.TrimSpace(serviceArea)
	if serviceArea == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Service area cannot be empty")
	}
	if !attested {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Volunteer attestation is required")
	}

	v := &Volunteer{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		UserID:            userID,
		FullName:          fullName,
		PhotoRef:          strings.TrimSpace(photoRef),
		ServiceArea:       serviceArea,
		AvailabilityNotes: strings.TrimSpace(availability),
		Status:            VettingPending,
	}
	attestedAt := v.CreatedAt
	v.AttestedAt = &attestedAt
	v.AddDomainEvent(NewVolunteerVettedEvent(v, EventTypeVolunteerRegistered, uuid.Nil))
	return v, nil
}

// CanClaim returns true if the volunteer may take new claims
func (v *Volunteer) CanClaim() bool {
	return v.Status == VettingApproved
}

// Approve clears the volunteer to claim deliveries
func (v *Volunteer) Approve(adminID uuid.UUID, now time.Time) error {
	if err := v.transition(VettingApproved, adminID, "", now); err != nil {
		return err
	}
	v.AddDomainEvent(NewVolunteerVettedEvent(v, EventTypeVolunteerApproved, adminID))
	return nil
}

// Reject declines a pending application
func (v *Volunteer) Reject(adminID uuid.UUID, reason string, now time.Time) error {
	if err := v.transition(VettingRejected, adminID, reason, now); err != nil {
		return err
	}
	v.AddDomainEvent(NewVolunteerVettedEvent(v, EventTypeVolunteerRejected, adminID))
	return nil
}

// Suspend stops an approved volunteer from claiming. Existing claim records are kept.
func (v *Volunteer) Suspend(adminID uuid.UUID, reason string, now time.Time) error {
	if err := v.transition(VettingSuspended, adminID, reason, now); err != nil {
		return err
	}
	v.AddDomainEvent(NewVolunteerVettedEvent(v, EventTypeVolunteerSuspended, adminID))
	return nil
}

// Reinstate returns a suspended volunteer to approved
func (v *Volunteer) Reinstate(adminID uuid.UUID, now time.Time) error {
	if v.Status != VettingSuspended {
		return shared.NewDomainError(shared.CodeInvalidState, "Only suspended volunteers can be reinstated")
	}
	if err := v.transition(VettingApproved, adminID, "", now); err != nil {
		return err
	}
	v.AddDomainEvent(NewVolunteerVettedEvent(v, EventTypeVolunteerReinstated, adminID))
	return nil
}

func (v *Volunteer) transition(target VettingStatus, adminID uuid.UUID, reason string, now time.Time) error {
	if adminID == uuid.Nil {
		return shared.NewDomainError(shared.CodeInvalidInput, "Reviewer ID cannot be empty")
	}
	if !v.Status.CanTransitionTo(target) {
		return shared.NewDomainError(shared.CodeInvalidState, "Cannot move volunteer from "+v.Status.String()+" to "+target.String())
	}
	reason = strings.TrimSpace(reason)
	if len(reason) > 500 {
		return shared.NewDomainError(shared.CodeInvalidInput, "Reason cannot exceed 500 characters")
	}
	v.Status = target
	v.ReviewedBy = &adminID
	v.ReviewedAt = &now
	v.StatusReason = reason
	v.Touch(now)
	return nil
}

// ApplyStats replaces the derived counters with a fresh recomputation.
// Stats are never incremented in place.
func (v *Volunteer) ApplyStats(stats VolunteerStats) {
	v.Stats = stats
}
