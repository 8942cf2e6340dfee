package identity

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/groceryshare/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// PurgeTrigger records why a recipient was purged
type PurgeTrigger string

const (
	PurgeTriggerDeleted  PurgeTrigger = "deleted"
	PurgeTriggerInactive PurgeTrigger = "inactive"
)

// IsValid checks if the trigger is a known value
func (t PurgeTrigger) IsValid() bool {
	return t == PurgeTriggerDeleted || t == PurgeTriggerInactive
}

// ApproxLocation is a coarse coordinate pair rounded to two decimal places
// (roughly one kilometre), safe to show in the open pool.
type ApproxLocation struct {
	Latitude  decimal.Decimal
	Longitude decimal.Decimal
}

// NewApproxLocation rounds precise coordinates down to the coarse grid
func NewApproxLocation(lat, lng float64) (*ApproxLocation, error) {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Coordinates are out of range")
	}
	return &ApproxLocation{
		Latitude:  decimal.NewFromFloat(lat).Round(2),
		Longitude: decimal.NewFromFloat(lng).Round(2),
	}, nil
}

// Recipient is a person receiving deliveries. Address, phone and notes are
// held only as ciphertext.
type Recipient struct {
	shared.BaseAggregateRoot
	UserID       uuid.UUID
	DisplayAlias string
	GeneralArea  string
	Location     *ApproxLocation
	Sealed       SealedContact
	LastActiveAt time.Time
	DeletedAt    *time.Time
}

// NewRecipient creates a recipient profile from already-sealed contact data
func NewRecipient(userID uuid.UUID, alias, area string, sealed SealedContact) (*Recipient, error) {
	if userID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "User ID cannot be empty")
	}
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Display alias cannot be empty")
	}
	if len(alias) > 100 {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Display alias cannot exceed 100 characters")
	}
	if len(area) > 100 {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "General area cannot exceed 100 characters")
	}
	if sealed.Address == "" || sealed.Address == PurgeMarker {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Sealed address is required")
	}

	r := &Recipient{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		UserID:            userID,
		DisplayAlias:      alias,
		GeneralArea:       strings.TrimSpace(area),
		Sealed:            sealed,
	}
	r.LastActiveAt = r.CreatedAt
	r.AddDomainEvent(NewRecipientRegisteredEvent(r))
	return r, nil
}

// IsDeleted returns true once the recipient has been purged
func (r *Recipient) IsDeleted() bool {
	return r.DeletedAt != nil
}

// IsActive returns true if the recipient can still create requests
func (r *Recipient) IsActive() bool {
	return !r.IsDeleted()
}

// SetLocation stores the coarse location used for pool display
func (r *Recipient) SetLocation(loc *ApproxLocation) {
	r.Location = loc
	r.Touch(time.Now().UTC())
}

// RecordActivity moves the inactivity clock forward
func (r *Recipient) RecordActivity(now time.Time) {
	if now.After(r.LastActiveAt) {
		r.LastActiveAt = now
	}
}

// ReplaceContact swaps in newly sealed contact data
func (r *Recipient) ReplaceContact(sealed SealedContact, now time.Time) error {
	if r.IsDeleted() {
		return shared.NewDomainError(shared.CodeInvalidState, "Recipient has been deleted")
	}
	if sealed.Address == "" || sealed.Address == PurgeMarker {
		return shared.NewDomainError(shared.CodeInvalidInput, "Sealed address is required")
	}
	r.Sealed = sealed
	r.RecordActivity(now)
	r.Touch(now)
	return nil
}

// Reseal swaps ciphertext produced under a new key. The activity clock is
// left alone since the recipient did nothing.
func (r *Recipient) Reseal(sealed SealedContact, now time.Time) error {
	if r.IsDeleted() {
		return shared.NewDomainError(shared.CodeInvalidState, "Recipient has been deleted")
	}
	if sealed.Address == "" || sealed.Address == PurgeMarker {
		return shared.NewDomainError(shared.CodeInvalidInput, "Sealed address is required")
	}
	r.Sealed = sealed
	r.Touch(now)
	return nil
}

// Purge irreversibly overwrites contact data and soft-deletes the recipient
func (r *Recipient) Purge(trigger PurgeTrigger, now time.Time) error {
	if !trigger.IsValid() {
		return shared.NewDomainError(shared.CodeInvalidInput, "Unknown purge trigger")
	}
	if r.IsDeleted() {
		return shared.NewDomainError(shared.CodeInvalidState, "Recipient has already been purged")
	}
	r.Sealed = SealedContact{Address: PurgeMarker}
	r.Location = nil
	r.DeletedAt = &now
	r.Touch(now)
	r.AddDomainEvent(NewRecipientPurgedEvent(r, trigger))
	return nil
}

// IsInactiveSince reports whether the recipient has been idle since before cutoff
func (r *Recipient) IsInactiveSince(cutoff time.Time) bool {
	return !r.IsDeleted() && r.LastActiveAt.Before(cutoff)
}

// InactivityCutoff converts a month count to a cutoff, counting a month as 30 days
func InactivityCutoff(now time.Time, months int) time.Time {
	return now.AddDate(0, 0, -30*months)
}
