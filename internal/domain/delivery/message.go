package delivery

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/groceryshare/backend/internal/domain/identity"
	"github.com/groceryshare/backend/internal/domain/shared"
	"golang.org/x/text/unicode/norm"
)

const (
	// MaxMessageLength is measured in runes after trimming
	MaxMessageLength = 1000
	// DefaultMessagePageSize is also the maximum page size for a poll
	DefaultMessagePageSize = 50
)

// Message is a chat line between the recipient and the claim holder.
// ID is assigned by the store and totally orders messages of a request.
type Message struct {
	ID           int64
	DeliveryID   uuid.UUID
	SenderUserID uuid.UUID
	SenderRole   identity.Role
	Body         string
	SentAt       time.Time
	ReadAt       *time.Time
}

// NewMessage validates and normalises a message body
func NewMessage(deliveryID uuid.UUID, sender identity.Actor, body string, now time.Time) (*Message, error) {
	if sender.UserID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Sender is required")
	}
	body = strings.TrimSpace(norm.NFC.String(body))
	if body == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Message cannot be empty")
	}
	if utf8.RuneCountInString(body) > MaxMessageLength {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Message cannot exceed 1000 characters")
	}
	return &Message{
		DeliveryID:   deliveryID,
		SenderUserID: sender.UserID,
		SenderRole:   sender.Role,
		Body:         body,
		SentAt:       now,
	}, nil
}

// IsFrom reports whether the user sent the message
func (m *Message) IsFrom(userID uuid.UUID) bool {
	return m.SenderUserID == userID
}

// MarkRead sets the read receipt once
func (m *Message) MarkRead(now time.Time) {
	if m.ReadAt == nil {
		m.ReadAt = &now
	}
}

// CanMessage reports whether actor may send or read messages on r.
// The channel only exists while a volunteer holds the claim.
func CanMessage(actor identity.Actor, r *DeliveryRequest) bool {
	if !r.Status.IsActiveClaim() {
		return false
	}
	switch actor.Role {
	case identity.RoleRecipient:
		return actor.IsRecipient(r.RecipientID)
	case identity.RoleVolunteer:
		return r.VolunteerID != nil && actor.IsVolunteer(*r.VolunteerID)
	case identity.RoleAdmin:
		return true
	}
	return false
}

// CanReadMessages is CanMessage widened for the owner and admins, who keep
// read access to the history after the claim ends.
func CanReadMessages(actor identity.Actor, r *DeliveryRequest) bool {
	if CanMessage(actor, r) {
		return true
	}
	if r.Status == StatusOpen {
		return false
	}
	return actor.IsAdmin() || actor.IsRecipient(r.RecipientID)
}
