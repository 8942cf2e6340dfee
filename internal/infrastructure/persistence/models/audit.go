package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/groceryshare/backend/internal/domain/audit"
	"github.com/groceryshare/backend/internal/domain/identity"
)

// AuditEntryModel is the persistence model for audit entries.
// Seq is assigned by the database and follows commit order.
type AuditEntryModel struct {
	Seq         int64             `gorm:"primaryKey;autoIncrement"`
	ID          uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex"`
	Action      string            `gorm:"type:varchar(50);not null;index"`
	ActorRole   string            `gorm:"type:varchar(20);not null"`
	ActorUserID *uuid.UUID        `gorm:"type:uuid"`
	DeliveryID  *uuid.UUID        `gorm:"type:uuid;index"`
	RecipientID *uuid.UUID        `gorm:"type:uuid;index"`
	VolunteerID *uuid.UUID        `gorm:"type:uuid;index"`
	Metadata    map[string]string `gorm:"type:text;serializer:json"`
	CreatedAt   time.Time         `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (AuditEntryModel) TableName() string {
	return "audit_entries"
}

// ToDomain converts the persistence model to a domain Entry.
func (m *AuditEntryModel) ToDomain() *audit.Entry {
	return &audit.Entry{
		Seq:         m.Seq,
		ID:          m.ID,
		Action:      audit.Action(m.Action),
		ActorRole:   identity.Role(m.ActorRole),
		ActorUserID: m.ActorUserID,
		Refs: audit.Refs{
			DeliveryID:  m.DeliveryID,
			RecipientID: m.RecipientID,
			VolunteerID: m.VolunteerID,
		},
		Metadata:  m.Metadata,
		CreatedAt: m.CreatedAt,
	}
}

// AuditEntryModelFromDomain creates a new persistence model from a domain Entry.
func AuditEntryModelFromDomain(e *audit.Entry) *AuditEntryModel {
	return &AuditEntryModel{
		Seq:         e.Seq,
		ID:          e.ID,
		Action:      e.Action.String(),
		ActorRole:   e.ActorRole.String(),
		ActorUserID: e.ActorUserID,
		DeliveryID:  e.DeliveryID,
		RecipientID: e.RecipientID,
		VolunteerID: e.VolunteerID,
		Metadata:    e.Metadata,
		CreatedAt:   e.CreatedAt,
	}
}
