package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/groceryshare/backend/internal/domain/identity"
	"github.com/shopspring/decimal"
)

// RecipientModel is the persistence model for the Recipient aggregate root.
// Contact columns only ever hold gateway ciphertext or the purge marker.
type RecipientModel struct {
	AggregateModel
	UserID          uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex"`
	DisplayAlias    string           `gorm:"type:varchar(100);not null"`
	GeneralArea     string           `gorm:"type:varchar(100);index"`
	ApproxLatitude  *decimal.Decimal `gorm:"type:decimal(5,2)"`
	ApproxLongitude *decimal.Decimal `gorm:"type:decimal(5,2)"`
	AddressCipher   string           `gorm:"type:text;not null"`
	PhoneCipher     *string          `gorm:"type:text"`
	NotesCipher     *string          `gorm:"type:text"`
	LastActiveAt    time.Time        `gorm:"not null;index"`
	DeletedAt       *time.Time       `gorm:"index"`
}

// TableName returns the table name for GORM
func (RecipientModel) TableName() string {
	return "recipients"
}

// ToDomain converts the persistence model to a domain Recipient entity.
func (m *RecipientModel) ToDomain() *identity.Recipient {
	r := &identity.Recipient{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		UserID:            m.UserID,
		DisplayAlias:      m.DisplayAlias,
		GeneralArea:       m.GeneralArea,
		Sealed: identity.SealedContact{
			Address: m.AddressCipher,
			Phone:   m.PhoneCipher,
			Notes:   m.NotesCipher,
		},
		LastActiveAt: m.LastActiveAt,
		DeletedAt:    m.DeletedAt,
	}
	if m.ApproxLatitude != nil && m.ApproxLongitude != nil {
		r.Location = &identity.ApproxLocation{Latitude: *m.ApproxLatitude, Longitude: *m.ApproxLongitude}
	}
	return r
}

// FromDomain populates the persistence model from a domain Recipient entity.
func (m *RecipientModel) FromDomain(r *identity.Recipient) {
	m.FromDomainAggregateRoot(r.BaseAggregateRoot)
	m.UserID = r.UserID
	m.DisplayAlias = r.DisplayAlias
	m.GeneralArea = r.GeneralArea
	m.ApproxLatitude, m.ApproxLongitude = nil, nil
	if r.Location != nil {
		lat, lng := r.Location.Latitude, r.Location.Longitude
		m.ApproxLatitude, m.ApproxLongitude = &lat, &lng
	}
	m.AddressCipher = r.Sealed.Address
	m.PhoneCipher = r.Sealed.Phone
	m.NotesCipher = r.Sealed.Notes
	m.LastActiveAt = r.LastActiveAt
	m.DeletedAt = r.DeletedAt
}

// RecipientModelFromDomain creates a new persistence model from domain entity.
func RecipientModelFromDomain(r *identity.Recipient) *RecipientModel {
	m := &RecipientModel{}
	m.FromDomain(r)
	return m
}

// VolunteerModel is the persistence model for the Volunteer aggregate root.
type VolunteerModel struct {
	AggregateModel
	UserID            uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex"`
	FullName          string           `gorm:"type:varchar(255);not null"`
	PhotoRef          string           `gorm:"type:varchar(500)"`
	ServiceArea       string           `gorm:"type:varchar(100);not null"`
	AvailabilityNotes string           `gorm:"type:text"`
	Status            string           `gorm:"type:varchar(20);not null;default:'pending';index"`
	AttestedAt        *time.Time       `gorm:""`
	ReviewedBy        *uuid.UUID       `gorm:"type:uuid"`
	ReviewedAt        *time.Time       `gorm:""`
	StatusReason      string           `gorm:"type:varchar(500)"`
	TotalDeliveries   int              `gorm:"not null;default:0"`
	RatingCount       int              `gorm:"not null;default:0"`
	AverageRating     *decimal.Decimal `gorm:"type:decimal(3,2)"`
}

// TableName returns the table name for GORM
func (VolunteerModel) TableName() string {
	return "volunteers"
}

// ToDomain converts the persistence model to a domain Volunteer entity.
func (m *VolunteerModel) ToDomain() *identity.Volunteer {
	return &identity.Volunteer{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		UserID:            m.UserID,
		FullName:          m.FullName,
		PhotoRef:          m.PhotoRef,
		ServiceArea:       m.ServiceArea,
		AvailabilityNotes: m.AvailabilityNotes,
		Status:            identity.VettingStatus(m.Status),
		AttestedAt:        m.AttestedAt,
		ReviewedBy:        m.ReviewedBy,
		ReviewedAt:        m.ReviewedAt,
		StatusReason:      m.StatusReason,
		Stats: identity.VolunteerStats{
			TotalDeliveries: m.TotalDeliveries,
			RatingCount:     m.RatingCount,
			AverageRating:   m.AverageRating,
		},
	}
}

// FromDomain populates the persistence model from a domain Volunteer entity.
func (m *VolunteerModel) FromDomain(v *identity.Volunteer) {
	m.FromDomainAggregateRoot(v.BaseAggregateRoot)
	m.UserID = v.UserID
	m.FullName = v.FullName
	m.PhotoRef = v.PhotoRef
	m.ServiceArea = v.ServiceArea
	m.AvailabilityNotes = v.AvailabilityNotes
	m.Status = v.Status.String()
	m.AttestedAt = v.AttestedAt
	m.ReviewedBy = v.ReviewedBy
	m.ReviewedAt = v.ReviewedAt
	m.StatusReason = v.StatusReason
	m.TotalDeliveries = v.Stats.TotalDeliveries
	m.RatingCount = v.Stats.RatingCount
	m.AverageRating = v.Stats.AverageRating
}

// VolunteerModelFromDomain creates a new persistence model from domain entity.
func VolunteerModelFromDomain(v *identity.Volunteer) *VolunteerModel {
	m := &VolunteerModel{}
	m.FromDomain(v)
	return m
}

// IDUploadModel references an ID-verification artifact in object storage.
type IDUploadModel struct {
	BaseModel
	VolunteerID uuid.UUID `gorm:"type:uuid;not null;index"`
	ArtifactRef string    `gorm:"type:varchar(500);not null"`
	ExpiresAt   time.Time `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (IDUploadModel) TableName() string {
	return "volunteer_id_uploads"
}

// ToDomain converts the persistence model to a domain IDUpload.
func (m *IDUploadModel) ToDomain() *identity.IDUpload {
	return &identity.IDUpload{
		BaseEntity:  m.BaseModel.ToDomain(),
		VolunteerID: m.VolunteerID,
		ArtifactRef: m.ArtifactRef,
		ExpiresAt:   m.ExpiresAt,
	}
}

// IDUploadModelFromDomain creates a new persistence model from a domain IDUpload.
func IDUploadModelFromDomain(u *identity.IDUpload) *IDUploadModel {
	m := &IDUploadModel{
		VolunteerID: u.VolunteerID,
		ArtifactRef: u.ArtifactRef,
		ExpiresAt:   u.ExpiresAt,
	}
	m.FromDomainBaseEntity(u.BaseEntity)
	return m
}

// TombstoneModel is the only row kept for a purged recipient.
// The primary key enforces one tombstone per recipient.
type TombstoneModel struct {
	RecipientID  uuid.UUID   `gorm:"type:uuid;primary_key"`
	VolunteerIDs []uuid.UUID `gorm:"type:text;not null;serializer:json"`
	LastActiveAt time.Time   `gorm:"not null"`
	PurgedAt     time.Time   `gorm:"not null"`
	Trigger      string      `gorm:"type:varchar(20);not null"`
}

// TableName returns the table name for GORM
func (TombstoneModel) TableName() string {
	return "recipient_tombstones"
}

// ToDomain converts the persistence model to a domain Tombstone.
func (m *TombstoneModel) ToDomain() *identity.Tombstone {
	ids := m.VolunteerIDs
	if ids == nil {
		ids = []uuid.UUID{}
	}
	return &identity.Tombstone{
		RecipientID:  m.RecipientID,
		VolunteerIDs: ids,
		LastActiveAt: m.LastActiveAt,
		PurgedAt:     m.PurgedAt,
		Trigger:      identity.PurgeTrigger(m.Trigger),
	}
}

// TombstoneModelFromDomain creates a new persistence model from a domain Tombstone.
func TombstoneModelFromDomain(t *identity.Tombstone) *TombstoneModel {
	ids := t.VolunteerIDs
	if ids == nil {
		ids = []uuid.UUID{}
	}
	return &TombstoneModel{
		RecipientID:  t.RecipientID,
		VolunteerIDs: ids,
		LastActiveAt: t.LastActiveAt,
		PurgedAt:     t.PurgedAt,
		Trigger:      string(t.Trigger),
	}
}
