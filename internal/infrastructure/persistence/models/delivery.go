package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/groceryshare/backend/internal/domain/delivery"
	"github.com/groceryshare/backend/internal/domain/identity"
)

// DeliveryRequestModel is the persistence model for the DeliveryRequest aggregate root.
type DeliveryRequestModel struct {
	AggregateModel
	RecipientID        uuid.UUID  `gorm:"type:uuid;not null;index"`
	VolunteerID        *uuid.UUID `gorm:"type:uuid;index"`
	LastVolunteerID    *uuid.UUID `gorm:"type:uuid;index"`
	StoreName          string     `gorm:"type:varchar(255);not null"`
	PickupAddress      string     `gorm:"type:varchar(500);not null"`
	OrderName          string     `gorm:"type:varchar(255);not null"`
	PickupTime         time.Time  `gorm:"not null"`
	EstimatedItems     string     `gorm:"type:varchar(100)"`
	Status             string     `gorm:"type:varchar(20);not null;default:'open';index"`
	Priority           int        `gorm:"not null;default:0"`
	RequeueCount       int        `gorm:"not null;default:0"`
	ClaimedAt          *time.Time
	PickedUpAt         *time.Time
	CompletedAt        *time.Time
	CanceledAt         *time.Time
	CanceledBy         *string `gorm:"type:varchar(20)"`
	CancellationReason string  `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (DeliveryRequestModel) TableName() string {
	return "delivery_requests"
}

// ToDomain converts the persistence model to a domain DeliveryRequest entity.
func (m *DeliveryRequestModel) ToDomain() *delivery.DeliveryRequest {
	r := &delivery.DeliveryRequest{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		RecipientID:       m.RecipientID,
		VolunteerID:       m.VolunteerID,
		LastVolunteerID:   m.LastVolunteerID,
		Pickup: delivery.PickupDetails{
			StoreName:      m.StoreName,
			PickupAddress:  m.PickupAddress,
			OrderName:      m.OrderName,
			PickupTime:     m.PickupTime,
			EstimatedItems: m.EstimatedItems,
		},
		Status:             delivery.Status(m.Status),
		Priority:           m.Priority,
		RequeueCount:       m.RequeueCount,
		ClaimedAt:          m.ClaimedAt,
		PickedUpAt:         m.PickedUpAt,
		CompletedAt:        m.CompletedAt,
		CanceledAt:         m.CanceledAt,
		CancellationReason: m.CancellationReason,
	}
	if m.CanceledBy != nil {
		by := delivery.CancelActor(*m.CanceledBy)
		r.CanceledBy = &by
	}
	return r
}

// FromDomain populates the persistence model from a domain DeliveryRequest entity.
func (m *DeliveryRequestModel) FromDomain(r *delivery.DeliveryRequest) {
	m.FromDomainAggregateRoot(r.BaseAggregateRoot)
	m.RecipientID = r.RecipientID
	m.VolunteerID = r.VolunteerID
	m.LastVolunteerID = r.LastVolunteerID
	m.StoreName = r.Pickup.StoreName
	m.PickupAddress = r.Pickup.PickupAddress
	m.OrderName = r.Pickup.OrderName
	m.PickupTime = r.Pickup.PickupTime
	m.EstimatedItems = r.Pickup.EstimatedItems
	m.Status = r.Status.String()
	m.Priority = r.Priority
	m.RequeueCount = r.RequeueCount
	m.ClaimedAt = r.ClaimedAt
	m.PickedUpAt = r.PickedUpAt
	m.CompletedAt = r.CompletedAt
	m.CanceledAt = r.CanceledAt
	m.CancellationReason = r.CancellationReason
	m.CanceledBy = nil
	if r.CanceledBy != nil {
		by := string(*r.CanceledBy)
		m.CanceledBy = &by
	}
}

// DeliveryRequestModelFromDomain creates a new persistence model from domain entity.
func DeliveryRequestModelFromDomain(r *delivery.DeliveryRequest) *DeliveryRequestModel {
	m := &DeliveryRequestModel{}
	m.FromDomain(r)
	return m
}

// MessageModel is the persistence model for chat messages. ID doubles as the poll cursor.
type MessageModel struct {
	ID           int64     `gorm:"primaryKey;autoIncrement"`
	DeliveryID   uuid.UUID `gorm:"type:uuid;not null;index:idx_messages_delivery_id,priority:1"`
	SenderUserID uuid.UUID `gorm:"type:uuid;not null"`
	SenderRole   string    `gorm:"type:varchar(20);not null"`
	Body         string    `gorm:"type:text;not null"`
	SentAt       time.Time `gorm:"not null"`
	ReadAt       *time.Time
}

// TableName returns the table name for GORM
func (MessageModel) TableName() string {
	return "messages"
}

// ToDomain converts the persistence model to a domain Message.
func (m *MessageModel) ToDomain() *delivery.Message {
	return &delivery.Message{
		ID:           m.ID,
		DeliveryID:   m.DeliveryID,
		SenderUserID: m.SenderUserID,
		SenderRole:   identity.Role(m.SenderRole),
		Body:         m.Body,
		SentAt:       m.SentAt,
		ReadAt:       m.ReadAt,
	}
}

// MessageModelFromDomain creates a new persistence model from a domain Message.
func MessageModelFromDomain(msg *delivery.Message) *MessageModel {
	return &MessageModel{
		ID:           msg.ID,
		DeliveryID:   msg.DeliveryID,
		SenderUserID: msg.SenderUserID,
		SenderRole:   msg.SenderRole.String(),
		Body:         msg.Body,
		SentAt:       msg.SentAt,
		ReadAt:       msg.ReadAt,
	}
}

// RatingModel is the persistence model for ratings. One per delivery.
type RatingModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key"`
	DeliveryID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	VolunteerID uuid.UUID `gorm:"type:uuid;not null;index"`
	RecipientID uuid.UUID `gorm:"type:uuid;not null"`
	Score       int       `gorm:"not null"`
	Comment     string    `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (RatingModel) TableName() string {
	return "ratings"
}

// ToDomain converts the persistence model to a domain Rating.
func (m *RatingModel) ToDomain() *delivery.Rating {
	return &delivery.Rating{
		ID:          m.ID,
		DeliveryID:  m.DeliveryID,
		VolunteerID: m.VolunteerID,
		RecipientID: m.RecipientID,
		Score:       m.Score,
		Comment:     m.Comment,
		CreatedAt:   m.CreatedAt,
	}
}

// RatingModelFromDomain creates a new persistence model from a domain Rating.
func RatingModelFromDomain(r *delivery.Rating) *RatingModel {
	return &RatingModel{
		ID:          r.ID,
		DeliveryID:  r.DeliveryID,
		VolunteerID: r.VolunteerID,
		RecipientID: r.RecipientID,
		Score:       r.Score,
		Comment:     r.Comment,
		CreatedAt:   r.CreatedAt,
	}
}
