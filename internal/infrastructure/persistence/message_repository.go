package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/groceryshare/backend/internal/domain/delivery"
	"github.com/groceryshare/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormMessageRepository implements MessageRepository using GORM
type GormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository creates a new GormMessageRepository
func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

// Create inserts a message and copies the generated ID back
func (r *GormMessageRepository) Create(ctx context.Context, msg *delivery.Message) error {
	model := models.MessageModelFromDomain(msg)
	model.ID = 0
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	msg.ID = model.ID
	return nil
}

// ListAfter returns up to limit messages with an ID above afterID, oldest first
func (r *GormMessageRepository) ListAfter(ctx context.Context, deliveryID uuid.UUID, afterID int64, limit int) ([]delivery.Message, error) {
	var rows []models.MessageModel
	if err := r.db.WithContext(ctx).
		Where("delivery_id = ? AND id > ?", deliveryID, afterID).
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]delivery.Message, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// MarkRead stamps unread messages from the other party up to and including uptoID
func (r *GormMessageRepository) MarkRead(ctx context.Context, deliveryID, readerID uuid.UUID, uptoID int64) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.MessageModel{}).
		Where("delivery_id = ? AND sender_user_id <> ? AND id <= ? AND read_at IS NULL", deliveryID, readerID, uptoID).
		Update("read_at", time.Now().UTC())
	return result.RowsAffected, result.Error
}

// CountUnread counts unread messages from the other party
func (r *GormMessageRepository) CountUnread(ctx context.Context, deliveryID, readerID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.MessageModel{}).
		Where("delivery_id = ? AND sender_user_id <> ? AND read_at IS NULL", deliveryID, readerID).
		Count(&count).Error
	return count, err
}

// DeleteByRecipient removes every message on the recipient's requests
func (r *GormMessageRepository) DeleteByRecipient(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	requestIDs := r.db.Model(&models.DeliveryRequestModel{}).Select("id").Where("recipient_id = ?", recipientID)
	result := r.db.WithContext(ctx).
		Where("delivery_id IN (?)", requestIDs).
		Delete(&models.MessageModel{})
	return result.RowsAffected, result.Error
}

// Ensure GormMessageRepository implements MessageRepository
var _ delivery.MessageRepository = (*GormMessageRepository)(nil)
