package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/groceryshare/backend/internal/domain/audit"
	"github.com/groceryshare/backend/internal/domain/shared"
	"github.com/groceryshare/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormAuditRepository implements audit.Repository using GORM. Entries are
// only ever inserted.
type GormAuditRepository struct {
	db *gorm.DB
}

// NewGormAuditRepository creates a new GormAuditRepository
func NewGormAuditRepository(db *gorm.DB) *GormAuditRepository {
	return &GormAuditRepository{db: db}
}

// Append inserts the entry and copies the generated sequence number back
func (r *GormAuditRepository) Append(ctx context.Context, entry *audit.Entry) error {
	model := models.AuditEntryModelFromDomain(entry)
	model.Seq = 0
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	entry.Seq = model.Seq
	return nil
}

// ListByDelivery returns a request's entries in commit order
func (r *GormAuditRepository) ListByDelivery(ctx context.Context, deliveryID uuid.UUID) ([]audit.Entry, error) {
	var rows []models.AuditEntryModel
	if err := r.db.WithContext(ctx).
		Where("delivery_id = ?", deliveryID).
		Order("seq ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toAuditEntries(rows), nil
}

// ListByRecipient pages through a recipient's entries, newest first
func (r *GormAuditRepository) ListByRecipient(ctx context.Context, recipientID uuid.UUID, filter shared.Filter) ([]audit.Entry, int64, error) {
	return r.page(ctx, filter, "recipient_id = ?", recipientID)
}

// ListByVolunteer pages through a volunteer's entries, newest first
func (r *GormAuditRepository) ListByVolunteer(ctx context.Context, volunteerID uuid.UUID, filter shared.Filter) ([]audit.Entry, int64, error) {
	return r.page(ctx, filter, "volunteer_id = ?", volunteerID)
}

// ListRecent pages through entries created since the given time, newest first
func (r *GormAuditRepository) ListRecent(ctx context.Context, since time.Time, filter shared.Filter) ([]audit.Entry, int64, error) {
	return r.page(ctx, filter, "created_at >= ?", since)
}

func (r *GormAuditRepository) page(ctx context.Context, filter shared.Filter, where string, args ...any) ([]audit.Entry, int64, error) {
	f := filter.Normalize()
	query := r.db.WithContext(ctx).
		Model(&models.AuditEntryModel{}).
		Where(where, args...).
		Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.AuditEntryModel
	if err := query.Order("seq DESC").Offset(f.Offset()).Limit(f.PageSize).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return toAuditEntries(rows), total, nil
}

// DistinctClaimVolunteers returns every volunteer with a recorded claim on one
// of the recipient's requests
func (r *GormAuditRepository) DistinctClaimVolunteers(ctx context.Context, recipientID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.AuditEntryModel{}).
		Where("recipient_id = ? AND action = ? AND volunteer_id IS NOT NULL", recipientID, audit.ActionDeliveryClaimed.String()).
		Distinct().
		Pluck("volunteer_id", &ids).Error
	return ids, err
}

func toAuditEntries(rows []models.AuditEntryModel) []audit.Entry {
	out := make([]audit.Entry, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

// Ensure GormAuditRepository implements audit.Repository
var _ audit.Repository = (*GormAuditRepository)(nil)
