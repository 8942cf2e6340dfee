package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/groceryshare/backend/internal/domain/identity"
	"github.com/groceryshare/backend/internal/domain/shared"
	"github.com/groceryshare/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormIDUploadRepository implements IDUploadRepository using GORM
type GormIDUploadRepository struct {
	db *gorm.DB
}

// NewGormIDUploadRepository creates a new GormIDUploadRepository
func NewGormIDUploadRepository(db *gorm.DB) *GormIDUploadRepository {
	return &GormIDUploadRepository{db: db}
}

// Create inserts a new upload reference
func (r *GormIDUploadRepository) Create(ctx context.Context, upload *identity.IDUpload) error {
	return r.db.WithContext(ctx).Create(models.IDUploadModelFromDomain(upload)).Error
}

// FindExpired returns uploads past their deadline, oldest deadline first
func (r *GormIDUploadRepository) FindExpired(ctx context.Context, now time.Time, limit int) ([]identity.IDUpload, error) {
	var rows []models.IDUploadModel
	if err := r.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toIDUploads(rows), nil
}

// FindByVolunteer returns every upload of a volunteer
func (r *GormIDUploadRepository) FindByVolunteer(ctx context.Context, volunteerID uuid.UUID) ([]identity.IDUpload, error) {
	var rows []models.IDUploadModel
	if err := r.db.WithContext(ctx).
		Where("volunteer_id = ?", volunteerID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toIDUploads(rows), nil
}

// Delete removes an upload reference
func (r *GormIDUploadRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.IDUploadModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func toIDUploads(rows []models.IDUploadModel) []identity.IDUpload {
	out := make([]identity.IDUpload, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

// Ensure GormIDUploadRepository implements IDUploadRepository
var _ identity.IDUploadRepository = (*GormIDUploadRepository)(nil)
