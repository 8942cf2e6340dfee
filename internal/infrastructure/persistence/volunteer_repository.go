package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/groceryshare/backend/internal/domain/identity"
	"github.com/groceryshare/backend/internal/domain/shared"
	"github.com/groceryshare/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormVolunteerRepository implements VolunteerRepository using GORM
type GormVolunteerRepository struct {
	db *gorm.DB
}

// NewGormVolunteerRepository creates a new GormVolunteerRepository
func NewGormVolunteerRepository(db *gorm.DB) *GormVolunteerRepository {
	return &GormVolunteerRepository{db: db}
}

// FindByID finds a volunteer by ID
func (r *GormVolunteerRepository) FindByID(ctx context.Context, id uuid.UUID) (*identity.Volunteer, error) {
	var model models.VolunteerModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDForUpdate finds a volunteer and locks the row. Concurrent claims by
// the same volunteer queue up here, which keeps the active-claim cap exact.
func (r *GormVolunteerRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*identity.Volunteer, error) {
	var model models.VolunteerModel
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByUserID finds the volunteer profile of a user
func (r *GormVolunteerRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*identity.Volunteer, error) {
	var model models.VolunteerModel
	if err := r.db.WithContext(ctx).First(&model, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByStatus lists volunteers in a vetting status, oldest first
func (r *GormVolunteerRepository) FindByStatus(ctx context.Context, status identity.VettingStatus, filter shared.Filter) ([]identity.Volunteer, int64, error) {
	f := filter.Normalize()
	query := r.db.WithContext(ctx).
		Model(&models.VolunteerModel{}).
		Where("status = ?", status.String()).
		Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.VolunteerModel
	if err := query.Order("created_at ASC").Offset(f.Offset()).Limit(f.PageSize).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	out := make([]identity.Volunteer, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, total, nil
}

// Create inserts a new volunteer
func (r *GormVolunteerRepository) Create(ctx context.Context, volunteer *identity.Volunteer) error {
	err := r.db.WithContext(ctx).Create(models.VolunteerModelFromDomain(volunteer)).Error
	if isUniqueViolation(err) {
		return shared.NewDomainError(shared.CodeConflict, "Volunteer profile already exists")
	}
	return err
}

// SaveWithLock updates a volunteer if its version is unchanged
func (r *GormVolunteerRepository) SaveWithLock(ctx context.Context, volunteer *identity.Volunteer) error {
	model := models.VolunteerModelFromDomain(volunteer)
	result := r.db.WithContext(ctx).
		Model(&models.VolunteerModel{}).
		Where("id = ? AND version = ?", volunteer.ID, volunteer.Version).
		Updates(map[string]any{
			"full_name":          model.FullName,
			"photo_ref":          model.PhotoRef,
			"service_area":       model.ServiceArea,
			"availability_notes": model.AvailabilityNotes,
			"status":             model.Status,
			"reviewed_by":        model.ReviewedBy,
			"reviewed_at":        model.ReviewedAt,
			"status_reason":      model.StatusReason,
			"total_deliveries":   model.TotalDeliveries,
			"rating_count":       model.RatingCount,
			"average_rating":     model.AverageRating,
			"version":            volunteer.Version + 1,
			"updated_at":         model.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	volunteer.IncrementVersion()
	return nil
}

// Ensure GormVolunteerRepository implements VolunteerRepository
var _ identity.VolunteerRepository = (*GormVolunteerRepository)(nil)
