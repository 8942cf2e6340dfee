package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/groceryshare/backend/internal/domain/delivery"
	"github.com/groceryshare/backend/internal/domain/shared"
	"github.com/groceryshare/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormRatingRepository implements RatingRepository using GORM
type GormRatingRepository struct {
	db *gorm.DB
}

// NewGormRatingRepository creates a new GormRatingRepository
func NewGormRatingRepository(db *gorm.DB) *GormRatingRepository {
	return &GormRatingRepository{db: db}
}

// Create inserts a rating. The unique index on delivery_id backs up the
// service-level duplicate check.
func (r *GormRatingRepository) Create(ctx context.Context, rating *delivery.Rating) error {
	err := r.db.WithContext(ctx).Create(models.RatingModelFromDomain(rating)).Error
	if isUniqueViolation(err) {
		return shared.ErrAlreadyRated
	}
	return err
}

// FindByDelivery returns the rating of a delivery
func (r *GormRatingRepository) FindByDelivery(ctx context.Context, deliveryID uuid.UUID) (*delivery.Rating, error) {
	var model models.RatingModel
	if err := r.db.WithContext(ctx).First(&model, "delivery_id = ?", deliveryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ScoresForVolunteer returns every score the volunteer received
func (r *GormRatingRepository) ScoresForVolunteer(ctx context.Context, volunteerID uuid.UUID) ([]int, error) {
	var scores []int
	err := r.db.WithContext(ctx).
		Model(&models.RatingModel{}).
		Where("volunteer_id = ?", volunteerID).
		Order("created_at ASC").
		Pluck("score", &scores).Error
	return scores, err
}

// Ensure GormRatingRepository implements RatingRepository
var _ delivery.RatingRepository = (*GormRatingRepository)(nil)
