package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/groceryshare/backend/internal/domain/identity"
	"github.com/groceryshare/backend/internal/domain/shared"
	"github.com/groceryshare/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormTombstoneRepository implements TombstoneRepository using GORM.
// It has no update or delete.
type GormTombstoneRepository struct {
	db *gorm.DB
}

// NewGormTombstoneRepository creates a new GormTombstoneRepository
func NewGormTombstoneRepository(db *gorm.DB) *GormTombstoneRepository {
	return &GormTombstoneRepository{db: db}
}

// Create inserts a tombstone. A second one for the same recipient is a data integrity violation.
func (r *GormTombstoneRepository) Create(ctx context.Context, tombstone *identity.Tombstone) error {
	err := r.db.WithContext(ctx).Create(models.TombstoneModelFromDomain(tombstone)).Error
	if isUniqueViolation(err) {
		return shared.NewDomainError(shared.CodeDataIntegrityViolated,
			fmt.Sprintf("Tombstone already exists for recipient %s", tombstone.RecipientID))
	}
	return err
}

// FindByRecipientID returns the tombstone of a purged recipient
func (r *GormTombstoneRepository) FindByRecipientID(ctx context.Context, recipientID uuid.UUID) (*identity.Tombstone, error) {
	var model models.TombstoneModel
	if err := r.db.WithContext(ctx).First(&model, "recipient_id = ?", recipientID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByVolunteer returns every tombstone that lists the volunteer
func (r *GormTombstoneRepository) FindByVolunteer(ctx context.Context, volunteerID uuid.UUID) ([]identity.Tombstone, error) {
	var rows []models.TombstoneModel
	if err := r.db.WithContext(ctx).
		Where("volunteer_ids LIKE ?", "%"+volunteerID.String()+"%").
		Order("purged_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]identity.Tombstone, 0, len(rows))
	for i := range rows {
		t := rows[i].ToDomain()
		if t.HadAccess(volunteerID) {
			out = append(out, *t)
		}
	}
	return out, nil
}

// Ensure GormTombstoneRepository implements TombstoneRepository
var _ identity.TombstoneRepository = (*GormTombstoneRepository)(nil)
