package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/groceryshare/backend/internal/domain/identity"
	"github.com/groceryshare/backend/internal/domain/shared"
	"github.com/groceryshare/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormRecipientRepository implements RecipientRepository using GORM
type GormRecipientRepository struct {
	db *gorm.DB
}

// NewGormRecipientRepository creates a new GormRecipientRepository
func NewGormRecipientRepository(db *gorm.DB) *GormRecipientRepository {
	return &GormRecipientRepository{db: db}
}

func (r *GormRecipientRepository) findOne(ctx context.Context, lock bool, query string, args ...any) (*identity.Recipient, error) {
	db := r.db.WithContext(ctx)
	if lock {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var model models.RecipientModel
	if err := db.Where(query, args...).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByID finds a recipient by ID
func (r *GormRecipientRepository) FindByID(ctx context.Context, id uuid.UUID) (*identity.Recipient, error) {
	return r.findOne(ctx, false, "id = ?", id)
}

// FindByIDForUpdate finds a recipient and locks the row
func (r *GormRecipientRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*identity.Recipient, error) {
	return r.findOne(ctx, true, "id = ?", id)
}

// FindByUserID finds the recipient profile of a user
func (r *GormRecipientRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*identity.Recipient, error) {
	return r.findOne(ctx, false, "user_id = ?", userID)
}

// FindByIDs loads several recipients at once
func (r *GormRecipientRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]identity.Recipient, error) {
	if len(ids) == 0 {
		return []identity.Recipient{}, nil
	}
	var rows []models.RecipientModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return toRecipients(rows), nil
}

// FindInactive returns the longest-idle live recipients first, keyset-paged
// on (last_active_at, id)
func (r *GormRecipientRepository) FindInactive(ctx context.Context, cutoff time.Time, after identity.InactiveCursor, limit int) ([]identity.Recipient, error) {
	query := r.db.WithContext(ctx).
		Where("deleted_at IS NULL AND last_active_at < ?", cutoff)
	if !after.IsZero() {
		query = query.Where("last_active_at > ? OR (last_active_at = ? AND id > ?)",
			after.LastActiveAt, after.LastActiveAt, after.ID)
	}
	var rows []models.RecipientModel
	if err := query.
		Order("last_active_at ASC, id ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toRecipients(rows), nil
}

// FindLiveAfter pages through live recipients in ID order
func (r *GormRecipientRepository) FindLiveAfter(ctx context.Context, after uuid.UUID, limit int) ([]identity.Recipient, error) {
	var rows []models.RecipientModel
	if err := r.db.WithContext(ctx).
		Where("deleted_at IS NULL AND id > ?", after).
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toRecipients(rows), nil
}

// Create inserts a new recipient
func (r *GormRecipientRepository) Create(ctx context.Context, recipient *identity.Recipient) error {
	err := r.db.WithContext(ctx).Create(models.RecipientModelFromDomain(recipient)).Error
	if isUniqueViolation(err) {
		return shared.NewDomainError(shared.CodeConflict, "Recipient profile already exists")
	}
	return err
}

// SaveWithLock updates a recipient if its version is unchanged
func (r *GormRecipientRepository) SaveWithLock(ctx context.Context, recipient *identity.Recipient) error {
	model := models.RecipientModelFromDomain(recipient)
	result := r.db.WithContext(ctx).
		Model(&models.RecipientModel{}).
		Where("id = ? AND version = ?", recipient.ID, recipient.Version).
		Updates(map[string]any{
			"display_alias":    model.DisplayAlias,
			"general_area":     model.GeneralArea,
			"approx_latitude":  model.ApproxLatitude,
			"approx_longitude": model.ApproxLongitude,
			"address_cipher":   model.AddressCipher,
			"phone_cipher":     model.PhoneCipher,
			"notes_cipher":     model.NotesCipher,
			"last_active_at":   model.LastActiveAt,
			"deleted_at":       model.DeletedAt,
			"version":          recipient.Version + 1,
			"updated_at":       model.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	recipient.IncrementVersion()
	return nil
}

// TouchActivity moves last_active_at forward. It never moves it back.
func (r *GormRecipientRepository) TouchActivity(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.RecipientModel{}).
		Where("id = ? AND deleted_at IS NULL AND last_active_at < ?", id, at).
		Update("last_active_at", at).Error
}

func toRecipients(rows []models.RecipientModel) []identity.Recipient {
	out := make([]identity.Recipient, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

// Ensure GormRecipientRepository implements RecipientRepository
var _ identity.RecipientRepository = (*GormRecipientRepository)(nil)
