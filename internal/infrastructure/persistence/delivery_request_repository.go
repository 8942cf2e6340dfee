package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/groceryshare/backend/internal/domain/delivery"
	"github.com/groceryshare/backend/internal/domain/shared"
	"github.com/groceryshare/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormDeliveryRequestRepository implements DeliveryRequestRepository using GORM
type GormDeliveryRequestRepository struct {
	db *gorm.DB
}

// NewGormDeliveryRequestRepository creates a new GormDeliveryRequestRepository
func NewGormDeliveryRequestRepository(db *gorm.DB) *GormDeliveryRequestRepository {
	return &GormDeliveryRequestRepository{db: db}
}

// WithTx returns a new repository instance with the given transaction
func (r *GormDeliveryRequestRepository) WithTx(tx *gorm.DB) *GormDeliveryRequestRepository {
	return &GormDeliveryRequestRepository{db: tx}
}

func activeClaimStatuses() []string {
	return []string{delivery.StatusClaimed.String(), delivery.StatusPickedUp.String()}
}

func nonTerminalStatuses() []string {
	out := make([]string, len(delivery.NonTerminalStatuses))
	for i, s := range delivery.NonTerminalStatuses {
		out[i] = s.String()
	}
	return out
}

// FindByID finds a delivery request by ID
func (r *GormDeliveryRequestRepository) FindByID(ctx context.Context, id uuid.UUID) (*delivery.DeliveryRequest, error) {
	var model models.DeliveryRequestModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDForUpdate finds a delivery request and takes a row lock on it
func (r *GormDeliveryRequestRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*delivery.DeliveryRequest, error) {
	var model models.DeliveryRequestModel
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

// Create inserts a new delivery request
func (r *GormDeliveryRequestRepository) Create(ctx context.Context, req *delivery.DeliveryRequest) error {
	model := models.DeliveryRequestModelFromDomain(req)
	return r.db.WithContext(ctx).Create(model).Error
}

// SaveWithLock writes every mutable column if the stored version still
// matches, then advances the in-memory version.
func (r *GormDeliveryRequestRepository) SaveWithLock(ctx context.Context, req *delivery.DeliveryRequest) error {
	model := models.DeliveryRequestModelFromDomain(req)
	result := r.db.WithContext(ctx).
		Model(&models.DeliveryRequestModel{}).
		Where("id = ? AND version = ?", req.ID, req.Version).
		Updates(map[string]any{
			"volunteer_id":        model.VolunteerID,
			"last_volunteer_id":   model.LastVolunteerID,
			"status":              model.Status,
			"priority":            model.Priority,
			"requeue_count":       model.RequeueCount,
			"claimed_at":          model.ClaimedAt,
			"picked_up_at":        model.PickedUpAt,
			"completed_at":        model.CompletedAt,
			"canceled_at":         model.CanceledAt,
			"canceled_by":         model.CanceledBy,
			"cancellation_reason": model.CancellationReason,
			"version":             req.Version + 1,
			"updated_at":          model.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	req.IncrementVersion()
	return nil
}

// ClaimIfOpen is the compare-and-set at the heart of claiming: the update
// only applies while the row is still open at the expected version.
func (r *GormDeliveryRequestRepository) ClaimIfOpen(ctx context.Context, req *delivery.DeliveryRequest, expectedVersion int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.DeliveryRequestModel{}).
		Where("id = ? AND status = ? AND version = ?", req.ID, delivery.StatusOpen.String(), expectedVersion).
		Updates(map[string]any{
			"status":            req.Status.String(),
			"volunteer_id":      req.VolunteerID,
			"last_volunteer_id": req.LastVolunteerID,
			"claimed_at":        req.ClaimedAt,
			"picked_up_at":      nil,
			"version":           expectedVersion + 1,
			"updated_at":        req.UpdatedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}
	req.Version = expectedVersion + 1
	return true, nil
}

// CountActiveClaims counts requests the volunteer currently holds
func (r *GormDeliveryRequestRepository) CountActiveClaims(ctx context.Context, volunteerID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.DeliveryRequestModel{}).
		Where("volunteer_id = ? AND status IN ?", volunteerID, activeClaimStatuses()).
		Count(&count).Error
	return count, err
}

// CountCompletedByVolunteer counts deliveries the volunteer completed
func (r *GormDeliveryRequestRepository) CountCompletedByVolunteer(ctx context.Context, volunteerID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.DeliveryRequestModel{}).
		Where("last_volunteer_id = ? AND status = ?", volunteerID, delivery.StatusCompleted.String()).
		Count(&count).Error
	return count, err
}

// FindOpenPool lists open requests by priority desc, then creation time asc
func (r *GormDeliveryRequestRepository) FindOpenPool(ctx context.Context, filter delivery.PoolFilter) ([]delivery.DeliveryRequest, int64, error) {
	f := filter.Filter.Normalize()
	query := r.db.WithContext(ctx).
		Model(&models.DeliveryRequestModel{}).
		Where("delivery_requests.status = ?", delivery.StatusOpen.String())
	if filter.Area != "" {
		query = query.
			Joins("JOIN recipients ON recipients.id = delivery_requests.recipient_id").
			Where("recipients.general_area = ?", filter.Area)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.DeliveryRequestModel
	if err := query.
		Select("delivery_requests.*").
		Order("delivery_requests.priority DESC").
		Order("delivery_requests.created_at ASC").
		Order("delivery_requests.id ASC").
		Offset(f.Offset()).
		Limit(f.PageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return toDeliveryRequests(rows), total, nil
}

// FindByRecipient lists a recipient's requests, newest first
func (r *GormDeliveryRequestRepository) FindByRecipient(ctx context.Context, recipientID uuid.UUID, filter shared.Filter) ([]delivery.DeliveryRequest, int64, error) {
	f := filter.Normalize()
	query := r.db.WithContext(ctx).
		Model(&models.DeliveryRequestModel{}).
		Where("recipient_id = ?", recipientID).
		Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.DeliveryRequestModel
	if err := query.
		Order("created_at DESC").
		Offset(f.Offset()).
		Limit(f.PageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return toDeliveryRequests(rows), total, nil
}

// FindActiveByVolunteer lists the volunteer's current claims
func (r *GormDeliveryRequestRepository) FindActiveByVolunteer(ctx context.Context, volunteerID uuid.UUID) ([]delivery.DeliveryRequest, error) {
	var rows []models.DeliveryRequestModel
	if err := r.db.WithContext(ctx).
		Where("volunteer_id = ? AND status IN ?", volunteerID, activeClaimStatuses()).
		Order("claimed_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDeliveryRequests(rows), nil
}

// FindNonTerminalByRecipient lists every request of the recipient that can still move
func (r *GormDeliveryRequestRepository) FindNonTerminalByRecipient(ctx context.Context, recipientID uuid.UUID) ([]delivery.DeliveryRequest, error) {
	var rows []models.DeliveryRequestModel
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("recipient_id = ? AND status IN ?", recipientID, nonTerminalStatuses()).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDeliveryRequests(rows), nil
}

// DistinctVolunteersByRecipient returns every recorded last holder across the recipient's requests
func (r *GormDeliveryRequestRepository) DistinctVolunteersByRecipient(ctx context.Context, recipientID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.DeliveryRequestModel{}).
		Where("recipient_id = ? AND last_volunteer_id IS NOT NULL", recipientID).
		Distinct().
		Pluck("last_volunteer_id", &ids).Error
	return ids, err
}

func toDeliveryRequests(rows []models.DeliveryRequestModel) []delivery.DeliveryRequest {
	out := make([]delivery.DeliveryRequest, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

// Ensure GormDeliveryRequestRepository implements DeliveryRequestRepository
var _ delivery.DeliveryRequestRepository = (*GormDeliveryRequestRepository)(nil)
