package persistence

import (
	"context"

	"github.com/groceryshare/backend/internal/application/transaction"
	"github.com/groceryshare/backend/internal/domain/audit"
	"github.com/groceryshare/backend/internal/domain/delivery"
	"github.com/groceryshare/backend/internal/domain/identity"
	"gorm.io/gorm"
)

// GormTransactionScope implements transaction.Scope using GORM transactions.
// It provides atomic execution of multiple repository operations.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
// If the function succeeds, the transaction is committed.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos transaction.Repositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

// gormTransactionalRepositories provides access to all repositories within a transaction.
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

func (r *gormTransactionalRepositories) Deliveries() delivery.DeliveryRequestRepository {
	return NewGormDeliveryRequestRepository(r.tx)
}

func (r *gormTransactionalRepositories) Messages() delivery.MessageRepository {
	return NewGormMessageRepository(r.tx)
}

func (r *gormTransactionalRepositories) Ratings() delivery.RatingRepository {
	return NewGormRatingRepository(r.tx)
}

func (r *gormTransactionalRepositories) Recipients() identity.RecipientRepository {
	return NewGormRecipientRepository(r.tx)
}

func (r *gormTransactionalRepositories) Volunteers() identity.VolunteerRepository {
	return NewGormVolunteerRepository(r.tx)
}

func (r *gormTransactionalRepositories) Uploads() identity.IDUploadRepository {
	return NewGormIDUploadRepository(r.tx)
}

func (r *gormTransactionalRepositories) Tombstones() identity.TombstoneRepository {
	return NewGormTombstoneRepository(r.tx)
}

func (r *gormTransactionalRepositories) Audit() audit.Repository {
	return NewGormAuditRepository(r.tx)
}

// NewRepositories returns repositories bound to db outside any transaction
func NewRepositories(db *gorm.DB) transaction.Repositories {
	return &gormTransactionalRepositories{tx: db}
}

// Ensure GormTransactionScope implements Scope
var _ transaction.Scope = (*GormTransactionScope)(nil)

// Ensure gormTransactionalRepositories implements Repositories
var _ transaction.Repositories = (*gormTransactionalRepositories)(nil)
