package identity

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/groceryshare/backend/internal/domain/shared"
)

// InactiveCursor is a keyset position in the inactive sweep. The zero value
// starts from the longest-idle recipient.
type InactiveCursor struct {
	LastActiveAt time.Time
	ID           uuid.UUID
}

// IsZero reports whether the cursor points at the start
func (c InactiveCursor) IsZero() bool {
	return c.ID == uuid.Nil
}

// CursorOf returns the cursor positioned at r
func CursorOf(r *Recipient) InactiveCursor {
	return InactiveCursor{LastActiveAt: r.LastActiveAt, ID: r.ID}
}

// RecipientRepository persists Recipient aggregates
type RecipientRepository interface {
	// FindByID finds a recipient by ID, including soft-deleted ones
	FindByID(ctx context.Context, id uuid.UUID) (*Recipient, error)

	// FindByIDForUpdate finds a recipient and locks its row for the rest of the transaction
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Recipient, error)

	// FindByUserID finds the recipient profile of a user
	FindByUserID(ctx context.Context, userID uuid.UUID) (*Recipient, error)

	// FindByIDs loads several recipients at once; missing IDs are skipped
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]Recipient, error)

	// FindInactive returns up to limit non-deleted recipients idle since before
	// cutoff, ordered by (last_active_at, id) and strictly after the cursor
	FindInactive(ctx context.Context, cutoff time.Time, after InactiveCursor, limit int) ([]Recipient, error)

	// FindLiveAfter pages through non-deleted recipients ordered by ID, starting after the given ID
	FindLiveAfter(ctx context.Context, after uuid.UUID, limit int) ([]Recipient, error)

	// Create inserts a new recipient
	Create(ctx context.Context, recipient *Recipient) error

	// SaveWithLock updates a recipient using optimistic locking.
	// Returns ErrConcurrencyConflict if the stored version differs.
	SaveWithLock(ctx context.Context, recipient *Recipient) error

	// TouchActivity moves last_active_at forward without bumping the version
	TouchActivity(ctx context.Context, id uuid.UUID, at time.Time) error
}

// VolunteerRepository persists Volunteer aggregates
type VolunteerRepository interface {
	// FindByID finds a volunteer by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Volunteer, error)

	// FindByIDForUpdate finds a volunteer and locks its row for the rest of the
	// transaction. Claims use this lock to serialise per-volunteer cap checks.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Volunteer, error)

	// FindByUserID finds the volunteer profile of a user
	FindByUserID(ctx context.Context, userID uuid.UUID) (*Volunteer, error)

	// FindByStatus lists volunteers with the given vetting status, oldest first
	FindByStatus(ctx context.Context, status VettingStatus, filter shared.Filter) ([]Volunteer, int64, error)

	// Create inserts a new volunteer
	Create(ctx context.Context, volunteer *Volunteer) error

	// SaveWithLock updates a volunteer using optimistic locking
	SaveWithLock(ctx context.Context, volunteer *Volunteer) error
}

// IDUploadRepository persists ID-verification artifact references
type IDUploadRepository interface {
	// Create inserts a new upload reference
	Create(ctx context.Context, upload *IDUpload) error

	// FindExpired returns up to limit uploads whose deadline is at or before now
	FindExpired(ctx context.Context, now time.Time, limit int) ([]IDUpload, error)

	// FindByVolunteer returns every upload of a volunteer
	FindByVolunteer(ctx context.Context, volunteerID uuid.UUID) ([]IDUpload, error)

	// Delete removes an upload reference
	Delete(ctx context.Context, id uuid.UUID) error
}

// TombstoneRepository persists tombstones. There is no update or delete.
type TombstoneRepository interface {
	// Create inserts a tombstone. A second tombstone for the same recipient
	// fails with a data integrity violation.
	Create(ctx context.Context, tombstone *Tombstone) error

	// FindByRecipientID returns the tombstone for a purged recipient
	FindByRecipientID(ctx context.Context, recipientID uuid.UUID) (*Tombstone, error)

	// FindByVolunteer returns every tombstone listing the volunteer
	FindByVolunteer(ctx context.Context, volunteerID uuid.UUID) ([]Tombstone, error)
}
