package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/groceryshare/backend/internal/domain/delivery"
	"github.com/groceryshare/backend/internal/domain/shared"
	"github.com/groceryshare/backend/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormDeliveryRequestRepository_CreateAndFind(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormDeliveryRequestRepository(db)
	ctx := context.Background()

	recipient := seedRecipient(t, db, "North")
	req := seedRequest(t, db, recipient.ID)

	found, err := repo.FindByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, delivery.StatusOpen, found.Status)
	assert.Equal(t, "Corner Market", found.Pickup.StoreName)
	assert.Equal(t, 1, found.Version)
	assert.Nil(t, found.VolunteerID)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormDeliveryRequestRepository_ClaimIfOpen(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormDeliveryRequestRepository(db)
	ctx := context.Background()

	recipient := seedRecipient(t, db, "North")
	req := seedRequest(t, db, recipient.ID)
	v1, v2 := seedVolunteer(t, db), seedVolunteer(t, db)

	first, err := repo.FindByID(ctx, req.ID)
	require.NoError(t, err)
	second, err := repo.FindByID(ctx, req.ID)
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, first.Claim(v1.ID, now))
	require.NoError(t, second.Claim(v2.ID, now))

	won, err := repo.ClaimIfOpen(ctx, first, 1)
	require.NoError(t, err)
	assert.True(t, won)
	assert.Equal(t, 2, first.Version)

	won, err = repo.ClaimIfOpen(ctx, second, 1)
	require.NoError(t, err)
	assert.False(t, won, "second claim must lose the compare-and-set")

	stored, err := repo.FindByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, delivery.StatusClaimed, stored.Status)
	require.NotNil(t, stored.VolunteerID)
	assert.Equal(t, v1.ID, *stored.VolunteerID)

	count, err := repo.CountActiveClaims(ctx, v1.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	count, err = repo.CountActiveClaims(ctx, v2.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestGormDeliveryRequestRepository_SaveWithLock(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormDeliveryRequestRepository(db)
	ctx := context.Background()

	recipient := seedRecipient(t, db, "North")
	req := seedRequest(t, db, recipient.ID)
	volunteer := seedVolunteer(t, db)

	loaded, err := repo.FindByID(ctx, req.ID)
	require.NoError(t, err)
	require.NoError(t, loaded.Claim(volunteer.ID, time.Now().UTC()))
	require.NoError(t, repo.SaveWithLock(ctx, loaded))
	assert.Equal(t, 2, loaded.Version)

	stale, err := repo.FindByID(ctx, req.ID)
	require.NoError(t, err)
	stale.Version = 1
	require.NoError(t, stale.MarkPickedUp(volunteer.ID, time.Now().UTC()))
	err = repo.SaveWithLock(ctx, stale)
	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
}

func TestGormDeliveryRequestRepository_FindOpenPool(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormDeliveryRequestRepository(db)
	ctx := context.Background()

	north := seedRecipient(t, db, "North")
	south := seedRecipient(t, db, "South")

	older := seedRequest(t, db, north.ID)
	newer := seedRequest(t, db, south.ID)
	bumped := seedRequest(t, db, north.ID)
	require.NoError(t, db.Model(&models.DeliveryRequestModel{}).
		Where("id = ?", bumped.ID).Update("priority", 3).Error)
	require.NoError(t, db.Model(&models.DeliveryRequestModel{}).
		Where("id = ?", older.ID).Update("created_at", time.Now().UTC().Add(-time.Hour)).Error)

	claimed := seedRequest(t, db, north.ID)
	volunteer := seedVolunteer(t, db)
	require.NoError(t, claimed.Claim(volunteer.ID, time.Now().UTC()))
	_, err := repo.ClaimIfOpen(ctx, claimed, 1)
	require.NoError(t, err)

	t.Run("priority then age", func(t *testing.T) {
		reqs, total, err := repo.FindOpenPool(ctx, delivery.PoolFilter{Filter: shared.DefaultFilter()})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		require.Len(t, reqs, 3)
		assert.Equal(t, bumped.ID, reqs[0].ID)
		assert.Equal(t, older.ID, reqs[1].ID)
		assert.Equal(t, newer.ID, reqs[2].ID)
	})

	t.Run("area filter", func(t *testing.T) {
		reqs, total, err := repo.FindOpenPool(ctx, delivery.PoolFilter{Filter: shared.DefaultFilter(), Area: "South"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, reqs, 1)
		assert.Equal(t, newer.ID, reqs[0].ID)
	})

	t.Run("paging", func(t *testing.T) {
		reqs, total, err := repo.FindOpenPool(ctx, delivery.PoolFilter{Filter: shared.Filter{Page: 2, PageSize: 2}})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		require.Len(t, reqs, 1)
		assert.Equal(t, newer.ID, reqs[0].ID)
	})
}

func TestGormDeliveryRequestRepository_RecipientQueries(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormDeliveryRequestRepository(db)
	ctx := context.Background()

	recipient := seedRecipient(t, db, "North")
	volunteer := seedVolunteer(t, db)
	open := seedRequest(t, db, recipient.ID)
	done := seedRequest(t, db, recipient.ID)

	require.NoError(t, done.Claim(volunteer.ID, time.Now().UTC()))
	require.NoError(t, repo.SaveWithLock(ctx, done))
	require.NoError(t, done.Complete(recipient.ID, time.Now().UTC()))
	require.NoError(t, repo.SaveWithLock(ctx, done))

	live, err := repo.FindNonTerminalByRecipient(ctx, recipient.ID)
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, open.ID, live[0].ID)

	all, total, err := repo.FindByRecipient(ctx, recipient.ID, shared.DefaultFilter())
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, all, 2)

	completed, err := repo.CountCompletedByVolunteer(ctx, volunteer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), completed)

	ids, err := repo.DistinctVolunteersByRecipient(ctx, recipient.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{volunteer.ID}, ids)
}
