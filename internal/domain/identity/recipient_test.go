package identity

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/groceryshare/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestRecipient(t *testing.T) *Recipient {
	sealed, err := SealContact(prefixCipher{}, Contact{Address: "12 Oak Street", Phone: "555-0100"})
	require.NoError(t, err)
	r, err := NewRecipient(uuid.New(), " J. ", "Northside", sealed)
	require.NoError(t, err)
	return r
}

func TestNewRecipient(t *testing.T) {
	r := createTestRecipient(t)
	assert.Equal(t, "J.", r.DisplayAlias)
	assert.False(t, r.IsDeleted())
	assert.Equal(t, r.CreatedAt, r.LastActiveAt)
	require.Len(t, r.GetDomainEvents(), 1)
	assert.Equal(t, EventTypeRecipientRegistered, r.GetDomainEvents()[0].EventType())
}

func TestNewRecipient_Validation(t *testing.T) {
	_, err := NewRecipient(uuid.Nil, "J", "", SealedContact{Address: "x"})
	assert.Error(t, err)
	_, err = NewRecipient(uuid.New(), " ", "", SealedContact{Address: "x"})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
	_, err = NewRecipient(uuid.New(), "J", "", SealedContact{Address: PurgeMarker})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestRecipient_Purge(t *testing.T) {
	r := createTestRecipient(t)
	loc, err := NewApproxLocation(51.5072, -0.1276)
	require.NoError(t, err)
	r.SetLocation(loc)

	now := time.Now()
	require.NoError(t, r.Purge(PurgeTriggerDeleted, now))

	assert.True(t, r.IsDeleted())
	assert.Equal(t, PurgeMarker, r.Sealed.Address)
	assert.Nil(t, r.Sealed.Phone)
	assert.Nil(t, r.Sealed.Notes)
	assert.Nil(t, r.Location)

	err = r.Purge(PurgeTriggerInactive, now)
	assert.ErrorIs(t, err, shared.ErrInvalidState)

	err = r.ReplaceContact(SealedContact{Address: "enc"}, now)
	assert.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestRecipient_Inactivity(t *testing.T) {
	r := createTestRecipient(t)
	now := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	r.LastActiveAt = now.AddDate(0, -19, 0)

	cutoff := InactivityCutoff(now, 18)
	assert.Equal(t, now.AddDate(0, 0, -540), cutoff)
	assert.True(t, r.IsInactiveSince(cutoff))

	r.RecordActivity(now)
	assert.False(t, r.IsInactiveSince(cutoff))

	r.RecordActivity(now.Add(-time.Hour))
	assert.Equal(t, now, r.LastActiveAt)
}

func TestNewApproxLocation(t *testing.T) {
	loc, err := NewApproxLocation(51.50722, -0.12758)
	require.NoError(t, err)
	assert.Equal(t, "51.51", loc.Latitude.String())
	assert.Equal(t, "-0.13", loc.Longitude.String())

	_, err = NewApproxLocation(91, 0)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}
