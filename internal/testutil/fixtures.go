package testutil

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/groceryshare/backend/internal/domain/delivery"
	"github.com/groceryshare/backend/internal/domain/identity"
	"github.com/groceryshare/backend/internal/infrastructure/crypto"
	"github.com/stretchr/testify/require"
)

// Plaintext contact used by seeded recipients. Tests scan audit metadata
// and logs for these values.
const (
	SeedAddress = "42 Wallaby Way, Flat 3"
	SeedPhone   = "+1 555 867 5309"
	SeedNotes   = "Ring twice, side door"
)

// NewCipher returns an encryption gateway with a fixed key derived from seed
func NewCipher(t *testing.T, keyID string, seed byte) *crypto.Gateway {
	t.Helper()
	g, err := crypto.NewGateway(keyID, bytes.Repeat([]byte{seed}, 32))
	require.NoError(t, err)
	return g
}

// SeedContact returns the plaintext contact used by SeedRecipient
func SeedContact() identity.Contact {
	return identity.Contact{Address: SeedAddress, Phone: SeedPhone, Notes: SeedNotes}
}

// SeedRecipient stores a recipient whose contact is sealed with cipher
func (tdb *TestDB) SeedRecipient(t *testing.T, cipher identity.ContactCipher, area string) *identity.Recipient {
	t.Helper()
	sealed, err := identity.SealContact(cipher, SeedContact())
	require.NoError(t, err)
	r, err := identity.NewRecipient(uuid.New(), "J.", area, sealed)
	require.NoError(t, err)
	r.ClearDomainEvents()
	require.NoError(t, tdb.Repos().Recipients().Create(context.Background(), r))
	return r
}

// SeedVolunteer stores a volunteer with the given vetting status
func (tdb *TestDB) SeedVolunteer(t *testing.T, status identity.VettingStatus) *identity.Volunteer {
	t.Helper()
	v, err := identity.NewVolunteer(uuid.New(), "Sam Helper", "photos/sam.jpg", "North", "evenings", true)
	require.NoError(t, err)
	now := time.Now().UTC()
	admin := uuid.New()
	switch status {
	case identity.VettingApproved:
		require.NoError(t, v.Approve(admin, now))
	case identity.VettingRejected:
		require.NoError(t, v.Reject(admin, "incomplete", now))
	case identity.VettingSuspended:
		require.NoError(t, v.Approve(admin, now))
		require.NoError(t, v.Suspend(admin, "complaint", now))
	}
	v.ClearDomainEvents()
	require.NoError(t, tdb.Repos().Volunteers().Create(context.Background(), v))
	return v
}

// SeedRequest stores an open request for the recipient
func (tdb *TestDB) SeedRequest(t *testing.T, recipientID uuid.UUID) *delivery.DeliveryRequest {
	t.Helper()
	req, err := delivery.NewDeliveryRequest(recipientID, delivery.PickupDetails{
		StoreName:      "Corner Market",
		PickupAddress:  "1 Market Square",
		OrderName:      "Order 7",
		PickupTime:     time.Now().UTC().Add(2 * time.Hour),
		EstimatedItems: "2 bags",
	})
	require.NoError(t, err)
	req.ClearDomainEvents()
	require.NoError(t, tdb.Repos().Deliveries().Create(context.Background(), req))
	return req
}

// RecipientActor returns the actor for a seeded recipient
func RecipientActor(r *identity.Recipient) identity.Actor {
	return identity.NewRecipientActor(r.UserID, r.ID)
}

// VolunteerActor returns the actor for a seeded volunteer
func VolunteerActor(v *identity.Volunteer) identity.Actor {
	return identity.NewVolunteerActor(v.UserID, v.ID)
}

// AdminActor returns an admin actor with a fresh user ID
func AdminActor() identity.Actor {
	return identity.NewAdminActor(uuid.New())
}
