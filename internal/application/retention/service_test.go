package retention

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	appaudit "github.com/groceryshare/backend/internal/application/audit"
	appdelivery "github.com/groceryshare/backend/internal/application/delivery"
	"github.com/groceryshare/backend/internal/domain/audit"
	"github.com/groceryshare/backend/internal/domain/delivery"
	"github.com/groceryshare/backend/internal/domain/identity"
	"github.com/groceryshare/backend/internal/domain/shared"
	"github.com/groceryshare/backend/internal/infrastructure/cache"
	"github.com/groceryshare/backend/internal/infrastructure/crypto"
	"github.com/groceryshare/backend/internal/infrastructure/persistence/models"
	"github.com/groceryshare/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu      sync.Mutex
	deleted []string
	failing map[string]bool
}

func (s *fakeStore) Delete(_ context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing[ref] {
		return errors.New("storage unavailable")
	}
	s.deleted = append(s.deleted, ref)
	return nil
}

type sweepCall struct {
	job      string
	affected int
	err      error
}

type fakeMetrics struct {
	mu    sync.Mutex
	calls []sweepCall
}

func (m *fakeMetrics) Swept(_ context.Context, job string, affected int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, sweepCall{job, affected, err})
}

type fixture struct {
	tdb       *testutil.TestDB
	cipher    *crypto.Gateway
	claims    *appdelivery.ClaimService
	service   *Service
	store     *fakeStore
	lock      *cache.InMemoryMaintenanceLock
	metrics   *fakeMetrics
	publisher *testutil.RecordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tdb := testutil.NewTestDB(t)
	recorder := appaudit.NewRecorder(nil)
	f := &fixture{
		tdb:       tdb,
		cipher:    testutil.NewCipher(t, "k1", 1),
		claims:    appdelivery.NewClaimService(tdb.Scope, recorder, appdelivery.DefaultPolicy(), nil),
		store:     &fakeStore{failing: map[string]bool{}},
		lock:      cache.NewInMemoryMaintenanceLock(),
		metrics:   &fakeMetrics{},
		publisher: testutil.NewRecordingPublisher(),
	}
	f.service = NewService(tdb.Scope, recorder, f.store, f.lock, DefaultConfig(), nil)
	f.service.SetMetrics(f.metrics)
	f.service.SetEventPublisher(f.publisher)
	return f
}

func (f *fixture) createRequest(t *testing.T, r *identity.Recipient) uuid.UUID {
	t.Helper()
	resp, err := f.claims.Create(context.Background(), testutil.RecipientActor(r), appdelivery.CreateRequestInput{
		StoreName:     "Corner Market",
		PickupAddress: "1 Market Square",
		OrderName:     "Order 7",
		PickupTime:    time.Now().UTC().Add(time.Hour),
	})
	require.NoError(t, err)
	return resp.ID
}

func (f *fixture) auditEntries(t *testing.T) []audit.Entry {
	t.Helper()
	entries, _, err := f.tdb.Repos().Audit().ListRecent(context.Background(), time.Time{}, shared.Filter{Page: 1, PageSize: shared.MaxPageSize})
	require.NoError(t, err)
	return entries
}

func countAction(entries []audit.Entry, action audit.Action) int {
	n := 0
	for _, e := range entries {
		if e.Action == action {
			n++
		}
	}
	return n
}

func assertNoPlaintext(t *testing.T, entries []audit.Entry) {
	t.Helper()
	for _, e := range entries {
		for k, v := range e.Metadata {
			for _, secret := range testutil.SeedContact().Values() {
				assert.NotContains(t, v, secret, "audit %s metadata %s leaks contact data", e.Action, k)
			}
		}
	}
}

func TestDeleteRecipient_TombstoneListsEveryHolder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r := f.tdb.SeedRecipient(t, f.cipher, "North")
	v1 := f.tdb.SeedVolunteer(t, identity.VettingApproved)
	v2 := f.tdb.SeedVolunteer(t, identity.VettingApproved)
	bystander := f.tdb.SeedVolunteer(t, identity.VettingApproved)

	first := f.createRequest(t, r)
	_, err := f.claims.Claim(ctx, testutil.VolunteerActor(v1), first)
	require.NoError(t, err)
	_, err = f.claims.Cancel(ctx, testutil.VolunteerActor(v1), first, appdelivery.CancelInput{})
	require.NoError(t, err)
	_, err = f.claims.Claim(ctx, testutil.VolunteerActor(v2), first)
	require.NoError(t, err)
	second := f.createRequest(t, r)
	msg, err := delivery.NewMessage(first, testutil.RecipientActor(r), "Side door at "+testutil.SeedAddress, time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, f.tdb.Repos().Messages().Create(ctx, msg))

	result, err := f.service.DeleteRecipient(ctx, testutil.RecipientActor(r), r.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, result.CanceledCount)
	assert.Equal(t, 2, result.TombstoneVolunteers)

	repos := f.tdb.Repos()
	tomb, err := repos.Tombstones().FindByRecipientID(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, tomb.HadAccess(v1.ID))
	assert.True(t, tomb.HadAccess(v2.ID))
	assert.False(t, tomb.HadAccess(bystander.ID))
	assert.Equal(t, identity.PurgeTriggerDeleted, tomb.Trigger)

	purged, err := repos.Recipients().FindByID(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, purged.IsDeleted())
	assert.Equal(t, identity.PurgeMarker, purged.Sealed.Address)
	assert.Nil(t, purged.Sealed.Phone)
	assert.Nil(t, purged.Sealed.Notes)

	for _, id := range []uuid.UUID{first, second} {
		req, err := repos.Deliveries().FindByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, delivery.StatusCanceled, req.Status)
		require.NotNil(t, req.CanceledBy)
		assert.Equal(t, delivery.CanceledBySystem, *req.CanceledBy)
		assert.Nil(t, req.VolunteerID)
	}

	history, err := repos.Messages().ListAfter(ctx, first, 0, 50)
	require.NoError(t, err)
	assert.Empty(t, history, "chat history goes with the contact data")

	entries := f.auditEntries(t)
	assert.Equal(t, 1, countAction(entries, audit.ActionRecipientDeleted))
	assert.Equal(t, 3, countAction(entries, audit.ActionDeliveryCanceled))
	assertNoPlaintext(t, entries)
	assert.Contains(t, f.publisher.Types(), identity.EventTypeRecipientPurged)
}

func TestDeleteRecipient_OnlyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.tdb.SeedRecipient(t, f.cipher, "North")

	_, err := f.service.DeleteRecipient(ctx, testutil.AdminActor(), r.ID)
	require.NoError(t, err)

	_, err = f.service.DeleteRecipient(ctx, testutil.AdminActor(), r.ID)
	require.Error(t, err)
	assert.Equal(t, shared.CategoryInvalidState, shared.Category(err))

	var count int64
	require.NoError(t, f.tdb.DB.Model(&models.TombstoneModel{}).Where("recipient_id = ?", r.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestDeleteRecipient_Authorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.tdb.SeedRecipient(t, f.cipher, "North")
	other := f.tdb.SeedRecipient(t, f.cipher, "South")
	v := f.tdb.SeedVolunteer(t, identity.VettingApproved)

	for _, actor := range []identity.Actor{testutil.RecipientActor(other), testutil.VolunteerActor(v), identity.SystemActor} {
		_, err := f.service.DeleteRecipient(ctx, actor, r.ID)
		assert.ErrorIs(t, err, shared.ErrForbidden)
	}

	still, err := f.tdb.Repos().Recipients().FindByID(ctx, r.ID)
	require.NoError(t, err)
	assert.False(t, still.IsDeleted())
}

func TestPurgeInactive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	idle := f.tdb.SeedRecipient(t, f.cipher, "North")
	fresh := f.tdb.SeedRecipient(t, f.cipher, "North")
	require.NoError(t, f.tdb.DB.Model(&models.RecipientModel{}).
		Where("id = ?", idle.ID).
		Update("last_active_at", now.AddDate(0, -19, 0)).Error)

	purged, err := f.service.PurgeInactive(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	repos := f.tdb.Repos()
	got, err := repos.Recipients().FindByID(ctx, idle.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDeleted())
	tomb, err := repos.Tombstones().FindByRecipientID(ctx, idle.ID)
	require.NoError(t, err)
	assert.Equal(t, identity.PurgeTriggerInactive, tomb.Trigger)

	got, err = repos.Recipients().FindByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.False(t, got.IsDeleted())

	entries := f.auditEntries(t)
	require.Equal(t, 1, countAction(entries, audit.ActionRecipientDataPurged))
	for _, e := range entries {
		if e.Action == audit.ActionRecipientDataPurged {
			assert.Equal(t, "inactive", e.Metadata[audit.MetaTrigger])
			assert.Equal(t, identity.RoleSystem, e.ActorRole)
		}
	}

	again, err := f.service.PurgeInactive(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, again)

	require.Len(t, f.metrics.calls, 2)
	assert.Equal(t, sweepCall{JobPurgeInactive, 1, nil}, f.metrics.calls[0])
}

func TestPurgeInactive_PagesPastFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()
	service := NewService(f.tdb.Scope, appaudit.NewRecorder(nil), f.store, f.lock,
		Config{InactiveMonths: 18, BatchSize: 2}, nil)

	stuck := []*identity.Recipient{
		f.tdb.SeedRecipient(t, f.cipher, "North"),
		f.tdb.SeedRecipient(t, f.cipher, "North"),
	}
	later := f.tdb.SeedRecipient(t, f.cipher, "North")
	for i, r := range append(stuck, later) {
		require.NoError(t, f.tdb.DB.Model(&models.RecipientModel{}).
			Where("id = ?", r.ID).
			Update("last_active_at", now.AddDate(0, -30+i, 0)).Error)
	}
	// A leftover tombstone makes every purge of these two fail
	for _, r := range stuck {
		tomb, err := identity.NewTombstone(r.ID, nil, now.AddDate(-3, 0, 0), identity.PurgeTriggerDeleted, now)
		require.NoError(t, err)
		require.NoError(t, f.tdb.Repos().Tombstones().Create(ctx, tomb))
	}

	purged, err := service.PurgeInactive(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	got, err := f.tdb.Repos().Recipients().FindByID(ctx, later.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDeleted())
	for _, r := range stuck {
		got, err := f.tdb.Repos().Recipients().FindByID(ctx, r.ID)
		require.NoError(t, err)
		assert.False(t, got.IsDeleted())
	}
}

func seedUpload(t *testing.T, f *fixture, volunteerID uuid.UUID, ref string, expiresAt time.Time) *identity.IDUpload {
	t.Helper()
	u, err := identity.NewIDUpload(volunteerID, ref, time.Hour)
	require.NoError(t, err)
	require.NoError(t, f.tdb.Repos().Uploads().Create(context.Background(), u))
	require.NoError(t, f.tdb.DB.Model(&models.IDUploadModel{}).
		Where("id = ?", u.ID).
		Update("expires_at", expiresAt).Error)
	return u
}

func TestExpireUploads(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()
	v := f.tdb.SeedVolunteer(t, identity.VettingPending)

	seedUpload(t, f, v.ID, "id/expired-ok", now.Add(-time.Minute))
	seedUpload(t, f, v.ID, "id/expired-stuck", now.Add(-time.Hour))
	seedUpload(t, f, v.ID, "id/current", now.Add(time.Hour))
	f.store.failing["id/expired-stuck"] = true

	removed, err := f.service.ExpireUploads(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, []string{"id/expired-ok"}, f.store.deleted)

	left, err := f.tdb.Repos().Uploads().FindByVolunteer(ctx, v.ID)
	require.NoError(t, err)
	refs := make([]string, 0, len(left))
	for _, u := range left {
		refs = append(refs, u.ArtifactRef)
	}
	assert.ElementsMatch(t, []string{"id/expired-stuck", "id/current"}, refs)

	// storage recovers; the next sweep picks up the leftover
	delete(f.store.failing, "id/expired-stuck")
	removed, err = f.service.ExpireUploads(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	entries := f.auditEntries(t)
	assert.Equal(t, 2, countAction(entries, audit.ActionIDUploadExpired))
}

func TestDeleteUploadsForVolunteer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()
	v := f.tdb.SeedVolunteer(t, identity.VettingApproved)
	other := f.tdb.SeedVolunteer(t, identity.VettingPending)

	seedUpload(t, f, v.ID, "id/a", now.Add(time.Hour))
	seedUpload(t, f, v.ID, "id/b", now.Add(time.Hour))
	seedUpload(t, f, other.ID, "id/c", now.Add(time.Hour))

	removed, err := f.service.DeleteUploadsForVolunteer(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.ElementsMatch(t, []string{"id/a", "id/b"}, f.store.deleted)

	left, err := f.tdb.Repos().Uploads().FindByVolunteer(ctx, other.ID)
	require.NoError(t, err)
	assert.Len(t, left, 1)

	for _, e := range f.auditEntries(t) {
		if e.Action == audit.ActionIDUploadExpired {
			assert.Equal(t, TriggerReviewed, e.Metadata[audit.MetaTrigger])
		}
	}
}

func TestRotateKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	next := testutil.NewCipher(t, "k2", 2)

	a := f.tdb.SeedRecipient(t, f.cipher, "North")
	b := f.tdb.SeedRecipient(t, f.cipher, "South")
	gone := f.tdb.SeedRecipient(t, f.cipher, "East")
	_, err := f.service.DeleteRecipient(ctx, testutil.AdminActor(), gone.ID)
	require.NoError(t, err)

	result, err := f.service.RotateKey(ctx, f.cipher, next)
	require.NoError(t, err)
	assert.Equal(t, "k2", result.KeyID)
	assert.Equal(t, 2, result.Resealed)

	for _, id := range []uuid.UUID{a.ID, b.ID} {
		r, err := f.tdb.Repos().Recipients().FindByID(ctx, id)
		require.NoError(t, err)
		keyID, err := crypto.KeyIDOf(r.Sealed.Address)
		require.NoError(t, err)
		assert.Equal(t, "k2", keyID)

		contact, err := identity.OpenContact(next, r.Sealed)
		require.NoError(t, err)
		assert.Equal(t, testutil.SeedContact(), contact)

		_, err = identity.OpenContact(f.cipher, r.Sealed)
		assert.Error(t, err)
	}

	held, err := f.lock.Held(ctx)
	require.NoError(t, err)
	assert.False(t, held, "lock must be released after rotation")

	again, err := f.service.RotateKey(ctx, f.cipher, next)
	require.NoError(t, err)
	assert.Zero(t, again.Resealed)
	assert.Equal(t, 2, again.Unchanged)

	entries := f.auditEntries(t)
	require.Equal(t, 2, countAction(entries, audit.ActionEncryptionKeyRotated))
	for _, e := range entries {
		if e.Action == audit.ActionEncryptionKeyRotated && e.Metadata[audit.MetaCount] == "2" {
			assert.Equal(t, "k2", e.Metadata[audit.MetaKeyID])
		}
	}
	assertNoPlaintext(t, entries)
}

func TestRotateKey_RefusedWhileLocked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.tdb.SeedRecipient(t, f.cipher, "North")

	lease, err := f.lock.Acquire(ctx, time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = lease.Release(ctx) })

	_, err = f.service.RotateKey(ctx, f.cipher, testutil.NewCipher(t, "k2", 2))
	assert.ErrorIs(t, err, shared.ErrMaintenance)
}

func TestRotateKey_RejectsSameKey(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.RotateKey(context.Background(), f.cipher, f.cipher)
	require.Error(t, err)
	assert.Equal(t, shared.CategoryValidation, shared.Category(err))
}

func TestNeedsRotation(t *testing.T) {
	g1 := testutil.NewCipher(t, "k1", 1)
	sealed, err := identity.SealContact(g1, identity.Contact{Address: "1 Road", Phone: "555"})
	require.NoError(t, err)

	assert.False(t, needsRotation(sealed, "k1"))
	assert.True(t, needsRotation(sealed, "k2"))
	assert.False(t, needsRotation(identity.SealedContact{Address: identity.PurgeMarker}, "k2"))

	mixed := sealed
	phone := strings.Replace(*sealed.Phone, "v1.k1.", "v1.k0.", 1)
	mixed.Phone = &phone
	assert.True(t, needsRotation(mixed, "k1"))
}
