package vetting

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	appaudit "github.com/groceryshare/backend/internal/application/audit"
	appdelivery "github.com/groceryshare/backend/internal/application/delivery"
	"github.com/groceryshare/backend/internal/domain/audit"
	"github.com/groceryshare/backend/internal/domain/delivery"
	"github.com/groceryshare/backend/internal/domain/identity"
	"github.com/groceryshare/backend/internal/domain/shared"
	"github.com/groceryshare/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCleaner struct {
	calls []uuid.UUID
	err   error
}

func (c *fakeCleaner) DeleteUploadsForVolunteer(_ context.Context, volunteerID uuid.UUID) (int, error) {
	c.calls = append(c.calls, volunteerID)
	if c.err != nil {
		return 0, c.err
	}
	return 1, nil
}

type fakeIssuer struct{}

func (fakeIssuer) UploadURL(_ context.Context, ref, _ string) (string, time.Time, error) {
	return "https://uploads.test/" + ref + "?sig=abc", time.Now().Add(15 * time.Minute), nil
}

type fixture struct {
	tdb       *testutil.TestDB
	service   *Service
	claims    *appdelivery.ClaimService
	cleaner   *fakeCleaner
	publisher *testutil.RecordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tdb := testutil.NewTestDB(t)
	recorder := appaudit.NewRecorder(nil)
	f := &fixture{
		tdb:       tdb,
		claims:    appdelivery.NewClaimService(tdb.Scope, recorder, appdelivery.DefaultPolicy(), nil),
		cleaner:   &fakeCleaner{},
		publisher: testutil.NewRecordingPublisher(),
	}
	f.service = NewService(tdb.Scope, recorder, f.cleaner, fakeIssuer{}, 0, nil)
	f.service.SetEventPublisher(f.publisher)
	return f
}

func (f *fixture) volunteerAudit(t *testing.T, volunteerID uuid.UUID) []audit.Entry {
	t.Helper()
	entries, _, err := f.tdb.Repos().Audit().ListByVolunteer(context.Background(), volunteerID,
		shared.Filter{Page: 1, PageSize: shared.MaxPageSize})
	require.NoError(t, err)
	return entries
}

func validInput() RegisterVolunteerInput {
	return RegisterVolunteerInput{
		FullName:    "Alex Driver",
		ServiceArea: "North",
		Attested:    true,
	}
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := identity.Actor{UserID: uuid.New(), Role: identity.RoleVolunteer}

	resp, err := f.service.Register(ctx, actor, validInput())
	require.NoError(t, err)
	assert.Equal(t, "pending", resp.Status)
	assert.NotNil(t, resp.AttestedAt)

	entries := f.volunteerAudit(t, resp.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionVolunteerRegistered, entries[0].Action)
	assert.Contains(t, f.publisher.Types(), identity.EventTypeVolunteerRegistered)

	t.Run("second profile for the same user conflicts", func(t *testing.T) {
		_, err := f.service.Register(ctx, actor, validInput())
		require.Error(t, err)
		assert.Equal(t, shared.CategoryConflict, shared.Category(err))
	})

	t.Run("other roles are refused", func(t *testing.T) {
		_, err := f.service.Register(ctx, identity.NewAdminActor(uuid.New()), validInput())
		assert.ErrorIs(t, err, shared.ErrUnauthorized)
	})

	t.Run("mine resolves by user id", func(t *testing.T) {
		mine, err := f.service.GetMine(ctx, actor)
		require.NoError(t, err)
		assert.Equal(t, resp.ID, mine.ID)
	})
}

func TestRegisterIDUpload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.tdb.SeedVolunteer(t, identity.VettingPending)

	t.Run("generated reference gets an upload url", func(t *testing.T) {
		resp, err := f.service.RegisterIDUpload(ctx, testutil.VolunteerActor(v), RegisterUploadInput{ContentType: "image/jpeg"})
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(resp.ArtifactRef, "id-uploads/"+v.ID.String()+"/"))
		assert.NotEmpty(t, resp.UploadURL)
		assert.WithinDuration(t, time.Now().Add(identity.DefaultIDUploadExpiry), resp.ExpiresAt, time.Minute)
	})

	t.Run("caller supplied reference", func(t *testing.T) {
		resp, err := f.service.RegisterIDUpload(ctx, testutil.VolunteerActor(v), RegisterUploadInput{ArtifactRef: "ext/scan-1"})
		require.NoError(t, err)
		assert.Equal(t, "ext/scan-1", resp.ArtifactRef)
		assert.Empty(t, resp.UploadURL)
	})

	uploads, err := f.tdb.Repos().Uploads().FindByVolunteer(ctx, v.ID)
	require.NoError(t, err)
	assert.Len(t, uploads, 2)

	t.Run("refused once reviewed", func(t *testing.T) {
		approved := f.tdb.SeedVolunteer(t, identity.VettingApproved)
		_, err := f.service.RegisterIDUpload(ctx, testutil.VolunteerActor(approved), RegisterUploadInput{})
		require.Error(t, err)
		assert.Equal(t, shared.CategoryInvalidState, shared.Category(err))
	})

	t.Run("profile id must belong to the caller", func(t *testing.T) {
		impostor := identity.NewVolunteerActor(uuid.New(), v.ID)
		_, err := f.service.RegisterIDUpload(ctx, impostor, RegisterUploadInput{})
		assert.ErrorIs(t, err, shared.ErrForbidden)
	})
}

func TestApproveAndReject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := testutil.AdminActor()

	pending := f.tdb.SeedVolunteer(t, identity.VettingPending)
	resp, err := f.service.Approve(ctx, admin, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, "approved", resp.Volunteer.Status)
	assert.Equal(t, 1, resp.UploadsRemoved)

	other := f.tdb.SeedVolunteer(t, identity.VettingPending)
	resp, err = f.service.Reject(ctx, admin, other.ID, DecisionInput{Reason: "photo unreadable"})
	require.NoError(t, err)
	assert.Equal(t, "rejected", resp.Volunteer.Status)
	assert.Equal(t, "photo unreadable", resp.Volunteer.StatusReason)

	assert.Equal(t, []uuid.UUID{pending.ID, other.ID}, f.cleaner.calls)

	entries := f.volunteerAudit(t, other.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionVolunteerRejected, entries[0].Action)
	assert.Equal(t, "rejected", entries[0].Metadata[audit.MetaDecision])
	assert.NotContains(t, entries[0].Metadata, "reason")

	t.Run("non admins are refused", func(t *testing.T) {
		_, err := f.service.Approve(ctx, testutil.VolunteerActor(pending), other.ID)
		assert.ErrorIs(t, err, shared.ErrForbidden)
	})

	t.Run("invalid transition", func(t *testing.T) {
		_, err := f.service.Reject(ctx, admin, pending.ID, DecisionInput{})
		require.Error(t, err)
		assert.Equal(t, shared.CategoryInvalidState, shared.Category(err))
	})

	t.Run("unknown volunteer", func(t *testing.T) {
		_, err := f.service.Approve(ctx, admin, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestApprove_CleanupFailureDoesNotFailDecision(t *testing.T) {
	f := newFixture(t)
	f.cleaner.err = errors.New("bucket offline")
	v := f.tdb.SeedVolunteer(t, identity.VettingPending)

	resp, err := f.service.Approve(context.Background(), testutil.AdminActor(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, "approved", resp.Volunteer.Status)
	assert.Zero(t, resp.UploadsRemoved)
}

func TestSuspend_ReleasesActiveClaims(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := testutil.AdminActor()

	r := f.tdb.SeedRecipient(t, testutil.NewCipher(t, "k1", 1), "North")
	v := f.tdb.SeedVolunteer(t, identity.VettingApproved)
	req := f.tdb.SeedRequest(t, r.ID)
	_, err := f.claims.Claim(ctx, testutil.VolunteerActor(v), req.ID)
	require.NoError(t, err)

	resp, err := f.service.Suspend(ctx, admin, v.ID, DecisionInput{Reason: "complaint"})
	require.NoError(t, err)
	assert.Equal(t, "suspended", resp.Volunteer.Status)
	assert.Equal(t, 1, resp.ReleasedClaims)
	assert.Empty(t, f.cleaner.calls)

	released, err := f.tdb.Repos().Deliveries().FindByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, delivery.StatusOpen, released.Status)
	assert.Nil(t, released.VolunteerID)
	assert.Equal(t, delivery.RequeuePriorityStep, released.Priority)

	trail, err := f.tdb.Repos().Audit().ListByDelivery(ctx, req.ID)
	require.NoError(t, err)
	var cancel *audit.Entry
	for i := range trail {
		if trail[i].Action == audit.ActionDeliveryCanceled {
			cancel = &trail[i]
		}
	}
	require.NotNil(t, cancel)
	assert.Equal(t, "system", cancel.Metadata[audit.MetaCanceledBy])
	assert.Equal(t, "requeued", cancel.Metadata[audit.MetaOutcome])

	_, err = f.claims.Claim(ctx, testutil.VolunteerActor(v), req.ID)
	require.Error(t, err)

	t.Run("reinstate", func(t *testing.T) {
		resp, err := f.service.Reinstate(ctx, admin, v.ID)
		require.NoError(t, err)
		assert.Equal(t, "approved", resp.Volunteer.Status)
		assert.Empty(t, resp.Volunteer.StatusReason)
	})
}

func TestListPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.tdb.SeedVolunteer(t, identity.VettingPending)
	f.tdb.SeedVolunteer(t, identity.VettingPending)
	f.tdb.SeedVolunteer(t, identity.VettingApproved)

	page, err := f.service.ListPending(ctx, testutil.AdminActor(), shared.Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	for _, v := range page.Items {
		assert.Equal(t, "pending", v.Status)
	}

	_, err = f.service.ListPending(ctx, identity.SystemActor, shared.Filter{})
	assert.ErrorIs(t, err, shared.ErrForbidden)
}
