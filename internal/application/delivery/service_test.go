package delivery

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	appaudit "github.com/groceryshare/backend/internal/application/audit"
	"github.com/groceryshare/backend/internal/domain/audit"
	"github.com/groceryshare/backend/internal/domain/delivery"
	"github.com/groceryshare/backend/internal/domain/identity"
	"github.com/groceryshare/backend/internal/domain/shared"
	"github.com/groceryshare/backend/internal/infrastructure/crypto"
	"github.com/groceryshare/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedTransition struct {
	from, to delivery.Status
}

type fakeMetrics struct {
	mu          sync.Mutex
	attempts    []string
	transitions []recordedTransition
}

func (m *fakeMetrics) ClaimAttempted(_ context.Context, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, outcome)
}

func (m *fakeMetrics) Transitioned(_ context.Context, from, to delivery.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions = append(m.transitions, recordedTransition{from, to})
}

type fixture struct {
	tdb       *testutil.TestDB
	cipher    *crypto.Gateway
	claims    *ClaimService
	views     *ViewService
	messages  *MessageService
	ratings   *RatingService
	metrics   *fakeMetrics
	publisher *testutil.RecordingPublisher
}

func newFixture(t *testing.T, policy Policy) *fixture {
	t.Helper()
	tdb := testutil.NewTestDB(t)
	recorder := appaudit.NewRecorder(nil)
	f := &fixture{
		tdb:       tdb,
		cipher:    testutil.NewCipher(t, "k1", 1),
		claims:    NewClaimService(tdb.Scope, recorder, policy, nil),
		messages:  NewMessageService(tdb.Scope, recorder, policy, nil),
		ratings:   NewRatingService(tdb.Scope, recorder, nil),
		metrics:   &fakeMetrics{},
		publisher: testutil.NewRecordingPublisher(),
	}
	f.views = NewViewService(tdb.Scope, f.cipher, recorder, nil)
	f.claims.SetMetrics(f.metrics)
	f.claims.SetEventPublisher(f.publisher)
	return f
}

func (f *fixture) create(t *testing.T, r *identity.Recipient) uuid.UUID {
	t.Helper()
	resp, err := f.claims.Create(context.Background(), testutil.RecipientActor(r), CreateRequestInput{
		StoreName:      "Corner Market",
		PickupAddress:  "1 Market Square",
		OrderName:      "Order 7",
		PickupTime:     time.Now().UTC().Add(time.Hour),
		EstimatedItems: "3 bags",
	})
	require.NoError(t, err)
	return resp.ID
}

func (f *fixture) trail(t *testing.T, id uuid.UUID) []audit.Entry {
	t.Helper()
	entries, err := f.tdb.Repos().Audit().ListByDelivery(context.Background(), id)
	require.NoError(t, err)
	return entries
}

func actions(entries []audit.Entry) []audit.Action {
	out := make([]audit.Action, len(entries))
	for i, e := range entries {
		out[i] = e.Action
	}
	return out
}

func TestClaimLifecycle_RequeueThenComplete(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	ctx := context.Background()
	r := f.tdb.SeedRecipient(t, f.cipher, "North")
	v1 := f.tdb.SeedVolunteer(t, identity.VettingApproved)
	v2 := f.tdb.SeedVolunteer(t, identity.VettingApproved)
	id := f.create(t, r)

	claimed, err := f.claims.Claim(ctx, testutil.VolunteerActor(v1), id)
	require.NoError(t, err)
	assert.Equal(t, "claimed", claimed.Status)

	view, err := f.views.Get(ctx, testutil.VolunteerActor(v1), id)
	require.NoError(t, err)
	assert.Equal(t, string(delivery.LevelClaim), view.Level)
	require.NotNil(t, view.Contact)
	assert.Equal(t, testutil.SeedAddress, view.Contact.Address)

	requeued, err := f.claims.Cancel(ctx, testutil.VolunteerActor(v1), id, CancelInput{Reason: "car broke down"})
	require.NoError(t, err)
	assert.Equal(t, "open", requeued.Status)
	assert.Equal(t, 1, requeued.Priority)

	t.Run("former holder loses the address", func(t *testing.T) {
		view, err := f.views.Get(ctx, testutil.VolunteerActor(v1), id)
		require.NoError(t, err)
		assert.Equal(t, string(delivery.LevelHistory), view.Level)
		assert.Nil(t, view.Contact)
		assert.Nil(t, view.Request)
	})

	_, err = f.claims.Claim(ctx, testutil.VolunteerActor(v2), id)
	require.NoError(t, err)
	_, err = f.claims.MarkPickedUp(ctx, testutil.VolunteerActor(v2), id)
	require.NoError(t, err)

	t.Run("only the holder marks pickup", func(t *testing.T) {
		_, err := f.claims.MarkPickedUp(ctx, testutil.VolunteerActor(v1), id)
		require.Error(t, err)
	})

	done, err := f.claims.Complete(ctx, testutil.RecipientActor(r), id)
	require.NoError(t, err)
	assert.Equal(t, "completed", done.Status)

	view, err = f.views.Get(ctx, testutil.VolunteerActor(v2), id)
	require.NoError(t, err)
	assert.Nil(t, view.Contact, "completion revokes contact access")

	owner, err := f.views.Get(ctx, testutil.RecipientActor(r), id)
	require.NoError(t, err)
	require.NotNil(t, owner.Volunteer)
	assert.Equal(t, v2.ID, owner.Volunteer.ID)
	assert.Equal(t, 1, owner.Volunteer.TotalDeliveries)

	entries := f.trail(t, id)
	assert.Equal(t, []audit.Action{
		audit.ActionDeliveryCreated,
		audit.ActionDeliveryClaimed,
		audit.ActionAddressAccessed,
		audit.ActionDeliveryCanceled,
		audit.ActionDeliveryClaimed,
		audit.ActionDeliveryPickedUp,
		audit.ActionDeliveryCompleted,
	}, actions(entries))
	for i := 1; i < len(entries); i++ {
		assert.Greater(t, entries[i].Seq, entries[i-1].Seq)
	}
	cancel := entries[3]
	assert.Equal(t, "volunteer", cancel.Metadata[audit.MetaCanceledBy])
	assert.Equal(t, "requeued", cancel.Metadata[audit.MetaOutcome])
	for _, e := range entries {
		for _, v := range e.Metadata {
			assert.NotContains(t, v, "car")
			for _, secret := range testutil.SeedContact().Values() {
				assert.NotContains(t, v, secret)
			}
		}
	}

	assert.Contains(t, f.metrics.transitions, recordedTransition{delivery.StatusPickedUp, delivery.StatusCompleted})
	assert.Contains(t, f.publisher.Types(), delivery.EventTypeDeliveryClaimed)
}

func TestClaim_CapExceeded(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	ctx := context.Background()
	r := f.tdb.SeedRecipient(t, f.cipher, "North")
	v := f.tdb.SeedVolunteer(t, identity.VettingApproved)

	for i := 0; i < 2; i++ {
		_, err := f.claims.Claim(ctx, testutil.VolunteerActor(v), f.create(t, r))
		require.NoError(t, err)
	}
	third := f.create(t, r)
	_, err := f.claims.Claim(ctx, testutil.VolunteerActor(v), third)
	assert.ErrorIs(t, err, shared.ErrCapExceeded)
	assert.Equal(t, shared.CategoryConflict, shared.Category(err))
	assert.Equal(t, ClaimOutcomeCapExceeded, f.metrics.attempts[len(f.metrics.attempts)-1])

	req, err := f.tdb.Repos().Deliveries().FindByID(ctx, third)
	require.NoError(t, err)
	assert.Equal(t, delivery.StatusOpen, req.Status)
}

func TestClaim_RequiresApproval(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	r := f.tdb.SeedRecipient(t, f.cipher, "North")
	v := f.tdb.SeedVolunteer(t, identity.VettingPending)

	_, err := f.claims.Claim(context.Background(), testutil.VolunteerActor(v), f.create(t, r))
	assert.ErrorIs(t, err, shared.ErrVolunteerNotApproved)
}

func TestClaim_ConcurrentVolunteersExactlyOneWins(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	ctx := context.Background()
	r := f.tdb.SeedRecipient(t, f.cipher, "North")
	id := f.create(t, r)

	const n = 5
	volunteers := make([]*identity.Volunteer, n)
	for i := range volunteers {
		volunteers[i] = f.tdb.SeedVolunteer(t, identity.VettingApproved)
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range volunteers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.claims.Claim(ctx, testutil.VolunteerActor(volunteers[i]), id)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, shared.ErrAlreadyClaimed)
	}
	assert.Equal(t, 1, wins)

	claimed := 0
	for _, e := range f.trail(t, id) {
		if e.Action == audit.ActionDeliveryClaimed {
			claimed++
		}
	}
	assert.Equal(t, 1, claimed)
}

func TestCancel_Policy(t *testing.T) {
	ctx := context.Background()

	t.Run("recipient cancel is terminal", func(t *testing.T) {
		f := newFixture(t, DefaultPolicy())
		r := f.tdb.SeedRecipient(t, f.cipher, "North")
		v := f.tdb.SeedVolunteer(t, identity.VettingApproved)
		id := f.create(t, r)
		_, err := f.claims.Claim(ctx, testutil.VolunteerActor(v), id)
		require.NoError(t, err)

		resp, err := f.claims.Cancel(ctx, testutil.RecipientActor(r), id, CancelInput{Reason: "no longer needed"})
		require.NoError(t, err)
		assert.Equal(t, "canceled", resp.Status)
		assert.Equal(t, "recipient", resp.CanceledBy)
		assert.Equal(t, "no longer needed", resp.CancellationReason)

		_, err = f.claims.Cancel(ctx, testutil.RecipientActor(r), id, CancelInput{})
		assert.ErrorIs(t, err, shared.ErrTerminalState)
	})

	t.Run("admin requeues when configured", func(t *testing.T) {
		policy := DefaultPolicy()
		policy.AdminCancelRequeues = true
		f := newFixture(t, policy)
		r := f.tdb.SeedRecipient(t, f.cipher, "North")
		v := f.tdb.SeedVolunteer(t, identity.VettingApproved)
		id := f.create(t, r)
		_, err := f.claims.Claim(ctx, testutil.VolunteerActor(v), id)
		require.NoError(t, err)

		resp, err := f.claims.Cancel(ctx, testutil.AdminActor(), id, CancelInput{})
		require.NoError(t, err)
		assert.Equal(t, "open", resp.Status)
	})

	t.Run("other volunteers cannot cancel", func(t *testing.T) {
		f := newFixture(t, DefaultPolicy())
		r := f.tdb.SeedRecipient(t, f.cipher, "North")
		holder := f.tdb.SeedVolunteer(t, identity.VettingApproved)
		other := f.tdb.SeedVolunteer(t, identity.VettingApproved)
		id := f.create(t, r)
		_, err := f.claims.Claim(ctx, testutil.VolunteerActor(holder), id)
		require.NoError(t, err)

		_, err = f.claims.Cancel(ctx, testutil.VolunteerActor(other), id, CancelInput{})
		assert.ErrorIs(t, err, shared.ErrUnauthorized)
	})
}

func TestTerminalRequest_StrangersSeeUnauthorized(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, DefaultPolicy())
	r := f.tdb.SeedRecipient(t, f.cipher, "North")
	holder := f.tdb.SeedVolunteer(t, identity.VettingApproved)
	otherRecipient := f.tdb.SeedRecipient(t, f.cipher, "South")
	otherVolunteer := f.tdb.SeedVolunteer(t, identity.VettingApproved)
	id := f.create(t, r)
	_, err := f.claims.Claim(ctx, testutil.VolunteerActor(holder), id)
	require.NoError(t, err)
	_, err = f.claims.Cancel(ctx, testutil.RecipientActor(r), id, CancelInput{})
	require.NoError(t, err)

	tests := []struct {
		name string
		call func() error
		want error
	}{
		{"foreign recipient cancels", func() error {
			_, err := f.claims.Cancel(ctx, testutil.RecipientActor(otherRecipient), id, CancelInput{})
			return err
		}, shared.ErrUnauthorized},
		{"foreign volunteer cancels", func() error {
			_, err := f.claims.Cancel(ctx, testutil.VolunteerActor(otherVolunteer), id, CancelInput{})
			return err
		}, shared.ErrUnauthorized},
		{"foreign volunteer marks pickup", func() error {
			_, err := f.claims.MarkPickedUp(ctx, testutil.VolunteerActor(otherVolunteer), id)
			return err
		}, shared.ErrUnauthorized},
		{"foreign recipient completes", func() error {
			_, err := f.claims.Complete(ctx, testutil.RecipientActor(otherRecipient), id)
			return err
		}, shared.ErrUnauthorized},
		{"foreign volunteer claims", func() error {
			_, err := f.claims.Claim(ctx, testutil.VolunteerActor(otherVolunteer), id)
			return err
		}, shared.ErrAlreadyClaimed},
		{"owner cancels again", func() error {
			_, err := f.claims.Cancel(ctx, testutil.RecipientActor(r), id, CancelInput{})
			return err
		}, shared.ErrTerminalState},
		{"former holder marks pickup", func() error {
			_, err := f.claims.MarkPickedUp(ctx, testutil.VolunteerActor(holder), id)
			return err
		}, shared.ErrTerminalState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.call(), tt.want)
		})
	}
}

func TestListOpenPool_ShowsListingFieldsOnly(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	ctx := context.Background()
	r := f.tdb.SeedRecipient(t, f.cipher, "North")
	v := f.tdb.SeedVolunteer(t, identity.VettingApproved)
	first := f.create(t, r)
	second := f.create(t, r)

	_, err := f.claims.Claim(ctx, testutil.VolunteerActor(v), first)
	require.NoError(t, err)
	_, err = f.claims.Cancel(ctx, testutil.VolunteerActor(v), first, CancelInput{})
	require.NoError(t, err)

	page, err := f.claims.ListOpenPool(ctx, testutil.VolunteerActor(v), PoolQuery{})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, first, page.Items[0].ID, "requeued request ranks first")
	assert.Equal(t, second, page.Items[1].ID)
	assert.Equal(t, "North", page.Items[0].GeneralArea)

	_, err = f.claims.ListOpenPool(ctx, testutil.RecipientActor(r), PoolQuery{})
	assert.ErrorIs(t, err, shared.ErrForbidden)
}

func TestMessages(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	ctx := context.Background()
	r := f.tdb.SeedRecipient(t, f.cipher, "North")
	v := f.tdb.SeedVolunteer(t, identity.VettingApproved)
	id := f.create(t, r)

	_, err := f.messages.Send(ctx, testutil.RecipientActor(r), id, SendMessageInput{Body: "hello"})
	assert.ErrorIs(t, err, shared.ErrForbidden, "open requests have no chat")

	_, err = f.claims.Claim(ctx, testutil.VolunteerActor(v), id)
	require.NoError(t, err)

	first, err := f.messages.Send(ctx, testutil.RecipientActor(r), id, SendMessageInput{Body: "  Gate code is 4412  "})
	require.NoError(t, err)
	assert.Equal(t, "Gate code is 4412", first.Body)
	_, err = f.messages.Send(ctx, testutil.VolunteerActor(v), id, SendMessageInput{Body: "On my way"})
	require.NoError(t, err)

	unread, err := f.messages.UnreadCount(ctx, testutil.VolunteerActor(v), id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)

	page, err := f.messages.List(ctx, testutil.VolunteerActor(v), id, 0, 0)
	require.NoError(t, err)
	require.Len(t, page.Messages, 2)
	assert.Equal(t, 10, page.PollIntervalSeconds)
	assert.Equal(t, page.Messages[1].ID, page.NextCursor)

	again, err := f.messages.List(ctx, testutil.VolunteerActor(v), id, page.NextCursor, 0)
	require.NoError(t, err)
	assert.Empty(t, again.Messages)
	assert.Equal(t, page.NextCursor, again.NextCursor)

	unread, err = f.messages.UnreadCount(ctx, testutil.VolunteerActor(v), id)
	require.NoError(t, err)
	assert.Zero(t, unread)

	for _, e := range f.trail(t, id) {
		for _, val := range e.Metadata {
			assert.NotContains(t, val, "4412")
		}
	}
}

func TestRatings(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	ctx := context.Background()
	r := f.tdb.SeedRecipient(t, f.cipher, "North")
	v := f.tdb.SeedVolunteer(t, identity.VettingApproved)
	id := f.create(t, r)

	_, err := f.claims.Claim(ctx, testutil.VolunteerActor(v), id)
	require.NoError(t, err)

	_, err = f.ratings.Submit(ctx, testutil.RecipientActor(r), id, RatingInput{Score: 5})
	require.Error(t, err, "only completed requests can be rated")

	_, err = f.claims.Complete(ctx, testutil.RecipientActor(r), id)
	require.NoError(t, err)

	rating, err := f.ratings.Submit(ctx, testutil.RecipientActor(r), id, RatingInput{Score: 4, Comment: "friendly"})
	require.NoError(t, err)
	assert.Equal(t, v.ID, rating.VolunteerID)

	_, err = f.ratings.Submit(ctx, testutil.RecipientActor(r), id, RatingInput{Score: 1})
	assert.ErrorIs(t, err, shared.ErrAlreadyRated)

	stored, err := f.tdb.Repos().Volunteers().FindByID(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Stats.TotalDeliveries)
	assert.Equal(t, 1, stored.Stats.RatingCount)
	require.NotNil(t, stored.Stats.AverageRating)
	assert.Equal(t, "4.00", stored.Stats.AverageRating.StringFixed(2))

	var scored *audit.Entry
	entries := f.trail(t, id)
	for i := range entries {
		if entries[i].Action == audit.ActionRatingSubmitted {
			scored = &entries[i]
		}
	}
	require.NotNil(t, scored)
	assert.Equal(t, "4", scored.Metadata[audit.MetaScore])
}

func TestListMine(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	ctx := context.Background()
	r := f.tdb.SeedRecipient(t, f.cipher, "North")
	v := f.tdb.SeedVolunteer(t, identity.VettingApproved)
	id := f.create(t, r)
	f.create(t, r)
	_, err := f.claims.Claim(ctx, testutil.VolunteerActor(v), id)
	require.NoError(t, err)

	mine, err := f.claims.ListMine(ctx, testutil.RecipientActor(r), shared.Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), mine.Total)

	claims, err := f.claims.ListMine(ctx, testutil.VolunteerActor(v), shared.Filter{})
	require.NoError(t, err)
	require.Len(t, claims.Items, 1)
	assert.Equal(t, id, claims.Items[0].ID)
}
