package delivery

import (
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/groceryshare/backend/internal/domain/identity"
	"github.com/groceryshare/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helpers
func testPickup() PickupDetails {
	return PickupDetails{
		StoreName:      "  Corner Market ",
		PickupAddress:  "1 Market Square",
		OrderName:      "Order for J",
		PickupTime:     time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC),
		EstimatedItems: "2 bags",
	}
}

func createTestRequest(t *testing.T) *DeliveryRequest {
	r, err := NewDeliveryRequest(uuid.New(), testPickup())
	require.NoError(t, err)
	return r
}

func claimedRequest(t *testing.T) (*DeliveryRequest, uuid.UUID) {
	r := createTestRequest(t)
	volunteerID := uuid.New()
	require.NoError(t, r.Claim(volunteerID, time.Now()))
	return r, volunteerID
}

func recipientOf(r *DeliveryRequest) identity.Actor {
	return identity.NewRecipientActor(uuid.New(), r.RecipientID)
}

// ============================================
// Status Tests
// ============================================

func TestStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
		ok   bool
	}{
		{StatusOpen, StatusClaimed, true},
		{StatusOpen, StatusCanceled, true},
		{StatusOpen, StatusPickedUp, false},
		{StatusOpen, StatusCompleted, false},
		{StatusClaimed, StatusPickedUp, true},
		{StatusClaimed, StatusCompleted, true},
		{StatusClaimed, StatusOpen, true},
		{StatusPickedUp, StatusCompleted, true},
		{StatusPickedUp, StatusClaimed, false},
		{StatusCompleted, StatusOpen, false},
		{StatusCanceled, StatusOpen, false},
		{StatusCanceled, StatusClaimed, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.ok, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestStatus_IsValid(t *testing.T) {
	assert.True(t, StatusPickedUp.IsValid())
	assert.False(t, Status("lost").IsValid())
	assert.False(t, Status("").IsValid())
}

// ============================================
// DeliveryRequest Tests
// ============================================

func TestNewDeliveryRequest(t *testing.T) {
	r := createTestRequest(t)

	assert.Equal(t, StatusOpen, r.Status)
	assert.Equal(t, "Corner Market", r.Pickup.StoreName)
	assert.Nil(t, r.VolunteerID)
	assert.Equal(t, 0, r.Priority)
	assert.Equal(t, 1, r.Version)
	require.Len(t, r.GetDomainEvents(), 1)
	assert.Equal(t, EventTypeDeliveryCreated, r.GetDomainEvents()[0].EventType())
}

func TestNewDeliveryRequest_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *PickupDetails)
	}{
		{"empty store", func(p *PickupDetails) { p.StoreName = " " }},
		{"empty pickup address", func(p *PickupDetails) { p.PickupAddress = "" }},
		{"empty order name", func(p *PickupDetails) { p.OrderName = "" }},
		{"missing pickup time", func(p *PickupDetails) { p.PickupTime = time.Time{} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testPickup()
			tt.mutate(&p)
			_, err := NewDeliveryRequest(uuid.New(), p)
			assert.ErrorIs(t, err, shared.ErrInvalidInput)
		})
	}

	_, err := NewDeliveryRequest(uuid.Nil, testPickup())
	assert.Error(t, err)
}

func TestDeliveryRequest_Claim(t *testing.T) {
	r, volunteerID := claimedRequest(t)

	assert.Equal(t, StatusClaimed, r.Status)
	require.NotNil(t, r.VolunteerID)
	assert.Equal(t, volunteerID, *r.VolunteerID)
	assert.Equal(t, volunteerID, *r.LastVolunteerID)
	assert.NotNil(t, r.ClaimedAt)
	assert.NoError(t, r.CheckInvariants())

	err := r.Claim(uuid.New(), time.Now())
	assert.ErrorIs(t, err, shared.ErrAlreadyClaimed)
	assert.Equal(t, volunteerID, *r.VolunteerID)
}

func TestDeliveryRequest_ClaimTerminal(t *testing.T) {
	r := createTestRequest(t)
	_, err := r.Cancel(recipientOf(r), "", CancelPolicy{}, time.Now())
	require.NoError(t, err)

	assert.ErrorIs(t, r.Claim(uuid.New(), time.Now()), shared.ErrTerminalState)
}

func TestDeliveryRequest_MarkPickedUp(t *testing.T) {
	r, volunteerID := claimedRequest(t)

	assert.ErrorIs(t, r.MarkPickedUp(uuid.New(), time.Now()), shared.ErrUnauthorized)
	require.NoError(t, r.MarkPickedUp(volunteerID, time.Now()))
	assert.Equal(t, StatusPickedUp, r.Status)
	assert.NotNil(t, r.PickedUpAt)

	err := r.MarkPickedUp(volunteerID, time.Now())
	assert.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestDeliveryRequest_MarkPickedUpTerminal(t *testing.T) {
	r, volunteerID := claimedRequest(t)
	require.NoError(t, r.ForceCancel("", time.Now()))

	assert.ErrorIs(t, r.MarkPickedUp(uuid.New(), time.Now()), shared.ErrUnauthorized)
	assert.ErrorIs(t, r.MarkPickedUp(volunteerID, time.Now()), shared.ErrTerminalState)
}

func TestDeliveryRequest_MarkPickedUpOpen(t *testing.T) {
	r := createTestRequest(t)
	assert.ErrorIs(t, r.MarkPickedUp(uuid.New(), time.Now()), shared.ErrUnauthorized)
}

func TestDeliveryRequest_VolunteerCancelRequeues(t *testing.T) {
	r, volunteerID := claimedRequest(t)
	actor := identity.NewVolunteerActor(uuid.New(), volunteerID)

	outcome, err := r.Cancel(actor, "car broke down", CancelPolicy{}, time.Now())
	require.NoError(t, err)

	assert.Equal(t, OutcomeRequeued, outcome)
	assert.Equal(t, StatusOpen, r.Status)
	assert.Nil(t, r.VolunteerID)
	assert.Nil(t, r.ClaimedAt)
	assert.Equal(t, volunteerID, *r.LastVolunteerID)
	assert.Equal(t, RequeuePriorityStep, r.Priority)
	assert.Equal(t, 1, r.RequeueCount)
	assert.Empty(t, r.CancellationReason)
	assert.NoError(t, r.CheckInvariants())
}

func TestDeliveryRequest_RecipientCancelTerminal(t *testing.T) {
	r, _ := claimedRequest(t)

	outcome, err := r.Cancel(recipientOf(r), "  no longer needed ", CancelPolicy{}, time.Now())
	require.NoError(t, err)

	assert.Equal(t, OutcomeCanceled, outcome)
	assert.Equal(t, StatusCanceled, r.Status)
	assert.Nil(t, r.VolunteerID)
	assert.NotNil(t, r.CanceledAt)
	assert.Equal(t, CanceledByRecipient, *r.CanceledBy)
	assert.Equal(t, "no longer needed", r.CancellationReason)
	assert.NoError(t, r.CheckInvariants())

	_, err = r.Cancel(recipientOf(r), "", CancelPolicy{}, time.Now())
	assert.ErrorIs(t, err, shared.ErrTerminalState)
}

func TestDeliveryRequest_CancelReasonTooLong(t *testing.T) {
	r := createTestRequest(t)
	long := make([]byte, 501)
	for i := range long {
		long[i] = 'a'
	}
	_, err := r.Cancel(recipientOf(r), string(long), CancelPolicy{}, time.Now())
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
	assert.Equal(t, StatusOpen, r.Status)
}

func TestDeliveryRequest_ForceCancel(t *testing.T) {
	r, _ := claimedRequest(t)
	require.NoError(t, r.ForceCancel("recipient_deleted", time.Now()))
	assert.Equal(t, StatusCanceled, r.Status)
	assert.Equal(t, CanceledBySystem, *r.CanceledBy)
	assert.ErrorIs(t, r.ForceCancel("again", time.Now()), shared.ErrTerminalState)
}

func TestDeliveryRequest_Complete(t *testing.T) {
	r, volunteerID := claimedRequest(t)
	require.NoError(t, r.MarkPickedUp(volunteerID, time.Now()))

	assert.ErrorIs(t, r.Complete(uuid.New(), time.Now()), shared.ErrUnauthorized)
	require.NoError(t, r.Complete(r.RecipientID, time.Now()))

	assert.Equal(t, StatusCompleted, r.Status)
	assert.Nil(t, r.VolunteerID)
	assert.Equal(t, volunteerID, *r.LastVolunteerID)
	assert.True(t, r.CanBeRated())
	assert.NoError(t, r.CheckInvariants())
}

func TestDeliveryRequest_CompleteFromClaimed(t *testing.T) {
	r, _ := claimedRequest(t)
	require.NoError(t, r.Complete(r.RecipientID, time.Now()))
	assert.Equal(t, StatusCompleted, r.Status)
}

func TestDeliveryRequest_CompleteOpen(t *testing.T) {
	r := createTestRequest(t)
	assert.ErrorIs(t, r.Complete(r.RecipientID, time.Now()), shared.ErrInvalidState)
	assert.False(t, r.CanBeRated())
}

// The holder reference must track the status through any sequence of operations.
func TestDeliveryRequest_RandomSequencesKeepHolderInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for run := 0; run < 300; run++ {
		r := createTestRequest(t)
		volunteers := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
		policy := CancelPolicy{AdminRequeues: rng.Intn(2) == 0}

		for step := 0; step < 25; step++ {
			now := time.Now()
			v := volunteers[rng.Intn(len(volunteers))]
			switch rng.Intn(7) {
			case 0:
				_ = r.Claim(v, now)
			case 1:
				_ = r.MarkPickedUp(v, now)
			case 2:
				_, _ = r.Cancel(identity.NewVolunteerActor(uuid.New(), v), "", policy, now)
			case 3:
				_, _ = r.Cancel(recipientOf(r), "", policy, now)
			case 4:
				_, _ = r.Cancel(identity.NewAdminActor(uuid.New()), "", policy, now)
			case 5:
				_, _ = r.Cancel(identity.SystemActor, "", policy, now)
			case 6:
				_ = r.Complete(r.RecipientID, now)
			}
			require.NoError(t, r.CheckInvariants(), "run %d step %d", run, step)
			if r.IsTerminal() {
				before := r.Status
				_ = r.Claim(v, now)
				assert.Equal(t, before, r.Status)
			}
		}
	}
}

// Scenario: V1 claims, V2 is rejected, V1 releases, V2 claims.
func TestScenario_RequeueHandsRequestToNextVolunteer(t *testing.T) {
	r := createTestRequest(t)
	v1, v2 := uuid.New(), uuid.New()

	require.NoError(t, r.Claim(v1, time.Now()))
	assert.ErrorIs(t, r.Claim(v2, time.Now()), shared.ErrAlreadyClaimed)

	outcome, err := r.Cancel(identity.NewVolunteerActor(uuid.New(), v1), "", CancelPolicy{}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, OutcomeRequeued, outcome)
	assert.Equal(t, 1, r.Priority)

	require.NoError(t, r.Claim(v2, time.Now()))
	assert.Equal(t, v2, *r.VolunteerID)

	v1View := Resolve(identity.NewVolunteerActor(uuid.New(), v1), r)
	assert.False(t, v1View.Contact)
	assert.Equal(t, LevelNone, v1View.Level)
}
