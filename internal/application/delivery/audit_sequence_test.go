package delivery_test

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	appaudit "github.com/groceryshare/backend/internal/application/audit"
	appdelivery "github.com/groceryshare/backend/internal/application/delivery"
	"github.com/groceryshare/backend/internal/application/retention"
	"github.com/groceryshare/backend/internal/domain/identity"
	"github.com/groceryshare/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sequenceWorld struct {
	claims     *appdelivery.ClaimService
	views      *appdelivery.ViewService
	messages   *appdelivery.MessageService
	ratings    *appdelivery.RatingService
	retention  *retention.Service
	recipients []*identity.Recipient
	volunteers []*identity.Volunteer
	requests   []uuid.UUID
}

func (w *sequenceWorld) recipient(rng *rand.Rand) identity.Actor {
	return testutil.RecipientActor(w.recipients[rng.Intn(len(w.recipients))])
}

func (w *sequenceWorld) volunteer(rng *rand.Rand) identity.Actor {
	return testutil.VolunteerActor(w.volunteers[rng.Intn(len(w.volunteers))])
}

func (w *sequenceWorld) anyActor(rng *rand.Rand) identity.Actor {
	switch rng.Intn(3) {
	case 0:
		return w.recipient(rng)
	case 1:
		return w.volunteer(rng)
	}
	return testutil.AdminActor()
}

func (w *sequenceWorld) request(rng *rand.Rand) uuid.UUID {
	if len(w.requests) == 0 {
		return uuid.New()
	}
	return w.requests[rng.Intn(len(w.requests))]
}

// step runs one random action. Most fail on precondition; only the audit
// trail they leave behind matters here.
func (w *sequenceWorld) step(ctx context.Context, rng *rand.Rand) string {
	contact := testutil.SeedContact()
	switch rng.Intn(10) {
	case 0, 1:
		resp, err := w.claims.Create(ctx, w.recipient(rng), appdelivery.CreateRequestInput{
			StoreName:      "Corner Market",
			PickupAddress:  "1 Market Square",
			OrderName:      "Order 7",
			PickupTime:     time.Now().UTC().Add(time.Hour),
			EstimatedItems: "2 bags",
		})
		if err == nil {
			w.requests = append(w.requests, resp.ID)
		}
		return "create"
	case 2:
		_, _ = w.claims.Claim(ctx, w.volunteer(rng), w.request(rng))
		return "claim"
	case 3:
		_, _ = w.claims.MarkPickedUp(ctx, w.volunteer(rng), w.request(rng))
		return "pickup"
	case 4:
		reason := "changed plans"
		if rng.Intn(2) == 0 {
			reason = "wrong door at " + contact.Address
		}
		_, _ = w.claims.Cancel(ctx, w.anyActor(rng), w.request(rng), appdelivery.CancelInput{Reason: reason})
		return "cancel"
	case 5:
		_, _ = w.claims.Complete(ctx, w.recipient(rng), w.request(rng))
		return "complete"
	case 6:
		_, _ = w.views.Get(ctx, w.anyActor(rng), w.request(rng))
		return "view"
	case 7:
		body := "Running late"
		if rng.Intn(2) == 0 {
			body = "Call me on " + contact.Phone + ", I'm at " + contact.Address
		}
		actor := w.recipient(rng)
		if rng.Intn(2) == 0 {
			actor = w.volunteer(rng)
		}
		_, _ = w.messages.Send(ctx, actor, w.request(rng), appdelivery.SendMessageInput{Body: body})
		return "message"
	case 8:
		_, _ = w.ratings.Submit(ctx, w.recipient(rng), w.request(rng), appdelivery.RatingInput{
			Score:   1 + rng.Intn(5),
			Comment: "Left it by " + contact.Notes,
		})
		return "rate"
	default:
		if rng.Intn(4) != 0 {
			return "skip-delete"
		}
		actor := w.recipient(rng)
		if rng.Intn(2) == 0 {
			_, _ = w.retention.DeleteRecipient(ctx, actor, actor.ProfileID)
		} else {
			_, _ = w.retention.DeleteRecipient(ctx, testutil.AdminActor(), actor.ProfileID)
		}
		return "delete"
	}
}

func TestAuditTrail_RandomSequencesNeverCarryContact(t *testing.T) {
	const steps = 60
	forbidden := testutil.SeedContact().Values()

	for seed := int64(1); seed <= 25; seed++ {
		t.Run(fmt.Sprintf("seed_%d", seed), func(t *testing.T) {
			ctx := context.Background()
			tdb := testutil.NewTestDB(t)
			cipher := testutil.NewCipher(t, "k1", 1)
			recorder := appaudit.NewRecorder(nil)
			policy := appdelivery.DefaultPolicy()
			policy.AdminCancelRequeues = seed%2 == 0

			w := &sequenceWorld{
				claims:    appdelivery.NewClaimService(tdb.Scope, recorder, policy, nil),
				views:     appdelivery.NewViewService(tdb.Scope, cipher, recorder, nil),
				messages:  appdelivery.NewMessageService(tdb.Scope, recorder, policy, nil),
				ratings:   appdelivery.NewRatingService(tdb.Scope, recorder, nil),
				retention: retention.NewService(tdb.Scope, recorder, nil, nil, retention.DefaultConfig(), nil),
			}
			for i := 0; i < 3; i++ {
				w.recipients = append(w.recipients, tdb.SeedRecipient(t, cipher, "North"))
				w.volunteers = append(w.volunteers, tdb.SeedVolunteer(t, identity.VettingApproved))
			}

			rng := rand.New(rand.NewSource(seed))
			trace := make([]string, 0, steps)
			for i := 0; i < steps; i++ {
				trace = append(trace, w.step(ctx, rng))
			}

			var metadata []sql.NullString
			require.NoError(t, tdb.DB.Table("audit_entries").Pluck("metadata", &metadata).Error)
			require.NotEmpty(t, metadata, "sequence %v wrote no audit entries", trace)
			for _, m := range metadata {
				for _, value := range forbidden {
					assert.NotContains(t, strings.ToLower(m.String), strings.ToLower(value),
						"sequence %v leaked contact into audit metadata", trace)
				}
			}
		})
	}
}
