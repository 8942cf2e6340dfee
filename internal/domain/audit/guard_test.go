package audit

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/groceryshare/backend/internal/domain/identity"
	"github.com/groceryshare/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func volunteerActor() identity.Actor {
	return identity.NewVolunteerActor(uuid.New(), uuid.New())
}

func TestNewEntry_AcceptsCodes(t *testing.T) {
	refs := DeliveryRefs(uuid.New(), uuid.New(), nil)
	entry, err := NewEntry(ActionDeliveryCanceled, volunteerActor(), refs, map[string]string{
		MetaCanceledBy: "volunteer",
		MetaOutcome:    "requeued",
		MetaPriority:   "2",
	})
	require.NoError(t, err)
	assert.Equal(t, ActionDeliveryCanceled, entry.Action)
	assert.Equal(t, identity.RoleVolunteer, entry.ActorRole)
	assert.NotNil(t, entry.ActorUserID)
	assert.Nil(t, entry.VolunteerID)
	assert.Equal(t, "requeued", entry.Metadata[MetaOutcome])
}

func TestNewEntry_SystemActorHasNoUser(t *testing.T) {
	entry, err := NewEntry(ActionRecipientDataPurged, identity.SystemActor, Refs{}, map[string]string{MetaTrigger: "inactive"})
	require.NoError(t, err)
	assert.Nil(t, entry.ActorUserID)
}

func TestNewEntry_CopiesMetadata(t *testing.T) {
	meta := map[string]string{MetaOutcome: "canceled"}
	entry, err := NewEntry(ActionDeliveryCanceled, identity.SystemActor, Refs{}, meta)
	require.NoError(t, err)
	meta[MetaOutcome] = "requeued"
	assert.Equal(t, "canceled", entry.Metadata[MetaOutcome])
}

func TestNewEntry_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		action   Action
		metadata map[string]string
	}{
		{"unknown action", Action("shred"), nil},
		{"unknown key", ActionDeliveryCanceled, map[string]string{"reason": "late"}},
		{"free text", ActionDeliveryCanceled, map[string]string{MetaOutcome: "had to leave early"}},
		{"phone digits", ActionDeliveryCanceled, map[string]string{MetaKeyID: "k5551234567"}},
		{"full width phone", ActionDeliveryCanceled, map[string]string{MetaKeyID: "k５５５１２３４５６７"}},
		{"non integer score", ActionRatingSubmitted, map[string]string{MetaScore: "five"}},
		{"empty value", ActionDeliveryCanceled, map[string]string{MetaOutcome: ""}},
		{"too long", ActionDeliveryCanceled, map[string]string{MetaOutcome: strings.Repeat("a", 65)}},
		{"punctuation", ActionDeliveryCanceled, map[string]string{MetaOutcome: "a,b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEntry(tt.action, volunteerActor(), Refs{}, tt.metadata)
			require.Error(t, err)
			assert.True(t, shared.IsDataIntegrity(err))
		})
	}
}

func TestNewEntry_UnknownActorRole(t *testing.T) {
	_, err := NewEntry(ActionDeliveryCreated, identity.Actor{}, Refs{}, nil)
	require.Error(t, err)
	assert.True(t, shared.IsDataIntegrity(err))
}

func TestNewEntry_ForbidMatchesFoldedPlaintext(t *testing.T) {
	forbid := Forbid("12 Oak Street", "555-867-5309", "")

	_, err := NewEntry(ActionAddressAccessed, volunteerActor(), Refs{}, map[string]string{MetaKeyID: "12OakStreet"}, forbid)
	require.Error(t, err)
	assert.True(t, shared.IsDataIntegrity(err))

	_, err = NewEntry(ActionAddressAccessed, volunteerActor(), Refs{}, map[string]string{MetaKeyID: "k-555-867-5309"}, forbid)
	require.Error(t, err)

	_, err = NewEntry(ActionAddressAccessed, volunteerActor(), Refs{}, map[string]string{MetaKeyID: "v3"}, forbid)
	require.NoError(t, err)
}

// Random printable strings mixed with digits must never reach an entry
// when they look like free text or long digit runs.
func TestNewEntry_RandomValuesNeverLeakDigitsOrSpaces(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	alphabet := []rune("abcXYZ0123456789 -_.:,;@#０１２３")

	for i := 0; i < 2000; i++ {
		n := 1 + rng.Intn(20)
		var b strings.Builder
		for j := 0; j < n; j++ {
			b.WriteRune(alphabet[rng.Intn(len(alphabet))])
		}
		value := b.String()

		entry, err := NewEntry(ActionDeliveryCanceled, identity.SystemActor, Refs{}, map[string]string{MetaOutcome: value})
		if err != nil {
			assert.True(t, shared.IsDataIntegrity(err), "value %q", value)
			continue
		}
		stored := entry.Metadata[MetaOutcome]
		assert.NotContains(t, stored, " ", "value %q", value)
		assert.LessOrEqual(t, longestDigitRun(stored), maxDigitRun, "value %q", value)
	}
}

func TestNewEntry_ForbiddenPlaintextsNeverStored(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		address := fmt.Sprintf("%d Elm%d Road", rng.Intn(999), rng.Intn(99))
		phone := fmt.Sprintf("555%07d", rng.Intn(10000000))
		candidates := []string{
			strings.ReplaceAll(address, " ", ""),
			strings.ReplaceAll(address, " ", "_"),
			phone,
			"x" + phone[3:],
		}
		for _, c := range candidates {
			_, err := NewEntry(ActionAddressAccessed, identity.SystemActor, Refs{}, map[string]string{MetaKeyID: c}, Forbid(address, phone))
			assert.Error(t, err, "candidate %q", c)
		}
	}
}

func TestLongestDigitRun(t *testing.T) {
	assert.Equal(t, 0, longestDigitRun("abc"))
	assert.Equal(t, 3, longestDigitRun("a123b45"))
	assert.Equal(t, 7, longestDigitRun("5551234"))
}

func TestActionIsValid(t *testing.T) {
	assert.True(t, ActionDeliveryClaimed.IsValid())
	assert.False(t, Action("delivery_stolen").IsValid())
}
