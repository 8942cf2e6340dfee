package identity

import (
	"bytes"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/groceryshare/backend/internal/domain/shared"
)

// Tombstone is the only record left once a recipient is purged. It proves
// which volunteers ever had access to that recipient and carries nothing else.
type Tombstone struct {
	RecipientID  uuid.UUID
	VolunteerIDs []uuid.UUID
	LastActiveAt time.Time
	PurgedAt     time.Time
	Trigger      PurgeTrigger
}

// NewTombstone builds a tombstone with a deduplicated, sorted volunteer set
func NewTombstone(recipientID uuid.UUID, volunteerIDs []uuid.UUID, lastActive time.Time, trigger PurgeTrigger, now time.Time) (*Tombstone, error) {
	if recipientID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeDataIntegrityViolated, "Tombstone requires a recipient ID")
	}
	if !trigger.IsValid() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Unknown purge trigger")
	}
	return &Tombstone{
		RecipientID:  recipientID,
		VolunteerIDs: DedupeIDs(volunteerIDs),
		LastActiveAt: lastActive,
		PurgedAt:     now,
		Trigger:      trigger,
	}, nil
}

// DedupeIDs drops nil and repeated IDs and returns them in byte order
func DedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})
	return out
}

// HadAccess reports whether the volunteer ever held a claim for the recipient
func (t *Tombstone) HadAccess(volunteerID uuid.UUID) bool {
	for _, id := range t.VolunteerIDs {
		if id == volunteerID {
			return true
		}
	}
	return false
}
