package audit

import (
	"time"

	"github.com/google/uuid"
	"github.com/groceryshare/backend/internal/domain/audit"
)

// EntryResponse represents an audit entry in API responses
type EntryResponse struct {
	Seq         int64             `json:"seq"`
	ID          uuid.UUID         `json:"id"`
	Action      string            `json:"action"`
	ActorRole   string            `json:"actor_role"`
	ActorUserID *uuid.UUID        `json:"actor_user_id,omitempty"`
	DeliveryID  *uuid.UUID        `json:"delivery_id,omitempty"`
	RecipientID *uuid.UUID        `json:"recipient_id,omitempty"`
	VolunteerID *uuid.UUID        `json:"volunteer_id,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// ToEntryResponse converts a domain entry to a response
func ToEntryResponse(e *audit.Entry) EntryResponse {
	return EntryResponse{
		Seq:         e.Seq,
		ID:          e.ID,
		Action:      e.Action.String(),
		ActorRole:   e.ActorRole.String(),
		ActorUserID: e.ActorUserID,
		DeliveryID:  e.DeliveryID,
		RecipientID: e.RecipientID,
		VolunteerID: e.VolunteerID,
		Metadata:    e.Metadata,
		CreatedAt:   e.CreatedAt,
	}
}

// ToEntryResponses converts a slice of entries
func ToEntryResponses(entries []audit.Entry) []EntryResponse {
	out := make([]EntryResponse, len(entries))
	for i := range entries {
		out[i] = ToEntryResponse(&entries[i])
	}
	return out
}
