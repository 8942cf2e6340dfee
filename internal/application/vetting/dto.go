package vetting

import (
	"time"

	"github.com/google/uuid"
	"github.com/groceryshare/backend/internal/domain/identity"
)

// RegisterVolunteerInput represents a volunteer application
type RegisterVolunteerInput struct {
	FullName          string `json:"full_name" binding:"required,notblank,max=255"`
	PhotoRef          string `json:"photo_ref" binding:"max=500"`
	ServiceArea       string `json:"service_area" binding:"required,notblank,max=100"`
	AvailabilityNotes string `json:"availability_notes" binding:"max=1000"`
	Attested          bool   `json:"attested"`
}

// RegisterUploadInput registers an ID-verification artifact. When the
// reference is empty the service picks one and returns an upload URL.
type RegisterUploadInput struct {
	ArtifactRef string `json:"artifact_ref" binding:"max=500"`
	ContentType string `json:"content_type" binding:"max=100"`
}

// DecisionInput carries the reason for a rejection or suspension
type DecisionInput struct {
	Reason string `json:"reason" binding:"max=500"`
}

// VolunteerResponse represents a volunteer profile in API responses
type VolunteerResponse struct {
	ID                uuid.UUID  `json:"id"`
	UserID            uuid.UUID  `json:"user_id"`
	FullName          string     `json:"full_name"`
	PhotoRef          string     `json:"photo_ref,omitempty"`
	ServiceArea       string     `json:"service_area"`
	AvailabilityNotes string     `json:"availability_notes,omitempty"`
	Status            string     `json:"status"`
	StatusReason      string     `json:"status_reason,omitempty"`
	AttestedAt        *time.Time `json:"attested_at,omitempty"`
	ReviewedAt        *time.Time `json:"reviewed_at,omitempty"`
	TotalDeliveries   int        `json:"total_deliveries"`
	RatingCount       int        `json:"rating_count"`
	AverageRating     *string    `json:"average_rating,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// ToVolunteerResponse converts the aggregate to a response
func ToVolunteerResponse(v *identity.Volunteer) VolunteerResponse {
	resp := VolunteerResponse{
		ID:                v.ID,
		UserID:            v.UserID,
		FullName:          v.FullName,
		PhotoRef:          v.PhotoRef,
		ServiceArea:       v.ServiceArea,
		AvailabilityNotes: v.AvailabilityNotes,
		Status:            v.Status.String(),
		StatusReason:      v.StatusReason,
		AttestedAt:        v.AttestedAt,
		ReviewedAt:        v.ReviewedAt,
		TotalDeliveries:   v.Stats.TotalDeliveries,
		RatingCount:       v.Stats.RatingCount,
		CreatedAt:         v.CreatedAt,
	}
	if v.Stats.AverageRating != nil {
		avg := v.Stats.AverageRating.StringFixed(2)
		resp.AverageRating = &avg
	}
	return resp
}

// UploadResponse describes a registered ID upload
type UploadResponse struct {
	ID          uuid.UUID  `json:"id"`
	ArtifactRef string     `json:"artifact_ref"`
	ExpiresAt   time.Time  `json:"expires_at"`
	UploadURL   string     `json:"upload_url,omitempty"`
	URLExpires  *time.Time `json:"upload_url_expires_at,omitempty"`
}

// DecisionResponse is the result of an admin review action
type DecisionResponse struct {
	Volunteer      VolunteerResponse `json:"volunteer"`
	ReleasedClaims int               `json:"released_claims,omitempty"`
	UploadsRemoved int               `json:"uploads_removed,omitempty"`
}
