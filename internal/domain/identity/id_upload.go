package identity

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/groceryshare/backend/internal/domain/shared"
)

// DefaultIDUploadExpiry is how long an ID-verification artifact may exist
const DefaultIDUploadExpiry = 72 * time.Hour

// IDUpload references a stored ID-verification artifact. The bytes live in
// object storage; only the reference and its deadline are kept here.
type IDUpload struct {
	shared.BaseEntity
	VolunteerID uuid.UUID
	ArtifactRef string
	ExpiresAt   time.Time
}

// NewIDUpload registers an artifact that must be deleted by expiresAt at the latest
func NewIDUpload(volunteerID uuid.UUID, artifactRef string, ttl time.Duration) (*IDUpload, error) {
	if volunteerID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Volunteer ID cannot be empty")
	}
	artifactRef = strings.TrimSpace(artifactRef)
	if artifactRef == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Artifact reference cannot be empty")
	}
	if len(artifactRef) > 500 {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Artifact reference cannot exceed 500 characters")
	}
	if ttl <= 0 {
		ttl = DefaultIDUploadExpiry
	}
	base := shared.NewBaseEntity()
	return &IDUpload{
		BaseEntity:  base,
		VolunteerID: volunteerID,
		ArtifactRef: artifactRef,
		ExpiresAt:   base.CreatedAt.Add(ttl),
	}, nil
}

// IsExpired reports whether the artifact has outlived its deadline
func (u *IDUpload) IsExpired(now time.Time) bool {
	return !now.Before(u.ExpiresAt)
}
