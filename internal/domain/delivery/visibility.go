package delivery

import (
	"github.com/groceryshare/backend/internal/domain/audit"
	"github.com/groceryshare/backend/internal/domain/identity"
)

// Level is how much of a request a viewer may see
type Level string

const (
	LevelNone    Level = "none"
	LevelListing Level = "listing"
	LevelHistory Level = "history"
	LevelOwner   Level = "owner"
	LevelClaim   Level = "claim"
	LevelAdmin   Level = "admin"
)

// Disclosure is the resolved view of a request for one viewer.
// AuditAction is empty when reading does not need an audit entry.
type Disclosure struct {
	Level             Level
	Contact           bool
	VolunteerIdentity bool
	AuditAction       audit.Action
}

// Visible reports whether the viewer may see the request at all
func (d Disclosure) Visible() bool {
	return d.Level != LevelNone
}

// Resolve decides what viewer may see of r. It is derived from the current
// state only, so a status change revokes access immediately.
func Resolve(viewer identity.Actor, r *DeliveryRequest) Disclosure {
	switch viewer.Role {
	case identity.RoleRecipient:
		if !viewer.IsRecipient(r.RecipientID) {
			return Disclosure{Level: LevelNone}
		}
		return Disclosure{
			Level:             LevelOwner,
			Contact:           true,
			VolunteerIdentity: r.Status.IsActiveClaim() || r.Status == StatusCompleted,
		}
	case identity.RoleVolunteer:
		if r.IsHolder(viewer.ProfileID) && viewer.IsVolunteer(viewer.ProfileID) {
			return Disclosure{
				Level:       LevelClaim,
				Contact:     true,
				AuditAction: audit.ActionAddressAccessed,
			}
		}
		if r.LastVolunteerID != nil && viewer.IsVolunteer(*r.LastVolunteerID) {
			return Disclosure{Level: LevelHistory}
		}
		if r.Status == StatusOpen {
			return Disclosure{Level: LevelListing}
		}
		return Disclosure{Level: LevelNone}
	case identity.RoleAdmin:
		return Disclosure{
			Level:             LevelAdmin,
			Contact:           true,
			VolunteerIdentity: true,
			AuditAction:       audit.ActionAdminViewedRecipient,
		}
	}
	return Disclosure{Level: LevelNone}
}
