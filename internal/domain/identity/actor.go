package identity

import (
	"github.com/google/uuid"
)

// Role is the tag of the actor union supplied by the auth layer
type Role string

const (
	RoleRecipient Role = "recipient"
	RoleVolunteer Role = "volunteer"
	RoleAdmin     Role = "admin"
	RoleSystem    Role = "system"
)

// IsValid checks if the role is a known value
func (r Role) IsValid() bool {
	switch r {
	case RoleRecipient, RoleVolunteer, RoleAdmin, RoleSystem:
		return true
	}
	return false
}

// String returns the string representation of Role
func (r Role) String() string {
	return string(r)
}

// Actor is the authenticated caller of a core operation.
// ProfileID is the recipient or volunteer ID for those roles and uuid.Nil otherwise.
type Actor struct {
	UserID    uuid.UUID
	Role      Role
	ProfileID uuid.UUID
}

// SystemActor is used for sweeps and retention jobs
var SystemActor = Actor{Role: RoleSystem}

// NewRecipientActor builds an actor for a recipient profile
func NewRecipientActor(userID, recipientID uuid.UUID) Actor {
	return Actor{UserID: userID, Role: RoleRecipient, ProfileID: recipientID}
}

// NewVolunteerActor builds an actor for a volunteer profile
func NewVolunteerActor(userID, volunteerID uuid.UUID) Actor {
	return Actor{UserID: userID, Role: RoleVolunteer, ProfileID: volunteerID}
}

// NewAdminActor builds an actor for an administrator
func NewAdminActor(userID uuid.UUID) Actor {
	return Actor{UserID: userID, Role: RoleAdmin}
}

// IsRecipient reports whether the actor is the given recipient
func (a Actor) IsRecipient(recipientID uuid.UUID) bool {
	return a.Role == RoleRecipient && a.ProfileID != uuid.Nil && a.ProfileID == recipientID
}

// IsVolunteer reports whether the actor is the given volunteer
func (a Actor) IsVolunteer(volunteerID uuid.UUID) bool {
	return a.Role == RoleVolunteer && a.ProfileID != uuid.Nil && a.ProfileID == volunteerID
}

// IsAdmin reports whether the actor is an administrator
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// IsSystem reports whether the actor is an automated job
func (a Actor) IsSystem() bool {
	return a.Role == RoleSystem
}

// UserRef returns the user id as a pointer, nil for the system actor
func (a Actor) UserRef() *uuid.UUID {
	if a.UserID == uuid.Nil {
		return nil
	}
	id := a.UserID
	return &id
}
