package profile

import (
	"time"

	"github.com/google/uuid"
	"github.com/groceryshare/backend/internal/domain/identity"
)

// ContactInput is plaintext contact data as submitted by the recipient
type ContactInput struct {
	Address string `json:"address" binding:"required,notblank,max=500"`
	Phone   string `json:"phone" binding:"max=40"`
	Notes   string `json:"notes" binding:"max=1000"`
}

func (in ContactInput) contact() identity.Contact {
	return identity.Contact{Address: in.Address, Phone: in.Phone, Notes: in.Notes}
}

// RegisterRecipientInput represents a recipient sign-up
type RegisterRecipientInput struct {
	DisplayAlias string       `json:"display_alias" binding:"required,notblank,max=100"`
	GeneralArea  string       `json:"general_area" binding:"max=100"`
	Contact      ContactInput `json:"contact" binding:"required"`
	Latitude     *float64     `json:"latitude" binding:"omitempty,min=-90,max=90"`
	Longitude    *float64     `json:"longitude" binding:"omitempty,min=-180,max=180"`
}

// RecipientResponse is a recipient profile. Contact is only filled for the
// owner and for admins.
type RecipientResponse struct {
	ID           uuid.UUID    `json:"id"`
	UserID       uuid.UUID    `json:"user_id"`
	DisplayAlias string       `json:"display_alias"`
	GeneralArea  string       `json:"general_area,omitempty"`
	Latitude     *string      `json:"approx_latitude,omitempty"`
	Longitude    *string      `json:"approx_longitude,omitempty"`
	Contact      *ContactView `json:"contact,omitempty"`
	LastActiveAt time.Time    `json:"last_active_at"`
	DeletedAt    *time.Time   `json:"deleted_at,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// ContactView is decrypted contact data
type ContactView struct {
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

func toRecipientResponse(r *identity.Recipient, contact *identity.Contact) RecipientResponse {
	resp := RecipientResponse{
		ID:           r.ID,
		UserID:       r.UserID,
		DisplayAlias: r.DisplayAlias,
		GeneralArea:  r.GeneralArea,
		LastActiveAt: r.LastActiveAt,
		DeletedAt:    r.DeletedAt,
		CreatedAt:    r.CreatedAt,
	}
	if r.Location != nil {
		lat, lng := r.Location.Latitude.String(), r.Location.Longitude.String()
		resp.Latitude, resp.Longitude = &lat, &lng
	}
	if contact != nil {
		resp.Contact = &ContactView{Address: contact.Address, Phone: contact.Phone, Notes: contact.Notes}
	}
	return resp
}
