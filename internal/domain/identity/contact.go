package identity

import (
	"strings"

	"github.com/groceryshare/backend/internal/domain/shared"
)

// ContactField names an encrypted recipient field. It is bound into the
// ciphertext so a value sealed for one field cannot be opened as another.
type ContactField string

const (
	FieldAddress ContactField = "address"
	FieldPhone   ContactField = "phone"
	FieldNotes   ContactField = "notes"
)

// PurgeMarker replaces the address ciphertext of a purged recipient
const PurgeMarker = "[PURGED]"

// ContactCipher is the encryption gateway capability handed to services at startup
type ContactCipher interface {
	Seal(field ContactField, plaintext string) (string, error)
	Open(field ContactField, ciphertext string) (string, error)
	KeyID() string
}

// Contact is recipient contact data in plaintext. It only lives for the
// duration of a single request.
type Contact struct {
	Address string
	Phone   string
	Notes   string
}

// SealedContact is contact data as stored
type SealedContact struct {
	Address string
	Phone   *string
	Notes   *string
}

// Validate checks the plaintext contact before sealing
func (c Contact) Validate() error {
	if strings.TrimSpace(c.Address) == "" {
		return shared.NewDomainError(shared.CodeInvalidInput, "Address is required")
	}
	if len(c.Address) > 500 {
		return shared.NewDomainError(shared.CodeInvalidInput, "Address cannot exceed 500 characters")
	}
	if len(c.Phone) > 40 {
		return shared.NewDomainError(shared.CodeInvalidInput, "Phone cannot exceed 40 characters")
	}
	if len(c.Notes) > 1000 {
		return shared.NewDomainError(shared.CodeInvalidInput, "Delivery notes cannot exceed 1000 characters")
	}
	return nil
}

// Values returns the non-empty plaintext values, used to guard audit metadata
func (c Contact) Values() []string {
	values := make([]string, 0, 3)
	for _, v := range []string{c.Address, c.Phone, c.Notes} {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	return values
}

// SealContact encrypts every present field of c
func SealContact(cipher ContactCipher, c Contact) (SealedContact, error) {
	if err := c.Validate(); err != nil {
		return SealedContact{}, err
	}
	address, err := cipher.Seal(FieldAddress, strings.TrimSpace(c.Address))
	if err != nil {
		return SealedContact{}, err
	}
	sealed := SealedContact{Address: address}
	if phone := strings.TrimSpace(c.Phone); phone != "" {
		v, err := cipher.Seal(FieldPhone, phone)
		if err != nil {
			return SealedContact{}, err
		}
		sealed.Phone = &v
	}
	if notes := strings.TrimSpace(c.Notes); notes != "" {
		v, err := cipher.Seal(FieldNotes, notes)
		if err != nil {
			return SealedContact{}, err
		}
		sealed.Notes = &v
	}
	return sealed, nil
}

// OpenContact decrypts a sealed contact
func OpenContact(cipher ContactCipher, s SealedContact) (Contact, error) {
	var c Contact
	var err error
	if s.Address != "" && s.Address != PurgeMarker {
		if c.Address, err = cipher.Open(FieldAddress, s.Address); err != nil {
			return Contact{}, err
		}
	}
	if s.Phone != nil {
		if c.Phone, err = cipher.Open(FieldPhone, *s.Phone); err != nil {
			return Contact{}, err
		}
	}
	if s.Notes != nil {
		if c.Notes, err = cipher.Open(FieldNotes, *s.Notes); err != nil {
			return Contact{}, err
		}
	}
	return c, nil
}
