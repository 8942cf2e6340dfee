package audit

import (
	"time"

	"github.com/google/uuid"
	"github.com/groceryshare/backend/internal/domain/identity"
	"github.com/groceryshare/backend/internal/domain/shared"
	"golang.org/x/text/unicode/norm"
)

// Refs are the entity references an entry may point at. All optional.
type Refs struct {
	DeliveryID  *uuid.UUID
	RecipientID *uuid.UUID
	VolunteerID *uuid.UUID
}

// Entry is an append-only record of a sensitive operation.
// Seq is assigned by the store on append and orders entries globally.
type Entry struct {
	Seq         int64
	ID          uuid.UUID
	Action      Action
	ActorRole   identity.Role
	ActorUserID *uuid.UUID
	Refs
	Metadata  map[string]string
	CreatedAt time.Time
}

// Option tunes the guard applied by NewEntry
type Option func(*guard)

// Forbid rejects the entry if any metadata value carries one of the given
// plaintexts. Callers pass the decrypted contact fields they hold.
func Forbid(plaintexts ...string) Option {
	return func(g *guard) {
		for _, p := range plaintexts {
			if f := fold(p); len(f) >= minForbidden {
				g.forbidden = append(g.forbidden, f)
			}
		}
	}
}

// NewEntry builds a guarded audit entry. Every value must be a short code or
// integer; anything that looks like free text or a phone number fails with a
// data integrity violation so the surrounding transaction aborts.
func NewEntry(action Action, actor identity.Actor, refs Refs, metadata map[string]string, opts ...Option) (*Entry, error) {
	if !action.IsValid() {
		return nil, shared.NewDomainError(shared.CodeDataIntegrityViolated, "Unknown audit action: "+string(action))
	}
	if !actor.Role.IsValid() {
		return nil, shared.NewDomainError(shared.CodeDataIntegrityViolated, "Audit entry requires a known actor role")
	}
	g := guard{}
	for _, opt := range opts {
		opt(&g)
	}
	if err := g.check(metadata); err != nil {
		return nil, err
	}

	meta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		meta[k] = norm.NFKC.String(v)
	}
	return &Entry{
		ID:          uuid.New(),
		Action:      action,
		ActorRole:   actor.Role,
		ActorUserID: actor.UserRef(),
		Refs:        refs,
		Metadata:    meta,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// DeliveryRefs is a shorthand for entries about a single delivery request
func DeliveryRefs(deliveryID, recipientID uuid.UUID, volunteerID *uuid.UUID) Refs {
	d, r := deliveryID, recipientID
	refs := Refs{DeliveryID: &d, RecipientID: &r}
	if volunteerID != nil {
		v := *volunteerID
		refs.VolunteerID = &v
	}
	return refs
}
