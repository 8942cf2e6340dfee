package delivery

import (
	"github.com/groceryshare/backend/internal/domain/identity"
	"github.com/groceryshare/backend/internal/domain/shared"
)

// CancelActor records who ended or released a request
type CancelActor string

const (
	CanceledByRecipient CancelActor = "recipient"
	CanceledByVolunteer CancelActor = "volunteer"
	CanceledByAdmin     CancelActor = "admin"
	CanceledBySystem    CancelActor = "system"
)

// IsValid checks if the actor is a known value
func (a CancelActor) IsValid() bool {
	switch a {
	case CanceledByRecipient, CanceledByVolunteer, CanceledByAdmin, CanceledBySystem:
		return true
	}
	return false
}

// CancelOutcome is the result of a cancel call
type CancelOutcome string

const (
	// OutcomeRequeued returns the request to the open pool with a priority bump
	OutcomeRequeued CancelOutcome = "requeued"
	// OutcomeCanceled ends the request
	OutcomeCanceled CancelOutcome = "canceled"
)

// CancelPolicy holds the deployment-specific knobs of the cancel table
type CancelPolicy struct {
	// AdminRequeues makes admin cancellation of a held request return it to the pool
	AdminRequeues bool
}

// RequeuePriorityStep is added to the priority each time a request is requeued
const RequeuePriorityStep = 1

// ResolveCancelOutcome applies the cancel policy table:
//
//	volunteer holding the claim      claimed/picked_up  -> requeue
//	system                           claimed/picked_up  -> requeue
//	system                           open               -> canceled
//	recipient owning the request     any non-terminal   -> canceled
//	admin                            any non-terminal   -> canceled (requeue if AdminRequeues and held)
//
// Everyone else is unauthorized. Terminal requests never move, but only
// actors related to the request learn that it is terminal.
func ResolveCancelOutcome(actor identity.Actor, r *DeliveryRequest, p CancelPolicy) (CancelOutcome, CancelActor, error) {
	terminal := r.Status.IsTerminal()
	held := r.Status.IsActiveClaim()

	switch actor.Role {
	case identity.RoleVolunteer:
		if !r.HasHeld(actor.ProfileID) {
			return "", "", shared.ErrUnauthorized
		}
		if terminal {
			return "", "", shared.ErrTerminalState
		}
		if !r.IsHolder(actor.ProfileID) {
			return "", "", shared.ErrUnauthorized
		}
		return OutcomeRequeued, CanceledByVolunteer, nil
	case identity.RoleSystem:
		if terminal {
			return "", "", shared.ErrTerminalState
		}
		if held {
			return OutcomeRequeued, CanceledBySystem, nil
		}
		return OutcomeCanceled, CanceledBySystem, nil
	case identity.RoleRecipient:
		if !actor.IsRecipient(r.RecipientID) {
			return "", "", shared.ErrUnauthorized
		}
		if terminal {
			return "", "", shared.ErrTerminalState
		}
		return OutcomeCanceled, CanceledByRecipient, nil
	case identity.RoleAdmin:
		if terminal {
			return "", "", shared.ErrTerminalState
		}
		if p.AdminRequeues && held {
			return OutcomeRequeued, CanceledByAdmin, nil
		}
		return OutcomeCanceled, CanceledByAdmin, nil
	}
	return "", "", shared.ErrUnauthorized
}
