package event

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/groceryshare/backend/internal/domain/delivery"
	"github.com/groceryshare/backend/internal/domain/identity"
	"github.com/groceryshare/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// Notification is a message-free nudge to one party. It carries identifiers
// and a kind only; whatever renders it looks the rest up with its own access.
type Notification struct {
	Kind          string
	Audience      identity.Role
	ProfileID     uuid.UUID // recipient or volunteer id; uuid.Nil for admins
	RequestID     uuid.UUID
	ExcludeUserID uuid.UUID // for message notifications, the sender
}

// Notifier delivers notifications. Email or push transports plug in here.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the log
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a LogNotifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.Named("notify")}
}

// Notify implements Notifier
func (n *LogNotifier) Notify(_ context.Context, note Notification) error {
	n.logger.Info("notification",
		zap.String("kind", note.Kind),
		zap.String("audience", note.Audience.String()),
		zap.String("profile_id", note.ProfileID.String()),
		zap.String("request_id", note.RequestID.String()),
	)
	return nil
}

// NotificationHandler turns domain events into notifications
type NotificationHandler struct {
	notifier Notifier
}

// NewNotificationHandler creates a NotificationHandler
func NewNotificationHandler(notifier Notifier) *NotificationHandler {
	return &NotificationHandler{notifier: notifier}
}

// EventTypes implements shared.EventHandler
func (h *NotificationHandler) EventTypes() []string {
	return []string{
		delivery.EventTypeDeliveryClaimed,
		delivery.EventTypeDeliveryPickedUp,
		delivery.EventTypeDeliveryRequeued,
		delivery.EventTypeDeliveryCanceled,
		delivery.EventTypeDeliveryCompleted,
		delivery.EventTypeMessageSent,
		identity.EventTypeVolunteerApproved,
		identity.EventTypeVolunteerRejected,
		identity.EventTypeVolunteerSuspended,
		identity.EventTypeVolunteerReinstated,
	}
}

// Handle implements shared.EventHandler
func (h *NotificationHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	for _, n := range notificationsFor(event) {
		if err := h.notifier.Notify(ctx, n); err != nil {
			return fmt.Errorf("notify %s: %w", n.Kind, err)
		}
	}
	return nil
}

func notificationsFor(event shared.DomainEvent) []Notification {
	toRecipient := func(kind string, recipientID, requestID uuid.UUID) Notification {
		return Notification{Kind: kind, Audience: identity.RoleRecipient, ProfileID: recipientID, RequestID: requestID}
	}
	toVolunteer := func(kind string, volunteerID, requestID uuid.UUID) Notification {
		return Notification{Kind: kind, Audience: identity.RoleVolunteer, ProfileID: volunteerID, RequestID: requestID}
	}

	switch e := event.(type) {
	case *delivery.DeliveryClaimedEvent:
		return []Notification{toRecipient("delivery_claimed", e.RecipientID, e.RequestID)}
	case *delivery.DeliveryPickedUpEvent:
		return []Notification{toRecipient("delivery_picked_up", e.RecipientID, e.RequestID)}
	case *delivery.DeliveryRequeuedEvent:
		out := []Notification{toRecipient("delivery_requeued", e.RecipientID, e.RequestID)}
		if e.ReleasedBy != delivery.CanceledByVolunteer {
			out = append(out, toVolunteer("claim_released", e.VolunteerID, e.RequestID))
		}
		return out
	case *delivery.DeliveryCanceledEvent:
		var out []Notification
		if e.CanceledBy != delivery.CanceledByRecipient {
			out = append(out, toRecipient("delivery_canceled", e.RecipientID, e.RequestID))
		}
		if e.VolunteerID != nil && e.CanceledBy != delivery.CanceledByVolunteer {
			out = append(out, toVolunteer("delivery_canceled", *e.VolunteerID, e.RequestID))
		}
		return out
	case *delivery.DeliveryCompletedEvent:
		return []Notification{toVolunteer("delivery_completed", e.VolunteerID, e.RequestID)}
	case *delivery.MessageSentEvent:
		return []Notification{{Kind: "message_received", RequestID: e.RequestID, ExcludeUserID: e.SenderUserID}}
	case *identity.VolunteerVettedEvent:
		if e.EventType() == identity.EventTypeVolunteerRegistered {
			return nil
		}
		return []Notification{{
			Kind:      "volunteer_" + string(e.Status),
			Audience:  identity.RoleVolunteer,
			ProfileID: e.VolunteerID,
		}}
	}
	return nil
}

var _ shared.EventHandler = (*NotificationHandler)(nil)
