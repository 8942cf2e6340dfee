package delivery

import (
	"context"
	"time"

	"github.com/google/uuid"
	appaudit "github.com/groceryshare/backend/internal/application/audit"
	"github.com/groceryshare/backend/internal/application/transaction"
	"github.com/groceryshare/backend/internal/domain/audit"
	"github.com/groceryshare/backend/internal/domain/delivery"
	"github.com/groceryshare/backend/internal/domain/identity"
	"github.com/groceryshare/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// MessageService carries chat between the recipient and the claim holder.
// Clients poll; the message ID is the cursor.
type MessageService struct {
	scope          transaction.Scope
	recorder       *appaudit.Recorder
	policy         Policy
	logger         *zap.Logger
	eventPublisher shared.EventPublisher
	now            func() time.Time
}

// NewMessageService creates a new MessageService
func NewMessageService(scope transaction.Scope, recorder *appaudit.Recorder, policy Policy, logger *zap.Logger) *MessageService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MessageService{
		scope:    scope,
		recorder: recorder,
		policy:   policy,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *MessageService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// Send posts a message on an active claim. The body never reaches the audit log.
func (s *MessageService) Send(ctx context.Context, actor identity.Actor, requestID uuid.UUID, input SendMessageInput) (*MessageResponse, error) {
	now := s.now()
	var msg *delivery.Message
	err := s.scope.Execute(ctx, func(repos transaction.Repositories) error {
		req, err := repos.Deliveries().FindByID(ctx, requestID)
		if err != nil {
			return err
		}
		if !delivery.CanMessage(actor, req) {
			return shared.ErrForbidden
		}
		msg, err = delivery.NewMessage(req.ID, actor, input.Body, now)
		if err != nil {
			return err
		}
		if err := repos.Messages().Create(ctx, msg); err != nil {
			return err
		}
		if actor.Role == identity.RoleRecipient {
			if err := repos.Recipients().TouchActivity(ctx, req.RecipientID, now); err != nil {
				return err
			}
		}
		return s.recorder.Record(ctx, repos.Audit(), audit.ActionMessageSent, actor,
			audit.DeliveryRefs(req.ID, req.RecipientID, req.VolunteerID),
			map[string]string{audit.MetaSenderRole: actor.Role.String()})
	})
	if err != nil {
		return nil, err
	}

	if s.eventPublisher != nil {
		if err := s.eventPublisher.Publish(ctx, delivery.NewMessageSentEvent(msg)); err != nil {
			s.logger.Warn("Failed to publish message event", zap.Error(err))
		}
	}
	resp := toMessageResponse(msg)
	return &resp, nil
}

// List returns messages strictly after the cursor in send order and marks
// the other party's messages as read for participants.
func (s *MessageService) List(ctx context.Context, actor identity.Actor, requestID uuid.UUID, afterID int64, limit int) (*MessagePage, error) {
	if limit <= 0 || limit > delivery.DefaultMessagePageSize {
		limit = delivery.DefaultMessagePageSize
	}
	if afterID < 0 {
		afterID = 0
	}
	now := s.now()

	page := &MessagePage{
		NextCursor:          afterID,
		PollIntervalSeconds: int(s.policy.MessagePollInterval / time.Second),
	}
	err := s.scope.Execute(ctx, func(repos transaction.Repositories) error {
		req, err := repos.Deliveries().FindByID(ctx, requestID)
		if err != nil {
			return err
		}
		if !delivery.CanReadMessages(actor, req) {
			return shared.ErrForbidden
		}
		msgs, err := repos.Messages().ListAfter(ctx, req.ID, afterID, limit)
		if err != nil {
			return err
		}
		page.Messages = make([]MessageResponse, len(msgs))
		for i := range msgs {
			if !actor.IsAdmin() && !msgs[i].IsFrom(actor.UserID) {
				msgs[i].MarkRead(now)
			}
			page.Messages[i] = toMessageResponse(&msgs[i])
		}
		if len(msgs) == 0 {
			return nil
		}
		page.NextCursor = msgs[len(msgs)-1].ID
		if actor.IsAdmin() {
			return nil
		}
		_, err = repos.Messages().MarkRead(ctx, req.ID, actor.UserID, page.NextCursor)
		return err
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// UnreadCount returns how many messages from the other party are unread
func (s *MessageService) UnreadCount(ctx context.Context, actor identity.Actor, requestID uuid.UUID) (int64, error) {
	var count int64
	err := s.scope.Execute(ctx, func(repos transaction.Repositories) error {
		req, err := repos.Deliveries().FindByID(ctx, requestID)
		if err != nil {
			return err
		}
		if !delivery.CanReadMessages(actor, req) {
			return shared.ErrForbidden
		}
		count, err = repos.Messages().CountUnread(ctx, req.ID, actor.UserID)
		return err
	})
	return count, err
}
