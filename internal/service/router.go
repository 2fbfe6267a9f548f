package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/capitalize-ai/inbox-platform/internal/model"
	"github.com/capitalize-ai/inbox-platform/internal/store"
	"github.com/capitalize-ai/inbox-platform/pkg/logger"
	"github.com/capitalize-ai/inbox-platform/pkg/metrics"
)

// RouterService finds or creates the single open conversation for an
// inbound event and appends the customer message. It is the only component
// that creates conversations.
type RouterService struct {
	store     store.Store
	publisher Publisher
	logger    *logger.Logger
}

// NewRouterService creates a new conversation router.
func NewRouterService(st store.Store, pub Publisher, log *logger.Logger) *RouterService {
	return &RouterService{
		store:     st,
		publisher: pub,
		logger:    log,
	}
}

// RouteInbound resolves the conversation slot for the event and appends the
// inbound message. The find-or-create and the dedup-checked append are each
// atomic in the store, so concurrent deliveries of the same provider
// message id yield exactly one conversation and one message. The returned
// bool is false on an idempotent replay.
func (s *RouterService) RouteInbound(ctx context.Context, event model.InboundEvent) (*model.Conversation, *model.Message, bool, error) {
	conv, created, err := s.store.FindOrCreate(ctx, event.BusinessID, event.CustomerID, event.Channel)
	if err != nil {
		return nil, nil, false, &model.PersistenceError{Op: "conversation find-or-create", Err: err}
	}
	if created {
		s.logger.Info("conversation created",
			zap.String("conversation_id", conv.ID),
			zap.String("business_id", conv.BusinessID),
			zap.String("channel", string(conv.Channel)),
		)
	}

	msg := &model.Message{
		ConversationID: conv.ID,
		BusinessID:     event.BusinessID,
		Sender:         model.SenderCustomer,
		Content:        event.Content,
		MessageType:    event.MessageType,
		ChannelData: model.ChannelData{
			ProviderMessageID: event.ProviderMessageID,
		},
		CreatedAt: event.Timestamp,
	}

	appended, err := s.store.AppendMessage(ctx, msg)
	if err != nil {
		return nil, nil, false, &model.PersistenceError{Op: "message append", Err: err}
	}
	if !appended {
		// Idempotent replay: the provider redelivered a message we already
		// stored. Return the conversation without a new message.
		s.logger.Debug("duplicate delivery ignored",
			zap.String("conversation_id", conv.ID),
			zap.String("provider_message_id", event.ProviderMessageID),
		)
		return conv, nil, false, nil
	}

	metrics.MessagesTotal.WithLabelValues(event.BusinessID, string(model.SenderCustomer)).Inc()

	if s.publisher != nil {
		if _, err := s.publisher.PublishMessage(ctx, msg); err != nil {
			s.logger.Error("failed to publish inbound message",
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
		}
	}

	return conv, msg, true, nil
}
