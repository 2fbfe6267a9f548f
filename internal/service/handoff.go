package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/capitalize-ai/inbox-platform/internal/model"
	"github.com/capitalize-ai/inbox-platform/internal/store"
	"github.com/capitalize-ai/inbox-platform/pkg/logger"
)

// HandoffService is the sole mutator of a conversation's isAiHandling flag.
// The invariant it guards: the AI never replies to a conversation currently
// owned by a human.
type HandoffService struct {
	store  store.Store
	logger *logger.Logger
}

// NewHandoffService creates a new handoff controller.
func NewHandoffService(st store.Store, log *logger.Logger) *HandoffService {
	return &HandoffService{
		store:  st,
		logger: log,
	}
}

// SetHandling transfers reply ownership between the AI and a human agent.
func (s *HandoffService) SetHandling(ctx context.Context, businessID, conversationID string, aiHandling bool) (*model.Conversation, error) {
	conv, err := s.store.UpdateConversation(ctx, businessID, conversationID, func(c *model.Conversation) error {
		c.IsAIHandling = aiHandling
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("conversation handoff",
		zap.String("conversation_id", conversationID),
		zap.Bool("ai_handling", aiHandling),
	)

	return conv, nil
}

// ShouldInvokeAI reads the handling flag at event time. The dispatcher
// calls this per inbound event, never once per batch, so a takeover that
// completed before the event began processing is always observed.
func (s *HandoffService) ShouldInvokeAI(ctx context.Context, businessID, conversationID string) (bool, error) {
	conv, err := s.store.GetConversation(ctx, businessID, conversationID)
	if err != nil {
		return false, err
	}
	return conv.IsAIHandling, nil
}
