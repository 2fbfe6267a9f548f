package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/capitalize-ai/inbox-platform/internal/model"
	"github.com/capitalize-ai/inbox-platform/internal/store"
	"github.com/capitalize-ai/inbox-platform/pkg/logger"
)

// ConversationService owns conversation attribute mutations: status,
// priority, assignment, and tags. Creation happens only in the router;
// the AI handling flag only in the handoff controller.
type ConversationService struct {
	store    store.Store
	sessions *SessionRegistry
	logger   *logger.Logger
}

// NewConversationService creates a new conversation service.
func NewConversationService(st store.Store, sessions *SessionRegistry, log *logger.Logger) *ConversationService {
	return &ConversationService{
		store:    st,
		sessions: sessions,
		logger:   log,
	}
}

// Update applies attribute changes. Zero-value fields are left untouched.
// Moving to RESOLVED or CLOSED also closes the AI session for the thread.
func (s *ConversationService) Update(ctx context.Context, businessID, id string, req *model.UpdateConversationRequest) (*model.Conversation, error) {
	if req.Status != "" && !model.ValidConversationStatus(req.Status) {
		return nil, model.NewValidationError("status", "unknown conversation status")
	}
	if req.Priority != "" && !model.ValidPriority(req.Priority) {
		return nil, model.NewValidationError("priority", "unknown priority")
	}

	conv, err := s.store.UpdateConversation(ctx, businessID, id, func(c *model.Conversation) error {
		if req.Status != "" {
			c.Status = req.Status
		}
		if req.Priority != "" {
			c.Priority = req.Priority
		}
		if req.AssignedTo != nil {
			c.AssignedTo = *req.AssignedTo
		}
		if req.Tags != nil {
			c.Tags = req.Tags
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if conv.Status == model.ConversationResolved || conv.Status == model.ConversationClosed {
		if s.sessions != nil {
			s.sessions.Close(conv.ID)
		}
	}

	s.logger.Info("conversation updated",
		zap.String("conversation_id", id),
		zap.String("status", string(conv.Status)),
	)

	return conv, nil
}

// Delete soft-deletes a conversation and discards its AI session.
func (s *ConversationService) Delete(ctx context.Context, businessID, id string) error {
	if err := s.store.DeleteConversation(ctx, businessID, id); err != nil {
		return err
	}
	if s.sessions != nil {
		s.sessions.Close(id)
	}
	return nil
}
