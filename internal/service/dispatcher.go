package service

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/capitalize-ai/inbox-platform/internal/delivery"
	"github.com/capitalize-ai/inbox-platform/internal/llm"
	"github.com/capitalize-ai/inbox-platform/internal/model"
	"github.com/capitalize-ai/inbox-platform/internal/store"
	"github.com/capitalize-ai/inbox-platform/pkg/logger"
	"github.com/capitalize-ai/inbox-platform/pkg/metrics"
)

// fallbackReply is sent when the AI collaborator fails or times out, so the
// customer never gets silence.
const fallbackReply = "Sorry, we're having trouble responding right now. " +
	"A member of our team will follow up with you shortly."

const historyLimit = 20

// DispatcherConfig bounds the AI call and outbound delivery retries.
type DispatcherConfig struct {
	AITimeout          time.Duration
	DeliveryMaxRetries int
	DeliveryBackoff    time.Duration
}

// DispatcherService owns the turn-taking contract: it gates the AI on the
// handoff flag, consults the trigger detector, bounds the AI call, persists
// the reply, and delivers it with bounded retries.
type DispatcherService struct {
	store    store.Store
	handoff  *HandoffService
	tickets  *TicketService
	sessions *SessionRegistry
	detector TriggerDetector
	ai       llm.Client
	sender   delivery.Sender
	pub      Publisher
	cfg      DispatcherConfig
	logger   *logger.Logger
}

// NewDispatcherService creates a new reply dispatcher.
func NewDispatcherService(
	st store.Store,
	handoff *HandoffService,
	tickets *TicketService,
	sessions *SessionRegistry,
	detector TriggerDetector,
	ai llm.Client,
	sender delivery.Sender,
	pub Publisher,
	cfg DispatcherConfig,
	log *logger.Logger,
) *DispatcherService {
	if cfg.AITimeout <= 0 {
		cfg.AITimeout = 30 * time.Second
	}
	if cfg.DeliveryBackoff <= 0 {
		cfg.DeliveryBackoff = 500 * time.Millisecond
	}
	return &DispatcherService{
		store:    st,
		handoff:  handoff,
		tickets:  tickets,
		sessions: sessions,
		detector: detector,
		ai:       ai,
		sender:   sender,
		pub:      pub,
		cfg:      cfg,
		logger:   log,
	}
}

// Dispatch runs one AI turn for an inbound event that the router already
// persisted. When a human owns the conversation the turn is skipped; the
// message stays stored for the human to answer.
func (s *DispatcherService) Dispatch(ctx context.Context, conv *model.Conversation, event model.InboundEvent) (*model.DispatchResult, error) {
	// The flag is read per event, not per batch, so a takeover that
	// completed before this event began is always honored.
	aiHandling, err := s.handoff.ShouldInvokeAI(ctx, event.BusinessID, conv.ID)
	if err != nil {
		return nil, err
	}
	if !aiHandling {
		return &model.DispatchResult{Outcome: model.OutcomeSkipped}, nil
	}

	result := &model.DispatchResult{}

	topic := string(model.CategoryGeneral)
	if trigger, ok := s.detector.Detect(event.Content); ok {
		topic = string(trigger.Category)
		result.Ticket = s.openTriggeredTicket(ctx, conv, event, trigger)
	}
	s.sessions.Touch(event.BusinessID, conv.ID, topic, event.Content)

	reply, outcome := s.generateReply(ctx, conv, event)
	result.Outcome = outcome

	msg := &model.Message{
		ConversationID: conv.ID,
		BusinessID:     event.BusinessID,
		Sender:         model.SenderAIAgent,
		Content:        reply,
		MessageType:    model.MessageTypeText,
		CreatedAt:      time.Now(),
	}
	if _, err := s.store.AppendMessage(ctx, msg); err != nil {
		return nil, &model.PersistenceError{Op: "reply append", Err: err}
	}
	result.Reply = msg

	metrics.MessagesTotal.WithLabelValues(event.BusinessID, string(model.SenderAIAgent)).Inc()
	if s.pub != nil {
		if _, err := s.pub.PublishMessage(ctx, msg); err != nil {
			s.logger.Error("failed to publish reply", zap.String("message_id", msg.ID), zap.Error(err))
		}
	}

	if err := s.deliver(ctx, conv, reply); err != nil {
		// The reply stays persisted and visible in the inbox even though
		// the customer never received it, so a human can follow up.
		result.DeliveryFailed = true
		if markErr := s.store.MarkDeliveryFailed(ctx, event.BusinessID, msg.ID); markErr != nil {
			s.logger.Error("failed to flag undelivered reply", zap.String("message_id", msg.ID), zap.Error(markErr))
		}
		metrics.DeliveryFailuresTotal.WithLabelValues(string(conv.Channel)).Inc()
		s.logger.Error("reply delivery failed after retries",
			zap.String("conversation_id", conv.ID),
			zap.String("channel", string(conv.Channel)),
			zap.Error(err),
		)
	}

	return result, nil
}

// SendAgentMessage persists and delivers a human agent's reply. The same
// bounded retry policy as AI replies applies; a failed delivery is flagged
// on the stored message, not returned as an error.
func (s *DispatcherService) SendAgentMessage(ctx context.Context, businessID, conversationID, agentID, content string) (*model.Message, error) {
	if content == "" {
		return nil, model.NewValidationError("content", "content is required")
	}

	conv, err := s.store.GetConversation(ctx, businessID, conversationID)
	if err != nil {
		return nil, err
	}

	msg := &model.Message{
		ConversationID: conversationID,
		BusinessID:     businessID,
		Sender:         model.SenderHumanAgent,
		Content:        content,
		MessageType:    model.MessageTypeText,
		IsRead:         true,
		CreatedAt:      time.Now(),
		ChannelData: model.ChannelData{
			Raw: map[string]any{"agent_id": agentID},
		},
	}
	if _, err := s.store.AppendMessage(ctx, msg); err != nil {
		return nil, &model.PersistenceError{Op: "agent message append", Err: err}
	}

	metrics.MessagesTotal.WithLabelValues(businessID, string(model.SenderHumanAgent)).Inc()
	if s.pub != nil {
		if _, err := s.pub.PublishMessage(ctx, msg); err != nil {
			s.logger.Error("failed to publish agent message", zap.String("message_id", msg.ID), zap.Error(err))
		}
	}

	if err := s.deliver(ctx, conv, content); err != nil {
		if markErr := s.store.MarkDeliveryFailed(ctx, businessID, msg.ID); markErr != nil {
			s.logger.Error("failed to flag undelivered agent message", zap.String("message_id", msg.ID), zap.Error(markErr))
		}
		msg.DeliveryFailed = true
		metrics.DeliveryFailuresTotal.WithLabelValues(string(conv.Channel)).Inc()
		s.logger.Error("agent message delivery failed after retries",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
	}

	return msg, nil
}

// CloseSession summarizes and discards the AI turn context for a
// conversation, typically when it resolves or a human takes over for good.
func (s *DispatcherService) CloseSession(conversationID string) {
	s.sessions.Close(conversationID)
}

func (s *DispatcherService) generateReply(ctx context.Context, conv *model.Conversation, event model.InboundEvent) (string, model.Outcome) {
	if s.ai == nil {
		metrics.RecordAITurn(string(model.OutcomeDegraded), 0)
		return fallbackReply, model.OutcomeDegraded
	}

	input := &llm.ReplyInput{
		Text:    event.Content,
		History: s.history(ctx, conv),
	}
	for _, att := range event.Attachments {
		if att.Type == model.AttachmentImage {
			input.ImageURL = att.URL
			break
		}
	}
	if sess, ok := s.sessions.Get(conv.ID); ok {
		input.Topic = sess.CurrentTopic
	}

	aiCtx, cancel := context.WithTimeout(ctx, s.cfg.AITimeout)
	defer cancel()

	start := time.Now()
	reply, toolsUsed, err := s.ai.GenerateReply(aiCtx, input)
	duration := time.Since(start).Seconds()

	if err != nil || reply == "" {
		metrics.RecordAITurn(string(model.OutcomeDegraded), duration)
		s.logger.Warn("AI reply degraded to fallback",
			zap.String("conversation_id", conv.ID),
			zap.Error(err),
		)
		return fallbackReply, model.OutcomeDegraded
	}

	metrics.RecordAITurn(string(model.OutcomeReplied), duration)
	if len(toolsUsed) > 0 {
		s.logger.Debug("AI tools used",
			zap.String("conversation_id", conv.ID),
			zap.Strings("tools", toolsUsed),
		)
	}
	return reply, model.OutcomeReplied
}

// history maps the stored thread, excluding the event being answered, into
// provider chat turns.
func (s *DispatcherService) history(ctx context.Context, conv *model.Conversation) []llm.ChatMessage {
	msgs, _, err := s.store.ListMessages(ctx, conv.BusinessID, conv.ID, 100, 0)
	if err != nil {
		s.logger.Warn("failed to load history", zap.String("conversation_id", conv.ID), zap.Error(err))
		return nil
	}
	if len(msgs) > 0 {
		msgs = msgs[:len(msgs)-1]
	}
	if len(msgs) > historyLimit {
		msgs = msgs[len(msgs)-historyLimit:]
	}

	history := make([]llm.ChatMessage, 0, len(msgs))
	for _, msg := range msgs {
		role := "user"
		switch msg.Sender {
		case model.SenderAIAgent, model.SenderHumanAgent:
			role = "assistant"
		case model.SenderSystem:
			// Providers only accept user/assistant turns in history.
			continue
		}
		history = append(history, llm.ChatMessage{Role: role, Content: msg.Content})
	}
	return history
}

func (s *DispatcherService) openTriggeredTicket(ctx context.Context, conv *model.Conversation, event model.InboundEvent, trigger Trigger) *model.Ticket {
	if s.tickets == nil {
		return nil
	}

	title := string(trigger.Category) + " request via " + string(conv.Channel)
	ticket, err := s.tickets.Create(ctx, &model.CreateTicketInput{
		BusinessID:           event.BusinessID,
		CustomerID:           event.CustomerID,
		Title:                title,
		Description:          event.Content,
		Priority:             trigger.Priority,
		Category:             trigger.Category,
		ParentConversationID: conv.ID,
	})
	if err != nil {
		s.logger.Error("failed to open triggered ticket",
			zap.String("conversation_id", conv.ID),
			zap.String("keyword", trigger.Keyword),
			zap.Error(err),
		)
		return nil
	}

	s.logger.Info("ticket opened from trigger",
		zap.String("ticket_number", ticket.TicketNumber),
		zap.String("keyword", trigger.Keyword),
	)
	return ticket
}

func (s *DispatcherService) deliver(ctx context.Context, conv *model.Conversation, content string) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.cfg.DeliveryBackoff
	policy.Multiplier = 4

	attempt := 0
	operation := func() error {
		if attempt > 0 {
			metrics.DeliveryRetriesTotal.Inc()
		}
		attempt++
		_, err := s.sender.SendMessage(ctx, conv.Channel, conv.CustomerID, content)
		return err
	}

	return backoff.Retry(operation, backoff.WithContext(
		backoff.WithMaxRetries(policy, uint64(s.cfg.DeliveryMaxRetries)), ctx))
}
