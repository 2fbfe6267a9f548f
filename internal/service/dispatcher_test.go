package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/inbox-platform/internal/llm"
	"github.com/capitalize-ai/inbox-platform/internal/model"
	"github.com/capitalize-ai/inbox-platform/internal/store"
	"github.com/capitalize-ai/inbox-platform/pkg/logger"
)

type stubLLM struct {
	reply string
	err   error
	delay time.Duration

	mu    sync.Mutex
	calls []llm.ReplyInput
}

func (s *stubLLM) GenerateReply(ctx context.Context, input *llm.ReplyInput) (string, []string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, *input)
	s.mu.Unlock()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", nil, ctx.Err()
		}
	}
	return s.reply, nil, s.err
}

func (s *stubLLM) Name() string { return "stub" }

type stubSender struct {
	mu       sync.Mutex
	calls    int
	failures int
	lastSent string
}

func (s *stubSender) SendMessage(ctx context.Context, channel model.Channel, recipientID, content string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failures {
		return "", errors.New("provider unavailable")
	}
	s.lastSent = content
	return "delivery-1", nil
}

type capturePublisher struct {
	mu       sync.Mutex
	messages []*model.Message
	events   []*model.TicketEvent
}

func (p *capturePublisher) PublishMessage(ctx context.Context, msg *model.Message) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	return uint64(len(p.messages)), nil
}

func (p *capturePublisher) PublishTicketEvent(ctx context.Context, event *model.TicketEvent) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return uint64(len(p.events)), nil
}

type dispatcherFixture struct {
	store      *store.Memory
	dispatcher *DispatcherService
	ai         *stubLLM
	sender     *stubSender
	handoff    *HandoffService
}

func newDispatcherFixture(t *testing.T, ai *stubLLM, sender *stubSender) *dispatcherFixture {
	t.Helper()
	st := store.NewMemory()
	log := logger.NewNop()
	handoff := NewHandoffService(st, log)
	tickets := NewTicketService(st, nil, log)
	sessions := NewSessionRegistry(time.Minute, log)

	d := NewDispatcherService(
		st, handoff, tickets, sessions, DefaultKeywordDetector(),
		ai, sender, nil,
		DispatcherConfig{
			AITimeout:          200 * time.Millisecond,
			DeliveryMaxRetries: 2,
			DeliveryBackoff:    time.Millisecond,
		},
		log,
	)
	return &dispatcherFixture{store: st, dispatcher: d, ai: ai, sender: sender, handoff: handoff}
}

func (f *dispatcherFixture) routeEvent(t *testing.T, content string) (*model.Conversation, model.InboundEvent) {
	t.Helper()
	ctx := context.Background()

	event := model.InboundEvent{
		BusinessID:        "biz-1",
		CustomerID:        "cust-1",
		Channel:           model.ChannelWebChat,
		ProviderMessageID: "mid-" + content,
		Content:           content,
		MessageType:       model.MessageTypeText,
		Timestamp:         time.Now(),
	}

	router := NewRouterService(f.store, nil, logger.NewNop())
	conv, _, appended, err := router.RouteInbound(ctx, event)
	require.NoError(t, err)
	require.True(t, appended)
	return conv, event
}

func TestDispatchReplies(t *testing.T) {
	f := newDispatcherFixture(t, &stubLLM{reply: "happy to help!"}, &stubSender{})
	conv, event := f.routeEvent(t, "hi, do you ship to Canada?")

	result, err := f.dispatcher.Dispatch(context.Background(), conv, event)
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeReplied, result.Outcome)
	require.NotNil(t, result.Reply)
	assert.Equal(t, model.SenderAIAgent, result.Reply.Sender)
	assert.False(t, result.DeliveryFailed)
	assert.Equal(t, "happy to help!", f.sender.lastSent)

	msgs, total, err := f.store.ListMessages(context.Background(), "biz-1", conv.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, model.SenderAIAgent, msgs[1].Sender)
}

func TestDispatchSkipsWhenHumanHandling(t *testing.T) {
	f := newDispatcherFixture(t, &stubLLM{reply: "should not be called"}, &stubSender{})
	conv, event := f.routeEvent(t, "hello")

	_, err := f.handoff.SetHandling(context.Background(), "biz-1", conv.ID, false)
	require.NoError(t, err)

	result, err := f.dispatcher.Dispatch(context.Background(), conv, event)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeSkipped, result.Outcome)
	assert.Nil(t, result.Reply)
	assert.Empty(t, f.ai.calls)

	// The customer message stays stored for the human to answer.
	_, total, err := f.store.ListMessages(context.Background(), "biz-1", conv.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestDispatchDegradesOnAIError(t *testing.T) {
	f := newDispatcherFixture(t, &stubLLM{err: errors.New("model overloaded")}, &stubSender{})
	conv, event := f.routeEvent(t, "hello")

	result, err := f.dispatcher.Dispatch(context.Background(), conv, event)
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeDegraded, result.Outcome)
	require.NotNil(t, result.Reply)
	assert.Equal(t, fallbackReply, result.Reply.Content)
	// The fallback still goes out to the customer.
	assert.Equal(t, fallbackReply, f.sender.lastSent)
}

func TestDispatchDegradesOnTimeout(t *testing.T) {
	f := newDispatcherFixture(t, &stubLLM{reply: "too late", delay: time.Second}, &stubSender{})
	conv, event := f.routeEvent(t, "hello")

	result, err := f.dispatcher.Dispatch(context.Background(), conv, event)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeDegraded, result.Outcome)
	assert.Equal(t, fallbackReply, result.Reply.Content)
}

func TestDispatchRetriesDelivery(t *testing.T) {
	sender := &stubSender{failures: 2}
	f := newDispatcherFixture(t, &stubLLM{reply: "here you go"}, sender)
	conv, event := f.routeEvent(t, "hello")

	result, err := f.dispatcher.Dispatch(context.Background(), conv, event)
	require.NoError(t, err)

	assert.False(t, result.DeliveryFailed)
	assert.Equal(t, 3, sender.calls)
}

func TestDispatchMarksDeliveryFailure(t *testing.T) {
	sender := &stubSender{failures: 100}
	f := newDispatcherFixture(t, &stubLLM{reply: "here you go"}, sender)
	conv, event := f.routeEvent(t, "hello")

	result, err := f.dispatcher.Dispatch(context.Background(), conv, event)
	require.NoError(t, err)

	assert.True(t, result.DeliveryFailed)
	// Initial attempt plus two retries.
	assert.Equal(t, 3, sender.calls)

	msgs, _, err := f.store.ListMessages(context.Background(), "biz-1", conv.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.True(t, msgs[1].DeliveryFailed)
}

func TestDispatchOpensTriggeredTicket(t *testing.T) {
	f := newDispatcherFixture(t, &stubLLM{reply: "sorry to hear that"}, &stubSender{})
	conv, event := f.routeEvent(t, "I want a refund for order 1234")

	result, err := f.dispatcher.Dispatch(context.Background(), conv, event)
	require.NoError(t, err)

	require.NotNil(t, result.Ticket)
	assert.Equal(t, model.CategoryRefund, result.Ticket.Category)
	assert.Equal(t, model.TicketPriorityHigh, result.Ticket.Priority)
	assert.Equal(t, conv.ID, result.Ticket.ParentConversationID)
	assert.Equal(t, "cust-1", result.Ticket.CustomerID)
}

func TestDispatchNoTicketWithoutTrigger(t *testing.T) {
	f := newDispatcherFixture(t, &stubLLM{reply: "sure"}, &stubSender{})
	conv, event := f.routeEvent(t, "what are your opening hours?")

	result, err := f.dispatcher.Dispatch(context.Background(), conv, event)
	require.NoError(t, err)
	assert.Nil(t, result.Ticket)
}

func TestDispatchPassesHistoryAndImage(t *testing.T) {
	ai := &stubLLM{reply: "looks damaged indeed"}
	f := newDispatcherFixture(t, ai, &stubSender{})

	conv, _ := f.routeEvent(t, "my package arrived")
	_, err := f.dispatcher.Dispatch(context.Background(), conv, model.InboundEvent{
		BusinessID: "biz-1", CustomerID: "cust-1", Channel: model.ChannelWebChat,
		Content: "my package arrived", MessageType: model.MessageTypeText,
	})
	require.NoError(t, err)

	// Second turn carries the prior exchange as history plus the image.
	router := NewRouterService(f.store, nil, logger.NewNop())
	event := model.InboundEvent{
		BusinessID: "biz-1", CustomerID: "cust-1", Channel: model.ChannelWebChat,
		ProviderMessageID: "mid-2", Content: "the box is broken, see photo",
		MessageType: model.MessageTypeMedia,
		Attachments: []model.Attachment{{Type: model.AttachmentImage, URL: "https://cdn.example.com/a.jpg"}},
		Timestamp:   time.Now(),
	}
	conv2, _, _, err := router.RouteInbound(context.Background(), event)
	require.NoError(t, err)

	_, err = f.dispatcher.Dispatch(context.Background(), conv2, event)
	require.NoError(t, err)

	require.Len(t, ai.calls, 2)
	last := ai.calls[1]
	assert.Equal(t, "https://cdn.example.com/a.jpg", last.ImageURL)
	assert.NotEmpty(t, last.History)
}

func TestDispatchHistoryExcludesSystemMessages(t *testing.T) {
	ai := &stubLLM{reply: "sure thing"}
	f := newDispatcherFixture(t, ai, &stubSender{})
	ctx := context.Background()

	conv, event := f.routeEvent(t, "is my order on the way?")
	_, err := f.dispatcher.Dispatch(ctx, conv, event)
	require.NoError(t, err)

	// A system note lands in the thread between customer turns.
	appended, err := f.store.AppendMessage(ctx, &model.Message{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conv.ID,
		BusinessID:     "biz-1",
		Sender:         model.SenderSystem,
		Content:        "conversation transferred to queue B",
		MessageType:    model.MessageTypeText,
		CreatedAt:      time.Now(),
	})
	require.NoError(t, err)
	require.True(t, appended)

	router := NewRouterService(f.store, nil, logger.NewNop())
	event2 := model.InboundEvent{
		BusinessID: "biz-1", CustomerID: "cust-1", Channel: model.ChannelWebChat,
		ProviderMessageID: "mid-followup", Content: "any update?",
		MessageType: model.MessageTypeText, Timestamp: time.Now(),
	}
	conv2, _, _, err := router.RouteInbound(ctx, event2)
	require.NoError(t, err)

	_, err = f.dispatcher.Dispatch(ctx, conv2, event2)
	require.NoError(t, err)

	// Providers only accept user/assistant roles in history.
	require.Len(t, ai.calls, 2)
	require.NotEmpty(t, ai.calls[1].History)
	for _, turn := range ai.calls[1].History {
		assert.Contains(t, []string{"user", "assistant"}, turn.Role)
		assert.NotEqual(t, "conversation transferred to queue B", turn.Content)
	}
}

func TestSendAgentMessage(t *testing.T) {
	sender := &stubSender{}
	f := newDispatcherFixture(t, &stubLLM{reply: "unused"}, sender)
	conv, _ := f.routeEvent(t, "hello")

	msg, err := f.dispatcher.SendAgentMessage(context.Background(), "biz-1", conv.ID, "agent-7", "hi, taking over from here")
	require.NoError(t, err)

	assert.Equal(t, model.SenderHumanAgent, msg.Sender)
	assert.False(t, msg.DeliveryFailed)
	assert.Equal(t, "hi, taking over from here", sender.lastSent)

	_, err = f.dispatcher.SendAgentMessage(context.Background(), "biz-1", conv.ID, "agent-7", "")
	assert.True(t, model.IsValidation(err))
}
