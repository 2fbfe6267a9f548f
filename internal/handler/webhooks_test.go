package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/inbox-platform/internal/channel"
	"github.com/capitalize-ai/inbox-platform/internal/dedup"
	"github.com/capitalize-ai/inbox-platform/internal/llm"
	"github.com/capitalize-ai/inbox-platform/internal/model"
	"github.com/capitalize-ai/inbox-platform/internal/service"
	"github.com/capitalize-ai/inbox-platform/internal/store"
	"github.com/capitalize-ai/inbox-platform/pkg/logger"
)

type fixedLLM struct {
	mu    sync.Mutex
	reply string
}

func (f *fixedLLM) GenerateReply(ctx context.Context, input *llm.ReplyInput) (string, []string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reply, nil, nil
}

func (f *fixedLLM) Name() string { return "fixed" }

type noopSender struct{}

func (noopSender) SendMessage(ctx context.Context, ch model.Channel, recipientID, content string) (string, error) {
	return "d-1", nil
}

func newWebhookFixture(t *testing.T) (*WebhookHandler, *store.Memory) {
	t.Helper()
	st := store.NewMemory()
	log := logger.NewNop()

	router := service.NewRouterService(st, nil, log)
	handoff := service.NewHandoffService(st, log)
	tickets := service.NewTicketService(st, nil, log)
	sessions := service.NewSessionRegistry(time.Minute, log)
	dispatcher := service.NewDispatcherService(
		st, handoff, tickets, sessions, service.DefaultKeywordDetector(),
		&fixedLLM{reply: "hello back"}, noopSender{}, nil,
		service.DispatcherConfig{AITimeout: time.Second, DeliveryMaxRetries: 1, DeliveryBackoff: time.Millisecond},
		log,
	)

	h := NewWebhookHandler(
		router, dispatcher, dedup.NewMemory(time.Minute),
		[]channel.Normalizer{
			channel.NewInstagram(log),
			channel.NewWebChat(log),
		},
		map[model.Channel]string{
			model.ChannelInstagram: "secret-token",
		},
		log,
	)
	return h, st
}

func TestWebhookVerifyChallenge(t *testing.T) {
	h, _ := newWebhookFixture(t)

	req := httptest.NewRequest(http.MethodGet,
		"/webhooks/instagram?hub.mode=subscribe&hub.verify_token=secret-token&hub.challenge=12345", nil)
	rec := httptest.NewRecorder()

	h.Verify(model.ChannelInstagram)(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "12345", rec.Body.String())
}

func TestWebhookVerifyRejectsBadToken(t *testing.T) {
	h, _ := newWebhookFixture(t)

	req := httptest.NewRequest(http.MethodGet,
		"/webhooks/instagram?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", nil)
	rec := httptest.NewRecorder()

	h.Verify(model.ChannelInstagram)(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestWebhookReceivePersistsBeforeAck(t *testing.T) {
	h, st := newWebhookFixture(t)

	payload := []byte(`{
		"business_id": "biz-1",
		"customer_id": "visitor-1",
		"message_id": "wc-1",
		"content": "hi there"
	}`)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/webchat", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	h.Receive(model.ChannelWebChat)(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	// The customer message is stored synchronously, before the 200.
	ctx := context.Background()
	convs, total, err := st.ListConversations(ctx, "biz-1", model.ConversationFilter{})
	require.NoError(t, err)
	require.Equal(t, 1, total)

	_, msgTotal, err := st.ListMessages(ctx, "biz-1", convs[0].ID, 10, 0)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, msgTotal, 1)

	// The AI reply lands asynchronously.
	require.Eventually(t, func() bool {
		msgs, _, err := st.ListMessages(ctx, "biz-1", convs[0].ID, 10, 0)
		if err != nil {
			return false
		}
		for _, m := range msgs {
			if m.Sender == model.SenderAIAgent {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWebhookReceiveDuplicateDelivery(t *testing.T) {
	h, st := newWebhookFixture(t)

	payload := []byte(`{
		"business_id": "biz-1",
		"customer_id": "visitor-1",
		"message_id": "wc-dup",
		"content": "hi there"
	}`)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/webchat", bytes.NewReader(payload))
		rec := httptest.NewRecorder()
		h.Receive(model.ChannelWebChat)(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	ctx := context.Background()
	convs, total, err := st.ListConversations(ctx, "biz-1", model.ConversationFilter{})
	require.NoError(t, err)
	require.Equal(t, 1, total)

	// Only one customer message despite the redelivery.
	msgs, _, err := st.ListMessages(ctx, "biz-1", convs[0].ID, 20, 0)
	require.NoError(t, err)
	customerCount := 0
	for _, m := range msgs {
		if m.Sender == model.SenderCustomer {
			customerCount++
		}
	}
	assert.Equal(t, 1, customerCount)
}

func TestWebhookReceiveMalformedWebChat(t *testing.T) {
	h, _ := newWebhookFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/webchat", bytes.NewReader([]byte(`[`)))
	rec := httptest.NewRecorder()
	h.Receive(model.ChannelWebChat)(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookReceiveMalformedProviderStill200(t *testing.T) {
	h, _ := newWebhookFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/instagram", bytes.NewReader([]byte(`{`)))
	rec := httptest.NewRecorder()
	h.Receive(model.ChannelInstagram)(rec, req)

	// Provider channels never get an error status; it would trigger
	// redelivery storms.
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookReceiveUnknownChannel(t *testing.T) {
	h, _ := newWebhookFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	h.Receive(model.ChannelWhatsApp)(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
