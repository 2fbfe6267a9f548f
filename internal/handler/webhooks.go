package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/inbox-platform/internal/channel"
	"github.com/capitalize-ai/inbox-platform/internal/dedup"
	"github.com/capitalize-ai/inbox-platform/internal/model"
	"github.com/capitalize-ai/inbox-platform/internal/service"
	"github.com/capitalize-ai/inbox-platform/pkg/logger"
	"github.com/capitalize-ai/inbox-platform/pkg/metrics"
)

const maxWebhookBody = 1 << 20 // 1MB

// WebhookHandler receives provider webhook deliveries, claims them for
// idempotency, routes them into conversations, and hands them to the reply
// dispatcher asynchronously.
type WebhookHandler struct {
	router      *service.RouterService
	dispatcher  *service.DispatcherService
	deduper     dedup.Deduper
	normalizers map[model.Channel]channel.Normalizer
	// verifyTokens holds the per-channel subscription verification tokens
	// for Meta-style GET challenges.
	verifyTokens map[model.Channel]string
	logger       *logger.Logger
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(
	router *service.RouterService,
	dispatcher *service.DispatcherService,
	deduper dedup.Deduper,
	normalizers []channel.Normalizer,
	verifyTokens map[model.Channel]string,
	log *logger.Logger,
) *WebhookHandler {
	byChannel := make(map[model.Channel]channel.Normalizer, len(normalizers))
	for _, n := range normalizers {
		byChannel[n.Channel()] = n
	}
	return &WebhookHandler{
		router:       router,
		dispatcher:   dispatcher,
		deduper:      deduper,
		normalizers:  byChannel,
		verifyTokens: verifyTokens,
		logger:       log,
	}
}

// Verify handles the Meta-style GET subscription challenge for a channel.
func (h *WebhookHandler) Verify(ch model.Channel) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mode := r.URL.Query().Get("hub.mode")
		token := r.URL.Query().Get("hub.verify_token")
		challenge := r.URL.Query().Get("hub.challenge")

		expected := h.verifyTokens[ch]
		if mode != "subscribe" || expected == "" || token != expected {
			h.logger.Warn("webhook verification rejected",
				zap.String("channel", string(ch)),
				zap.String("mode", mode),
			)
			w.WriteHeader(http.StatusForbidden)
			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(challenge))
	}
}

// Receive handles a POST webhook delivery for a channel. Provider channels
// always get 200 once the payload parses; anything else triggers redelivery
// storms. Durability comes first: the inbound message is persisted before
// the response, and the AI turn runs asynchronously after.
func (h *WebhookHandler) Receive(ch model.Channel) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		normalizer, ok := h.normalizers[ch]
		if !ok {
			writeError(w, http.StatusNotFound, "unknown channel")
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
		if err != nil {
			metrics.WebhookDeliveriesTotal.WithLabelValues(string(ch), "rejected").Inc()
			writeError(w, http.StatusBadRequest, "failed to read body")
			return
		}

		businessID := r.URL.Query().Get("business_id")

		events, err := normalizer.Normalize(businessID, body)
		if err != nil {
			metrics.WebhookDeliveriesTotal.WithLabelValues(string(ch), "malformed").Inc()
			h.logger.Warn("malformed webhook payload",
				zap.String("channel", string(ch)),
				zap.Error(err),
			)
			if errors.Is(err, channel.ErrMalformedPayload) && ch == model.ChannelWebChat {
				writeError(w, http.StatusBadRequest, "malformed payload")
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
			return
		}

		accepted := 0
		for _, event := range events {
			if h.processEvent(r.Context(), ch, event) {
				accepted++
			}
		}

		metrics.WebhookDeliveriesTotal.WithLabelValues(string(ch), "accepted").Inc()
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":   "ok",
			"accepted": accepted,
		})
	}
}

func (h *WebhookHandler) processEvent(ctx context.Context, ch model.Channel, event model.InboundEvent) bool {
	if event.ProviderMessageID != "" {
		key := string(ch) + ":" + event.ProviderMessageID
		claimed, err := h.deduper.Claim(ctx, key)
		if err != nil {
			// Degrade open: the store's per-conversation dedup still
			// catches replays if the claim backend is down.
			h.logger.Warn("dedup claim failed",
				zap.String("key", key),
				zap.Error(err),
			)
		} else if !claimed {
			metrics.InboundEventsDropped.WithLabelValues(string(ch), "duplicate_delivery").Inc()
			return false
		}
	}

	conv, msg, appended, err := h.router.RouteInbound(ctx, event)
	if err != nil {
		h.logger.Error("failed to route inbound event",
			zap.String("channel", string(ch)),
			zap.String("provider_message_id", event.ProviderMessageID),
			zap.Error(err),
		)
		return false
	}
	if !appended || msg == nil {
		return false
	}

	// The webhook response must not wait on the AI turn.
	go func() {
		dispatchCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		if _, err := h.dispatcher.Dispatch(dispatchCtx, conv, event); err != nil {
			h.logger.Error("dispatch failed",
				zap.String("conversation_id", conv.ID),
				zap.Error(err),
			)
		}
	}()

	return true
}
