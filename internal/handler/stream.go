package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/inbox-platform/internal/middleware"
	"github.com/capitalize-ai/inbox-platform/internal/model"
	"github.com/capitalize-ai/inbox-platform/internal/service"
	"github.com/capitalize-ai/inbox-platform/pkg/logger"
)

// Replayer reads conversation messages back from the durable stream.
type Replayer interface {
	ReplayMessages(ctx context.Context, businessID, conversationID string, afterSequence uint64, limit int) ([]model.Message, uint64, error)
}

// StreamHandler exposes the durable stream's audit/replay surface.
type StreamHandler struct {
	replayer Replayer
	inbox    *service.InboxService
	logger   *logger.Logger
}

// NewStreamHandler creates a new stream handler. A nil replayer means the
// stream is unavailable and replay requests are answered with 503.
func NewStreamHandler(replayer Replayer, inbox *service.InboxService, log *logger.Logger) *StreamHandler {
	return &StreamHandler{replayer: replayer, inbox: inbox, logger: log}
}

// ReplayResponse is the payload for a stream replay batch.
type ReplayResponse struct {
	Messages     []model.Message `json:"messages"`
	LastSequence uint64          `json:"last_sequence"`
	HasMore      bool            `json:"has_more"`
}

// Replay handles GET /api/v1/conversations/{id}/replay.
// Supports ?after_sequence=N for resuming from a known point.
func (h *StreamHandler) Replay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	businessID := middleware.GetBusinessID(ctx)
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if h.replayer == nil {
		writeError(w, http.StatusServiceUnavailable, "stream replay unavailable")
		return
	}

	// Ownership check before touching the stream.
	if _, err := h.inbox.GetConversationDetail(ctx, businessID, conversationID, 1, 0); err != nil {
		writeServiceError(w, err)
		return
	}

	var afterSequence uint64
	if seqStr := r.URL.Query().Get("after_sequence"); seqStr != "" {
		seq, err := strconv.ParseUint(seqStr, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "after_sequence must be a non-negative integer")
			return
		}
		afterSequence = seq
	}

	limit, _ := pagination(r)

	messages, lastSequence, err := h.replayer.ReplayMessages(ctx, businessID, conversationID, afterSequence, limit)
	if err != nil {
		h.logger.Error("stream replay failed",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to replay messages")
		return
	}

	writeData(w, http.StatusOK, &ReplayResponse{
		Messages:     messages,
		LastSequence: lastSequence,
		HasMore:      len(messages) == limit,
	})
}
