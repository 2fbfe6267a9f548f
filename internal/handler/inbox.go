package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/capitalize-ai/inbox-platform/internal/middleware"
	"github.com/capitalize-ai/inbox-platform/internal/service"
	"github.com/capitalize-ai/inbox-platform/pkg/logger"
)

// InboxHandler handles inbox-wide query endpoints.
type InboxHandler struct {
	inbox  *service.InboxService
	logger *logger.Logger
}

// NewInboxHandler creates a new inbox handler.
func NewInboxHandler(inbox *service.InboxService, log *logger.Logger) *InboxHandler {
	return &InboxHandler{
		inbox:  inbox,
		logger: log,
	}
}

// Stats handles GET /api/v1/inbox/stats
func (h *InboxHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	businessID := middleware.GetBusinessID(ctx)

	stats, err := h.inbox.Stats(ctx, businessID)
	if err != nil {
		h.logger.Error("failed to compute inbox stats", zap.Error(err))
		writeServiceError(w, err)
		return
	}

	writeData(w, http.StatusOK, stats)
}
