package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/capitalize-ai/inbox-platform/internal/middleware"
	"github.com/capitalize-ai/inbox-platform/internal/model"
	"github.com/capitalize-ai/inbox-platform/internal/service"
	"github.com/capitalize-ai/inbox-platform/pkg/logger"
)

// MessageHandler handles message endpoints within a conversation.
type MessageHandler struct {
	inbox      *service.InboxService
	dispatcher *service.DispatcherService
	logger     *logger.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(inbox *service.InboxService, dispatcher *service.DispatcherService, log *logger.Logger) *MessageHandler {
	return &MessageHandler{
		inbox:      inbox,
		dispatcher: dispatcher,
		logger:     log,
	}
}

// List handles GET /api/v1/conversations/{id}/messages
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	businessID := middleware.GetBusinessID(ctx)
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit, offset := pagination(r)

	resp, err := h.inbox.ListMessages(ctx, businessID, conversationID, limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeData(w, http.StatusOK, resp)
}

// Send handles POST /api/v1/conversations/{id}/messages and sends a human
// agent reply to the customer.
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	businessID := middleware.GetBusinessID(ctx)
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateMessageContent(req.Content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.AgentID == "" {
		req.AgentID = middleware.GetUserID(ctx)
	}

	msg, err := h.dispatcher.SendAgentMessage(ctx, businessID, conversationID, req.AgentID, req.Content)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeData(w, http.StatusCreated, msg)
}
