// Package handler provides HTTP handlers for the API.
package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/inbox-platform/internal/middleware"
	"github.com/capitalize-ai/inbox-platform/internal/model"
	"github.com/capitalize-ai/inbox-platform/internal/service"
	"github.com/capitalize-ai/inbox-platform/pkg/logger"
)

// ConversationHandler handles conversation endpoints.
type ConversationHandler struct {
	inbox         *service.InboxService
	conversations *service.ConversationService
	handoff       *service.HandoffService
	logger        *logger.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(
	inbox *service.InboxService,
	conversations *service.ConversationService,
	handoff *service.HandoffService,
	log *logger.Logger,
) *ConversationHandler {
	return &ConversationHandler{
		inbox:         inbox,
		conversations: conversations,
		handoff:       handoff,
		logger:        log,
	}
}

// List handles GET /api/v1/conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	businessID := middleware.GetBusinessID(ctx)

	limit, offset := pagination(r)
	q := r.URL.Query()

	filter := model.ConversationFilter{
		Status:     model.ConversationStatus(q.Get("status")),
		Priority:   model.Priority(q.Get("priority")),
		Channel:    model.Channel(q.Get("channel")),
		AssignedTo: q.Get("assigned_to"),
		Search:     q.Get("search"),
		Limit:      limit,
		Offset:     offset,
	}
	if from, err := time.Parse(time.RFC3339, q.Get("from")); err == nil {
		filter.From = from
	}
	if to, err := time.Parse(time.RFC3339, q.Get("to")); err == nil {
		filter.To = to
	}

	resp, err := h.inbox.ListConversations(ctx, businessID, filter)
	if err != nil {
		h.logger.Error("failed to list conversations", zap.Error(err))
		writeServiceError(w, err)
		return
	}

	writeData(w, http.StatusOK, resp)
}

// Get handles GET /api/v1/conversations/{id} and returns the conversation
// with a page of its thread.
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	businessID := middleware.GetBusinessID(ctx)
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit, offset := pagination(r)

	detail, err := h.inbox.GetConversationDetail(ctx, businessID, conversationID, limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeData(w, http.StatusOK, detail)
}

// Update handles PUT /api/v1/conversations/{id}
func (h *ConversationHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	businessID := middleware.GetBusinessID(ctx)
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.UpdateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	conv, err := h.conversations.Update(ctx, businessID, conversationID, &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeData(w, http.StatusOK, conv)
}

// SetHandling handles PUT /api/v1/conversations/{id}/handling and transfers
// reply ownership between the AI and a human.
func (h *ConversationHandler) SetHandling(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	businessID := middleware.GetBusinessID(ctx)
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.SetHandlingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	conv, err := h.handoff.SetHandling(ctx, businessID, conversationID, req.AIHandling)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeData(w, http.StatusOK, conv)
}

// MarkRead handles POST /api/v1/conversations/{id}/read
func (h *ConversationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	businessID := middleware.GetBusinessID(ctx)
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.MarkReadRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	updated, err := h.inbox.MarkRead(ctx, businessID, conversationID, req.Sender)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeData(w, http.StatusOK, map[string]int{"updated": updated})
}

// Delete handles DELETE /api/v1/conversations/{id}
func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	businessID := middleware.GetBusinessID(ctx)
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.conversations.Delete(ctx, businessID, conversationID); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
