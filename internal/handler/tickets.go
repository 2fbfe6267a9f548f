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

// TicketHandler handles ticket endpoints.
type TicketHandler struct {
	tickets *service.TicketService
	inbox   *service.InboxService
	logger  *logger.Logger
}

// NewTicketHandler creates a new ticket handler.
func NewTicketHandler(tickets *service.TicketService, inbox *service.InboxService, log *logger.Logger) *TicketHandler {
	return &TicketHandler{
		tickets: tickets,
		inbox:   inbox,
		logger:  log,
	}
}

// Create handles POST /api/v1/tickets
func (h *TicketHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	businessID := middleware.GetBusinessID(ctx)

	var input model.CreateTicketInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	// The authenticated business always wins over whatever the body says.
	input.BusinessID = businessID

	ticket, err := h.tickets.Create(ctx, &input)
	if err != nil {
		h.logger.Error("failed to create ticket", zap.Error(err))
		writeServiceError(w, err)
		return
	}

	writeData(w, http.StatusCreated, ticket)
}

// List handles GET /api/v1/tickets and returns tickets with derived SLA
// status.
func (h *TicketHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	businessID := middleware.GetBusinessID(ctx)

	limit, offset := pagination(r)
	q := r.URL.Query()

	filter := model.TicketFilter{
		Status:     model.TicketStatus(q.Get("status")),
		Priority:   model.TicketPriority(q.Get("priority")),
		Category:   model.TicketCategory(q.Get("category")),
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

	resp, err := h.inbox.ListTickets(ctx, businessID, filter)
	if err != nil {
		h.logger.Error("failed to list tickets", zap.Error(err))
		writeServiceError(w, err)
		return
	}

	writeData(w, http.StatusOK, resp)
}

// Get handles GET /api/v1/tickets/{id}
func (h *TicketHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	businessID := middleware.GetBusinessID(ctx)
	ticketID := chi.URLParam(r, "id")

	if err := middleware.ValidateID(ticketID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	view, err := h.inbox.GetTicket(ctx, businessID, ticketID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeData(w, http.StatusOK, view)
}

// UpdateStatus handles PUT /api/v1/tickets/{id}/status
func (h *TicketHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	businessID := middleware.GetBusinessID(ctx)
	ticketID := chi.URLParam(r, "id")

	if err := middleware.ValidateID(ticketID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.UpdateTicketStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ticket, err := h.tickets.UpdateStatus(ctx, businessID, ticketID, req.Status)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeData(w, http.StatusOK, ticket)
}

// Assign handles PUT /api/v1/tickets/{id}/assign
func (h *TicketHandler) Assign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	businessID := middleware.GetBusinessID(ctx)
	ticketID := chi.URLParam(r, "id")

	if err := middleware.ValidateID(ticketID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.AssignTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ticket, err := h.tickets.Assign(ctx, businessID, ticketID, req.AssignedTo)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeData(w, http.StatusOK, ticket)
}

// Escalate handles POST /api/v1/tickets/{id}/escalate
func (h *TicketHandler) Escalate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	businessID := middleware.GetBusinessID(ctx)
	ticketID := chi.URLParam(r, "id")

	if err := middleware.ValidateID(ticketID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.EscalateTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.EscalatedBy == "" {
		req.EscalatedBy = middleware.GetUserID(ctx)
	}

	ticket, err := h.tickets.Escalate(ctx, businessID, ticketID, req.Note, req.EscalatedBy)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeData(w, http.StatusOK, ticket)
}

// CompleteEscalation handles POST /api/v1/tickets/{id}/escalation/complete
func (h *TicketHandler) CompleteEscalation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	businessID := middleware.GetBusinessID(ctx)
	ticketID := chi.URLParam(r, "id")

	if err := middleware.ValidateID(ticketID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.CompleteEscalationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ticket, err := h.tickets.CompleteEscalation(ctx, businessID, ticketID, req.AdminResponse, req.ReassignTo)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeData(w, http.StatusOK, ticket)
}

// Purge handles DELETE /api/v1/tickets/{id}
func (h *TicketHandler) Purge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	businessID := middleware.GetBusinessID(ctx)
	ticketID := chi.URLParam(r, "id")

	if err := middleware.ValidateID(ticketID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.tickets.Purge(ctx, businessID, ticketID); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
