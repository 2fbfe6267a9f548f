package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/inbox-platform/internal/middleware"
	"github.com/capitalize-ai/inbox-platform/internal/model"
	"github.com/capitalize-ai/inbox-platform/internal/service"
	"github.com/capitalize-ai/inbox-platform/internal/store"
	"github.com/capitalize-ai/inbox-platform/pkg/logger"
)

func newTicketRouter(t *testing.T) (http.Handler, *service.TicketService) {
	t.Helper()
	st := store.NewMemory()
	log := logger.NewNop()
	tickets := service.NewTicketService(st, nil, log)
	inbox := service.NewInboxService(st, log)
	h := NewTicketHandler(tickets, inbox, log)

	r := chi.NewRouter()
	// Tests inject the business scope the auth middleware would provide.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := context.WithValue(req.Context(), middleware.BusinessIDKey, "biz-1")
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Post("/tickets", h.Create)
	r.Get("/tickets", h.List)
	r.Get("/tickets/{id}", h.Get)
	r.Put("/tickets/{id}/status", h.UpdateStatus)
	r.Post("/tickets/{id}/escalate", h.Escalate)

	return r, tickets
}

func TestTicketHandlerCreate(t *testing.T) {
	r, _ := newTicketRouter(t)

	body, _ := json.Marshal(map[string]string{
		"customer_id": "cust-1",
		"title":       "Refund request",
		"description": "charged twice",
		"priority":    "high",
		"category":    "refund",
	})
	req := httptest.NewRequest(http.MethodPost, "/tickets", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Success bool         `json:"success"`
		Data    model.Ticket `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "biz-1", resp.Data.BusinessID)
	assert.NotEmpty(t, resp.Data.TicketNumber)
}

func TestTicketHandlerCreateValidation(t *testing.T) {
	r, _ := newTicketRouter(t)

	body, _ := json.Marshal(map[string]string{
		"customer_id": "cust-1",
		"title":       "Missing fields",
		"description": "x",
		"priority":    "whenever",
		"category":    "refund",
	})
	req := httptest.NewRequest(http.MethodPost, "/tickets", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)
}

func TestTicketHandlerNotFound(t *testing.T) {
	r, _ := newTicketRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/tickets/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTicketHandlerConflictOnBadTransition(t *testing.T) {
	r, tickets := newTicketRouter(t)

	ticket, err := tickets.Create(context.Background(), &model.CreateTicketInput{
		BusinessID:  "biz-1",
		CustomerID:  "cust-1",
		Title:       "t",
		Description: "d",
		Priority:    model.TicketPriorityNormal,
		Category:    model.CategoryGeneral,
	})
	require.NoError(t, err)

	body, _ := json.Marshal(map[string]string{"status": "RESOLVED"})
	req := httptest.NewRequest(http.MethodPut, "/tickets/"+ticket.ID+"/status", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestTicketHandlerDoubleEscalateConflict(t *testing.T) {
	r, tickets := newTicketRouter(t)

	ticket, err := tickets.Create(context.Background(), &model.CreateTicketInput{
		BusinessID:  "biz-1",
		CustomerID:  "cust-1",
		Title:       "t",
		Description: "d",
		Priority:    model.TicketPriorityNormal,
		Category:    model.CategoryGeneral,
	})
	require.NoError(t, err)

	body, _ := json.Marshal(map[string]string{"note": "n", "escalated_by": "agent-1"})

	req := httptest.NewRequest(http.MethodPost, "/tickets/"+ticket.ID+"/escalate", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/tickets/"+ticket.ID+"/escalate", bytes.NewReader(body))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
}
