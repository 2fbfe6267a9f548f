// Package service provides the business logic of the inbox platform.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/inbox-platform/internal/model"
	"github.com/capitalize-ai/inbox-platform/internal/store"
	"github.com/capitalize-ai/inbox-platform/pkg/logger"
	"github.com/capitalize-ai/inbox-platform/pkg/metrics"
)

// Publisher publishes domain records to the durable event stream. A nil
// publisher disables publishing; stream failures never fail the operation.
type Publisher interface {
	PublishMessage(ctx context.Context, msg *model.Message) (uint64, error)
	PublishTicketEvent(ctx context.Context, event *model.TicketEvent) (uint64, error)
}

// TicketService owns ticket creation, the status state machine, and the
// escalation lifecycle.
type TicketService struct {
	store     store.Store
	publisher Publisher
	validate  *validator.Validate
	logger    *logger.Logger
}

// NewTicketService creates a new ticket service.
func NewTicketService(st store.Store, pub Publisher, log *logger.Logger) *TicketService {
	return &TicketService{
		store:     st,
		publisher: pub,
		validate:  validator.New(),
		logger:    log,
	}
}

// Create validates the input, computes the SLA deadline, assigns a race-free
// ticket number, and stores the ticket.
func (s *TicketService) Create(ctx context.Context, input *model.CreateTicketInput) (*model.Ticket, error) {
	if err := s.validate.Struct(input); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, model.NewValidationError(verrs[0].Field(), "failed "+verrs[0].Tag()+" validation")
		}
		return nil, model.NewValidationError("", err.Error())
	}

	window, ok := SLAWindow(input.Category, input.Priority)
	if !ok {
		return nil, model.NewValidationError("category", "no SLA window for category/priority pair")
	}

	now := time.Now().UTC()
	day := now.Format("20060102")

	seq, err := s.store.NextTicketSequence(ctx, input.BusinessID, day)
	if err != nil {
		return nil, &model.PersistenceError{Op: "ticket sequence", Err: err}
	}

	ticket := &model.Ticket{
		ID:                   uuid.Must(uuid.NewV7()).String(),
		TicketNumber:         fmt.Sprintf("TK-%s-%03d", day, seq),
		BusinessID:           input.BusinessID,
		CustomerID:           input.CustomerID,
		Title:                input.Title,
		Description:          input.Description,
		Status:               model.TicketOpen,
		Priority:             input.Priority,
		Category:             input.Category,
		AssignedTo:           input.AssignedTo,
		EscalationLevel:      0,
		SLADeadline:          now.Add(window),
		ParentConversationID: input.ParentConversationID,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := s.store.CreateTicket(ctx, ticket); err != nil {
		return nil, &model.PersistenceError{Op: "ticket create", Err: err}
	}

	s.publishEvent(ctx, ticket, model.TicketEventCreated, "", ticket.TicketNumber)
	metrics.TicketsTotal.WithLabelValues(ticket.BusinessID, string(ticket.Category), string(ticket.Priority)).Inc()

	s.logger.Info("ticket created",
		zap.String("ticket_number", ticket.TicketNumber),
		zap.String("business_id", ticket.BusinessID),
		zap.String("category", string(ticket.Category)),
		zap.String("priority", string(ticket.Priority)),
	)

	return ticket, nil
}

// Get retrieves a ticket.
func (s *TicketService) Get(ctx context.Context, businessID, id string) (*model.Ticket, error) {
	return s.store.GetTicket(ctx, businessID, id)
}

// List retrieves tickets matching the filter.
func (s *TicketService) List(ctx context.Context, businessID string, filter model.TicketFilter) (*model.ListTicketsResponse, error) {
	tickets, total, err := s.store.ListTickets(ctx, businessID, filter)
	if err != nil {
		return nil, err
	}
	return &model.ListTicketsResponse{
		Tickets: tickets,
		Total:   total,
		HasMore: filter.Offset+len(tickets) < total,
	}, nil
}

// UpdateStatus advances the ticket through its state machine. Escalation
// transitions go through Escalate/CompleteEscalation, not here. Any state
// may move to CLOSED administratively.
func (s *TicketService) UpdateStatus(ctx context.Context, businessID, id string, status model.TicketStatus) (*model.Ticket, error) {
	if !model.ValidTicketStatus(status) {
		return nil, model.NewValidationError("status", "unknown ticket status")
	}

	ticket, err := s.store.UpdateTicket(ctx, businessID, id, func(t *model.Ticket) error {
		if !statusTransitionAllowed(t.Status, status) {
			return &model.ConflictError{Reason: fmt.Sprintf("cannot transition %s to %s", t.Status, status)}
		}
		t.Status = status
		if status == model.TicketResolved {
			now := time.Now()
			t.ResolvedAt = &now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, ticket, model.TicketEventStatusChanged, "", string(status))
	return ticket, nil
}

func statusTransitionAllowed(from, to model.TicketStatus) bool {
	if to == model.TicketClosed {
		return from != model.TicketClosed
	}
	switch from {
	case model.TicketOpen:
		return to == model.TicketInProgress
	case model.TicketInProgress:
		return to == model.TicketResolved
	default:
		return false
	}
}

// Assign assigns a ticket to an agent. Escalated tickets stay unassigned
// until the escalation completes.
func (s *TicketService) Assign(ctx context.Context, businessID, id, assignee string) (*model.Ticket, error) {
	if assignee == "" {
		return nil, model.NewValidationError("assigned_to", "assignee is required")
	}

	ticket, err := s.store.UpdateTicket(ctx, businessID, id, func(t *model.Ticket) error {
		if t.EscalationLevel > 0 {
			return &model.ConflictError{Reason: "escalated tickets cannot be assigned until escalation completes"}
		}
		t.AssignedTo = assignee
		if t.Status == model.TicketOpen {
			t.Status = model.TicketInProgress
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, ticket, model.TicketEventAssigned, assignee, "")
	return ticket, nil
}

// Escalate raises a ticket to admin review. The precondition check and the
// mutation run inside one store update, never as a separate read and write.
func (s *TicketService) Escalate(ctx context.Context, businessID, id, note, escalatedBy string) (*model.Ticket, error) {
	ticket, err := s.store.UpdateTicket(ctx, businessID, id, func(t *model.Ticket) error {
		if t.EscalationLevel > 0 {
			return model.ErrAlreadyEscalated
		}
		t.EscalationLevel = 1
		t.Status = model.TicketEscalated
		t.AssignedTo = ""
		t.Escalations = append(t.Escalations, model.Escalation{
			Note:        note,
			EscalatedBy: escalatedBy,
			EscalatedAt: time.Now(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, ticket, model.TicketEventEscalated, escalatedBy, note)
	metrics.EscalationsTotal.WithLabelValues(businessID).Inc()

	s.logger.Info("ticket escalated",
		zap.String("ticket_number", ticket.TicketNumber),
		zap.String("escalated_by", escalatedBy),
	)

	return ticket, nil
}

// CompleteEscalation returns an escalated ticket to an agent, recording the
// admin response and resetting the escalation level.
func (s *TicketService) CompleteEscalation(ctx context.Context, businessID, id, adminResponse, reassignTo string) (*model.Ticket, error) {
	if reassignTo == "" {
		return nil, model.NewValidationError("reassign_to", "completing an escalation requires a new assignee")
	}

	ticket, err := s.store.UpdateTicket(ctx, businessID, id, func(t *model.Ticket) error {
		if t.EscalationLevel <= 0 {
			return model.ErrNotEscalated
		}
		t.EscalationLevel = 0
		t.Status = model.TicketInProgress
		t.AssignedTo = reassignTo
		if n := len(t.Escalations); n > 0 {
			now := time.Now()
			t.Escalations[n-1].AdminResponse = adminResponse
			t.Escalations[n-1].CompletedAt = &now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, ticket, model.TicketEventEscalationCompleted, reassignTo, adminResponse)
	return ticket, nil
}

// Purge permanently removes a ticket. Admin-only.
func (s *TicketService) Purge(ctx context.Context, businessID, id string) error {
	return s.store.PurgeTicket(ctx, businessID, id)
}

func (s *TicketService) publishEvent(ctx context.Context, t *model.Ticket, eventType model.TicketEventType, actor, detail string) {
	if s.publisher == nil {
		return
	}
	event := &model.TicketEvent{
		ID:         uuid.Must(uuid.NewV7()).String(),
		BusinessID: t.BusinessID,
		TicketID:   t.ID,
		Type:       eventType,
		Actor:      actor,
		Detail:     detail,
		CreatedAt:  time.Now(),
	}
	if _, err := s.publisher.PublishTicketEvent(ctx, event); err != nil {
		s.logger.Error("failed to publish ticket event",
			zap.String("ticket_id", t.ID),
			zap.String("event_type", string(eventType)),
			zap.Error(err),
		)
	}
}
