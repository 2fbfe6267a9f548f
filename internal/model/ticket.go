package model

import (
	"time"
)

// TicketStatus represents the ticket lifecycle state.
type TicketStatus string

const (
	TicketOpen       TicketStatus = "OPEN"
	TicketInProgress TicketStatus = "IN_PROGRESS"
	TicketResolved   TicketStatus = "RESOLVED"
	TicketClosed     TicketStatus = "CLOSED"
	TicketEscalated  TicketStatus = "ESCALATED"
)

// TicketPriority represents SLA urgency. Lowercase on the wire, matching
// the ticket API.
type TicketPriority string

const (
	TicketPriorityUrgent TicketPriority = "urgent"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityNormal TicketPriority = "normal"
	TicketPriorityLow    TicketPriority = "low"
)

// TicketCategory classifies the customer issue.
type TicketCategory string

const (
	CategoryRefund       TicketCategory = "refund"
	CategoryReturn       TicketCategory = "return"
	CategoryTechnical    TicketCategory = "technical"
	CategoryShipping     TicketCategory = "shipping"
	CategoryBilling      TicketCategory = "billing"
	CategoryProductIssue TicketCategory = "product_issue"
	CategoryGeneral      TicketCategory = "general"
)

// SLAStatus is derived from the deadline and current time, never stored.
type SLAStatus string

const (
	SLAOnTime  SLAStatus = "on_time"
	SLASoon    SLAStatus = "soon"
	SLAUrgent  SLAStatus = "urgent"
	SLAOverdue SLAStatus = "overdue"
)

// Escalation records one escalate/complete round on a ticket.
type Escalation struct {
	Note          string     `json:"note"`
	EscalatedBy   string     `json:"escalated_by"`
	EscalatedAt   time.Time  `json:"escalated_at"`
	AdminResponse string     `json:"admin_response,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// Ticket is the support ticket aggregate. TicketNumber and SLADeadline are
// immutable after creation; TicketNumber is a durable customer-facing
// identifier and is never reused or renumbered.
type Ticket struct {
	ID                   string         `json:"id"`
	TicketNumber         string         `json:"ticket_number"`
	BusinessID           string         `json:"business_id"`
	CustomerID           string         `json:"customer_id"`
	Title                string         `json:"title"`
	Description          string         `json:"description"`
	Status               TicketStatus   `json:"status"`
	Priority             TicketPriority `json:"priority"`
	Category             TicketCategory `json:"category"`
	AssignedTo           string         `json:"assigned_to,omitempty"`
	EscalationLevel      int            `json:"escalation_level"`
	SLADeadline          time.Time      `json:"sla_deadline"`
	ParentConversationID string         `json:"parent_conversation_id,omitempty"`
	Escalations          []Escalation   `json:"escalations,omitempty"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
	ResolvedAt           *time.Time     `json:"resolved_at,omitempty"`
}

// CreateTicketInput is the validated input to create a ticket.
type CreateTicketInput struct {
	BusinessID           string         `json:"business_id" validate:"required"`
	CustomerID           string         `json:"customer_id" validate:"required"`
	Title                string         `json:"title" validate:"required,max=200"`
	Description          string         `json:"description" validate:"required"`
	Priority             TicketPriority `json:"priority" validate:"required,oneof=urgent high normal low"`
	Category             TicketCategory `json:"category" validate:"required,oneof=refund return technical shipping billing product_issue general"`
	AssignedTo           string         `json:"assigned_to,omitempty"`
	ParentConversationID string         `json:"parent_conversation_id,omitempty"`
}

// UpdateTicketStatusRequest changes a ticket's status.
type UpdateTicketStatusRequest struct {
	Status TicketStatus `json:"status"`
}

// AssignTicketRequest assigns a ticket to an agent.
type AssignTicketRequest struct {
	AssignedTo string `json:"assigned_to"`
}

// EscalateTicketRequest raises a ticket to admin review.
type EscalateTicketRequest struct {
	Note        string `json:"note"`
	EscalatedBy string `json:"escalated_by"`
}

// CompleteEscalationRequest returns an escalated ticket to an agent.
type CompleteEscalationRequest struct {
	AdminResponse string `json:"admin_response"`
	ReassignTo    string `json:"reassign_to"`
}

// TicketFilter narrows ticket queries.
type TicketFilter struct {
	Status     TicketStatus
	Priority   TicketPriority
	Category   TicketCategory
	AssignedTo string
	Search     string
	From       time.Time
	To         time.Time
	Limit      int
	Offset     int
}

// ListTicketsResponse is the response for listing tickets.
type ListTicketsResponse struct {
	Tickets []Ticket `json:"tickets"`
	Total   int      `json:"total"`
	HasMore bool     `json:"has_more"`
}

// TicketView is a ticket with its derived SLA status attached. The status is
// computed at read time, never stored.
type TicketView struct {
	Ticket
	SLAStatus SLAStatus `json:"sla_status"`
}

// ListTicketViewsResponse is the inbox response for listing tickets with
// derived SLA status.
type ListTicketViewsResponse struct {
	Tickets []TicketView `json:"tickets"`
	Total   int          `json:"total"`
	HasMore bool         `json:"has_more"`
}

// InboxStats summarizes a business's inbox.
type InboxStats struct {
	ConversationsByStatus map[ConversationStatus]int `json:"conversations_by_status"`
	TicketsByStatus       map[TicketStatus]int       `json:"tickets_by_status"`
	UnreadMessages        int                        `json:"unread_messages"`
	OverdueTickets        int                        `json:"overdue_tickets"`
	EscalatedTickets      int                        `json:"escalated_tickets"`
	AvgResolutionSeconds  float64                    `json:"avg_resolution_seconds"`
}

// ValidTicketStatus reports whether s is a known ticket status.
func ValidTicketStatus(s TicketStatus) bool {
	switch s {
	case TicketOpen, TicketInProgress, TicketResolved, TicketClosed, TicketEscalated:
		return true
	}
	return false
}
