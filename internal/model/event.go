package model

import (
	"time"
)

// AttachmentType classifies inbound attachments.
type AttachmentType string

const (
	AttachmentImage AttachmentType = "image"
	AttachmentVideo AttachmentType = "video"
	AttachmentAudio AttachmentType = "audio"
	AttachmentFile  AttachmentType = "file"
)

// Attachment is a provider attachment passed through opaquely. Conversion
// to an analyzable form is the AI collaborator's responsibility.
type Attachment struct {
	Type AttachmentType `json:"type"`
	URL  string         `json:"url"`
}

// InboundEvent is the canonical form of a provider webhook delivery, produced
// by a channel normalizer. Echo events and receipts never become events.
type InboundEvent struct {
	BusinessID        string       `json:"business_id"`
	CustomerID        string       `json:"customer_id"`
	Channel           Channel      `json:"channel"`
	ProviderMessageID string       `json:"provider_message_id"`
	Content           string       `json:"content"`
	MessageType       MessageType  `json:"message_type"`
	Attachments       []Attachment `json:"attachments,omitempty"`
	IsEcho            bool         `json:"is_echo,omitempty"`
	Timestamp         time.Time    `json:"timestamp"`
}

// Outcome reports what the reply dispatcher did with an inbound event.
type Outcome string

const (
	// OutcomeReplied means the AI produced a reply that was persisted.
	OutcomeReplied Outcome = "replied"
	// OutcomeSkipped means a human owns the conversation; no AI call was made.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeDegraded means the AI call failed or timed out and the fallback
	// apology was sent instead.
	OutcomeDegraded Outcome = "degraded"
)

// DispatchResult is the full result of one dispatcher turn.
type DispatchResult struct {
	Outcome        Outcome  `json:"outcome"`
	Reply          *Message `json:"reply,omitempty"`
	Ticket         *Ticket  `json:"ticket,omitempty"`
	DeliveryFailed bool     `json:"delivery_failed,omitempty"`
}

// TicketEventType labels ticket lifecycle events on the durable stream.
type TicketEventType string

const (
	TicketEventCreated             TicketEventType = "created"
	TicketEventStatusChanged       TicketEventType = "status_changed"
	TicketEventAssigned            TicketEventType = "assigned"
	TicketEventEscalated           TicketEventType = "escalated"
	TicketEventEscalationCompleted TicketEventType = "escalation_completed"
	TicketEventSLABreached         TicketEventType = "sla_breached"
)

// TicketEvent is published to the stream on every ticket mutation.
type TicketEvent struct {
	ID         string          `json:"id"`
	BusinessID string          `json:"business_id"`
	TicketID   string          `json:"ticket_id"`
	Type       TicketEventType `json:"type"`
	Actor      string          `json:"actor,omitempty"`
	Detail     string          `json:"detail,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}
