// Package model defines data structures for the inbox platform.
package model

import (
	"time"
)

// Channel identifies the messaging surface a conversation lives on.
type Channel string

const (
	ChannelWebChat   Channel = "WEB_CHAT"
	ChannelWhatsApp  Channel = "WHATSAPP"
	ChannelInstagram Channel = "INSTAGRAM"
	ChannelFacebook  Channel = "FACEBOOK"
	ChannelEmail     Channel = "EMAIL"
	ChannelSMS       Channel = "SMS"
)

// ConversationStatus represents the lifecycle state of a conversation.
type ConversationStatus string

const (
	ConversationActive    ConversationStatus = "ACTIVE"
	ConversationResolved  ConversationStatus = "RESOLVED"
	ConversationEscalated ConversationStatus = "ESCALATED"
	ConversationClosed    ConversationStatus = "CLOSED"
	ConversationArchived  ConversationStatus = "ARCHIVED"
)

// Priority represents conversation priority.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityNormal Priority = "NORMAL"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// Conversation is the durable thread between one customer and the business
// on one channel. At most one non-CLOSED conversation exists per
// (businessID, customerID, channel).
type Conversation struct {
	ID            string             `json:"id"`
	BusinessID    string             `json:"business_id"`
	CustomerID    string             `json:"customer_id"`
	Channel       Channel            `json:"channel"`
	Status        ConversationStatus `json:"status"`
	Priority      Priority           `json:"priority"`
	IsAIHandling  bool               `json:"is_ai_handling"`
	AssignedTo    string             `json:"assigned_to,omitempty"`
	Tags          []string           `json:"tags,omitempty"`
	LastMessageAt time.Time          `json:"last_message_at"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
	MessageCount  int                `json:"message_count,omitempty"`
	UnreadCount   int                `json:"unread_count,omitempty"`
	LastMessage   *Message           `json:"last_message,omitempty"`
	Deleted       bool               `json:"deleted,omitempty"`
}

// UpdateConversationRequest is the request to update conversation attributes.
type UpdateConversationRequest struct {
	Status     ConversationStatus `json:"status,omitempty"`
	Priority   Priority           `json:"priority,omitempty"`
	AssignedTo *string            `json:"assigned_to,omitempty"`
	Tags       []string           `json:"tags,omitempty"`
}

// SetHandlingRequest toggles AI vs human ownership of a conversation.
type SetHandlingRequest struct {
	AIHandling bool `json:"ai_handling"`
}

// ListConversationsResponse is the response for listing conversations.
type ListConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
	Total         int            `json:"total"`
	HasMore       bool           `json:"has_more"`
}

// ConversationDetail is a conversation with a page of its thread.
type ConversationDetail struct {
	Conversation Conversation `json:"conversation"`
	Messages     []Message    `json:"messages"`
	Total        int          `json:"total"`
	HasMore      bool         `json:"has_more"`
}

// ConversationFilter narrows conversation queries.
type ConversationFilter struct {
	Status     ConversationStatus
	Priority   Priority
	Channel    Channel
	AssignedTo string
	Search     string
	From       time.Time
	To         time.Time
	Limit      int
	Offset     int
}

// ValidConversationStatus reports whether s is a known status value.
func ValidConversationStatus(s ConversationStatus) bool {
	switch s {
	case ConversationActive, ConversationResolved, ConversationEscalated, ConversationClosed, ConversationArchived:
		return true
	}
	return false
}

// ValidPriority reports whether p is a known priority value.
func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}
