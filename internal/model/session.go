package model

import (
	"time"
)

// Session is the ephemeral per-conversation AI turn context. It is owned by
// the reply dispatcher's context layer and is distinct from the durable
// Conversation record.
type Session struct {
	ID                string    `json:"id"`
	ConversationID    string    `json:"conversation_id"`
	BusinessID        string    `json:"business_id"`
	CurrentTopic      string    `json:"current_topic,omitempty"`
	MentionedProducts []string  `json:"mentioned_products,omitempty"`
	ContextSwitches   int       `json:"context_switches"`
	ConversationFlow  []string  `json:"conversation_flow,omitempty"`
	Summary           string    `json:"summary,omitempty"`
	Active            bool      `json:"active"`
	CreatedAt         time.Time `json:"created_at"`
	LastActivityAt    time.Time `json:"last_activity_at"`
}
