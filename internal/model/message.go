package model

import (
	"time"
)

// Sender represents who produced a message.
type Sender string

const (
	SenderCustomer   Sender = "CUSTOMER"
	SenderAIAgent    Sender = "AI_AGENT"
	SenderHumanAgent Sender = "HUMAN_AGENT"
	SenderSystem     Sender = "SYSTEM"
)

// MessageType classifies message content.
type MessageType string

const (
	MessageTypeText       MessageType = "TEXT"
	MessageTypeMedia      MessageType = "MEDIA"
	MessageTypeSticker    MessageType = "STICKER"
	MessageTypeQuickReply MessageType = "QUICK_REPLY"
	MessageTypeSystem     MessageType = "SYSTEM"
	MessageTypeProduct    MessageType = "PRODUCT"
)

// ChannelData carries opaque provider metadata alongside a message. The
// provider message id is the dedup key for at-least-once webhook deliveries.
type ChannelData struct {
	ProviderMessageID string         `json:"provider_message_id,omitempty"`
	DeliveryID        string         `json:"delivery_id,omitempty"`
	Raw               map[string]any `json:"raw,omitempty"`
}

// Message belongs to exactly one conversation. Immutable once created
// except the IsRead flag.
type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversation_id"`
	BusinessID     string      `json:"business_id"`
	Sender         Sender      `json:"sender"`
	Content        string      `json:"content"`
	MessageType    MessageType `json:"message_type"`
	ChannelData    ChannelData `json:"channel_data,omitempty"`
	IsRead         bool        `json:"is_read"`
	DeliveryFailed bool        `json:"delivery_failed,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`

	// JetStream metadata, populated when read back from the stream.
	Sequence uint64 `json:"sequence,omitempty"`
}

// SendMessageRequest is the request for a human agent to send a message.
type SendMessageRequest struct {
	Content string `json:"content"`
	AgentID string `json:"agent_id"`
}

// ListMessagesResponse is the response for listing messages.
type ListMessagesResponse struct {
	Messages []Message `json:"messages"`
	Total    int       `json:"total"`
	HasMore  bool      `json:"has_more"`
}

// MarkReadRequest marks messages in a conversation as read, optionally
// scoped to one sender type.
type MarkReadRequest struct {
	Sender Sender `json:"sender,omitempty"`
}
