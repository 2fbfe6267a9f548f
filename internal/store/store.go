// Package store defines the persistence interfaces for the inbox platform
// and an in-memory implementation. Storage is a consumed collaborator; the
// services depend only on these interfaces.
package store

import (
	"context"

	"github.com/capitalize-ai/inbox-platform/internal/model"
)

// Capabilities describes optional features of a store implementation,
// resolved once at construction rather than probed per call.
type Capabilities struct {
	// OptionalTicketFields is true when the backend persists escalation
	// metadata and parent conversation links.
	OptionalTicketFields bool
}

// ConversationStore persists conversations. FindOrCreate is the only way a
// conversation comes into existence; it must be atomic with respect to
// concurrent calls for the same (businessID, customerID, channel) slot.
type ConversationStore interface {
	// FindOrCreate returns the single non-CLOSED conversation for the slot,
	// creating it with ACTIVE status, NORMAL priority, and AI handling when
	// none exists. The second return is true when a new conversation was
	// created.
	FindOrCreate(ctx context.Context, businessID, customerID string, channel model.Channel) (*model.Conversation, bool, error)

	GetConversation(ctx context.Context, businessID, id string) (*model.Conversation, error)

	ListConversations(ctx context.Context, businessID string, filter model.ConversationFilter) ([]model.Conversation, int, error)

	// UpdateConversation applies fn to the conversation under the store's
	// write lock. Returning an error from fn aborts the update. This is the
	// update-with-precondition primitive for all conversation mutations.
	UpdateConversation(ctx context.Context, businessID, id string, fn func(*model.Conversation) error) (*model.Conversation, error)

	// DeleteConversation soft-deletes a conversation.
	DeleteConversation(ctx context.Context, businessID, id string) error
}

// MessageStore persists messages.
type MessageStore interface {
	// AppendMessage stores the message unless another message with the same
	// provider message id already exists in the conversation. It returns
	// false without error on such an idempotent replay. Appending also
	// advances the conversation's lastMessageAt and counters atomically.
	AppendMessage(ctx context.Context, msg *model.Message) (bool, error)

	ListMessages(ctx context.Context, businessID, conversationID string, limit, offset int) ([]model.Message, int, error)

	// MarkRead marks messages in the conversation as read, optionally
	// scoped to one sender type (empty sender marks all). Returns the
	// number of messages updated.
	MarkRead(ctx context.Context, businessID, conversationID string, sender model.Sender) (int, error)

	// MarkDeliveryFailed flags a persisted message whose outbound delivery
	// exhausted its retries.
	MarkDeliveryFailed(ctx context.Context, businessID, messageID string) error

	CountUnread(ctx context.Context, businessID string) (int, error)
}

// TicketStore persists tickets.
type TicketStore interface {
	// NextTicketSequence atomically increments and returns the per-business
	// per-UTC-day counter used for ticket numbering.
	NextTicketSequence(ctx context.Context, businessID, day string) (int, error)

	CreateTicket(ctx context.Context, t *model.Ticket) error

	GetTicket(ctx context.Context, businessID, id string) (*model.Ticket, error)

	ListTickets(ctx context.Context, businessID string, filter model.TicketFilter) ([]model.Ticket, int, error)

	// UpdateTicket applies fn to the ticket under the store's write lock,
	// providing transactional update-with-precondition semantics.
	UpdateTicket(ctx context.Context, businessID, id string, fn func(*model.Ticket) error) (*model.Ticket, error)

	// PurgeTicket permanently removes a ticket. Admin-only.
	PurgeTicket(ctx context.Context, businessID, id string) error

	// TicketBusinessIDs returns the distinct business ids that own at least
	// one ticket. The SLA sweeper iterates these.
	TicketBusinessIDs(ctx context.Context) ([]string, error)
}

// Store aggregates all repositories plus their capabilities.
type Store interface {
	ConversationStore
	MessageStore
	TicketStore

	Capabilities() Capabilities
}
