package service

import (
	"context"
	"time"

	"github.com/capitalize-ai/inbox-platform/internal/model"
	"github.com/capitalize-ai/inbox-platform/internal/store"
	"github.com/capitalize-ai/inbox-platform/pkg/logger"
)

const statsPageSize = 200

// InboxService is the read side of the platform: unified conversation and
// ticket queries with derived SLA status, plus inbox-wide stats.
type InboxService struct {
	store  store.Store
	logger *logger.Logger
}

// NewInboxService creates a new inbox query service.
func NewInboxService(st store.Store, log *logger.Logger) *InboxService {
	return &InboxService{
		store:  st,
		logger: log,
	}
}

// ListConversations retrieves conversations matching the filter, most recent
// activity first.
func (s *InboxService) ListConversations(ctx context.Context, businessID string, filter model.ConversationFilter) (*model.ListConversationsResponse, error) {
	conversations, total, err := s.store.ListConversations(ctx, businessID, filter)
	if err != nil {
		return nil, err
	}
	return &model.ListConversationsResponse{
		Conversations: conversations,
		Total:         total,
		HasMore:       filter.Offset+len(conversations) < total,
	}, nil
}

// GetConversationDetail retrieves a conversation with a page of its thread.
func (s *InboxService) GetConversationDetail(ctx context.Context, businessID, id string, limit, offset int) (*model.ConversationDetail, error) {
	conv, err := s.store.GetConversation(ctx, businessID, id)
	if err != nil {
		return nil, err
	}
	messages, total, err := s.store.ListMessages(ctx, businessID, id, limit, offset)
	if err != nil {
		return nil, err
	}
	return &model.ConversationDetail{
		Conversation: *conv,
		Messages:     messages,
		Total:        total,
		HasMore:      offset+len(messages) < total,
	}, nil
}

// ListTickets retrieves tickets matching the filter with derived SLA status.
func (s *InboxService) ListTickets(ctx context.Context, businessID string, filter model.TicketFilter) (*model.ListTicketViewsResponse, error) {
	tickets, total, err := s.store.ListTickets(ctx, businessID, filter)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	views := make([]model.TicketView, 0, len(tickets))
	for i := range tickets {
		views = append(views, model.TicketView{
			Ticket:    tickets[i],
			SLAStatus: SLAStatusOf(&tickets[i], now),
		})
	}
	return &model.ListTicketViewsResponse{
		Tickets: views,
		Total:   total,
		HasMore: filter.Offset+len(views) < total,
	}, nil
}

// GetTicket retrieves one ticket with derived SLA status.
func (s *InboxService) GetTicket(ctx context.Context, businessID, id string) (*model.TicketView, error) {
	ticket, err := s.store.GetTicket(ctx, businessID, id)
	if err != nil {
		return nil, err
	}
	return &model.TicketView{
		Ticket:    *ticket,
		SLAStatus: SLAStatusOf(ticket, time.Now()),
	}, nil
}

// ListMessages retrieves a page of a conversation's thread in append order.
func (s *InboxService) ListMessages(ctx context.Context, businessID, conversationID string, limit, offset int) (*model.ListMessagesResponse, error) {
	messages, total, err := s.store.ListMessages(ctx, businessID, conversationID, limit, offset)
	if err != nil {
		return nil, err
	}
	return &model.ListMessagesResponse{
		Messages: messages,
		Total:    total,
		HasMore:  offset+len(messages) < total,
	}, nil
}

// MarkRead marks a conversation's messages as read, optionally scoped to one
// sender type. Returns the number of messages updated.
func (s *InboxService) MarkRead(ctx context.Context, businessID, conversationID string, sender model.Sender) (int, error) {
	return s.store.MarkRead(ctx, businessID, conversationID, sender)
}

// Stats aggregates inbox-wide counts for a business.
func (s *InboxService) Stats(ctx context.Context, businessID string) (*model.InboxStats, error) {
	stats := &model.InboxStats{
		ConversationsByStatus: make(map[model.ConversationStatus]int),
		TicketsByStatus:       make(map[model.TicketStatus]int),
	}

	offset := 0
	for {
		conversations, total, err := s.store.ListConversations(ctx, businessID, model.ConversationFilter{
			Limit:  statsPageSize,
			Offset: offset,
		})
		if err != nil {
			return nil, err
		}
		for i := range conversations {
			stats.ConversationsByStatus[conversations[i].Status]++
		}
		offset += len(conversations)
		if offset >= total || len(conversations) == 0 {
			break
		}
	}

	now := time.Now()
	var resolvedCount int
	var resolutionTotal time.Duration

	offset = 0
	for {
		tickets, total, err := s.store.ListTickets(ctx, businessID, model.TicketFilter{
			Limit:  statsPageSize,
			Offset: offset,
		})
		if err != nil {
			return nil, err
		}
		for i := range tickets {
			t := &tickets[i]
			stats.TicketsByStatus[t.Status]++
			if t.EscalationLevel > 0 {
				stats.EscalatedTickets++
			}
			if SLAStatusOf(t, now) == model.SLAOverdue {
				stats.OverdueTickets++
			}
			if t.ResolvedAt != nil {
				resolvedCount++
				resolutionTotal += t.ResolvedAt.Sub(t.CreatedAt)
			}
		}
		offset += len(tickets)
		if offset >= total || len(tickets) == 0 {
			break
		}
	}

	if resolvedCount > 0 {
		stats.AvgResolutionSeconds = resolutionTotal.Seconds() / float64(resolvedCount)
	}

	unread, err := s.store.CountUnread(ctx, businessID)
	if err != nil {
		return nil, err
	}
	stats.UnreadMessages = unread

	return stats, nil
}
