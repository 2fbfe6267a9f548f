package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/capitalize-ai/inbox-platform/internal/model"
)

// Memory is an in-memory Store. A single lock guards all state so that
// cross-entity operations (append message + bump conversation) are atomic.
type Memory struct {
	mu sync.RWMutex

	conversations map[string]*model.Conversation
	// slots maps businessID|customerID|channel to the id of the single
	// non-CLOSED conversation for that pair.
	slots map[string]string

	messages map[string][]*model.Message
	// seenMIDs maps conversationID to the set of provider message ids
	// already stored, for idempotent replay detection.
	seenMIDs map[string]map[string]struct{}

	tickets map[string]*model.Ticket
	// ticketSeq maps businessID|YYYYMMDD to the last issued sequence.
	ticketSeq map[string]int
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		conversations: make(map[string]*model.Conversation),
		slots:         make(map[string]string),
		messages:      make(map[string][]*model.Message),
		seenMIDs:      make(map[string]map[string]struct{}),
		tickets:       make(map[string]*model.Ticket),
		ticketSeq:     make(map[string]int),
	}
}

// Capabilities reports what this backend supports.
func (m *Memory) Capabilities() Capabilities {
	return Capabilities{OptionalTicketFields: true}
}

func slotKey(businessID, customerID string, channel model.Channel) string {
	return businessID + "|" + customerID + "|" + string(channel)
}

// FindOrCreate implements the atomic conversation slot lookup. The check and
// insert happen under one write lock, so concurrent deliveries for the same
// customer resolve to exactly one conversation.
func (m *Memory) FindOrCreate(ctx context.Context, businessID, customerID string, channel model.Channel) (*model.Conversation, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := slotKey(businessID, customerID, channel)
	if id, ok := m.slots[key]; ok {
		if conv, ok := m.conversations[id]; ok && conv.Status != model.ConversationClosed && !conv.Deleted {
			return copyConversation(conv), false, nil
		}
	}

	now := time.Now()
	conv := &model.Conversation{
		ID:           uuid.Must(uuid.NewV7()).String(),
		BusinessID:   businessID,
		CustomerID:   customerID,
		Channel:      channel,
		Status:       model.ConversationActive,
		Priority:     model.PriorityNormal,
		IsAIHandling: true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.conversations[conv.ID] = conv
	m.slots[key] = conv.ID

	return copyConversation(conv), true, nil
}

// GetConversation retrieves a conversation by id.
func (m *Memory) GetConversation(ctx context.Context, businessID, id string) (*model.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conv, ok := m.conversations[id]
	if !ok || conv.BusinessID != businessID || conv.Deleted {
		return nil, &model.NotFoundError{Kind: "conversation", ID: id}
	}
	return copyConversation(conv), nil
}

// ListConversations retrieves conversations matching the filter, newest
// activity first.
func (m *Memory) ListConversations(ctx context.Context, businessID string, filter model.ConversationFilter) ([]model.Conversation, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*model.Conversation
	for _, conv := range m.conversations {
		if conv.BusinessID != businessID || conv.Deleted {
			continue
		}
		if !conversationMatches(conv, filter) {
			continue
		}
		matched = append(matched, conv)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].LastMessageAt.After(matched[j].LastMessageAt)
	})

	total := len(matched)
	page := paginate(total, filter.Limit, filter.Offset)

	out := make([]model.Conversation, 0, page.end-page.start)
	for _, conv := range matched[page.start:page.end] {
		out = append(out, *copyConversation(conv))
	}
	return out, total, nil
}

func conversationMatches(conv *model.Conversation, f model.ConversationFilter) bool {
	if f.Status != "" && conv.Status != f.Status {
		return false
	}
	if f.Priority != "" && conv.Priority != f.Priority {
		return false
	}
	if f.Channel != "" && conv.Channel != f.Channel {
		return false
	}
	if f.AssignedTo != "" && conv.AssignedTo != f.AssignedTo {
		return false
	}
	if !f.From.IsZero() && conv.LastMessageAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && conv.LastMessageAt.After(f.To) {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(conv.CustomerID), needle) && !tagsContain(conv.Tags, needle) {
			return false
		}
	}
	return true
}

func tagsContain(tags []string, needle string) bool {
	for _, tag := range tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

// UpdateConversation applies fn under the write lock. Closing a conversation
// frees its slot so a later message opens a fresh one.
func (m *Memory) UpdateConversation(ctx context.Context, businessID, id string, fn func(*model.Conversation) error) (*model.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.conversations[id]
	if !ok || current.BusinessID != businessID || current.Deleted {
		return nil, &model.NotFoundError{Kind: "conversation", ID: id}
	}

	// fn runs against a copy; an error leaves the stored record untouched.
	conv := copyConversation(current)
	if err := fn(conv); err != nil {
		return nil, err
	}
	conv.UpdatedAt = time.Now()
	m.conversations[id] = conv

	if conv.Status == model.ConversationClosed {
		key := slotKey(conv.BusinessID, conv.CustomerID, conv.Channel)
		if m.slots[key] == conv.ID {
			delete(m.slots, key)
		}
	}

	return copyConversation(conv), nil
}

// DeleteConversation soft-deletes a conversation and frees its slot.
func (m *Memory) DeleteConversation(ctx context.Context, businessID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[id]
	if !ok || conv.BusinessID != businessID || conv.Deleted {
		return &model.NotFoundError{Kind: "conversation", ID: id}
	}

	conv.Deleted = true
	conv.UpdatedAt = time.Now()

	key := slotKey(conv.BusinessID, conv.CustomerID, conv.Channel)
	if m.slots[key] == conv.ID {
		delete(m.slots, key)
	}
	return nil
}

// AppendMessage stores a message unless its provider message id was already
// seen in the conversation. Conversation counters advance under the same lock.
func (m *Memory) AppendMessage(ctx context.Context, msg *model.Message) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[msg.ConversationID]
	if !ok || conv.BusinessID != msg.BusinessID || conv.Deleted {
		return false, &model.NotFoundError{Kind: "conversation", ID: msg.ConversationID}
	}

	mid := msg.ChannelData.ProviderMessageID
	if mid != "" {
		seen, ok := m.seenMIDs[msg.ConversationID]
		if !ok {
			seen = make(map[string]struct{})
			m.seenMIDs[msg.ConversationID] = seen
		}
		if _, dup := seen[mid]; dup {
			return false, nil
		}
		seen[mid] = struct{}{}
	}

	if msg.ID == "" {
		msg.ID = uuid.Must(uuid.NewV7()).String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	stored := *msg
	m.messages[msg.ConversationID] = append(m.messages[msg.ConversationID], &stored)

	conv.LastMessageAt = stored.CreatedAt
	conv.MessageCount++
	if !stored.IsRead {
		conv.UnreadCount++
	}
	last := stored
	conv.LastMessage = &last
	conv.UpdatedAt = time.Now()

	return true, nil
}

// ListMessages retrieves messages in append order.
func (m *Memory) ListMessages(ctx context.Context, businessID, conversationID string, limit, offset int) ([]model.Message, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conv, ok := m.conversations[conversationID]
	if !ok || conv.BusinessID != businessID || conv.Deleted {
		return nil, 0, &model.NotFoundError{Kind: "conversation", ID: conversationID}
	}

	msgs := m.messages[conversationID]
	total := len(msgs)
	page := paginate(total, limit, offset)

	out := make([]model.Message, 0, page.end-page.start)
	for _, msg := range msgs[page.start:page.end] {
		out = append(out, *msg)
	}
	return out, total, nil
}

// MarkRead marks messages as read, optionally scoped to one sender type.
func (m *Memory) MarkRead(ctx context.Context, businessID, conversationID string, sender model.Sender) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[conversationID]
	if !ok || conv.BusinessID != businessID || conv.Deleted {
		return 0, &model.NotFoundError{Kind: "conversation", ID: conversationID}
	}

	updated := 0
	for _, msg := range m.messages[conversationID] {
		if msg.IsRead {
			continue
		}
		if sender != "" && msg.Sender != sender {
			continue
		}
		msg.IsRead = true
		updated++
		if conv.UnreadCount > 0 {
			conv.UnreadCount--
		}
	}
	return updated, nil
}

// MarkDeliveryFailed flags a message whose outbound delivery failed.
func (m *Memory) MarkDeliveryFailed(ctx context.Context, businessID, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, msgs := range m.messages {
		for _, msg := range msgs {
			if msg.ID == messageID && msg.BusinessID == businessID {
				msg.DeliveryFailed = true
				return nil
			}
		}
	}
	return &model.NotFoundError{Kind: "message", ID: messageID}
}

// CountUnread counts unread messages across a business's conversations.
func (m *Memory) CountUnread(ctx context.Context, businessID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := 0
	for _, conv := range m.conversations {
		if conv.BusinessID == businessID && !conv.Deleted {
			total += conv.UnreadCount
		}
	}
	return total, nil
}

// NextTicketSequence atomically advances the per-business-per-day counter.
func (m *Memory) NextTicketSequence(ctx context.Context, businessID, day string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := businessID + "|" + day
	m.ticketSeq[key]++
	return m.ticketSeq[key], nil
}

// CreateTicket stores a new ticket.
func (m *Memory) CreateTicket(ctx context.Context, t *model.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tickets[t.ID] = copyTicket(t)
	return nil
}

func (m *Memory) ticketLocked(businessID, id string) (*model.Ticket, bool) {
	t, ok := m.tickets[id]
	if !ok || t.BusinessID != businessID {
		return nil, false
	}
	return t, true
}

// GetTicket retrieves a ticket.
func (m *Memory) GetTicket(ctx context.Context, businessID, id string) (*model.Ticket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.ticketLocked(businessID, id)
	if !ok {
		return nil, &model.NotFoundError{Kind: "ticket", ID: id}
	}
	return copyTicket(t), nil
}

// ListTickets retrieves tickets matching the filter, newest first.
func (m *Memory) ListTickets(ctx context.Context, businessID string, filter model.TicketFilter) ([]model.Ticket, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*model.Ticket
	for _, t := range m.tickets {
		if t.BusinessID != businessID {
			continue
		}
		if !ticketMatches(t, filter) {
			continue
		}
		matched = append(matched, t)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	page := paginate(total, filter.Limit, filter.Offset)

	out := make([]model.Ticket, 0, page.end-page.start)
	for _, t := range matched[page.start:page.end] {
		out = append(out, *copyTicket(t))
	}
	return out, total, nil
}

func ticketMatches(t *model.Ticket, f model.TicketFilter) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	if f.Category != "" && t.Category != f.Category {
		return false
	}
	if f.AssignedTo != "" && t.AssignedTo != f.AssignedTo {
		return false
	}
	if !f.From.IsZero() && t.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && t.CreatedAt.After(f.To) {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(t.Title), needle) &&
			!strings.Contains(strings.ToLower(t.Description), needle) &&
			!strings.Contains(strings.ToLower(t.TicketNumber), needle) {
			return false
		}
	}
	return true
}

// UpdateTicket applies fn under the write lock.
func (m *Memory) UpdateTicket(ctx context.Context, businessID, id string, fn func(*model.Ticket) error) (*model.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.ticketLocked(businessID, id)
	if !ok {
		return nil, &model.NotFoundError{Kind: "ticket", ID: id}
	}

	t := copyTicket(current)
	if err := fn(t); err != nil {
		return nil, err
	}
	t.UpdatedAt = time.Now()
	m.tickets[id] = t

	return copyTicket(t), nil
}

// TicketBusinessIDs returns the distinct business ids with tickets.
func (m *Memory) TicketBusinessIDs(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]struct{})
	var ids []string
	for _, t := range m.tickets {
		if _, ok := seen[t.BusinessID]; ok {
			continue
		}
		seen[t.BusinessID] = struct{}{}
		ids = append(ids, t.BusinessID)
	}
	sort.Strings(ids)
	return ids, nil
}

// PurgeTicket permanently removes a ticket.
func (m *Memory) PurgeTicket(ctx context.Context, businessID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.ticketLocked(businessID, id); !ok {
		return &model.NotFoundError{Kind: "ticket", ID: id}
	}
	delete(m.tickets, id)
	return nil
}

type pageBounds struct {
	start, end int
}

func paginate(total, limit, offset int) pageBounds {
	if limit <= 0 {
		limit = 20
	}
	start := offset
	if start < 0 {
		start = 0
	}
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return pageBounds{start: start, end: end}
}

func copyConversation(c *model.Conversation) *model.Conversation {
	out := *c
	out.Tags = append([]string(nil), c.Tags...)
	if c.LastMessage != nil {
		last := *c.LastMessage
		out.LastMessage = &last
	}
	return &out
}

func copyTicket(t *model.Ticket) *model.Ticket {
	out := *t
	out.Escalations = append([]model.Escalation(nil), t.Escalations...)
	if t.ResolvedAt != nil {
		resolved := *t.ResolvedAt
		out.ResolvedAt = &resolved
	}
	return &out
}
