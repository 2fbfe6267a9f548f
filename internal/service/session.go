package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/inbox-platform/internal/model"
	"github.com/capitalize-ai/inbox-platform/pkg/logger"
	"github.com/capitalize-ai/inbox-platform/pkg/metrics"
)

const maxFlowEntries = 50

// SessionRegistry holds ephemeral per-conversation AI turn context. It is
// owned by the reply dispatcher: created on first turn, updated every turn,
// closed explicitly or evicted after the idle timeout.
type SessionRegistry struct {
	mu          sync.Mutex
	sessions    map[string]*model.Session
	idleTimeout time.Duration
	logger      *logger.Logger
	stop        chan struct{}
	stopOnce    sync.Once
}

// NewSessionRegistry creates an empty registry with the given idle timeout.
func NewSessionRegistry(idleTimeout time.Duration, log *logger.Logger) *SessionRegistry {
	return &SessionRegistry{
		sessions:    make(map[string]*model.Session),
		idleTimeout: idleTimeout,
		logger:      log,
		stop:        make(chan struct{}),
	}
}

// Touch records one turn, creating the session on first use. Topic changes
// bump the context switch counter.
func (r *SessionRegistry) Touch(businessID, conversationID, topic, turn string) *model.Session {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[conversationID]
	if !ok {
		sess = &model.Session{
			ID:             uuid.Must(uuid.NewV7()).String(),
			ConversationID: conversationID,
			BusinessID:     businessID,
			Active:         true,
			CreatedAt:      now,
		}
		r.sessions[conversationID] = sess
		metrics.ActiveSessions.Set(float64(len(r.sessions)))
	}

	if topic != "" && sess.CurrentTopic != "" && topic != sess.CurrentTopic {
		sess.ContextSwitches++
	}
	if topic != "" {
		sess.CurrentTopic = topic
	}
	if turn != "" {
		sess.ConversationFlow = append(sess.ConversationFlow, turn)
		if len(sess.ConversationFlow) > maxFlowEntries {
			sess.ConversationFlow = sess.ConversationFlow[len(sess.ConversationFlow)-maxFlowEntries:]
		}
	}
	sess.LastActivityAt = now

	out := *sess
	return &out
}

// MentionProduct records a product reference in the session context.
func (r *SessionRegistry) MentionProduct(conversationID, product string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[conversationID]
	if !ok {
		return
	}
	for _, existing := range sess.MentionedProducts {
		if existing == product {
			return
		}
	}
	sess.MentionedProducts = append(sess.MentionedProducts, product)
}

// Get returns a copy of the session, if one is active.
func (r *SessionRegistry) Get(conversationID string) (*model.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[conversationID]
	if !ok {
		return nil, false
	}
	out := *sess
	return &out, true
}

// Close summarizes and removes a session.
func (r *SessionRegistry) Close(conversationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeLocked(conversationID)
}

func (r *SessionRegistry) closeLocked(conversationID string) {
	sess, ok := r.sessions[conversationID]
	if !ok {
		return
	}
	sess.Active = false
	sess.Summary = fmt.Sprintf("topic=%s turns=%d switches=%d",
		sess.CurrentTopic, len(sess.ConversationFlow), sess.ContextSwitches)
	delete(r.sessions, conversationID)
	metrics.ActiveSessions.Set(float64(len(r.sessions)))

	r.logger.Info("session closed",
		zap.String("conversation_id", conversationID),
		zap.String("summary", sess.Summary),
	)
}

// Start runs the idle eviction janitor until Stop is called or the context
// is done.
func (r *SessionRegistry) Start(ctx context.Context) {
	interval := r.idleTimeout / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.stop:
				return
			case <-ticker.C:
				r.evictIdle()
			}
		}
	}()
}

// Stop halts the janitor.
func (r *SessionRegistry) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// Len reports the number of active sessions.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *SessionRegistry) evictIdle() {
	cutoff := time.Now().Add(-r.idleTimeout)

	r.mu.Lock()
	defer r.mu.Unlock()

	for id, sess := range r.sessions {
		if sess.LastActivityAt.Before(cutoff) {
			r.closeLocked(id)
		}
	}
}
