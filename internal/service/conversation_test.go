package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/inbox-platform/internal/model"
	"github.com/capitalize-ai/inbox-platform/internal/store"
	"github.com/capitalize-ai/inbox-platform/pkg/logger"
)

func TestConversationUpdate(t *testing.T) {
	st := store.NewMemory()
	sessions := NewSessionRegistry(time.Minute, logger.NewNop())
	svc := NewConversationService(st, sessions, logger.NewNop())
	ctx := context.Background()

	conv, _, err := st.FindOrCreate(ctx, "biz-1", "cust-1", model.ChannelWebChat)
	require.NoError(t, err)

	assignee := "agent-3"
	updated, err := svc.Update(ctx, "biz-1", conv.ID, &model.UpdateConversationRequest{
		Priority:   model.PriorityUrgent,
		AssignedTo: &assignee,
		Tags:       []string{"vip"},
	})
	require.NoError(t, err)
	assert.Equal(t, model.PriorityUrgent, updated.Priority)
	assert.Equal(t, "agent-3", updated.AssignedTo)
	assert.Equal(t, []string{"vip"}, updated.Tags)
	// Untouched fields keep their values.
	assert.Equal(t, model.ConversationActive, updated.Status)
}

func TestConversationUpdateValidation(t *testing.T) {
	st := store.NewMemory()
	svc := NewConversationService(st, nil, logger.NewNop())
	ctx := context.Background()

	conv, _, err := st.FindOrCreate(ctx, "biz-1", "cust-1", model.ChannelWebChat)
	require.NoError(t, err)

	_, err = svc.Update(ctx, "biz-1", conv.ID, &model.UpdateConversationRequest{Status: "SLEEPING"})
	assert.True(t, model.IsValidation(err))

	_, err = svc.Update(ctx, "biz-1", conv.ID, &model.UpdateConversationRequest{Priority: "MAXIMUM"})
	assert.True(t, model.IsValidation(err))
}

func TestConversationResolveClosesSession(t *testing.T) {
	st := store.NewMemory()
	sessions := NewSessionRegistry(time.Minute, logger.NewNop())
	svc := NewConversationService(st, sessions, logger.NewNop())
	ctx := context.Background()

	conv, _, err := st.FindOrCreate(ctx, "biz-1", "cust-1", model.ChannelWebChat)
	require.NoError(t, err)
	sessions.Touch("biz-1", conv.ID, "general", "hi")
	require.Equal(t, 1, sessions.Len())

	_, err = svc.Update(ctx, "biz-1", conv.ID, &model.UpdateConversationRequest{Status: model.ConversationResolved})
	require.NoError(t, err)
	assert.Equal(t, 0, sessions.Len())
}

func TestConversationDelete(t *testing.T) {
	st := store.NewMemory()
	svc := NewConversationService(st, nil, logger.NewNop())
	ctx := context.Background()

	conv, _, err := st.FindOrCreate(ctx, "biz-1", "cust-1", model.ChannelWebChat)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "biz-1", conv.ID))

	_, err = st.GetConversation(ctx, "biz-1", conv.ID)
	assert.True(t, model.IsNotFound(err))

	err = svc.Delete(ctx, "biz-1", conv.ID)
	assert.True(t, model.IsNotFound(err))
}
