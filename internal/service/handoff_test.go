package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/inbox-platform/internal/model"
	"github.com/capitalize-ai/inbox-platform/internal/store"
	"github.com/capitalize-ai/inbox-platform/pkg/logger"
)

func TestHandoffToggle(t *testing.T) {
	st := store.NewMemory()
	svc := NewHandoffService(st, logger.NewNop())
	ctx := context.Background()

	conv, _, err := st.FindOrCreate(ctx, "biz-1", "cust-1", model.ChannelWebChat)
	require.NoError(t, err)
	require.True(t, conv.IsAIHandling)

	updated, err := svc.SetHandling(ctx, "biz-1", conv.ID, false)
	require.NoError(t, err)
	assert.False(t, updated.IsAIHandling)

	shouldInvoke, err := svc.ShouldInvokeAI(ctx, "biz-1", conv.ID)
	require.NoError(t, err)
	assert.False(t, shouldInvoke)

	updated, err = svc.SetHandling(ctx, "biz-1", conv.ID, true)
	require.NoError(t, err)
	assert.True(t, updated.IsAIHandling)

	shouldInvoke, err = svc.ShouldInvokeAI(ctx, "biz-1", conv.ID)
	require.NoError(t, err)
	assert.True(t, shouldInvoke)
}

func TestHandoffUnknownConversation(t *testing.T) {
	st := store.NewMemory()
	svc := NewHandoffService(st, logger.NewNop())
	ctx := context.Background()

	_, err := svc.SetHandling(ctx, "biz-1", "missing", false)
	assert.True(t, model.IsNotFound(err))

	_, err = svc.ShouldInvokeAI(ctx, "biz-1", "missing")
	assert.Error(t, err)
}
