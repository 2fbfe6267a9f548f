package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/inbox-platform/pkg/logger"
)

func TestSessionTouchCreatesAndCounts(t *testing.T) {
	reg := NewSessionRegistry(time.Minute, logger.NewNop())

	sess := reg.Touch("biz-1", "conv-1", "refund", "I want my money back")
	require.NotNil(t, sess)
	assert.Equal(t, "refund", sess.CurrentTopic)
	assert.Equal(t, 0, sess.ContextSwitches)
	assert.Len(t, sess.ConversationFlow, 1)
	assert.Equal(t, 1, reg.Len())

	// Same topic, no switch.
	sess = reg.Touch("biz-1", "conv-1", "refund", "it was order 1234")
	assert.Equal(t, 0, sess.ContextSwitches)

	// Topic change counts as a context switch.
	sess = reg.Touch("biz-1", "conv-1", "shipping", "also where is my other order")
	assert.Equal(t, 1, sess.ContextSwitches)
	assert.Equal(t, "shipping", sess.CurrentTopic)
	assert.Len(t, sess.ConversationFlow, 3)
}

func TestSessionFlowCapped(t *testing.T) {
	reg := NewSessionRegistry(time.Minute, logger.NewNop())

	for i := 0; i < maxFlowEntries+10; i++ {
		reg.Touch("biz-1", "conv-1", "general", "turn")
	}

	got, ok := reg.Get("conv-1")
	require.True(t, ok)
	assert.Len(t, got.ConversationFlow, maxFlowEntries)
}

func TestSessionMentionProduct(t *testing.T) {
	reg := NewSessionRegistry(time.Minute, logger.NewNop())

	reg.Touch("biz-1", "conv-1", "general", "hi")
	reg.MentionProduct("conv-1", "blue shirt")
	reg.MentionProduct("conv-1", "blue shirt")
	reg.MentionProduct("conv-1", "red hat")

	sess, ok := reg.Get("conv-1")
	require.True(t, ok)
	assert.Equal(t, []string{"blue shirt", "red hat"}, sess.MentionedProducts)
}

func TestSessionClose(t *testing.T) {
	reg := NewSessionRegistry(time.Minute, logger.NewNop())

	reg.Touch("biz-1", "conv-1", "refund", "hi")
	reg.Close("conv-1")

	_, ok := reg.Get("conv-1")
	assert.False(t, ok)
	assert.Equal(t, 0, reg.Len())

	// Closing twice is a no-op.
	reg.Close("conv-1")
}

func TestSessionEvictIdle(t *testing.T) {
	reg := NewSessionRegistry(10*time.Millisecond, logger.NewNop())

	reg.Touch("biz-1", "conv-1", "general", "hi")
	time.Sleep(25 * time.Millisecond)
	reg.Touch("biz-1", "conv-2", "general", "hi")

	reg.evictIdle()

	_, ok := reg.Get("conv-1")
	assert.False(t, ok)
	_, ok = reg.Get("conv-2")
	assert.True(t, ok)
}
