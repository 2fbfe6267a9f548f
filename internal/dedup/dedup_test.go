package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryClaim(t *testing.T) {
	m := NewMemory(time.Minute)
	ctx := context.Background()

	claimed, err := m.Claim(ctx, "ig:mid.1")
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = m.Claim(ctx, "ig:mid.1")
	require.NoError(t, err)
	assert.False(t, claimed)

	// Different keys are independent.
	claimed, err = m.Claim(ctx, "ig:mid.2")
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestMemoryClaimExpires(t *testing.T) {
	m := NewMemory(5 * time.Millisecond)
	ctx := context.Background()

	claimed, err := m.Claim(ctx, "k")
	require.NoError(t, err)
	require.True(t, claimed)

	time.Sleep(10 * time.Millisecond)

	claimed, err = m.Claim(ctx, "k")
	require.NoError(t, err)
	assert.True(t, claimed)
}
