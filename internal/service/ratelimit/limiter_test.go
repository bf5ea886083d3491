package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowBurstThenRefill(t *testing.T) {
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New(60, 2)
	l.now = func() time.Time { return clock }

	assert.True(t, l.Allow("m"))
	assert.True(t, l.Allow("m"))
	assert.False(t, l.Allow("m"))
	assert.True(t, l.Allow("other"), "keys are independent")

	clock = clock.Add(time.Second)
	assert.True(t, l.Allow("m"))
	assert.False(t, l.Allow("m"))
}

func TestWaitHonoursContext(t *testing.T) {
	l := New(0.001, 1)
	require.NoError(t, l.Wait(context.Background(), "m"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Wait(ctx, "m")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWaitReturnsAfterRefill(t *testing.T) {
	l := New(6000, 1) // one token every 10ms
	require.NoError(t, l.Wait(context.Background(), "m"))

	start := time.Now()
	require.NoError(t, l.Wait(context.Background(), "m"))
	assert.Less(t, time.Since(start), time.Second)
}
