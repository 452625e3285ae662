package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shortContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	t.Cleanup(cancel)
	return ctx
}

func TestMultiLimiter_UnknownLimiter(t *testing.T) {
	m := NewMultiLimiter()

	err := m.Wait(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestMultiLimiter_SetInterval(t *testing.T) {
	m := NewMultiLimiter()
	m.SetInterval("spaced", time.Hour)

	require.NoError(t, m.Wait(shortContext(t), "spaced"), "first event passes on the initial token")
	assert.Error(t, m.Wait(shortContext(t), "spaced"), "second event must wait a full interval")
}

func TestMultiLimiter_ZeroIntervalIsUnlimited(t *testing.T) {
	m := NewMultiLimiter()
	m.SetInterval("free", 0)

	ctx := shortContext(t)
	for i := 0; i < 100; i++ {
		require.NoError(t, m.Wait(ctx, "free"))
	}
}

func TestNewLimiter_RegistersServices(t *testing.T) {
	m := NewDefaultLimiter()

	for _, name := range []string{LimiterOpenAI, LimiterAnthropic, LimiterWebhook, LimiterBatch} {
		assert.NoError(t, m.Wait(shortContext(t), name), name)
	}
}

func TestMultiLimiter_WaitHonoursCancellation(t *testing.T) {
	m := NewMultiLimiter()
	m.SetInterval("slow", time.Hour)
	require.NoError(t, m.Wait(context.Background(), "slow"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, m.Wait(ctx, "slow"))
}
