package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterUnlimited(t *testing.T) {
	l := New(0, 0)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for i := 0; i < 1000; i++ {
		require.NoError(t, l.Wait(ctx))
	}
}

func TestLimiterBurst(t *testing.T) {
	l := New(0.001, 3)

	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		require.NoError(t, l.Wait(ctx), "event %d is within the burst", i)
		cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.Error(t, l.Wait(ctx), "burst exhausted")
}

func TestLimiterWaitHonorsCanceledContext(t *testing.T) {
	l := New(10, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, l.Wait(ctx), context.Canceled)
}
