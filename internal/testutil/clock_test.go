package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeClock_SleepAdvances(t *testing.T) {
	c := NewFakeClock()
	start := c.Now()

	require.NoError(t, c.Sleep(context.Background(), 2*time.Second))
	require.NoError(t, c.Sleep(context.Background(), 3*time.Second))

	assert.Equal(t, 5*time.Second, c.Now().Sub(start))
	assert.Equal(t, []time.Duration{2 * time.Second, 3 * time.Second}, c.Sleeps())
}

func TestFakeClock_SleepCancelled(t *testing.T) {
	c := NewFakeClock()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, c.Sleep(ctx, time.Second), context.Canceled)
	assert.Empty(t, c.Sleeps())
}

func TestFakeClock_Advance(t *testing.T) {
	c := NewFakeClock()
	start := c.Now()
	c.Advance(time.Minute)
	assert.Equal(t, time.Minute, c.Now().Sub(start))
	assert.Empty(t, c.Sleeps())
}
