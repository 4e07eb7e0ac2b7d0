package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"travelmap/pkg/config"
)

func TestPacedBurst(t *testing.T) {
	p := NewPerMinute(60, 3)

	for i := 0; i < 3; i++ {
		if !p.Allow() {
			t.Errorf("Expected request %d to be allowed", i+1)
		}
	}
	if p.Allow() {
		t.Error("Expected burst to be exhausted")
	}

	p.Reset()
	assert.True(t, p.Allow(), "reset refills the bucket")
}

func TestPacedWaitHonoursContext(t *testing.T) {
	p := NewPerMinute(1, 1)
	require.True(t, p.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, p.Wait(ctx))
}

func TestSlidingWindow(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	sw := NewSlidingWindow(3, time.Hour)
	sw.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !sw.Allow() {
			t.Errorf("Expected request %d to be allowed", i+1)
		}
	}
	if sw.Allow() {
		t.Error("Expected request to be denied when limit is reached")
	}
	assert.Equal(t, 3, sw.Used())

	now = now.Add(time.Hour + time.Second)
	assert.True(t, sw.Allow(), "window slides")
	assert.Equal(t, 1, sw.Used())

	sw.Reset()
	assert.Equal(t, 0, sw.Used())
}

func TestSlidingWindowWait(t *testing.T) {
	sw := NewSlidingWindow(1, 30*time.Millisecond)
	require.True(t, sw.Allow())

	start := time.Now()
	require.NoError(t, sw.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sw.Wait(ctx), context.Canceled)
}

func TestFromConfig(t *testing.T) {
	l := FromConfig(config.RateLimitConfig{RequestsPerMinute: 60, BurstSize: 2})
	_, ok := l.(*Paced)
	assert.True(t, ok, "no hourly budget means plain pacing")

	l = FromConfig(config.RateLimitConfig{RequestsPerMinute: 6000, BurstSize: 5, RequestsPerHour: 2})
	chain, ok := l.(Chain)
	require.True(t, ok)
	require.Len(t, chain, 2)

	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.False(t, l.Allow(), "hourly budget exhausted")

	l.Reset()
	assert.True(t, l.Allow())
}
