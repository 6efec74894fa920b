package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter_WindowResets(t *testing.T) {
	l := NewMemoryLimiter(2, time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := l.Allow(ctx, "1.2.3.4")
	assert.False(t, ok, "third attempt inside window must be refused")

	ok, _ = l.Allow(ctx, "5.6.7.8")
	assert.True(t, ok, "keys are counted independently")

	now = now.Add(time.Minute)
	ok, _ = l.Allow(ctx, "1.2.3.4")
	assert.True(t, ok, "new window starts after the period")
}

type fakeCounter struct {
	counts map[string]int64
	err    error
}

func (f *fakeCounter) IncrWindow(_ context.Context, key string, _ time.Duration) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.counts[key]++
	return f.counts[key], nil
}

func TestRedisLimiter_UsesSharedCounter(t *testing.T) {
	counter := &fakeCounter{counts: map[string]int64{}}
	l := NewRedisLimiter(counter, "login", 1, time.Minute, nil)

	ok, err := l.Allow(context.Background(), "ip")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = l.Allow(context.Background(), "ip")
	assert.False(t, ok)
	assert.Equal(t, int64(2), counter.counts["ratelimit:login:ip"])
}

func TestRedisLimiter_FallsBackWhenUnavailable(t *testing.T) {
	counter := &fakeCounter{counts: map[string]int64{}, err: errors.New("connection refused")}
	l := NewRedisLimiter(counter, "reset", 1, time.Minute, nil)

	ok, err := l.Allow(context.Background(), "ip")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = l.Allow(context.Background(), "ip")
	assert.False(t, ok)
}

type countingCounter struct {
	calls int
}

func (c *countingCounter) IncrWindow(context.Context, string, time.Duration) (int64, error) {
	c.calls++
	return 0, errors.New("i/o timeout")
}

func TestRedisLimiter_BreakerSkipsRedisAfterFailures(t *testing.T) {
	counter := &countingCounter{}
	l := NewRedisLimiter(counter, "login", 100, time.Minute, nil)

	for i := 0; i < 10; i++ {
		ok, err := l.Allow(context.Background(), "ip")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Equal(t, 5, counter.calls, "open breaker must stop calling redis")
}
