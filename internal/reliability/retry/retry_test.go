package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastConfig(attempts int) *Config {
	return &Config{
		MaxAttempts:       attempts,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        2 * time.Millisecond,
		BackoffMultiplier: 2,
	}
}

func TestDoSucceedsAfterFailures(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fastConfig(3), nil, "flaky", func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("not yet")
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if got != 42 || calls != 3 {
		t.Fatalf("expected 42 after 3 calls, got %d after %d", got, calls)
	}
}

func TestDoGivesUp(t *testing.T) {
	sentinel := errors.New("down")
	calls := 0
	_, err := Do(context.Background(), fastConfig(2), nil, "down", func(context.Context) (struct{}, error) {
		calls++
		return struct{}{}, sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected wrapped sentinel, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestDoStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Do(ctx, fastConfig(3), nil, "cancelled", func(context.Context) (int, error) {
		t.Fatal("fn must not run on a cancelled context")
		return 0, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestCalculateBackoffCaps(t *testing.T) {
	cfg := &Config{InitialBackoff: time.Second, MaxBackoff: 3 * time.Second, BackoffMultiplier: 2}
	if got := calculateBackoff(0, cfg); got != time.Second {
		t.Fatalf("expected 1s, got %v", got)
	}
	if got := calculateBackoff(5, cfg); got != 3*time.Second {
		t.Fatalf("expected cap of 3s, got %v", got)
	}
}
