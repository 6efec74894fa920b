package circuitbreaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestBreaker() (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker(3, 2, 10*time.Second)
	cb.now = clock.now
	return cb, clock
}

func TestTripsAfterConsecutiveFailures(t *testing.T) {
	cb, _ := newTestBreaker()

	cb.Failure()
	cb.Failure()
	cb.Success()
	cb.Failure()
	cb.Failure()
	assert.Equal(t, StateClosed, cb.State())

	cb.Failure()
	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow())
}

func TestHalfOpenAfterCooldown(t *testing.T) {
	cb, clock := newTestBreaker()
	for i := 0; i < 3; i++ {
		cb.Failure()
	}

	clock.t = clock.t.Add(10 * time.Second)
	assert.True(t, cb.Allow())
	assert.Equal(t, StateHalfOpen, cb.State())

	cb.Success()
	assert.Equal(t, StateHalfOpen, cb.State())
	cb.Success()
	assert.Equal(t, StateClosed, cb.State())
}

func TestHalfOpenFailureReopens(t *testing.T) {
	cb, clock := newTestBreaker()
	for i := 0; i < 3; i++ {
		cb.Failure()
	}
	clock.t = clock.t.Add(11 * time.Second)
	assert.True(t, cb.Allow())

	cb.Failure()
	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow())
}

func TestStateChangeCallback(t *testing.T) {
	cb, clock := newTestBreaker()
	var transitions []string
	cb.OnStateChange(func(from, to State) {
		transitions = append(transitions, from.String()+"->"+to.String())
	})

	for i := 0; i < 3; i++ {
		cb.Failure()
	}
	clock.t = clock.t.Add(time.Minute)
	cb.Allow()
	cb.Success()
	cb.Success()

	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}
