package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aryan0dhankhar/bloodlink/internal/reliability/circuitbreaker"
)

// AttemptLimiter counts attempts per key inside a fixed window. It guards the
// credential endpoints (login, password reset) where a token bucket per IP is
// too lenient.
type AttemptLimiter interface {
	// Allow records one attempt for key and reports whether it is within limit
	Allow(ctx context.Context, key string) (bool, error)
}

// Counter is the slice of the Redis client the distributed limiter needs
type Counter interface {
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RedisLimiter shares attempt counts across replicas
type RedisLimiter struct {
	counter  Counter
	prefix   string
	maxReqs  int
	window   time.Duration
	fallback *MemoryLimiter
	breaker  *circuitbreaker.CircuitBreaker
	logger   *slog.Logger
}

func NewRedisLimiter(counter Counter, prefix string, maxRequests int, window time.Duration, logger *slog.Logger) *RedisLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	breaker := circuitbreaker.NewCircuitBreaker(5, 1, 30*time.Second)
	breaker.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Warn("redis limiter circuit changed",
			slog.String("scope", prefix),
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	})
	return &RedisLimiter{
		counter:  counter,
		prefix:   prefix,
		maxReqs:  maxRequests,
		window:   window,
		fallback: NewMemoryLimiter(maxRequests, window),
		breaker:  breaker,
		logger:   logger,
	}
}

// Allow falls back to a process-local count when Redis is unreachable.
// Repeated Redis failures open a breaker so requests stop waiting on it.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if !l.breaker.Allow() {
		return l.fallback.Allow(ctx, key)
	}
	count, err := l.counter.IncrWindow(ctx, fmt.Sprintf("ratelimit:%s:%s", l.prefix, key), l.window)
	if err != nil {
		l.breaker.Failure()
		l.logger.Warn("redis limiter unavailable, using local count",
			slog.String("scope", l.prefix),
			slog.String("error", err.Error()),
		)
		return l.fallback.Allow(ctx, key)
	}
	l.breaker.Success()
	return count <= int64(l.maxReqs), nil
}

// MemoryLimiter keeps attempt windows in process memory
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	maxReqs int
	period  time.Duration
	now     func() time.Time
}

type window struct {
	start time.Time
	count int
}

func NewMemoryLimiter(maxRequests int, period time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		windows: make(map[string]*window),
		maxReqs: maxRequests,
		period:  period,
		now:     time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= l.period {
		w = &window{start: now}
		l.windows[key] = w
	}
	w.count++
	l.evictExpired(now)
	return w.count <= l.maxReqs, nil
}

// evictExpired drops stale windows once the map grows; caller holds mu
func (l *MemoryLimiter) evictExpired(now time.Time) {
	if len(l.windows) < 1024 {
		return
	}
	for key, w := range l.windows {
		if now.Sub(w.start) >= l.period {
			delete(l.windows, key)
		}
	}
}
