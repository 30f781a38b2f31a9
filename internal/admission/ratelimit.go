package admission

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
)

// Window is the sliding-window length: a truly sliding 60-second window
// with precise timestamps, not a fixed bucket.
const Window = 60 * time.Second

// Decision is the outcome of a rate-limit check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter is a narrow interface so the shared-store and in-memory
// implementations are interchangeable and the admission layer can fail
// over between them without the caller knowing.
type Limiter interface {
	Check(ctx context.Context, id string, limit int) (Decision, error)
}

// inMemoryLimiter is the fallback: a coarse mutex over a map from id to
// the ordered list of request timestamps within the window.
type inMemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string][]time.Time
}

func newInMemoryLimiter() *inMemoryLimiter {
	return &inMemoryLimiter{buckets: make(map[string][]time.Time)}
}

func (l *inMemoryLimiter) Check(_ context.Context, id string, limit int) (Decision, error) {
	now := time.Now()
	cutoff := now.Add(-Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	timestamps := l.buckets[id]
	kept := timestamps[:0]
	for _, ts := range timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	resetAt := now.Add(Window)
	if len(kept) > 0 {
		resetAt = kept[0].Add(Window)
	}

	if limit <= 0 || len(kept) >= limit {
		l.buckets[id] = kept
		return Decision{Allowed: false, Limit: limit, Remaining: 0, ResetAt: resetAt}, nil
	}

	kept = append(kept, now)
	l.buckets[id] = kept

	remaining := limit - len(kept)
	return Decision{Allowed: true, Limit: limit, Remaining: remaining, ResetAt: resetAt}, nil
}

// redisLimiter implements the sliding window against a shared store
// using sorted-set semantics: trim entries older than the window with
// ZREMRANGEBYSCORE, ZCARD for the count, and only when the request is
// allowed ZADD the current timestamp and refresh the key's EXPIRE.
// Calls are wrapped in a circuit breaker so a degraded store fails fast
// instead of adding latency to every request.
type redisLimiter struct {
	client  *redis.Client
	breaker *gobreaker.CircuitBreaker
}

func newRedisLimiter(client *redis.Client) *redisLimiter {
	settings := gobreaker.Settings{
		Name:        "rate-limit-store",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	}
	return &redisLimiter{client: client, breaker: gobreaker.NewCircuitBreaker(settings)}
}

func (l *redisLimiter) Check(ctx context.Context, id string, limit int) (Decision, error) {
	key := "rate_limit:" + id
	now := time.Now()
	cutoff := now.Add(-Window)

	result, err := l.breaker.Execute(func() (interface{}, error) {
		pipe := l.client.TxPipeline()
		pipe.ZRemRangeByScore(ctx, key, "-inf", scoreString(cutoff))
		card := pipe.ZCard(ctx, key)
		_, perr := pipe.Exec(ctx)
		if perr != nil && perr != redis.Nil {
			return nil, perr
		}
		return card.Val(), nil
	})
	if err != nil {
		return Decision{}, err
	}
	count := result.(int64)

	if limit <= 0 || count >= int64(limit) {
		return Decision{Allowed: false, Limit: limit, Remaining: 0, ResetAt: now.Add(Window)}, nil
	}

	_, err = l.breaker.Execute(func() (interface{}, error) {
		pipe := l.client.TxPipeline()
		member := redis.Z{Score: float64(now.UnixNano()), Member: now.UnixNano()}
		pipe.ZAdd(ctx, key, member)
		pipe.Expire(ctx, key, time.Hour)
		_, perr := pipe.Exec(ctx)
		return nil, perr
	})
	if err != nil {
		return Decision{}, err
	}

	remaining := int(int64(limit) - count - 1)
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: true, Limit: limit, Remaining: remaining, ResetAt: now.Add(Window)}, nil
}

func scoreString(t time.Time) string {
	return strconv.FormatInt(t.UnixNano(), 10)
}
