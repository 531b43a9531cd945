package dispatcher

import (
	"context"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// breakerStorage names the breaker guarding result uploads.
const breakerStorage = "storage"

// Breaker holds back work that depends on a failing backend.
type Breaker interface {
	IsOpen(ctx context.Context, name string) (bool, time.Time)
	Open(ctx context.Context, name string)
	Close(ctx context.Context, name string)
}

// CircuitBreaker keeps breaker state in Redis so every worker process sees it.
type CircuitBreaker struct {
	redis       *redis.Client
	baseBackoff time.Duration
	maxBackoff  time.Duration
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(redisClient *redis.Client, baseBackoff, maxBackoff time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		redis:       redisClient,
		baseBackoff: baseBackoff,
		maxBackoff:  maxBackoff,
	}
}

func breakerKey(name string) string { return fmt.Sprintf("cb:%s", name) }

// cooldown doubles the base backoff per consecutive failure, capped at limit.
func cooldown(base, limit time.Duration, failures int) time.Duration {
	backoff := base
	for i := 1; i < failures; i++ {
		backoff *= 2
		if backoff > limit {
			return limit
		}
	}
	return backoff
}

// Open records a failure and opens the breaker for a cooldown period.
func (cb *CircuitBreaker) Open(ctx context.Context, name string) {
	key := breakerKey(name)

	failuresStr, _ := cb.redis.HGet(ctx, key, "failures").Result()
	failures, _ := strconv.Atoi(failuresStr)
	failures++

	backoff := cooldown(cb.baseBackoff, cb.maxBackoff, failures)
	retryAt := time.Now().Add(backoff).Unix()

	cb.redis.HSet(ctx, key, map[string]interface{}{
		"state":     "open",
		"retry_at":  retryAt,
		"failures":  failures,
		"opened_at": time.Now().Unix(),
	})
	cb.redis.Expire(ctx, key, 10*time.Minute)

	log.Warn().
		Str("breaker", name).
		Dur("cooldown", backoff).
		Int("failures", failures).
		Time("retry_at", time.Unix(retryAt, 0)).
		Msg("circuit breaker OPENED")
}

// IsOpen reports whether the breaker is open and when it may be retried.
// An expired cooldown moves the breaker to half-open and lets one job through.
func (cb *CircuitBreaker) IsOpen(ctx context.Context, name string) (bool, time.Time) {
	key := breakerKey(name)

	vals, err := cb.redis.HMGet(ctx, key, "state", "retry_at").Result()
	if err != nil || len(vals) < 2 {
		return false, time.Time{}
	}
	state, _ := vals[0].(string)
	if state != "open" {
		return false, time.Time{}
	}
	retryAtStr, _ := vals[1].(string)
	retryAt, _ := strconv.ParseInt(retryAtStr, 10, 64)

	if time.Now().Unix() >= retryAt {
		cb.redis.HSet(ctx, key, "state", "half_open")
		log.Info().Str("breaker", name).Msg("circuit breaker moved to HALF-OPEN")
		return false, time.Time{}
	}
	return true, time.Unix(retryAt, 0)
}

// Close resets the breaker after a success.
func (cb *CircuitBreaker) Close(ctx context.Context, name string) {
	key := breakerKey(name)

	state, _ := cb.redis.HGet(ctx, key, "state").Result()
	if state == "" || state == "closed" {
		return
	}
	cb.redis.Del(ctx, key)

	log.Info().Str("breaker", name).Msg("circuit breaker CLOSED (reset)")
}
