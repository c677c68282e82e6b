// Package ratelimit implements spec.md §4.3's per-second counter: a Redis
// INCR against a key scoped to the EventAccess (or Connection, for the
// stricter per-connection budget), reset once a second by the watchdog
// rather than by a TTL on the key itself, so a slow watchdog tick never
// silently extends the window. Grounded on
// Generativebots-ocx-backend-go-svc's internal/infra/redis_adapter.go
// connect-then-ping wrapper style.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Limiter enforces a per-key, per-second request budget backed by Redis.
// On Redis unavailability it fails open (Allow returns true) rather than
// rejecting traffic, per spec.md §4.3's availability note.
type Limiter struct {
	rdb *redis.Client
}

// New connects to Redis at url, verifying connectivity with a ping the
// same way the teacher's adapters do before returning.
func New(ctx context.Context, url string) (*Limiter, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("ratelimit: parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ratelimit: redis ping failed: %w", err)
	}

	log.Info().Msg("rate limiter connected to redis")
	return &Limiter{rdb: rdb}, nil
}

// NewFromClient wraps an already-constructed redis.Client — used by tests
// against miniredis.
func NewFromClient(rdb *redis.Client) *Limiter {
	return &Limiter{rdb: rdb}
}

// Close shuts down the underlying client.
func (l *Limiter) Close() error { return l.rdb.Close() }

// apiThroughputKey and eventThroughputKey namespace the two counter
// families the watchdog clears on separate cadences (spec.md §4.9: the
// 1-second event-throughput clear, the longer api-throughput clear).
func apiThroughputKey(scope string) string   { return "pica:ratelimit:api:" + scope }
func eventThroughputKey(scope string) string { return "pica:ratelimit:event:" + scope }

// Allow increments the per-second counter for scope and reports whether
// the caller is still under limit. It fails open on any Redis error: a
// rate limiter that can't reach its store must never become an outage.
func (l *Limiter) Allow(ctx context.Context, scope string, limit int) (bool, error) {
	return l.incrAndCheck(ctx, apiThroughputKey(scope), limit)
}

// AllowEvent is Allow's counterpart for the event-throughput counter
// family (the keys ClearEvents resets every second), kept distinct so the
// api and event budgets never share a key namespace.
func (l *Limiter) AllowEvent(ctx context.Context, scope string, limit int) (bool, error) {
	return l.incrAndCheck(ctx, eventThroughputKey(scope), limit)
}

func (l *Limiter) incrAndCheck(ctx context.Context, key string, limit int) (bool, error) {
	if limit <= 0 {
		return true, nil
	}
	n, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("rate limiter redis incr failed, failing open")
		return true, nil
	}
	return n <= int64(limit), nil
}

// ClearAPI deletes every api-throughput counter key matching pattern — the
// watchdog's main-loop reset, run on RateLimiterRefreshInterval.
func (l *Limiter) ClearAPI(ctx context.Context) error {
	return l.clearPattern(ctx, apiThroughputKey("*"))
}

// ClearEvents deletes every event-throughput counter key — the watchdog's
// fixed 1-second clear loop.
func (l *Limiter) ClearEvents(ctx context.Context) error {
	return l.clearPattern(ctx, eventThroughputKey("*"))
}

func (l *Limiter) clearPattern(ctx context.Context, pattern string) error {
	iter := l.rdb.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("ratelimit: scan %s: %w", pattern, err)
	}
	if len(keys) == 0 {
		return nil
	}
	return l.rdb.Del(ctx, keys...).Err()
}
