// Package cache implements the bounded, TTL-expiring, single-flighted
// lookup caches described in spec.md §4.1. Every catalog lookup on the
// gateway's hot path (EventAccess by access key, Connection by key,
// ConnectionDefinition/ConnectionModelDefinition/ConnectionOAuthDefinition
// by id or composite key) goes through one of these instead of hitting
// MongoDB directly.
package cache

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// Loader fetches the value for key from the system of record.
type Loader[K comparable, V any] func(ctx context.Context, key K) (V, error)

// entry pairs a cached value with its expiry time so Get can evaluate
// per-entry TTL expiry without a background sweep goroutine.
type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache is a bounded LRU with per-entry TTL and single-flighted fills: a
// cache miss for key K only ever calls Loader once, regardless of how many
// concurrent requests need it (spec.md §4.1's collapsing-stampede
// requirement).
type Cache[K comparable, V any] struct {
	lru   *lru.Cache[K, entry[V]]
	ttl   time.Duration
	group singleflight.Group
	load  Loader[K, V]
}

// New builds a Cache holding at most size entries, each valid for ttl after
// insertion, filled on miss by load.
func New[K comparable, V any](size int, ttl time.Duration, load Loader[K, V]) *Cache[K, V] {
	l, err := lru.New[K, entry[V]](size)
	if err != nil {
		// size <= 0 is a programmer error (wiring bug), not a runtime
		// condition callers can recover from.
		panic(err)
	}
	return &Cache[K, V]{lru: l, ttl: ttl, load: load}
}

// Get returns the cached value for key, loading (and caching) it on a miss
// or expiry. Concurrent Get calls for the same key during a miss share one
// in-flight Loader call.
func (c *Cache[K, V]) Get(ctx context.Context, key K) (V, error) {
	if e, ok := c.lru.Get(key); ok {
		if time.Now().Before(e.expiresAt) {
			return e.value, nil
		}
		c.lru.Remove(key)
	}

	groupKey := fmt.Sprintf("%v", key)
	v, err, _ := c.group.Do(groupKey, func() (any, error) {
		val, err := c.load(ctx, key)
		if err != nil {
			return val, err
		}
		c.lru.Add(key, entry[V]{value: val, expiresAt: time.Now().Add(c.ttl)})
		return val, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

// Invalidate removes key from the cache, used after a write that changes
// the underlying record (e.g. a Connection's OAuth token refresh).
func (c *Cache[K, V]) Invalidate(key K) {
	c.lru.Remove(key)
}

// Put seeds or overwrites the cached value for key, bypassing Loader —
// used when a caller already has a freshly written value on hand and would
// otherwise immediately re-fetch it.
func (c *Cache[K, V]) Put(key K, value V) {
	c.lru.Add(key, entry[V]{value: value, expiresAt: time.Now().Add(c.ttl)})
}
