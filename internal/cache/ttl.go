// Package cache holds the in-memory caches: a generic TTL cache for
// brokerage responses and a day-keyed cache for computed results.
package cache

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL is the freshness window for brokerage responses.
const DefaultTTL = 60 * time.Second

// TTL caches a single value for a fixed duration.
type TTL[T any] struct {
	ttl time.Duration
	now func() time.Time

	mu        sync.Mutex
	value     T
	fetchedAt time.Time
	valid     bool
	tag       uint64
	latest    uint64
}

// NewTTL creates a TTL cache. ttl <= 0 uses DefaultTTL; a nil now uses
// time.Now.
func NewTTL[T any](ttl time.Duration, now func() time.Time) *TTL[T] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &TTL[T]{ttl: ttl, now: now}
}

// Get returns the cached value while it is fresh, otherwise calls fetch and
// caches its result. Errors from fetch are returned and not cached. Holding
// the lock across fetch means concurrent callers share one call.
func (c *TTL[T]) Get(ctx context.Context, fetch func(context.Context) (T, error)) (T, error) {
	return c.GetTagged(ctx, 0, fetch)
}

// GetTagged is Get with the entry bound to tag, a monotonically increasing
// generation such as a session epoch. A cached value is only served to
// callers with the same tag, and results fetched under a tag older than the
// newest one seen are returned without being cached.
func (c *TTL[T]) GetTagged(ctx context.Context, tag uint64, fetch func(context.Context) (T, error)) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if tag > c.latest {
		c.latest = tag
	}
	now := c.now()
	if c.valid && c.tag == tag && now.Sub(c.fetchedAt) < c.ttl {
		return c.value, nil
	}

	v, err := fetch(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	if tag < c.latest {
		return v, nil
	}
	c.value = v
	c.fetchedAt = now
	c.valid = true
	c.tag = tag
	return v, nil
}

// Invalidate drops the cached value.
func (c *TTL[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	c.value = zero
	c.valid = false
	c.fetchedAt = time.Time{}
}

// Age returns how old the cached value is, and false when nothing is cached.
func (c *TTL[T]) Age() (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.valid {
		return 0, false
	}
	return c.now().Sub(c.fetchedAt), true
}
