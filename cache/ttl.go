// Package cache provides a small single-value cache with an explicit time-to-live.
package cache

import (
	"context"
	"sync"
	"time"
)

// Clock returns the current time. Tests replace it to control expiry.
type Clock func() time.Time

// Loader produces a fresh value for the cache.
type Loader[T any] func(ctx context.Context) (T, error)

// TTL holds a single value together with the time it was stored and how long it stays valid.
type TTL[T any] struct {
	mu        sync.Mutex
	value     T
	timestamp time.Time
	ttl       time.Duration
	valid     bool
	now       Clock
}

// NewTTL returns an empty cache whose entries expire after ttl. A nil clock means time.Now.
func NewTTL[T any](ttl time.Duration, now Clock) *TTL[T] {
	if now == nil {
		now = time.Now
	}
	return &TTL[T]{ttl: ttl, now: now}
}

// Get returns the cached value if one is present and has not expired.
func (c *TTL[T]) Get() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.get()
}

func (c *TTL[T]) get() (T, bool) {
	var zero T
	if !c.valid {
		return zero, false
	}
	if c.now().Sub(c.timestamp) >= c.ttl {
		return zero, false
	}
	return c.value, true
}

// Set stores a value, resetting its age.
func (c *TTL[T]) Set(value T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = value
	c.timestamp = c.now()
	c.valid = true
}

// Invalidate discards the cached value so the next lookup misses.
func (c *TTL[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	c.value = zero
	c.valid = false
}

// GetOrLoad returns the cached value, calling load to refresh it when it is missing or expired.
// Errors from load are returned as is and leave the cache untouched.
func (c *TTL[T]) GetOrLoad(ctx context.Context, load Loader[T]) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if value, ok := c.get(); ok {
		return value, nil
	}

	value, err := load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	c.value = value
	c.timestamp = c.now()
	c.valid = true
	return value, nil
}
