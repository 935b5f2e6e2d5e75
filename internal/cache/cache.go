// Package cache provides a generic TTL cache that can still serve expired
// entries as a fallback when a refresh fails
package cache

import (
	"sync"
	"time"
)

type entry[T any] struct {
	value    T
	storedAt time.Time
}

// Cache is a thread-safe TTL cache. Entries older than the TTL are no longer
// returned by Get but stay readable through GetStale until they age past
// the retention window, after which the janitor drops them.
type Cache[T any] struct {
	items     map[string]entry[T]
	mu        sync.RWMutex
	ttl       time.Duration
	retention time.Duration
	now       func() time.Time
	stop      chan struct{}
	closeOnce sync.Once
}

// New creates a cache with the given TTL that keeps stale entries for
// retention beyond it
func New[T any](ttl, retention time.Duration) *Cache[T] {
	return newWithClock[T](ttl, retention, time.Now)
}

func newWithClock[T any](ttl, retention time.Duration, now func() time.Time) *Cache[T] {
	c := &Cache[T]{
		items:     make(map[string]entry[T]),
		ttl:       ttl,
		retention: retention,
		now:       now,
		stop:      make(chan struct{}),
	}
	if ttl > 0 {
		go c.janitor()
	}
	return c
}

// Get returns a value only if it is still fresh
func (c *Cache[T]) Get(key string) (T, bool) {
	value, fresh, found := c.GetStale(key)
	if !found || !fresh {
		var zero T
		return zero, false
	}
	return value, true
}

// GetStale returns the value stored for key and whether it is still fresh.
// Entries past the retention window count as missing even before the
// janitor removes them.
func (c *Cache[T]) GetStale(key string) (value T, fresh bool, found bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.items[key]
	if !ok {
		return value, false, false
	}
	age := c.now().Sub(e.storedAt)
	if age >= c.ttl+c.retention {
		return value, false, false
	}
	return e.value, age < c.ttl, true
}

// Set stores a value stamped with the current time
func (c *Cache[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = entry[T]{value: value, storedAt: c.now()}
}

// Delete removes a key from the cache
func (c *Cache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Size returns the number of stored entries, stale ones included
func (c *Cache[T]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Close stops the janitor goroutine. Safe to call more than once.
func (c *Cache[T]) Close() {
	c.closeOnce.Do(func() { close(c.stop) })
}

func (c *Cache[T]) janitor() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.evict()
		case <-c.stop:
			return
		}
	}
}

func (c *Cache[T]) evict() {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.ttl + c.retention
	now := c.now()
	for key, e := range c.items {
		if now.Sub(e.storedAt) >= cutoff {
			delete(c.items, key)
		}
	}
}
