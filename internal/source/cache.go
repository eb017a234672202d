package source

import (
	"sync"
	"time"
)

// Entry is the last value a feed produced.
type Entry[T any] struct {
	Value     T
	FetchedAt time.Time
	ExpiresAt time.Time
}

// Fresh reports whether the entry may be reused at now.
func (e Entry[T]) Fresh(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

// TTLCache holds a single entry for one feed. It is safe for concurrent use.
type TTLCache[T any] struct {
	mu    sync.RWMutex
	ttl   time.Duration
	now   func() time.Time
	entry *Entry[T]
}

// NewTTLCache creates an empty cache. A nil clock uses time.Now.
func NewTTLCache[T any](ttl time.Duration, clock func() time.Time) *TTLCache[T] {
	if clock == nil {
		clock = time.Now
	}
	return &TTLCache[T]{ttl: ttl, now: clock}
}

// TTL returns the freshness window.
func (c *TTLCache[T]) TTL() time.Duration {
	return c.ttl
}

// Fresh returns the entry if it is still inside its window.
func (c *TTLCache[T]) Fresh() (Entry[T], bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.entry == nil || !c.entry.Fresh(c.now()) {
		return Entry[T]{}, false
	}
	return *c.entry, true
}

// Last returns the entry regardless of age.
func (c *TTLCache[T]) Last() (Entry[T], bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.entry == nil {
		return Entry[T]{}, false
	}
	return *c.entry, true
}

// Set stores v as fetched now and returns the new entry.
func (c *TTLCache[T]) Set(v T) Entry[T] {
	now := c.now()
	e := Entry[T]{Value: v, FetchedAt: now, ExpiresAt: now.Add(c.ttl)}

	c.mu.Lock()
	c.entry = &e
	c.mu.Unlock()

	return e
}

// Clear drops the entry.
func (c *TTLCache[T]) Clear() {
	c.mu.Lock()
	c.entry = nil
	c.mu.Unlock()
}
