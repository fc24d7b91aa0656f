// Package cache memoises read results per query key and drops them when the
// category they were read from changes.
package cache

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"gofolio/internal/notify"
	"gofolio/internal/telemetry"
)

// Subscriber registers change callbacks.
type Subscriber interface {
	Subscribe(category notify.Category, fn func()) *notify.Subscription
}

// Fetch loads the value for a key on a miss.
type Fetch[T any] func(ctx context.Context) (T, error)

// Cache holds values of type T for one change category. Any signal for the
// category empties it. Errors are never cached.
type Cache[T any] struct {
	mu         sync.Mutex
	entries    map[string]T
	generation uint64

	group     singleflight.Group
	category  notify.Category
	sub       *notify.Subscription
	telemetry *telemetry.Provider
}

// New creates a cache invalidated by signals for category.
func New[T any](n Subscriber, category notify.Category, tp *telemetry.Provider) *Cache[T] {
	c := &Cache[T]{
		entries:   make(map[string]T),
		category:  category,
		telemetry: tp,
	}
	c.sub = n.Subscribe(category, c.Invalidate)
	return c
}

// Get returns the cached value for key, calling fetch on a miss. Concurrent
// misses for the same key share a single fetch. A fetch that began before an
// invalidation is returned to its callers but not stored.
func (c *Cache[T]) Get(ctx context.Context, key string, fetch Fetch[T]) (T, error) {
	c.mu.Lock()
	if v, ok := c.entries[key]; ok {
		c.mu.Unlock()
		c.telemetry.RecordCacheHit(c.category)
		return v, nil
	}
	gen := c.generation
	c.mu.Unlock()
	c.telemetry.RecordCacheMiss(c.category)

	// One caller going away must not fail the fetch shared with the others.
	shared := context.WithoutCancel(ctx)

	v, err, _ := c.group.Do(fmt.Sprintf("%d:%s", gen, key), func() (any, error) {
		val, err := fetch(shared)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		if c.generation == gen {
			c.entries[key] = val
		}
		c.mu.Unlock()
		return val, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Invalidate drops every entry.
func (c *Cache[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	clear(c.entries)
}

// Len returns the number of cached keys.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close unsubscribes the cache from change signals.
func (c *Cache[T]) Close() {
	c.sub.Unsubscribe()
}
