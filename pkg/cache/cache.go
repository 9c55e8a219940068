package cache

import (
	"context"
	"sync"
	"time"
)

// Item represents a cached item with expiration
type Item[V any] struct {
	Value      V
	Expiration int64
}

// Expired checks if the cache item has expired at now
func (item Item[V]) Expired(now int64) bool {
	if item.Expiration == 0 {
		return false
	}
	return now > item.Expiration
}

// Options configure a Cache. A zero TTL keeps items until they are evicted.
type Options struct {
	TTL             time.Duration
	CleanupInterval time.Duration
	MaxItems        int
}

// Cache is a thread-safe in-memory cache with expiration
type Cache[K comparable, V any] struct {
	items             map[K]Item[V]
	mu                sync.RWMutex
	defaultExpiration time.Duration
	cleanupInterval   time.Duration
	maxItems          int
	onEvicted         func(K, V)
	now               func() time.Time
}

// New creates a cache. Call RunCleanup to purge expired items in the background.
func New[K comparable, V any](opts Options) *Cache[K, V] {
	return &Cache[K, V]{
		items:             make(map[K]Item[V]),
		defaultExpiration: opts.TTL,
		cleanupInterval:   opts.CleanupInterval,
		maxItems:          opts.MaxItems,
		now:               time.Now,
	}
}

// Set adds an item to the cache with the default expiration
func (c *Cache[K, V]) Set(key K, value V) {
	c.SetWithExpiration(key, value, c.defaultExpiration)
}

// SetWithExpiration adds an item to the cache with a specific expiration time
func (c *Cache[K, V]) SetWithExpiration(key K, value V, d time.Duration) {
	var exp int64
	if d > 0 {
		exp = c.now().Add(d).UnixNano()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[key]; !exists && c.maxItems > 0 && len(c.items) >= c.maxItems {
		c.evictOldest()
	}

	c.items[key] = Item[V]{
		Value:      value,
		Expiration: exp,
	}
}

// Get retrieves an item from the cache
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, found := c.items[key]
	if !found || item.Expired(c.now().UnixNano()) {
		var zero V
		return zero, false
	}
	return item.Value, true
}

// Delete removes an item from the cache
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if item, found := c.items[key]; found && c.onEvicted != nil {
		c.onEvicted(key, item.Value)
	}
	delete(c.items, key)
}

// Flush removes all items from the cache
func (c *Cache[K, V]) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.onEvicted != nil {
		for k, v := range c.items {
			c.onEvicted(k, v.Value)
		}
	}
	c.items = make(map[K]Item[V])
}

// Count returns the number of items in the cache (including expired items)
func (c *Cache[K, V]) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.items)
}

// SetOnEvicted sets the callback to be called when an item is evicted
func (c *Cache[K, V]) SetOnEvicted(f func(K, V)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.onEvicted = f
}

// RunCleanup purges expired items every CleanupInterval until ctx is done.
// It returns immediately when no interval is configured.
func (c *Cache[K, V]) RunCleanup(ctx context.Context) {
	if c.cleanupInterval <= 0 {
		return
	}

	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.deleteExpired()
		}
	}
}

func (c *Cache[K, V]) deleteExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now().UnixNano()
	for k, v := range c.items {
		if v.Expired(now) {
			if c.onEvicted != nil {
				c.onEvicted(k, v.Value)
			}
			delete(c.items, k)
		}
	}
}

// evictOldest removes the item closest to expiry; items without expiry go first.
// Must be called with mu held.
func (c *Cache[K, V]) evictOldest() {
	var (
		oldestKey  K
		oldestTime int64
		found      bool
	)
	for k, v := range c.items {
		if !found || v.Expiration < oldestTime {
			oldestKey = k
			oldestTime = v.Expiration
			found = true
		}
	}
	if !found {
		return
	}

	if c.onEvicted != nil {
		c.onEvicted(oldestKey, c.items[oldestKey].Value)
	}
	delete(c.items, oldestKey)
}
