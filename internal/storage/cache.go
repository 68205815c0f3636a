package storage

import (
	"container/list"
	"sync"
	"time"
)

// cacheEntry represents a cached item with expiration
type cacheEntry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

// LRUCache is a thread-safe LRU cache with TTL support.
// Each Get of a live entry refreshes its position but not its expiry; Set
// refreshes both.
type LRUCache[V any] struct {
	mu           sync.Mutex
	capacity     int
	ttl          time.Duration
	items        map[string]*list.Element
	evictionList *list.List
	now          func() time.Time
}

// NewLRUCache creates a new LRU cache
func NewLRUCache[V any](capacity int, ttl time.Duration) *LRUCache[V] {
	if capacity <= 0 {
		capacity = 1
	}
	return &LRUCache[V]{
		capacity:     capacity,
		ttl:          ttl,
		items:        make(map[string]*list.Element, capacity),
		evictionList: list.New(),
		now:          time.Now,
	}
}

// Get retrieves an item from the cache
func (c *LRUCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, found := c.items[key]
	if !found {
		return zero, false
	}

	entry := elem.Value.(*cacheEntry[V])
	if c.now().After(entry.expiresAt) {
		c.removeElement(elem)
		return zero, false
	}

	// Move to front (most recently used)
	c.evictionList.MoveToFront(elem)
	return entry.value, true
}

// Set adds or updates an item in the cache
func (c *LRUCache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(c.ttl)

	// Update existing item
	if elem, found := c.items[key]; found {
		c.evictionList.MoveToFront(elem)
		entry := elem.Value.(*cacheEntry[V])
		entry.value = value
		entry.expiresAt = expiresAt
		return
	}

	elem := c.evictionList.PushFront(&cacheEntry[V]{
		key:       key,
		value:     value,
		expiresAt: expiresAt,
	})
	c.items[key] = elem

	// Evict oldest if over capacity
	if c.evictionList.Len() > c.capacity {
		c.removeOldest()
	}
}

// GetOrCreate returns the live value for key, storing create() when absent.
// The lookup and insert happen under one lock.
func (c *LRUCache[V]) GetOrCreate(key string, create func() V) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if elem, found := c.items[key]; found {
		entry := elem.Value.(*cacheEntry[V])
		if !now.After(entry.expiresAt) {
			c.evictionList.MoveToFront(elem)
			entry.expiresAt = now.Add(c.ttl)
			return entry.value, false
		}
		c.removeElement(elem)
	}

	value := create()
	c.items[key] = c.evictionList.PushFront(&cacheEntry[V]{
		key:       key,
		value:     value,
		expiresAt: now.Add(c.ttl),
	})
	if c.evictionList.Len() > c.capacity {
		c.removeOldest()
	}
	return value, true
}

// Delete removes an item from the cache
func (c *LRUCache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, found := c.items[key]; found {
		c.removeElement(elem)
	}
}

// Clear removes all items from the cache
func (c *LRUCache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element, c.capacity)
	c.evictionList.Init()
}

// Len returns the current number of items in the cache
func (c *LRUCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.evictionList.Len()
}

func (c *LRUCache[V]) removeOldest() {
	if elem := c.evictionList.Back(); elem != nil {
		c.removeElement(elem)
	}
}

func (c *LRUCache[V]) removeElement(elem *list.Element) {
	c.evictionList.Remove(elem)
	delete(c.items, elem.Value.(*cacheEntry[V]).key)
}

// CleanupExpired removes all expired items (should be called periodically)
func (c *LRUCache[V]) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0

	// Iterate from back (oldest) to front
	var next *list.Element
	for elem := c.evictionList.Back(); elem != nil; elem = next {
		next = elem.Prev()
		if now.After(elem.Value.(*cacheEntry[V]).expiresAt) {
			c.removeElement(elem)
			removed++
		}
	}

	return removed
}

// CacheStats reports cache occupancy
type CacheStats struct {
	Capacity int
	Size     int
	TTL      time.Duration
}

// GetStats returns current cache statistics
func (c *LRUCache[V]) GetStats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return CacheStats{
		Capacity: c.capacity,
		Size:     c.evictionList.Len(),
		TTL:      c.ttl,
	}
}
