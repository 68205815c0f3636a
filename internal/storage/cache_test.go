package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func newTestCache(capacity int, ttl time.Duration) (*LRUCache[string], *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](capacity, ttl)
	c.now = clock.now
	return c, clock
}

func TestLRUCache_GetSet(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)

	c.Set("a", "1")
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "1", v)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)

	c.Set("a", "1")
	c.Set("b", "2")
	_, _ = c.Get("a") // a is now most recent
	c.Set("c", "3")

	_, ok := c.Get("b")
	assert.False(t, ok, "b should have been evicted")
	_, ok = c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestLRUCache_Expiry(t *testing.T) {
	c, clock := newTestCache(10, time.Minute)

	c.Set("a", "1")
	c.Set("b", "2")
	clock.t = clock.t.Add(2 * time.Minute)

	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, c.CleanupExpired())
	assert.Equal(t, 0, c.Len())
}

func TestLRUCache_GetOrCreate(t *testing.T) {
	c, clock := newTestCache(10, time.Minute)

	calls := 0
	create := func() string { calls++; return "fresh" }

	v, created := c.GetOrCreate("s", create)
	assert.True(t, created)
	assert.Equal(t, "fresh", v)

	clock.t = clock.t.Add(30 * time.Second)
	_, created = c.GetOrCreate("s", create)
	assert.False(t, created)

	// access slid the expiry forward
	clock.t = clock.t.Add(45 * time.Second)
	_, created = c.GetOrCreate("s", create)
	assert.False(t, created)

	clock.t = clock.t.Add(2 * time.Minute)
	_, created = c.GetOrCreate("s", create)
	assert.True(t, created)
	assert.Equal(t, 2, calls)
}

func TestLRUCache_DeleteAndClear(t *testing.T) {
	c, _ := newTestCache(10, time.Minute)

	c.Set("a", "1")
	c.Set("b", "2")
	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Clear()
	assert.Equal(t, 0, c.Len())

	stats := c.GetStats()
	assert.Equal(t, 10, stats.Capacity)
	assert.Equal(t, time.Minute, stats.TTL)
}
