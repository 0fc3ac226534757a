// ABOUTME: Tests for the idempotency key cache.
// ABOUTME: Validates TTL expiration, size limits, eviction, cleanup, and concurrency safety.

package dedupe

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock lets tests move time forward without sleeping
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newTestCache(ttl time.Duration, maxSize int) (*Cache, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)}
	c := New(ttl, maxSize)
	c.now = clock.Now
	return c, clock
}

func TestCache_Lookup_NotSeen(t *testing.T) {
	cache, _ := newTestCache(5*time.Minute, 100)
	defer cache.Close()

	_, ok := cache.Lookup("never-seen-key")
	assert.False(t, ok)
}

func TestCache_Lookup_Seen(t *testing.T) {
	cache, _ := newTestCache(5*time.Minute, 100)
	defer cache.Close()

	cache.Remember("my-key", 42)

	id, ok := cache.Lookup("my-key")
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)
}

func TestCache_Lookup_Expired(t *testing.T) {
	cache, clock := newTestCache(10*time.Minute, 100)
	defer cache.Close()

	cache.Remember("expiring-key", 7)

	clock.Advance(9 * time.Minute)
	_, ok := cache.Lookup("expiring-key")
	assert.True(t, ok)

	clock.Advance(time.Minute)
	_, ok = cache.Lookup("expiring-key")
	assert.False(t, ok)
}

func TestCache_Remember_Overwrites(t *testing.T) {
	cache, _ := newTestCache(5*time.Minute, 100)
	defer cache.Close()

	cache.Remember("key", 1)
	cache.Remember("key", 2)

	id, ok := cache.Lookup("key")
	assert.True(t, ok)
	assert.Equal(t, int64(2), id)
	assert.Equal(t, 1, cache.Len())
}

func TestCache_EvictsOldest(t *testing.T) {
	cache, _ := newTestCache(5*time.Minute, 3)
	defer cache.Close()

	cache.Remember("key-1", 1)
	cache.Remember("key-2", 2)
	cache.Remember("key-3", 3)
	cache.Remember("key-4", 4)

	_, ok := cache.Lookup("key-1")
	assert.False(t, ok, "oldest key should be evicted")
	for _, k := range []string{"key-2", "key-3", "key-4"} {
		_, ok := cache.Lookup(k)
		assert.True(t, ok, k)
	}
	assert.Equal(t, 3, cache.Len())
}

func TestCache_RememberRefreshesOrder(t *testing.T) {
	cache, _ := newTestCache(5*time.Minute, 2)
	defer cache.Close()

	cache.Remember("a", 1)
	cache.Remember("b", 2)
	cache.Remember("a", 1) // a becomes newest
	cache.Remember("c", 3)

	_, ok := cache.Lookup("b")
	assert.False(t, ok)
	_, ok = cache.Lookup("a")
	assert.True(t, ok)
}

func TestCache_RunCleanup(t *testing.T) {
	cache, clock := newTestCache(time.Minute, 100)
	defer cache.Close()

	cache.Remember("old", 1)
	clock.Advance(2 * time.Minute)
	cache.Remember("fresh", 2)

	cache.runCleanup()

	assert.Equal(t, 1, cache.Len())
	_, ok := cache.Lookup("fresh")
	assert.True(t, ok)
}

func TestCache_Close_Idempotent(t *testing.T) {
	cache := New(time.Minute, 10)
	cache.Close()
	assert.NotPanics(t, cache.Close)
}

func TestCache_ConcurrentAccess(t *testing.T) {
	cache, _ := newTestCache(5*time.Minute, 1000)
	defer cache.Close()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", n)
			cache.Remember(key, int64(n))
			_, _ = cache.Lookup(key)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, cache.Len())
}
