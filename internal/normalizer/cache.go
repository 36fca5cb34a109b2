package normalizer

import (
	"container/list"
	"sync"
	"time"
)

// cacheEntry is one cached lookup result. Canonical is nil both for
// known-but-unmapped codes and for codes with no mapping row; Known
// distinguishes the two so the miss signal fires only for absent rows.
type cacheEntry struct {
	key       string
	canonical *string
	known     bool
	expiresAt time.Time
}

// mappingCache is a capacity- and time-bounded cache with recency-based
// eviction, guarded by a mutex for concurrent provider batches.
type mappingCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	entries  map[string]*list.Element
	order    *list.List // front = most recently used
}

// newMappingCache creates a cache with the given capacity and entry TTL.
func newMappingCache(capacity int, ttl time.Duration) *mappingCache {
	return &mappingCache{
		capacity: capacity,
		ttl:      ttl,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

// get returns the cached result for a key. ok is false when the key is
// absent or expired.
func (c *mappingCache) get(key string) (canonical *string, known, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, exists := c.entries[key]
	if !exists {
		return nil, false, false
	}

	entry := elem.Value.(*cacheEntry)
	if time.Now().After(entry.expiresAt) {
		c.order.Remove(elem)
		delete(c.entries, key)
		return nil, false, false
	}

	c.order.MoveToFront(elem)
	return entry.canonical, entry.known, true
}

// put stores a lookup result, evicting the least recently used entry when
// the cache is full.
func (c *mappingCache) put(key string, canonical *string, known bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := &cacheEntry{
		key:       key,
		canonical: canonical,
		known:     known,
		expiresAt: time.Now().Add(c.ttl),
	}

	if elem, exists := c.entries[key]; exists {
		elem.Value = entry
		c.order.MoveToFront(elem)
		return
	}

	if c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*cacheEntry).key)
		}
	}

	c.entries[key] = c.order.PushFront(entry)
}

// len returns the number of cached entries, expired ones included.
func (c *mappingCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
