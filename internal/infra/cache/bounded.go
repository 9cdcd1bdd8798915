package cache

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// EvictFraction is the share of entries dropped at once when a full cache
// receives a new key.
const EvictFraction = 0.2

// Bounded is a TTL cache with a hard capacity. When a new key arrives and
// the cache is full, the oldest 20% of entries (by insertion) are evicted in
// one go. Reads do not refresh recency.
type Bounded[K comparable, V any] struct {
	mu       sync.Mutex
	lru      *expirable.LRU[K, V]
	capacity int
}

// NewBounded builds a cache holding at most capacity entries. ttl <= 0 means
// entries never expire.
func NewBounded[K comparable, V any](capacity int, ttl time.Duration) *Bounded[K, V] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Bounded[K, V]{
		lru:      expirable.NewLRU[K, V](capacity, nil, ttl),
		capacity: capacity,
	}
}

// Get returns the value while it is younger than the TTL.
func (c *Bounded[K, V]) Get(key K) (V, bool) {
	return c.lru.Peek(key)
}

func (c *Bounded[K, V]) Contains(key K) bool {
	_, ok := c.lru.Peek(key)
	return ok
}

// Add stores value under key and returns how many entries were evicted to
// make room.
func (c *Bounded[K, V]) Add(key K, value V) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	evicted := 0
	if !c.lru.Contains(key) && c.lru.Len() >= c.capacity {
		n := int(float64(c.capacity) * EvictFraction)
		if n < 1 {
			n = 1
		}
		for i := 0; i < n; i++ {
			if _, _, ok := c.lru.RemoveOldest(); !ok {
				break
			}
			evicted++
		}
	}
	c.lru.Add(key, value)
	return evicted
}

func (c *Bounded[K, V]) Remove(key K) { c.lru.Remove(key) }

func (c *Bounded[K, V]) Len() int { return c.lru.Len() }

func (c *Bounded[K, V]) Capacity() int { return c.capacity }

func (c *Bounded[K, V]) Purge() { c.lru.Purge() }
