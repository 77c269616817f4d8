package cache

import (
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// DefaultRecentKeys is the default length of the recent-keys history kept for
// DetailedStats.
const DefaultRecentKeys = 32

// Observer receives cache events. Implementations must be safe for concurrent
// use; they are called outside the cache lock, so events from concurrent
// operations may arrive in any order. Size is reported as a delta, which sums
// to the entry count whatever the order.
type Observer interface {
	Hit()
	Miss()
	Evicted(n int)
	SizeChanged(delta int)
}

// Sizer is implemented by values that know their memory footprint.
type Sizer interface {
	SizeBytes() int64
}

type options struct {
	recentKeys int
	observer   Observer
}

// Option configures a Cache.
type Option func(*options)

// WithRecentKeys sets how many recently touched keys DetailedStats reports.
// Values <= 0 disable the history.
func WithRecentKeys(n int) Option {
	return func(o *options) {
		if n < 0 {
			n = 0
		}
		o.recentKeys = n
	}
}

// WithObserver registers an observer for hit, miss, eviction and size events.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}

// Cache is a thread-safe, capacity-bounded LRU cache with running statistics.
//
// The zero value is not usable; create caches with New.
type Cache[K comparable, V any] struct {
	mu sync.Mutex

	// lru holds the entries in recency order; it is not safe for concurrent
	// use on its own and is only touched with mu held.
	lru      *simplelru.LRU[K, V]
	capacity int

	hits      uint64
	misses    uint64
	evictions uint64
	memBytes  int64

	// recent is ordered most recent first, without duplicates.
	recent      []K
	recentLimit int
	freq        map[K]uint64

	observer Observer
}

// New creates an empty cache holding at most capacity entries.
//
// Returns a *CapacityError if capacity <= 0.
func New[K comparable, V any](capacity int, opts ...Option) (*Cache[K, V], error) {
	if err := validateCapacity("create", capacity); err != nil {
		return nil, err
	}

	o := options{recentKeys: DefaultRecentKeys}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Cache[K, V]{
		capacity:    capacity,
		recentLimit: o.recentKeys,
		freq:        make(map[K]uint64),
		observer:    o.observer,
	}
	lru, err := simplelru.NewLRU[K, V](capacity, c.onEvict)
	if err != nil {
		return nil, err
	}
	c.lru = lru
	return c, nil
}

// Get returns the value cached under key. A hit marks the entry most recently
// used and bumps its frequency; a miss only increments the miss counter.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	v, ok := c.lru.Get(key)
	if ok {
		c.hits++
		c.freq[key]++
		c.touch(key)
	} else {
		c.misses++
	}
	c.mu.Unlock()

	if c.observer != nil {
		if ok {
			c.observer.Hit()
		} else {
			c.observer.Miss()
		}
	}
	return v, ok
}

// Peek returns the value cached under key without touching recency or stats.
func (c *Cache[K, V]) Peek(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Peek(key)
}

// Contains reports whether key is cached without touching recency or stats.
func (c *Cache[K, V]) Contains(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Contains(key)
}

// Put inserts or overwrites the value for key, evicting the least recently
// used entry if the cache is full.
func (c *Cache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	before := c.lru.Len()
	if old, ok := c.lru.Peek(key); ok {
		c.memBytes -= sizeOf(old)
	}
	evicted := c.lru.Add(key, value)
	c.memBytes += sizeOf(value)
	if evicted {
		c.evictions++
	}
	c.touch(key)
	delta := c.lru.Len() - before
	c.mu.Unlock()

	if c.observer != nil {
		if evicted {
			c.observer.Evicted(1)
		}
		if delta != 0 {
			c.observer.SizeChanged(delta)
		}
	}
}

// Remove deletes key from the cache. Reports whether it was present.
func (c *Cache[K, V]) Remove(key K) bool {
	c.mu.Lock()
	ok := c.lru.Remove(key)
	c.mu.Unlock()

	if ok && c.observer != nil {
		c.observer.SizeChanged(-1)
	}
	return ok
}

// Resize changes the capacity in place. Shrinking evicts least recently used
// entries until the cache fits; growing never evicts.
//
// Returns a *CapacityError if capacity <= 0.
func (c *Cache[K, V]) Resize(capacity int) error {
	if err := validateCapacity("resize", capacity); err != nil {
		return err
	}

	c.mu.Lock()
	evicted := c.lru.Resize(capacity)
	c.capacity = capacity
	c.evictions += uint64(evicted)
	c.mu.Unlock()

	if c.observer != nil && evicted > 0 {
		c.observer.Evicted(evicted)
		c.observer.SizeChanged(-evicted)
	}
	return nil
}

// Clear empties the cache, the recent-keys history and the key frequencies.
// Hit, miss and eviction counters are cumulative and are kept.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	dropped := c.lru.Len()
	c.lru.Purge()
	c.memBytes = 0
	c.recent = c.recent[:0]
	c.freq = make(map[K]uint64)
	c.mu.Unlock()

	if c.observer != nil && dropped > 0 {
		c.observer.SizeChanged(-dropped)
	}
}

// Len returns the number of cached entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Capacity returns the current capacity.
func (c *Cache[K, V]) Capacity() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capacity
}

// Keys returns the cached keys from least to most recently used.
func (c *Cache[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Keys()
}

// Stats returns a point-in-time snapshot of the basic statistics.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statsLocked()
}

// DetailedStats returns a point-in-time snapshot of the detailed statistics.
// The embedded Stats is taken in the same critical section as the rest.
func (c *Cache[K, V]) DetailedStats() DetailedStats[K] {
	c.mu.Lock()
	defer c.mu.Unlock()

	recent := make([]K, len(c.recent))
	copy(recent, c.recent)

	freq := make(map[K]uint64, len(c.freq))
	for k, n := range c.freq {
		freq[k] = n
	}

	return DetailedStats[K]{
		Stats:            c.statsLocked(),
		Evictions:        c.evictions,
		MemoryUsageBytes: c.memBytes,
		MemoryUsageMB:    float64(c.memBytes) / (1024 * 1024),
		RecentKeys:       recent,
		KeyFrequencies:   freq,
	}
}

// Internal methods (must be called with lock held)

func (c *Cache[K, V]) statsLocked() Stats {
	return Stats{
		Capacity: c.capacity,
		Size:     c.lru.Len(),
		Hits:     c.hits,
		Misses:   c.misses,
		HitRatio: hitRatio(c.hits, c.misses),
	}
}

// onEvict runs inside lru calls, which only happen with mu held.
func (c *Cache[K, V]) onEvict(key K, value V) {
	c.memBytes -= sizeOf(value)
	delete(c.freq, key)
}

// touch moves key to the front of the recent-keys history.
func (c *Cache[K, V]) touch(key K) {
	if c.recentLimit == 0 {
		return
	}
	for i, k := range c.recent {
		if k == key {
			copy(c.recent[1:i+1], c.recent[:i])
			c.recent[0] = key
			return
		}
	}
	if len(c.recent) < c.recentLimit {
		c.recent = append(c.recent, key)
	}
	copy(c.recent[1:], c.recent[:len(c.recent)-1])
	c.recent[0] = key
}

func sizeOf(v any) int64 {
	switch v := v.(type) {
	case Sizer:
		return v.SizeBytes()
	case []byte:
		return int64(len(v))
	case string:
		return int64(len(v))
	}
	return 0
}
