// Package cache provides a byte-budgeted, sharded LRU cache used for
// decoded media frames, text rasters, and thumbnails.
//
// Unlike an entry-count cache, eviction is driven by the total byte
// cost of cached values: a handful of 4K frames and thousands of tiny
// waveform tiles can share one budget. Keys hash into 16 shards so
// playback and export goroutines rarely contend on the same lock.
package cache

import (
	"hash/fnv"
	"sync"
	"sync/atomic"
)

// Default configuration constants.
const (
	// DefaultShardCount is the number of shards for reduced lock contention.
	// Must be a power of 2 for fast modulo via bitwise AND.
	DefaultShardCount = 16

	// DefaultBudget is the default total byte budget (64 MiB), room
	// for about twenty 1080p frames.
	DefaultBudget = 64 << 20

	// shardMask is used for fast shard selection (DefaultShardCount - 1).
	shardMask = DefaultShardCount - 1
)

// Hasher is a function that computes a hash for a key.
// Used by ShardedCache for shard selection.
type Hasher[K any] func(K) uint64

// StringHasher computes FNV-1a hash of a string key.
func StringHasher(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s)) // fnv.Write never returns an error
	return h.Sum64()
}

// IntHasher computes a hash of an int key using FNV-1a.
func IntHasher(i int) uint64 {
	h := fnv.New64a()
	buf := make([]byte, 8)
	buf[0] = byte(i)
	buf[1] = byte(i >> 8)
	buf[2] = byte(i >> 16)
	buf[3] = byte(i >> 24)
	buf[4] = byte(i >> 32)
	buf[5] = byte(i >> 40)
	buf[6] = byte(i >> 48)
	buf[7] = byte(i >> 56)
	_, _ = h.Write(buf)
	return h.Sum64()
}

// Uint64Hasher returns the key itself as the hash (identity hash).
func Uint64Hasher(u uint64) uint64 {
	return u
}

// Size reports the byte cost of a cached value. A nil Size charges one
// byte per entry, reducing the cache to a plain entry-count LRU.
type Size[V any] func(V) int64

// ShardedCache is a thread-safe, sharded LRU cache with a byte budget.
//
// Features:
//   - 16 shards for reduced lock contention
//   - LRU eviction driven by total byte cost
//   - Optional eviction hook for recycling buffers
//   - Atomic statistics for monitoring
type ShardedCache[K comparable, V any] struct {
	shards [DefaultShardCount]*cacheShard[K, V]
	hasher Hasher[K]
	size   Size[V]
	budget int64 // Per-shard byte budget

	onEvict func(K, V)

	// Statistics (atomic for zero-allocation reads)
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
	bytes     atomic.Int64
}

// cacheShard is a single shard of the cache.
// Each shard has its own mutex for reduced contention.
type cacheShard[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]*cacheEntry[K, V]
	lru     *lruList[K]
	bytes   int64
}

// cacheEntry holds a cached value with its cost and LRU node.
type cacheEntry[K comparable, V any] struct {
	value V
	cost  int64
	node  *lruNode[K]
}

// NewSharded creates a sharded cache holding at most budget bytes in
// total, as measured by size. If budget <= 0, DefaultBudget is used.
//
// The hasher function is used to compute hash values for shard
// selection. Use StringHasher, IntHasher, or Uint64Hasher for common
// key types.
func NewSharded[K comparable, V any](budget int64, hasher Hasher[K], size Size[V]) *ShardedCache[K, V] {
	if budget <= 0 {
		budget = DefaultBudget
	}
	if size == nil {
		size = func(V) int64 { return 1 }
	}

	c := &ShardedCache[K, V]{
		hasher: hasher,
		size:   size,
		budget: (budget + DefaultShardCount - 1) / DefaultShardCount,
	}

	for i := range c.shards {
		c.shards[i] = &cacheShard[K, V]{
			entries: make(map[K]*cacheEntry[K, V]),
			lru:     newLRUList[K](),
		}
	}

	return c
}

// OnEvict installs a hook called for every evicted or deleted entry.
// The hook runs with the shard lock held and must not call back into
// the cache. Useful for returning frame buffers to a pool.
func (c *ShardedCache[K, V]) OnEvict(fn func(K, V)) {
	c.onEvict = fn
}

// getShard returns the shard for a given key.
// Uses bitwise AND for fast modulo (only works with power-of-2 shard count).
func (c *ShardedCache[K, V]) getShard(key K) *cacheShard[K, V] {
	hash := c.hasher(key)
	return c.shards[hash&shardMask]
}

// Get retrieves a cached value by key.
// Returns (value, true) if found, (zero, false) otherwise.
//
// On cache hit, the entry is moved to the front of the LRU list.
func (c *ShardedCache[K, V]) Get(key K) (V, bool) {
	shard := c.getShard(key)

	// Fast path: read lock to check existence
	shard.mu.RLock()
	_, exists := shard.entries[key]
	shard.mu.RUnlock()

	if !exists {
		c.misses.Add(1)
		var zero V
		return zero, false
	}

	// Slow path: write lock for LRU update
	shard.mu.Lock()
	// Re-check after acquiring write lock (entry may have been evicted)
	entry, ok := shard.entries[key]
	if !ok {
		shard.mu.Unlock()
		c.misses.Add(1)
		var zero V
		return zero, false
	}
	shard.lru.MoveToFront(entry.node)
	value := entry.value
	shard.mu.Unlock()

	c.hits.Add(1)
	return value, true
}

// Set stores a value in the cache. If the shard exceeds its byte
// budget after insertion, least recently used entries are evicted.
// A value costing more than the whole shard budget is not cached.
//
// The value is stored as-is (not copied). Callers should not modify it
// after caching.
func (c *ShardedCache[K, V]) Set(key K, value V) {
	cost := c.size(value)
	if cost > c.budget {
		return
	}

	shard := c.getShard(key)

	shard.mu.Lock()
	defer shard.mu.Unlock()

	if existing, ok := shard.entries[key]; ok {
		shard.bytes += cost - existing.cost
		c.bytes.Add(cost - existing.cost)
		existing.value = value
		existing.cost = cost
		shard.lru.MoveToFront(existing.node)
		c.evictShard(shard)
		return
	}

	node := shard.lru.PushFront(key)
	shard.entries[key] = &cacheEntry[K, V]{value: value, cost: cost, node: node}
	shard.bytes += cost
	c.bytes.Add(cost)
	c.evictShard(shard)
}

// GetOrCreate returns a cached value or creates it using the provided
// function. The create function is called with the shard lock held to
// prevent thundering herd; keep it fast or use Get + Set when creation
// is expensive.
func (c *ShardedCache[K, V]) GetOrCreate(key K, create func() V) V {
	shard := c.getShard(key)

	shard.mu.Lock()
	defer shard.mu.Unlock()

	if entry, ok := shard.entries[key]; ok {
		shard.lru.MoveToFront(entry.node)
		c.hits.Add(1)
		return entry.value
	}

	c.misses.Add(1)

	value := create()
	cost := c.size(value)
	if cost > c.budget {
		return value
	}

	node := shard.lru.PushFront(key)
	shard.entries[key] = &cacheEntry[K, V]{value: value, cost: cost, node: node}
	shard.bytes += cost
	c.bytes.Add(cost)
	c.evictShard(shard)

	return value
}

// evictShard drops least recently used entries until the shard fits
// its budget. Caller holds the shard lock.
func (c *ShardedCache[K, V]) evictShard(shard *cacheShard[K, V]) {
	for shard.bytes > c.budget {
		oldest, ok := shard.lru.RemoveOldest()
		if !ok {
			break
		}
		entry := shard.entries[oldest]
		delete(shard.entries, oldest)
		shard.bytes -= entry.cost
		c.bytes.Add(-entry.cost)
		c.evictions.Add(1)
		if c.onEvict != nil {
			c.onEvict(oldest, entry.value)
		}
	}
}

// Delete removes an entry from the cache.
// Returns true if the entry was found and removed.
func (c *ShardedCache[K, V]) Delete(key K) bool {
	shard := c.getShard(key)

	shard.mu.Lock()
	defer shard.mu.Unlock()

	entry, ok := shard.entries[key]
	if !ok {
		return false
	}

	shard.lru.Remove(entry.node)
	delete(shard.entries, key)
	shard.bytes -= entry.cost
	c.bytes.Add(-entry.cost)
	if c.onEvict != nil {
		c.onEvict(key, entry.value)
	}
	return true
}

// Clear removes all entries from the cache.
func (c *ShardedCache[K, V]) Clear() {
	for _, shard := range c.shards {
		shard.mu.Lock()
		if c.onEvict != nil {
			for key, entry := range shard.entries {
				c.onEvict(key, entry.value)
			}
		}
		shard.entries = make(map[K]*cacheEntry[K, V])
		shard.lru.Clear()
		c.bytes.Add(-shard.bytes)
		shard.bytes = 0
		shard.mu.Unlock()
	}
}

// Len returns the total number of entries across all shards.
func (c *ShardedCache[K, V]) Len() int {
	total := 0
	for _, shard := range c.shards {
		shard.mu.RLock()
		total += len(shard.entries)
		shard.mu.RUnlock()
	}
	return total
}

// Bytes returns the current total byte cost of cached values.
func (c *ShardedCache[K, V]) Bytes() int64 {
	return c.bytes.Load()
}

// Budget returns the total byte budget across all shards.
func (c *ShardedCache[K, V]) Budget() int64 {
	return c.budget * DefaultShardCount
}

// Stats holds a snapshot of cache counters.
type Stats struct {
	// Len is the current number of entries.
	Len int
	// Bytes is the current total byte cost.
	Bytes int64
	// Budget is the total byte budget across all shards.
	Budget int64
	// Hits is the number of cache hits.
	Hits uint64
	// Misses is the number of cache misses.
	Misses uint64
	// HitRate is the cache hit rate 0.0 to 1.0.
	HitRate float64
	// Evictions is the number of evicted entries.
	Evictions uint64
}

// Stats returns current cache statistics.
// This operation is mostly lock-free (atomic counters).
func (c *ShardedCache[K, V]) Stats() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return Stats{
		Len:       c.Len(),
		Bytes:     c.bytes.Load(),
		Budget:    c.Budget(),
		Hits:      hits,
		Misses:    misses,
		HitRate:   hitRate,
		Evictions: c.evictions.Load(),
	}
}

// ResetStats resets all statistics counters to zero.
func (c *ShardedCache[K, V]) ResetStats() {
	c.hits.Store(0)
	c.misses.Store(0)
	c.evictions.Store(0)
}
