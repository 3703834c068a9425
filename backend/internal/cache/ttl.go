// Package cache provides a sharded in-process cache whose entries expire a
// fixed duration after they were written.
package cache

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

const numShards = 16

// TTL is a process-wide cache with expire-on-read semantics. Readers may
// observe a stale-but-unexpired entry while a writer replaces it.
type TTL[V any] struct {
	ttl         time.Duration
	now         func() time.Time
	maxPerShard int
	shards      [numShards]*shard[V]
}

type shard[V any] struct {
	mu    sync.RWMutex
	items map[string]entry[V]
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Option configures a TTL cache.
type Option func(*options)

type options struct {
	now        func() time.Time
	maxEntries int
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithMaxEntries caps the cache at roughly n entries. When a shard is
// full, expired entries go first, then the one closest to expiry.
func WithMaxEntries(n int) Option {
	return func(o *options) { o.maxEntries = n }
}

// New creates a cache whose entries live for ttl.
func New[V any](ttl time.Duration, opts ...Option) *TTL[V] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	c := &TTL[V]{ttl: ttl, now: o.now}
	if o.maxEntries > 0 {
		c.maxPerShard = max(1, o.maxEntries/numShards)
	}
	for i := 0; i < numShards; i++ {
		c.shards[i] = &shard[V]{items: make(map[string]entry[V])}
	}
	return c
}

func (c *TTL[V]) getShard(key string) *shard[V] {
	h := fnv.New32a()
	h.Write([]byte(key))
	return c.shards[h.Sum32()%numShards]
}

// Get returns the value for key if present and not expired. An expired
// entry is dropped on read.
func (c *TTL[V]) Get(key string) (V, bool) {
	s := c.getShard(key)
	s.mu.RLock()
	e, ok := s.items[key]
	s.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if !c.now().Before(e.expiresAt) {
		s.mu.Lock()
		if cur, still := s.items[key]; still && cur.expiresAt.Equal(e.expiresAt) {
			delete(s.items, key)
		}
		s.mu.Unlock()
		return zero, false
	}
	return e.value, true
}

// Set stores value under key, replacing any previous entry.
func (c *TTL[V]) Set(key string, value V) {
	s := c.getShard(key)
	now := c.now()
	s.mu.Lock()
	if _, exists := s.items[key]; !exists && c.maxPerShard > 0 && len(s.items) >= c.maxPerShard {
		s.evict(now, c.maxPerShard)
	}
	s.items[key] = entry[V]{value: value, expiresAt: now.Add(c.ttl)}
	s.mu.Unlock()
}

// evict drops expired entries and, if the shard still holds limit or
// more, the entry closest to expiry. Caller holds s.mu.
func (s *shard[V]) evict(now time.Time, limit int) {
	for k, e := range s.items {
		if !now.Before(e.expiresAt) {
			delete(s.items, k)
		}
	}
	for len(s.items) >= limit {
		var (
			oldestKey string
			oldestAt  time.Time
			first     = true
		)
		for k, e := range s.items {
			if first || e.expiresAt.Before(oldestAt) {
				oldestKey, oldestAt, first = k, e.expiresAt, false
			}
		}
		delete(s.items, oldestKey)
	}
}

// Delete removes key.
func (c *TTL[V]) Delete(key string) {
	s := c.getShard(key)
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
}

// GetOrLoad returns the cached value for key or calls load and caches its
// result. Errors are not cached. Concurrent misses may each call load;
// the last writer wins.
func (c *TTL[V]) GetOrLoad(ctx context.Context, key string, load func(context.Context) (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := load(ctx)
	if err != nil {
		var zero V
		return zero, err
	}
	c.Set(key, v)
	return v, nil
}

// Len returns the number of entries, expired or not.
func (c *TTL[V]) Len() int {
	total := 0
	for _, s := range c.shards {
		s.mu.RLock()
		total += len(s.items)
		s.mu.RUnlock()
	}
	return total
}

// Purge removes expired entries and reports how many were dropped.
func (c *TTL[V]) Purge() int {
	removed := 0
	now := c.now()
	for _, s := range c.shards {
		s.mu.Lock()
		for k, e := range s.items {
			if !now.Before(e.expiresAt) {
				delete(s.items, k)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Janitor calls Purge every interval until ctx is cancelled.
func (c *TTL[V]) Janitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Purge()
		}
	}
}
