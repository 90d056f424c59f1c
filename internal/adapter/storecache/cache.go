package storecache

import (
	"context"
	"sync"
	"time"

	"github.com/couchcryptid/temperature-anomaly-etl/internal/domain"
	"github.com/couchcryptid/temperature-anomaly-etl/internal/observability"
	"golang.org/x/sync/singleflight"
)

// CachedStore wraps a DatasetStore with an in-memory LRU cache of decoded
// fields. Fields are immutable, so cached pointers are shared freely.
// Concurrent misses on the same variable share a single decode.
type CachedStore struct {
	inner   domain.DatasetStore
	cache   *lruCache
	loads   singleflight.Group
	metrics *observability.Metrics
}

// New creates a cache decorator around a dataset store holding at most
// maxEntries variables.
func New(inner domain.DatasetStore, maxEntries int, metrics *observability.Metrics) *CachedStore {
	return &CachedStore{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedStore) LoadField(ctx context.Context, source, variable string) (*domain.Field, error) {
	key := source + "/" + variable
	if f, ok := c.cache.get(key); ok {
		c.metrics.DatasetCache.WithLabelValues("hit").Inc()
		return f, nil
	}
	c.metrics.DatasetCache.WithLabelValues("miss").Inc()

	v, err, shared := c.loads.Do(key, func() (any, error) {
		start := time.Now()
		f, err := c.inner.LoadField(ctx, source, variable)
		if err != nil {
			// Failures are not cached so a dataset dropped in later is picked up.
			return nil, err
		}
		c.metrics.DatasetLoadDuration.Observe(time.Since(start).Seconds())
		c.cache.put(key, f)
		return f, nil
	})
	if shared {
		c.metrics.DatasetCache.WithLabelValues("shared").Inc()
	}
	if err != nil {
		return nil, err
	}
	return v.(*domain.Field), nil
}

// Len returns the number of cached variables.
func (c *CachedStore) Len() int {
	return c.cache.len()
}

// Purge drops every cached variable so the next load rereads the files, and
// returns how many were dropped.
func (c *CachedStore) Purge() int {
	return c.cache.purge()
}

// lruCache is a simple thread-safe LRU cache of fields.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value *domain.Field
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (*domain.Field, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value *domain.Field) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.entries)
	c.entries = make(map[string]*entry)
	c.head, c.tail = nil, nil
	return n
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
