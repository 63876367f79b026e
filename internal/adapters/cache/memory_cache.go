package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/phishguard/phishguard/internal/core"
	"go.uber.org/zap"
)

type entry struct {
	url        string
	result     *core.ClassificationResult
	insertedAt time.Time
}

// MemoryCache is an in-memory implementation of the ResultCache interface.
// Entries expire after a validity window but are not evicted on read; a
// periodic sweep removes them. Capacity eviction is insertion-order (FIFO),
// not LRU: overwriting an existing URL keeps its original position.
type MemoryCache struct {
	entries    map[string]*list.Element
	order      *list.List
	mu         sync.RWMutex
	logger     *zap.Logger
	ttl        time.Duration
	sweepFreq  time.Duration
	maxEntries int
	stopCh     chan struct{}
	stopOnce   sync.Once
}

// NewMemoryCache creates a new in-memory result cache
func NewMemoryCache(logger *zap.Logger, ttl, sweepFreq time.Duration, maxEntries int) *MemoryCache {
	cache := &MemoryCache{
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		logger:     logger,
		ttl:        ttl,
		sweepFreq:  sweepFreq,
		maxEntries: maxEntries,
		stopCh:     make(chan struct{}),
	}

	// Start background sweep
	go cache.startSweepTask()

	return cache
}

// Get returns the cached result for a URL if it is still within the
// validity window. Expired entries are left in place for the sweep.
func (c *MemoryCache) Get(url string) (*core.ClassificationResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	elem, ok := c.entries[url]
	if !ok {
		return nil, false
	}

	e := elem.Value.(*entry)
	if time.Since(e.insertedAt) >= c.ttl {
		return nil, false
	}

	return e.result, true
}

// Put inserts or overwrites a result. When the cache exceeds its capacity
// the oldest-inserted entry is evicted first.
func (c *MemoryCache) Put(url string, result *core.ClassificationResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if elem, ok := c.entries[url]; ok {
		e := elem.Value.(*entry)
		e.result = result
		e.insertedAt = now
		return
	}

	c.entries[url] = c.order.PushBack(&entry{
		url:        url,
		result:     result,
		insertedAt: now,
	})

	for c.maxEntries > 0 && c.order.Len() > c.maxEntries {
		oldest := c.order.Front()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*entry).url)
	}
}

// Clear empties the cache
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*list.Element)
	c.order.Init()
}

// Len reports the number of entries, including expired ones awaiting sweep
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.order.Len()
}

// Sweep removes all entries older than the validity window
func (c *MemoryCache) Sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	expiredCount := 0

	for elem := c.order.Front(); elem != nil; {
		next := elem.Next()
		e := elem.Value.(*entry)
		if now.Sub(e.insertedAt) >= c.ttl {
			c.order.Remove(elem)
			delete(c.entries, e.url)
			expiredCount++
		}
		elem = next
	}

	c.logger.Debug("Swept expired cache entries",
		zap.Int("expired_count", expiredCount),
		zap.Int("remaining", c.order.Len()))
}

// startSweepTask starts the periodic background sweep
func (c *MemoryCache) startSweepTask() {
	ticker := time.NewTicker(c.sweepFreq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Sweep()
		case <-c.stopCh:
			return
		}
	}
}

// Stop stops the background sweep task
func (c *MemoryCache) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
}
