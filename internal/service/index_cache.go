package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
)

// IndexLoader builds the index for one gene on a cache miss.
type IndexLoader func(ctx context.Context, gene string) (*ReferenceIndex, error)

// IndexCacheStats represents cache performance statistics
type IndexCacheStats struct {
	Hits      int64     `json:"hits"`
	Misses    int64     `json:"misses"`
	Builds    int64     `json:"builds"`
	Errors    int64     `json:"errors"`
	Entries   int       `json:"entries"`
	LastReset time.Time `json:"last_reset"`
}

type indexKey struct {
	release string
	gene    string
}

type inflightBuild struct {
	wg  sync.WaitGroup
	idx *ReferenceIndex
	err error
}

// IndexCache keeps built reference indexes per (release, gene), so that
// repeated evaluations against the same cohort reuse one index. Concurrent
// misses for the same key share a single build.
type IndexCache struct {
	cache  *expirable.LRU[indexKey, *ReferenceIndex]
	logger *logrus.Logger

	mu       sync.Mutex
	inflight map[indexKey]*inflightBuild
	stats    IndexCacheStats
}

// NewIndexCache creates a cache holding at most size indexes for ttl each.
// A zero ttl keeps entries until they are evicted or invalidated.
func NewIndexCache(size int, ttl time.Duration, logger *logrus.Logger) *IndexCache {
	if size <= 0 {
		size = 64
	}
	return &IndexCache{
		cache:    expirable.NewLRU[indexKey, *ReferenceIndex](size, nil, ttl),
		logger:   logger,
		inflight: make(map[indexKey]*inflightBuild),
		stats:    IndexCacheStats{LastReset: time.Now()},
	}
}

// GetOrBuild returns the cached index for (release, gene) or builds it with load.
func (c *IndexCache) GetOrBuild(ctx context.Context, release, gene string, load IndexLoader) (*ReferenceIndex, error) {
	key := indexKey{release: release, gene: gene}

	c.mu.Lock()
	if idx, ok := c.cache.Get(key); ok {
		c.stats.Hits++
		c.mu.Unlock()
		return idx, nil
	}
	c.stats.Misses++
	if call, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		call.wg.Wait()
		return call.idx, call.err
	}
	call := &inflightBuild{}
	call.wg.Add(1)
	c.inflight[key] = call
	c.mu.Unlock()

	start := time.Now()
	call.idx, call.err = load(ctx, gene)

	c.mu.Lock()
	delete(c.inflight, key)
	if call.err != nil {
		c.stats.Errors++
	} else {
		c.stats.Builds++
		c.cache.Add(key, call.idx)
	}
	c.mu.Unlock()
	call.wg.Done()

	if call.err != nil {
		return nil, fmt.Errorf("building index for %s: %w", gene, call.err)
	}

	c.logger.WithFields(logrus.Fields{
		"gene":     gene,
		"release":  release,
		"records":  call.idx.Size(),
		"duration": time.Since(start).String(),
	}).Debug("Built reference index")

	return call.idx, nil
}

// Invalidate drops every cached index for gene, across releases.
func (c *IndexCache) Invalidate(gene string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, k := range c.cache.Keys() {
		if k.gene == gene {
			if c.cache.Remove(k) {
				removed++
			}
		}
	}
	return removed
}

// Purge drops all cached indexes, e.g. after a new release was ingested.
func (c *IndexCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Purge()
}

// Stats returns a snapshot of the cache counters.
func (c *IndexCache) Stats() IndexCacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Entries = c.cache.Len()
	return s
}
