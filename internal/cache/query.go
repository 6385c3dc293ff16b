package cache

import (
	"crypto/sha256"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gerard-labs/subtranscript-rag/internal/pipeline"
)

// QueryCache caches a pipeline.Response by (query, exhaustive). There is no
// per-user scoping: the corpus is a single shared index, so two identical
// questions always deserve the same answer within the TTL window.
type QueryCache struct {
	mu      sync.RWMutex
	entries map[string]*queryEntry
	ttl     time.Duration
	stopCh  chan struct{}
}

type queryEntry struct {
	result    pipeline.Response
	createdAt time.Time
	expiresAt time.Time
}

// NewQueryCache creates a QueryCache with the given TTL and starts
// background cleanup. ttl <= 0 disables caching: Get always misses and Set
// is a no-op, so callers do not need a separate on/off switch.
func NewQueryCache(ttl time.Duration) *QueryCache {
	c := &QueryCache{
		entries: make(map[string]*queryEntry),
		ttl:     ttl,
		stopCh:  make(chan struct{}),
	}
	if ttl > 0 {
		go c.cleanup()
	}
	return c
}

// Get returns a cached Response if present and not expired.
func (c *QueryCache) Get(query string, exhaustive bool) (pipeline.Response, bool) {
	if c.ttl <= 0 {
		return pipeline.Response{}, false
	}
	key := queryCacheKey(query, exhaustive)

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return pipeline.Response{}, false
	}
	if time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return pipeline.Response{}, false
	}

	slog.Info("query cache hit", "key", key, "age_ms", time.Since(entry.createdAt).Milliseconds())
	return entry.result, true
}

// Set stores a Response in the cache.
func (c *QueryCache) Set(query string, exhaustive bool, result pipeline.Response) {
	if c.ttl <= 0 {
		return
	}
	key := queryCacheKey(query, exhaustive)
	now := time.Now()

	c.mu.Lock()
	c.entries[key] = &queryEntry{result: result, createdAt: now, expiresAt: now.Add(c.ttl)}
	c.mu.Unlock()
}

// Len returns the number of entries currently cached.
func (c *QueryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stop halts the background cleanup goroutine. Safe to call even when the
// cache was built with ttl <= 0 (cleanup was never started in that case).
func (c *QueryCache) Stop() {
	if c.ttl > 0 {
		close(c.stopCh)
	}
}

func (c *QueryCache) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			before := len(c.entries)
			for key, entry := range c.entries {
				if now.After(entry.expiresAt) {
					delete(c.entries, key)
				}
			}
			after := len(c.entries)
			c.mu.Unlock()
			if before != after {
				slog.Info("query cache cleanup", "removed", before-after, "remaining", after)
			}
		case <-c.stopCh:
			return
		}
	}
}

func queryCacheKey(query string, exhaustive bool) string {
	h := sha256.Sum256([]byte(query))
	return fmt.Sprintf("qc:%v:%x", exhaustive, h[:16])
}
