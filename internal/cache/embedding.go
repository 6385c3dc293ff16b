// Package cache memoizes the two expensive, idempotent calls the pipeline
// makes per request: query embedding and the final answer itself.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"log/slog"
	"math"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
)

// DefaultEmbeddingCacheSize bounds the in-process LRU tier when the caller
// does not specify one.
const DefaultEmbeddingCacheSize = 1024

// redisEmbeddingTTL bounds how long a vector survives in the optional
// distributed tier; the in-process LRU tier has no TTL of its own, since
// eviction is driven by capacity rather than staleness.
const redisEmbeddingTTL = 24 * time.Hour

// EmbeddingCache memoizes query -> vector lookups behind an in-process LRU
// tier and an optional Redis tier shared across server instances. The
// Redis tier is consulted only on an LRU miss, and a Redis failure never
// fails the call — it degrades to treating the entry as uncached.
type EmbeddingCache struct {
	local *lru.Cache[string, []float32]
	redis redis.UniversalClient
}

// New builds an EmbeddingCache. redisAddr == "" disables the distributed
// tier entirely; size <= 0 falls back to DefaultEmbeddingCacheSize.
func New(size int, redisAddr string) *EmbeddingCache {
	if size <= 0 {
		size = DefaultEmbeddingCacheSize
	}
	local, _ := lru.New[string, []float32](size)

	c := &EmbeddingCache{local: local}
	if redisAddr != "" {
		c.redis = redis.NewClient(&redis.Options{Addr: redisAddr})
	}
	return c
}

// EmbeddingKey returns a deterministic cache key for a query string.
func EmbeddingKey(query string) string {
	h := sha256.Sum256([]byte(query))
	return "emb:" + hex.EncodeToString(h[:16])
}

// Get checks the LRU tier, then the Redis tier on a miss.
func (c *EmbeddingCache) Get(ctx context.Context, key string) ([]float32, bool) {
	if vec, ok := c.local.Get(key); ok {
		return vec, true
	}
	if c.redis == nil {
		return nil, false
	}

	vec, err := c.getRedis(ctx, key)
	if err != nil {
		if err != redis.Nil {
			slog.Warn("embedding cache redis get failed", "error", err)
		}
		return nil, false
	}
	c.local.Add(key, vec)
	return vec, true
}

// Set populates both tiers. A Redis write failure is logged, not returned:
// the LRU tier still serves this request and future same-process ones.
func (c *EmbeddingCache) Set(ctx context.Context, key string, vec []float32) {
	c.local.Add(key, vec)
	if c.redis == nil {
		return
	}
	if err := c.setRedis(ctx, key, vec); err != nil {
		slog.Warn("embedding cache redis set failed", "error", err)
	}
}

// Len reports the in-process tier's current size.
func (c *EmbeddingCache) Len() int {
	return c.local.Len()
}

func (c *EmbeddingCache) getRedis(ctx context.Context, key string) ([]float32, error) {
	raw, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}
	return decodeFloat32s(raw), nil
}

func (c *EmbeddingCache) setRedis(ctx context.Context, key string, vec []float32) error {
	return c.redis.Set(ctx, key, encodeFloat32s(vec), redisEmbeddingTTL).Err()
}

// encodeFloat32s/decodeFloat32s serialize a vector as a flat little-endian
// byte string; Redis stores opaque bytes, so no JSON/gob overhead applies.
func encodeFloat32s(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeFloat32s(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}
