package cache

import "context"

// Embedder is the single-query embedding collaborator CachedEmbedder wraps.
// retriever.QueryEmbedder satisfies this exactly, so any retriever-bound
// embedder can be wrapped without an adapter.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// CachedEmbedder wraps an Embedder with an EmbeddingCache so repeated or
// retried queries skip the external embedding call entirely.
type CachedEmbedder struct {
	inner Embedder
	cache *EmbeddingCache
}

// NewCachedEmbedder wraps inner with cache. A nil cache makes this a
// pass-through, so callers do not need a separate disabled-caching path.
func NewCachedEmbedder(inner Embedder, cache *EmbeddingCache) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: cache}
}

// Embed returns the cached vector if present, otherwise computes and caches it.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.cache == nil {
		return c.inner.Embed(ctx, text)
	}

	key := EmbeddingKey(text)
	if vec, ok := c.cache.Get(ctx, key); ok {
		return vec, nil
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(ctx, key, vec)
	return vec, nil
}
