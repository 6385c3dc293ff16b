package cache

import (
	"context"

	"github.com/gerard-labs/subtranscript-rag/internal/pipeline"
)

// Coordinator is the single collaborator CachedCoordinator wraps.
// pipeline.Coordinator satisfies this exactly.
type Coordinator interface {
	Handle(ctx context.Context, req pipeline.Request) (pipeline.Response, error)
}

// CachedCoordinator wraps a Coordinator with a QueryCache so repeated
// questions skip retrieval and generation entirely. A request carrying a
// per-request Deadline is never cached: its timing diagnostics are
// request-specific and would mislead a later caller with a different deadline.
type CachedCoordinator struct {
	inner Coordinator
	cache *QueryCache
}

// NewCachedCoordinator wraps inner with cache. A nil cache makes this a
// pass-through.
func NewCachedCoordinator(inner Coordinator, cache *QueryCache) *CachedCoordinator {
	return &CachedCoordinator{inner: inner, cache: cache}
}

// Handle serves from cache when possible, otherwise delegates and caches
// the result.
func (c *CachedCoordinator) Handle(ctx context.Context, req pipeline.Request) (pipeline.Response, error) {
	if c.cache == nil || req.Deadline > 0 {
		return c.inner.Handle(ctx, req)
	}

	if resp, ok := c.cache.Get(req.Query, req.Exhaustive); ok {
		return resp, nil
	}

	resp, err := c.inner.Handle(ctx, req)
	if err != nil {
		return resp, err
	}
	c.cache.Set(req.Query, req.Exhaustive, resp)
	return resp, nil
}
