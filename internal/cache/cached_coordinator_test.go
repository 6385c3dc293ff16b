package cache

import (
	"context"
	"testing"
	"time"

	"github.com/gerard-labs/subtranscript-rag/internal/pipeline"
)

type countingCoordinator struct {
	calls int
	resp  pipeline.Response
}

func (c *countingCoordinator) Handle(ctx context.Context, req pipeline.Request) (pipeline.Response, error) {
	c.calls++
	return c.resp, nil
}

func TestCachedCoordinator_CachesRepeatedQueries(t *testing.T) {
	inner := &countingCoordinator{resp: pipeline.Response{Answer: "respuesta"}}
	cc := NewCachedCoordinator(inner, NewQueryCache(time.Hour))

	req := pipeline.Request{Query: "pregunta"}
	if _, err := cc.Handle(context.Background(), req); err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if _, err := cc.Handle(context.Background(), req); err != nil {
		t.Fatalf("Handle() error: %v", err)
	}

	if inner.calls != 1 {
		t.Errorf("expected 1 underlying call, got %d", inner.calls)
	}
}

func TestCachedCoordinator_SkipsCacheWithExplicitDeadline(t *testing.T) {
	inner := &countingCoordinator{resp: pipeline.Response{Answer: "respuesta"}}
	cc := NewCachedCoordinator(inner, NewQueryCache(time.Hour))

	req := pipeline.Request{Query: "pregunta", Deadline: 5 * time.Second}
	cc.Handle(context.Background(), req)
	cc.Handle(context.Background(), req)

	if inner.calls != 2 {
		t.Errorf("expected every deadline-bearing request to bypass the cache, got %d calls", inner.calls)
	}
}

func TestCachedCoordinator_NilCacheIsPassthrough(t *testing.T) {
	inner := &countingCoordinator{resp: pipeline.Response{Answer: "respuesta"}}
	cc := NewCachedCoordinator(inner, nil)

	req := pipeline.Request{Query: "pregunta"}
	cc.Handle(context.Background(), req)
	cc.Handle(context.Background(), req)

	if inner.calls != 2 {
		t.Errorf("expected passthrough to call inner every time, got %d calls", inner.calls)
	}
}
