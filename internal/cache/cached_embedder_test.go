package cache

import (
	"context"
	"testing"
)

type countingEmbedder struct {
	calls int
}

func (e *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls++
	return []float32{float32(len(text))}, nil
}

func TestCachedEmbedder_CachesRepeatedQueries(t *testing.T) {
	inner := &countingEmbedder{}
	c := NewCachedEmbedder(inner, New(16, ""))

	v1, err := c.Embed(context.Background(), "hola mundo")
	if err != nil {
		t.Fatalf("Embed() error: %v", err)
	}
	v2, err := c.Embed(context.Background(), "hola mundo")
	if err != nil {
		t.Fatalf("Embed() error: %v", err)
	}

	if inner.calls != 1 {
		t.Errorf("expected 1 underlying call, got %d", inner.calls)
	}
	if v1[0] != v2[0] {
		t.Errorf("cached result differs: %v vs %v", v1, v2)
	}
}

func TestCachedEmbedder_NilCacheIsPassthrough(t *testing.T) {
	inner := &countingEmbedder{}
	c := NewCachedEmbedder(inner, nil)

	c.Embed(context.Background(), "a")
	c.Embed(context.Background(), "a")

	if inner.calls != 2 {
		t.Errorf("expected passthrough to call inner every time, got %d calls", inner.calls)
	}
}
