package cache

import (
	"testing"
	"time"

	"github.com/gerard-labs/subtranscript-rag/internal/pipeline"
)

func makeResponse(answer string) pipeline.Response {
	return pipeline.Response{Answer: answer, Retrieved: 2}
}

func TestQueryCache_GetSet(t *testing.T) {
	c := NewQueryCache(1 * time.Hour)
	defer c.Stop()

	_, ok := c.Get("what is revenue?", false)
	if ok {
		t.Fatal("expected cache miss on empty cache")
	}

	c.Set("what is revenue?", false, makeResponse("la respuesta"))

	got, ok := c.Get("what is revenue?", false)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.Answer != "la respuesta" {
		t.Fatalf("unexpected cached result: %+v", got)
	}
}

func TestQueryCache_ExhaustiveModeSeparation(t *testing.T) {
	c := NewQueryCache(1 * time.Hour)
	defer c.Stop()

	c.Set("query", false, makeResponse("short answer"))
	c.Set("query", true, makeResponse("exhaustive answer"))

	got, ok := c.Get("query", false)
	if !ok || got.Answer != "short answer" {
		t.Fatal("exhaustive=false returned wrong result")
	}

	got, ok = c.Get("query", true)
	if !ok || got.Answer != "exhaustive answer" {
		t.Fatal("exhaustive=true returned wrong result")
	}
}

func TestQueryCache_Expiry(t *testing.T) {
	c := NewQueryCache(50 * time.Millisecond)
	defer c.Stop()

	c.Set("query", false, makeResponse("test"))

	if _, ok := c.Get("query", false); !ok {
		t.Fatal("expected cache hit before expiry")
	}

	time.Sleep(80 * time.Millisecond)

	if _, ok := c.Get("query", false); ok {
		t.Fatal("expected cache miss after expiry")
	}
}

func TestQueryCache_Len(t *testing.T) {
	c := NewQueryCache(1 * time.Hour)
	defer c.Stop()

	if c.Len() != 0 {
		t.Fatal("expected empty cache")
	}

	c.Set("q1", false, makeResponse("a"))
	c.Set("q2", false, makeResponse("b"))

	if c.Len() != 2 {
		t.Fatalf("expected 2, got %d", c.Len())
	}
}

func TestQueryCache_DisabledWhenTTLNonPositive(t *testing.T) {
	c := NewQueryCache(0)
	defer c.Stop()

	c.Set("query", false, makeResponse("ignored"))
	if _, ok := c.Get("query", false); ok {
		t.Fatal("expected caching to be disabled when ttl <= 0")
	}
	if c.Len() != 0 {
		t.Fatalf("expected 0 entries with caching disabled, got %d", c.Len())
	}
}

func TestQueryCacheKey_Deterministic(t *testing.T) {
	k1 := queryCacheKey("hello world", false)
	k2 := queryCacheKey("hello world", false)
	if k1 != k2 {
		t.Fatalf("cache key should be deterministic: %s != %s", k1, k2)
	}

	k3 := queryCacheKey("hello world", true)
	if k1 == k3 {
		t.Fatal("different exhaustive flag should produce different key")
	}
}
