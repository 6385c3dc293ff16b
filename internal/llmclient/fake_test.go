package llmclient

import (
	"context"
	"testing"
)

func TestFakeEmbedder_DeterministicPerInput(t *testing.T) {
	f := &FakeEmbedder{Dimensions: 8}
	a, err := f.Embed(context.Background(), "¿Qué enseñó Alaniso?")
	if err != nil {
		t.Fatalf("Embed() error: %v", err)
	}
	b, err := f.Embed(context.Background(), "¿Qué enseñó Alaniso?")
	if err != nil {
		t.Fatalf("Embed() error: %v", err)
	}
	if len(a) != 8 {
		t.Fatalf("len(a) = %d, want 8", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("non-deterministic embedding at %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestFakeEmbedder_DifferentInputsDiffer(t *testing.T) {
	f := &FakeEmbedder{Dimensions: 8}
	a, _ := f.Embed(context.Background(), "texto uno")
	b, _ := f.Embed(context.Background(), "texto completamente distinto")

	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("expected different inputs to produce different embeddings")
	}
}

func TestFakeGenerator_ReturnsWellFormedCitation(t *testing.T) {
	g := &FakeGenerator{}
	out, err := g.Generate(context.Background(), "cualquier prompt")
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if out == "" {
		t.Error("expected non-empty response")
	}
}
