package retriever

import (
	"context"
	"errors"
	"testing"

	"github.com/gerard-labs/subtranscript-rag/internal/model"
)

type fakeDense struct {
	hits     []DenseHit
	err      error
	called   bool
}

func (f *fakeDense) Search(ctx context.Context, queryVec []float32, k int) ([]DenseHit, error) {
	f.called = true
	if f.err != nil {
		return nil, f.err
	}
	if len(f.hits) > k {
		return f.hits[:k], nil
	}
	return f.hits, nil
}

type fakeSparse struct {
	hits []SparseHit
	err  error
}

func (f *fakeSparse) Search(ctx context.Context, query string, k int) ([]SparseHit, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.hits) > k {
		return f.hits[:k], nil
	}
	return f.hits, nil
}

func (f *fakeSparse) ScoreOne(term string, limit int) []SparseHit {
	return nil
}

type fakeStore struct {
	chunks map[string]model.Chunk
}

func (f *fakeStore) Get(id string) (model.Chunk, bool) {
	c, ok := f.chunks[id]
	return c, ok
}

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vec, nil
}

type fakeClassifier struct {
	collective bool
	names      []string
}

func (f *fakeClassifier) CollectiveQuery(query string) bool { return f.collective }
func (f *fakeClassifier) CollectiveNames() []string          { return f.names }

func testStore() *fakeStore {
	return &fakeStore{chunks: map[string]model.Chunk{
		"a": {ID: "a", Content: "contenido a"},
		"b": {ID: "b", Content: "contenido b"},
		"c": {ID: "c", Content: "contenido c"},
	}}
}

func TestRetrieve_ShortCircuitsOnForceLexical(t *testing.T) {
	dense := &fakeDense{hits: []DenseHit{{ID: "a", Score: 0.9}}}
	sparse := &fakeSparse{hits: []SparseHit{
		{ID: "a", Score: 5.0}, {ID: "b", Score: 4.0}, {ID: "c", Score: 3.0},
	}}
	r := New(Config{AlphaDefault: 0.7, AlphaLexical: 0.05, RRFConstant: 60}, dense, sparse, testStore(), &fakeEmbedder{}, &fakeClassifier{})

	plan := model.QueryPlan{K: 4, ForceLexical: true}
	out, err := r.Retrieve(context.Background(), "Alaniso", plan)
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if out.State != StateLexicalOnly {
		t.Errorf("State = %q, want lexical_only", out.State)
	}
	if dense.called {
		t.Error("dense search was called despite short-circuit")
	}
	if len(out.Results) == 0 {
		t.Error("expected non-empty results")
	}
}

func TestRetrieve_DegradesOnDenseFailure(t *testing.T) {
	dense := &fakeDense{err: errors.New("boom")}
	sparse := &fakeSparse{hits: []SparseHit{{ID: "a", Score: 1.0}}}
	r := New(Config{AlphaDefault: 0.7, AlphaLexical: 0.05, RRFConstant: 60}, dense, sparse, testStore(), &fakeEmbedder{vec: []float32{1, 0}}, &fakeClassifier{})

	plan := model.QueryPlan{K: 10, ForceLexical: false}
	out, err := r.Retrieve(context.Background(), "pregunta normal", plan)
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if out.State != StateLexicalOnly {
		t.Errorf("State = %q, want lexical_only after dense failure", out.State)
	}
	if len(out.Results) != 1 {
		t.Errorf("expected 1 surviving sparse result, got %d", len(out.Results))
	}
}

func TestRetrieve_FusesHybridResults(t *testing.T) {
	dense := &fakeDense{hits: []DenseHit{{ID: "a", Score: 0.9}, {ID: "b", Score: 0.8}}}
	sparse := &fakeSparse{hits: []SparseHit{{ID: "b", Score: 5.0}, {ID: "c", Score: 4.0}}}
	r := New(Config{AlphaDefault: 0.7, AlphaLexical: 0.05, RRFConstant: 60}, dense, sparse, testStore(), &fakeEmbedder{vec: []float32{1, 0}}, &fakeClassifier{})

	plan := model.QueryPlan{K: 10, ForceLexical: false}
	out, err := r.Retrieve(context.Background(), "pregunta normal sin nombres", plan)
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if out.State != StateHybridAttempted {
		t.Errorf("State = %q, want hybrid_attempted", out.State)
	}
	if len(out.Results) != 3 {
		t.Fatalf("expected 3 fused results (a, b, c), got %d", len(out.Results))
	}
}

func TestRetrieve_DeterministicAcrossCalls(t *testing.T) {
	dense := &fakeDense{hits: []DenseHit{{ID: "a", Score: 0.9}, {ID: "b", Score: 0.8}}}
	sparse := &fakeSparse{hits: []SparseHit{{ID: "b", Score: 5.0}, {ID: "c", Score: 4.0}}}
	r := New(Config{AlphaDefault: 0.7, AlphaLexical: 0.05, RRFConstant: 60}, dense, sparse, testStore(), &fakeEmbedder{vec: []float32{1, 0}}, &fakeClassifier{})

	plan := model.QueryPlan{K: 10, ForceLexical: false}
	first, err := r.Retrieve(context.Background(), "pregunta normal sin nombres", plan)
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	second, err := r.Retrieve(context.Background(), "pregunta normal sin nombres", plan)
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if len(first.Results) != len(second.Results) {
		t.Fatalf("non-deterministic result count")
	}
	for i := range first.Results {
		if first.Results[i].Chunk.ID != second.Results[i].Chunk.ID {
			t.Errorf("non-deterministic ordering at %d", i)
		}
	}
}

func TestRetrieve_EmptyQueryReturnsEmpty(t *testing.T) {
	r := New(Config{AlphaDefault: 0.7, AlphaLexical: 0.05, RRFConstant: 60}, &fakeDense{}, &fakeSparse{}, testStore(), &fakeEmbedder{}, &fakeClassifier{})
	out, err := r.Retrieve(context.Background(), "", model.QueryPlan{K: 150})
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if len(out.Results) != 0 {
		t.Errorf("expected empty results for empty query, got %d", len(out.Results))
	}
}
