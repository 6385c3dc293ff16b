package pipeline

import (
	"context"

	"github.com/gerard-labs/subtranscript-rag/internal/denseindex"
	"github.com/gerard-labs/subtranscript-rag/internal/retriever"
	"github.com/gerard-labs/subtranscript-rag/internal/sparseindex"
)

// denseAdapter satisfies retriever.DenseSearcher from a concrete
// denseindex.Index without the retriever package importing denseindex.
type denseAdapter struct{ idx *denseindex.Index }

func (a denseAdapter) Search(ctx context.Context, queryVec []float32, k int) ([]retriever.DenseHit, error) {
	results, err := a.idx.Search(ctx, queryVec, k)
	if err != nil {
		return nil, err
	}
	hits := make([]retriever.DenseHit, len(results))
	for i, r := range results {
		hits[i] = retriever.DenseHit{ID: r.ID, Score: r.Score}
	}
	return hits, nil
}

// sparseAdapter satisfies retriever.SparseSearcher from a concrete
// sparseindex.Index.
type sparseAdapter struct{ idx *sparseindex.Index }

func (a sparseAdapter) Search(ctx context.Context, query string, k int) ([]retriever.SparseHit, error) {
	results, err := a.idx.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}
	hits := make([]retriever.SparseHit, len(results))
	for i, r := range results {
		hits[i] = retriever.SparseHit{ID: r.ID, Score: r.Score}
	}
	return hits, nil
}

func (a sparseAdapter) ScoreOne(term string, limit int) []retriever.SparseHit {
	results := a.idx.ScoreOne(term, limit)
	hits := make([]retriever.SparseHit, len(results))
	for i, r := range results {
		hits[i] = retriever.SparseHit{ID: r.ID, Score: r.Score}
	}
	return hits
}

// sparseindex.Index.Get already has the exact signature retriever.ChunkStore
// requires, so no adapter is needed there: the concrete sparse index is
// passed directly as the chunk store.
