// Package retriever implements the hybrid retrieval step: lexical then dense
// candidate fetch, reciprocal rank fusion, and the typed
// degrade-on-error state machine that replaces a try/except fallback chain.
package retriever

import (
	"context"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/gerard-labs/subtranscript-rag/internal/apierr"
	"github.com/gerard-labs/subtranscript-rag/internal/model"
)

// DenseSearcher abstracts the dense vector index for testability.
type DenseSearcher interface {
	Search(ctx context.Context, queryVec []float32, k int) ([]DenseHit, error)
}

// DenseHit is a single dense-index match.
type DenseHit struct {
	ID    string
	Score float32
}

// SparseSearcher abstracts the BM25 index for testability.
type SparseSearcher interface {
	Search(ctx context.Context, query string, k int) ([]SparseHit, error)
	ScoreOne(term string, limit int) []SparseHit
}

// SparseHit is a single BM25 match.
type SparseHit struct {
	ID    string
	Score float64
}

// ChunkStore resolves chunk IDs back to full Chunk values. The dense and
// sparse indices only carry IDs and scores; rendering needs the content.
type ChunkStore interface {
	Get(id string) (model.Chunk, bool)
}

// QueryEmbedder abstracts the embedding call for testability.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ClassifierQuery is the subset of classifier behavior the retriever needs
// to drive the collective-names subroutine, kept narrow for testability.
type ClassifierQuery interface {
	CollectiveQuery(query string) bool
	CollectiveNames() []string
}

// State is the tagged variant recording which retrieval path actually
// produced a result. It replaces an implicit try/except fallback chain.
type State string

const (
	StateHybridAttempted State = "hybrid_attempted"
	StateLexicalOnly     State = "lexical_only"
	StateDenseOnly       State = "dense_only"
	StateFailed          State = "failed"
)

// Config carries the fusion weights shared across requests.
type Config struct {
	AlphaDefault float64
	AlphaLexical float64
	RRFConstant  int
}

// Retriever fans a query out to the dense and sparse indices, fuses the
// results, and degrades gracefully when either collaborator fails.
type Retriever struct {
	cfg        Config
	dense      DenseSearcher
	sparse     SparseSearcher
	store      ChunkStore
	embedder   QueryEmbedder
	classifier ClassifierQuery
}

// New builds a Retriever from its collaborators.
func New(cfg Config, dense DenseSearcher, sparse SparseSearcher, store ChunkStore, embedder QueryEmbedder, classifier ClassifierQuery) *Retriever {
	return &Retriever{cfg: cfg, dense: dense, sparse: sparse, store: store, embedder: embedder, classifier: classifier}
}

// Outcome is the result of a Retrieve call: the ranked chunks plus the state
// the coordinator reports as the request's retrieval method.
type Outcome struct {
	Results []model.RankedResult
	State   State
}

// Retrieve resolves plan.K chunks for query, following the algorithm: fetch
// sparse (with the collective-names union when applicable), short-circuit on
// force_lexical with enough lexical hits, otherwise fetch dense once the
// sparse list is in hand and fuse both lists via Reciprocal Rank Fusion.
func (r *Retriever) Retrieve(ctx context.Context, query string, plan model.QueryPlan) (Outcome, error) {
	if query == "" {
		return Outcome{Results: nil, State: StateLexicalOnly}, nil
	}

	sparseLimit := plan.K * 2
	if plan.ForceLexical {
		sparseLimit = plan.K * 4
	}

	sparseRanked, err := r.sparseRanked(ctx, query, sparseLimit)
	if err != nil {
		return Outcome{State: StateFailed}, apierr.NewSparseSearchFailed(err)
	}

	if plan.ForceLexical && len(sparseRanked) >= plan.K/2 {
		slog.Info("retrieval: short-circuit to lexical-only", "query", query, "sparse_hits", len(sparseRanked))
		trimmed := sparseRanked
		if len(trimmed) > plan.K {
			trimmed = trimmed[:plan.K]
		}
		return Outcome{Results: r.toRankedResults(trimmed, nil), State: StateLexicalOnly}, nil
	}

	denseRanked, denseErr := r.denseRanked(ctx, query, plan.K*2)
	if denseErr != nil {
		slog.Warn("retrieval: dense search degraded, falling back to lexical-only", "error", denseErr)
		trimmed := sparseRanked
		if len(trimmed) > plan.K {
			trimmed = trimmed[:plan.K]
		}
		return Outcome{Results: r.toRankedResults(trimmed, nil), State: StateLexicalOnly}, nil
	}

	alpha := r.cfg.AlphaDefault
	if plan.ForceLexical {
		alpha = r.cfg.AlphaLexical
	}

	fused := r.fuse(denseRanked, sparseRanked, alpha)
	if len(fused) > plan.K {
		fused = fused[:plan.K]
	}

	return Outcome{Results: fused, State: StateHybridAttempted}, nil
}

// sparseRanked fetches the top lexical candidates and, for collective-names
// queries, unions in the supplementary per-name lookups before re-sorting.
func (r *Retriever) sparseRanked(ctx context.Context, query string, limit int) ([]SparseHit, error) {
	hits, err := r.sparse.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	if r.classifier != nil && r.classifier.CollectiveQuery(query) {
		names := r.classifier.CollectiveNames()
		perName := make([][]SparseHit, len(names))

		g, _ := errgroup.WithContext(ctx)
		for i, name := range names {
			i, name := i, name
			g.Go(func() error {
				perName[i] = r.sparse.ScoreOne(name, 30)
				return nil
			})
		}
		_ = g.Wait() // ScoreOne never errors; Wait only guards completion

		byID := make(map[string]SparseHit, len(hits))
		for _, h := range hits {
			byID[h.ID] = h
		}
		for _, nameHits := range perName {
			for _, h := range nameHits {
				if existing, ok := byID[h.ID]; !ok || h.Score > existing.Score {
					byID[h.ID] = h
				}
			}
		}
		hits = hits[:0]
		for _, h := range byID {
			hits = append(hits, h)
		}
		sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	}

	return hits, nil
}

func (r *Retriever) denseRanked(ctx context.Context, query string, k int) ([]DenseHit, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, apierr.NewEmbeddingFailed(err)
	}

	hits, err := r.dense.Search(ctx, vec, k)
	if err != nil {
		return nil, apierr.NewDenseSearchFailed(err)
	}
	return hits, nil
}

// fuse combines dense and sparse rankings via Reciprocal Rank Fusion:
// score = alpha/(rank_dense+c) + (1-alpha)/(rank_sparse+c), ranks are
// 0-based, missing ranks contribute 0. Ties break by ascending dense rank,
// then ascending sparse rank, then chunk key.
func (r *Retriever) fuse(dense []DenseHit, sparse []SparseHit, alpha float64) []model.RankedResult {
	c := float64(r.cfg.RRFConstant)

	denseRank := make(map[string]int, len(dense))
	for i, h := range dense {
		denseRank[h.ID] = i
	}
	sparseRank := make(map[string]int, len(sparse))
	for i, h := range sparse {
		sparseRank[h.ID] = i
	}

	seen := make(map[string]struct{})
	var results []model.RankedResult

	consider := func(id string) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}

		rd, hasDense := denseRank[id]
		rs, hasSparse := sparseRank[id]

		var score float64
		if hasDense {
			score += alpha / (float64(rd) + c)
		}
		if hasSparse {
			score += (1 - alpha) / (float64(rs) + c)
		}

		chunk, ok := r.store.Get(id)
		if !ok {
			return
		}

		rdOut, rsOut := -1, -1
		if hasDense {
			rdOut = rd
		}
		if hasSparse {
			rsOut = rs
		}

		results = append(results, model.RankedResult{
			Chunk:            chunk,
			SourceRankDense:  rdOut,
			SourceRankSparse: rsOut,
			FusedScore:       score,
		})
	}

	for _, h := range dense {
		consider(h.ID)
	}
	for _, h := range sparse {
		consider(h.ID)
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.FusedScore != b.FusedScore {
			return a.FusedScore > b.FusedScore
		}
		if a.SourceRankDense != b.SourceRankDense {
			return rankLess(a.SourceRankDense, b.SourceRankDense)
		}
		if a.SourceRankSparse != b.SourceRankSparse {
			return rankLess(a.SourceRankSparse, b.SourceRankSparse)
		}
		return a.Chunk.Key() < b.Chunk.Key()
	})

	return results
}

// toRankedResults wraps a sparse-only (or empty-dense) hit list as fused
// results with dense ranks absent.
func (r *Retriever) toRankedResults(sparse []SparseHit, _ []DenseHit) []model.RankedResult {
	results := make([]model.RankedResult, 0, len(sparse))
	for i, h := range sparse {
		chunk, ok := r.store.Get(h.ID)
		if !ok {
			continue
		}
		results = append(results, model.RankedResult{
			Chunk:            chunk,
			SourceRankDense:  -1,
			SourceRankSparse: i,
			FusedScore:       h.Score,
		})
	}
	return results
}

// rankLess treats an absent rank (-1) as larger than any present rank, so
// present-rank entries sort first when breaking ties.
func rankLess(a, b int) bool {
	if a == -1 {
		a = int(^uint(0) >> 1)
	}
	if b == -1 {
		b = int(^uint(0) >> 1)
	}
	return a < b
}
