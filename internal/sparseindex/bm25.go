// Package sparseindex implements Okapi BM25 scoring over a shared tokenizer,
// the lexical half of the hybrid retriever and the fallback that carries a
// request when the dense side degrades.
package sparseindex

import (
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/gerard-labs/subtranscript-rag/internal/apierr"
	"github.com/gerard-labs/subtranscript-rag/internal/model"
)

// Okapi BM25 parameters. k1 controls term-frequency saturation; b controls
// length normalization strength.
const (
	k1 = 1.5
	b  = 0.75
)

// Result is a single BM25 hit: the chunk ID and its raw (unbounded) score.
type Result struct {
	ID    string
	Score float64
}

// Index is an in-memory inverted index over tokenized chunk content, scored
// with Okapi BM25. Index is safe for concurrent Search once built; Add
// mutates under a write lock.
type Index struct {
	mu sync.RWMutex

	// postings maps a token to the set of chunk IDs containing it and the
	// term frequency within each.
	postings map[string]map[string]int

	docLen    map[string]int // token count per chunk ID
	totalDocs int
	totalLen  int64

	// chunks holds the raw content and metadata behind each ID, so the
	// sparse artifact alone can reconstruct full chunk objects without the
	// dense index.
	chunks map[string]model.Chunk

	closed bool
}

// gobIndex is the on-disk shape of Index; unexported fields aren't encoded
// directly, so Save/Load round-trip through this plain struct.
type gobIndex struct {
	Postings  map[string]map[string]int
	DocLen    map[string]int
	TotalDocs int
	TotalLen  int64
	Chunks    map[string]model.Chunk
}

// New builds an empty index.
func New() *Index {
	return &Index{
		postings: make(map[string]map[string]int),
		docLen:   make(map[string]int),
		chunks:   make(map[string]model.Chunk),
	}
}

// Add tokenizes chunk.Content with Tokenize and folds it into the postings
// table, retaining the chunk itself so Get can reconstruct it later.
// Re-adding an existing ID is not supported; build a fresh index instead
// (matches the ingestion-is-a-separate-program contract).
func (idx *Index) Add(chunk model.Chunk) {
	tokens := Tokenize(chunk.Content)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	termFreq := make(map[string]int, len(tokens))
	for _, t := range tokens {
		termFreq[t]++
	}
	for term, freq := range termFreq {
		if idx.postings[term] == nil {
			idx.postings[term] = make(map[string]int)
		}
		idx.postings[term][chunk.ID] = freq
	}

	idx.docLen[chunk.ID] = len(tokens)
	idx.totalDocs++
	idx.totalLen += int64(len(tokens))
	idx.chunks[chunk.ID] = chunk
}

// Get implements retriever.ChunkStore, reconstructing the full chunk from
// the sparse artifact alone.
func (idx *Index) Get(id string) (model.Chunk, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	c, ok := idx.chunks[id]
	return c, ok
}

// Search scores every chunk containing at least one query token and returns
// the top k by descending BM25 score. Scores are always ≥ 0.
func (idx *Index) Search(ctx context.Context, query string, k int) ([]Result, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.closed {
		return nil, apierr.NewSparseSearchFailed(fmt.Errorf("index is closed"))
	}
	if idx.totalDocs == 0 {
		return nil, nil
	}

	queryTokens := Tokenize(query)
	if len(queryTokens) == 0 {
		return nil, nil
	}

	avgDocLen := float64(idx.totalLen) / float64(idx.totalDocs)
	scores := make(map[string]float64)

	for _, term := range queryTokens {
		postings, ok := idx.postings[term]
		if !ok {
			continue
		}
		idfVal := idf(idx.totalDocs, len(postings))
		for id, freq := range postings {
			dl := float64(idx.docLen[id])
			tf := float64(freq)
			denom := tf + k1*(1-b+b*dl/avgDocLen)
			scores[id] += idfVal * (tf * (k1 + 1) / denom)
		}
	}

	return topK(scores, k), nil
}

// ScoreOne computes the BM25 score for a single term against every chunk
// that contains it, the building block for the per-name supplementary
// lookups the classifier triggers for collective-name queries.
func (idx *Index) ScoreOne(term string, limit int) []Result {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	postings, ok := idx.postings[term]
	if !ok || idx.totalDocs == 0 {
		return nil
	}

	avgDocLen := float64(idx.totalLen) / float64(idx.totalDocs)
	idfVal := idf(idx.totalDocs, len(postings))

	scores := make(map[string]float64, len(postings))
	for id, freq := range postings {
		dl := float64(idx.docLen[id])
		tf := float64(freq)
		denom := tf + k1*(1-b+b*dl/avgDocLen)
		scores[id] = idfVal * (tf * (k1 + 1) / denom)
	}

	return topK(scores, limit)
}

// idf is the Okapi BM25 inverse-document-frequency term, clamped at zero.
// The log(1 + ...) form keeps it positive, so a term present in every
// document still contributes.
func idf(totalDocs, docFreq int) float64 {
	v := math.Log(1 + (float64(totalDocs)-float64(docFreq)+0.5)/(float64(docFreq)+0.5))
	if v < 0 {
		return 0
	}
	return v
}

func topK(scores map[string]float64, k int) []Result {
	results := make([]Result, 0, len(scores))
	for id, s := range scores {
		if s > 0 {
			results = append(results, Result{ID: id, Score: s})
		}
	}
	sortResultsDescending(results)
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results
}

func sortResultsDescending(results []Result) {
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && results[j].Score > results[j-1].Score; j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}
}

// Count returns the number of indexed chunks.
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.totalDocs
}

// Save persists the postings table atomically via gob encoding.
func (idx *Index) Save(path string) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("sparseindex.Save: create directory: %w", err)
	}

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("sparseindex.Save: create file: %w", err)
	}

	g := gobIndex{
		Postings:  idx.postings,
		DocLen:    idx.docLen,
		TotalDocs: idx.totalDocs,
		TotalLen:  idx.totalLen,
		Chunks:    idx.chunks,
	}
	if err := gob.NewEncoder(f).Encode(g); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sparseindex.Save: encode: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("sparseindex.Save: close: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// Load reads a previously-Saved index from path.
func Load(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apierr.NewIndexUnavailable("sparse", fmt.Errorf("open: %w", err))
	}
	defer f.Close()

	var g gobIndex
	if err := gob.NewDecoder(f).Decode(&g); err != nil {
		return nil, apierr.NewIndexUnavailable("sparse", fmt.Errorf("decode: %w", err))
	}

	return &Index{
		postings:  g.Postings,
		docLen:    g.DocLen,
		totalDocs: g.TotalDocs,
		totalLen:  g.TotalLen,
		chunks:    g.Chunks,
	}, nil
}

// Close marks the index as unusable. Subsequent Search calls fail fast.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.closed = true
	return nil
}
