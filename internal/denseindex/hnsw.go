// Package denseindex wraps a pure-Go HNSW graph as the dense vector index:
// an opaque, versioned, on-disk artifact built once by the ingestion CLI and
// loaded read-only by the serving process.
package denseindex

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"

	"github.com/gerard-labs/subtranscript-rag/internal/apierr"
)

// Config controls graph construction. Dimensions must match the embedding
// model's output width.
type Config struct {
	Dimensions int
	M          int // graph degree
	EfSearch   int // search-time candidate list size
}

// Result is a single nearest-neighbor hit: the chunk ID and its similarity
// score (higher is more similar, independent of the underlying metric).
type Result struct {
	ID    string
	Score float32
}

// Index is a cosine-similarity HNSW graph keyed by chunk ID. All exported
// methods are safe for concurrent use; Add/Close take the write lock,
// Search/Count/Save take the read lock.
type Index struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	config Config

	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64

	closed bool
}

type sidecarMetadata struct {
	IDMap   map[string]uint64
	NextKey uint64
	Config  Config
}

// New builds an empty index ready to accept vectors.
func New(cfg Config) (*Index, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("denseindex.New: dimensions must be positive")
	}
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 20
	}

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25

	return &Index{
		graph:   graph,
		config:  cfg,
		idMap:   make(map[string]uint64),
		keyMap:  make(map[uint64]string),
		nextKey: 0,
	}, nil
}

// Add inserts vectors keyed by chunk ID, normalizing each to unit length for
// cosine similarity. Re-adding an existing ID orphans its old node (lazy
// deletion sidesteps a coder/hnsw bug when the last node in the graph is
// removed) and assigns a fresh key.
func (idx *Index) Add(ids []string, vectors [][]float32) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) != len(vectors) {
		return fmt.Errorf("denseindex.Add: ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return fmt.Errorf("denseindex.Add: index is closed")
	}

	for _, v := range vectors {
		if len(v) != idx.config.Dimensions {
			return fmt.Errorf("denseindex.Add: dimension mismatch: expected %d, got %d", idx.config.Dimensions, len(v))
		}
	}

	for i, id := range ids {
		if existingKey, exists := idx.idMap[id]; exists {
			delete(idx.keyMap, existingKey)
			delete(idx.idMap, id)
		}

		key := idx.nextKey
		idx.nextKey++

		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		normalizeInPlace(vec)

		idx.graph.Add(hnsw.MakeNode(key, vec))
		idx.idMap[id] = key
		idx.keyMap[key] = id
	}

	return nil
}

// Search returns the k nearest chunks to query, ranked by descending score.
func (idx *Index) Search(ctx context.Context, query []float32, k int) ([]Result, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.closed {
		return nil, apierr.NewDenseSearchFailed(fmt.Errorf("index is closed"))
	}
	if len(query) != idx.config.Dimensions {
		return nil, apierr.NewDenseSearchFailed(fmt.Errorf("dimension mismatch: expected %d, got %d", idx.config.Dimensions, len(query)))
	}
	if idx.graph.Len() == 0 {
		return nil, nil
	}

	q := make([]float32, len(query))
	copy(q, query)
	normalizeInPlace(q)

	nodes := idx.graph.Search(q, k)

	results := make([]Result, 0, len(nodes))
	for _, node := range nodes {
		id, ok := idx.keyMap[node.Key]
		if !ok {
			continue // orphaned by lazy deletion
		}
		distance := idx.graph.Distance(q, node.Value)
		results = append(results, Result{ID: id, Score: cosineDistanceToScore(distance)})
	}

	return results, nil
}

// Count returns the number of live (non-orphaned) vectors.
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.idMap)
}

// Save persists the graph and its ID mappings atomically: each artifact is
// written to a temp file, then renamed into place.
func (idx *Index) Save(path string) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.closed {
		return fmt.Errorf("denseindex.Save: index is closed")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("denseindex.Save: create directory: %w", err)
	}

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("denseindex.Save: create index file: %w", err)
	}
	if err := idx.graph.Export(f); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("denseindex.Save: export graph: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("denseindex.Save: close index file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("denseindex.Save: rename index file: %w", err)
	}

	if err := idx.saveMetadata(path + ".meta"); err != nil {
		return fmt.Errorf("denseindex.Save: %w", err)
	}

	return nil
}

func (idx *Index) saveMetadata(path string) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp metadata file: %w", err)
	}

	meta := sidecarMetadata{IDMap: idx.idMap, NextKey: idx.nextKey, Config: idx.config}
	if err := gob.NewEncoder(f).Encode(meta); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close metadata file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// Load reads a previously-Saved index from path into a freshly constructed
// graph. The caller owns the returned Index.
func Load(path string) (*Index, error) {
	idx := &Index{
		graph:  hnsw.NewGraph[uint64](),
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
	}
	idx.graph.Distance = hnsw.CosineDistance

	if err := idx.loadMetadata(path + ".meta"); err != nil {
		return nil, apierr.NewIndexUnavailable("dense", fmt.Errorf("load metadata: %w", err))
	}
	idx.graph.M = idx.config.M
	idx.graph.EfSearch = idx.config.EfSearch
	idx.graph.Ml = 0.25

	f, err := os.Open(path)
	if err != nil {
		return nil, apierr.NewIndexUnavailable("dense", fmt.Errorf("open index file: %w", err))
	}
	defer f.Close()

	reader := bufio.NewReader(f)
	if err := idx.graph.Import(reader); err != nil {
		return nil, apierr.NewIndexUnavailable("dense", fmt.Errorf("import graph: %w", err))
	}

	return idx, nil
}

func (idx *Index) loadMetadata(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open metadata file: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Warn("denseindex: failed to close metadata file", slog.String("error", err.Error()))
		}
	}()

	var meta sidecarMetadata
	if err := gob.NewDecoder(f).Decode(&meta); err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}

	idx.idMap = meta.IDMap
	idx.nextKey = meta.NextKey
	idx.config = meta.Config
	idx.keyMap = make(map[uint64]string, len(meta.IDMap))
	for id, key := range idx.idMap {
		idx.keyMap[key] = id
	}

	return nil
}

// Close releases the in-memory graph. Subsequent calls are no-ops.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return nil
	}
	idx.closed = true
	idx.graph = nil
	return nil
}

func normalizeInPlace(v []float32) {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}

// cosineDistanceToScore maps coder/hnsw's cosine distance (0 identical, 2
// opposite) onto a 0-1 similarity score.
func cosineDistanceToScore(distance float32) float32 {
	return 1.0 - distance/2.0
}
