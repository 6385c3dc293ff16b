// Command ingest builds the dense and sparse index artifacts the server
// loads at startup. It walks a corpus directory of .srt files, chunks each
// one, embeds the chunks, and persists both indices to disk. It is a
// separate program deliberately: the serving process only ever loads
// finished artifacts, it never builds them.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/gerard-labs/subtranscript-rag/internal/apierr"
	"github.com/gerard-labs/subtranscript-rag/internal/config"
	"github.com/gerard-labs/subtranscript-rag/internal/denseindex"
	"github.com/gerard-labs/subtranscript-rag/internal/llmclient"
	"github.com/gerard-labs/subtranscript-rag/internal/model"
	"github.com/gerard-labs/subtranscript-rag/internal/sparseindex"
	"github.com/gerard-labs/subtranscript-rag/internal/subtitle"
)

// embedBatchSize bounds how many chunk texts go into a single embedding
// call, keeping request bodies and retry blast radius small.
const embedBatchSize = 32

// FailedFile records a single corpus entry that could not be parsed or
// chunked. Ingestion skips it and continues with the rest of the corpus.
type FailedFile struct {
	Path  string
	Cause error
}

// Stats summarizes a completed (possibly partial) ingestion run.
type Stats struct {
	FilesProcessed int
	Blocks         int
	Chunks         int
	Failed         []FailedFile
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var corpusDir string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Build the dense and sparse index artifacts from a corpus of .srt files",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if corpusDir != "" {
				cfg.CorpusDir = corpusDir
			}

			_, err = runIngest(ctx, cfg)
			return err
		},
	}

	cmd.Flags().StringVar(&corpusDir, "corpus", "", "corpus directory to ingest (defaults to CORPUS_DIR)")
	return cmd
}

func runIngest(ctx context.Context, cfg *config.Config) (*Stats, error) {
	start := time.Now()
	stats := &Stats{}

	lock, err := acquireIndexLock(cfg.DenseIndexPath)
	if err != nil {
		return stats, fmt.Errorf("acquire index lock: %w", err)
	}
	defer lock.Unlock()

	paths, err := discoverSRTFiles(cfg.CorpusDir)
	if err != nil {
		return stats, fmt.Errorf("discover corpus: %w", err)
	}
	if len(paths) == 0 {
		return stats, fmt.Errorf("no .srt files found under %s", cfg.CorpusDir)
	}
	slog.Info("corpus discovered", "dir", cfg.CorpusDir, "files", len(paths))

	parser := subtitle.NewParser()
	chunker := subtitle.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)

	var chunks []model.Chunk
	for _, path := range paths {
		blocks, err := parser.ParseFile(path)
		if err != nil {
			apiErr := apierr.NewMalformedCorpusEntry(path, err)
			slog.Warn("skipping malformed file", "file", path, "error", apiErr.Message)
			stats.Failed = append(stats.Failed, FailedFile{Path: path, Cause: err})
			continue
		}
		if len(blocks) == 0 {
			slog.Warn("no subtitle blocks parsed, skipping", "file", path)
			continue
		}
		stats.Blocks += len(blocks)

		source := filepath.Base(path)
		fileChunks, err := chunker.Chunk(blocks, source)
		if err != nil {
			apiErr := apierr.NewMalformedCorpusEntry(path, err)
			slog.Warn("skipping unchunkable file", "file", path, "error", apiErr.Message)
			stats.Failed = append(stats.Failed, FailedFile{Path: path, Cause: err})
			continue
		}
		chunks = append(chunks, fileChunks...)
		stats.FilesProcessed++
	}
	stats.Chunks = len(chunks)
	slog.Info("corpus chunked", "files", stats.FilesProcessed, "chunks", stats.Chunks, "failed", len(stats.Failed))
	if len(chunks) == 0 {
		return stats, fmt.Errorf("no chunks produced: all %d corpus files failed to parse", len(stats.Failed))
	}

	embedder, err := llmclient.NewEmbeddingAdapter(ctx, cfg.GCPProject, cfg.EmbeddingLocation, cfg.EmbeddingModel)
	if err != nil {
		return stats, fmt.Errorf("build embedding adapter: %w", err)
	}

	dense, err := denseindex.New(denseindex.Config{Dimensions: cfg.EmbeddingDimensions})
	if err != nil {
		return stats, fmt.Errorf("init dense index: %w", err)
	}
	sparse := sparseindex.New()

	for batchStart := 0; batchStart < len(chunks); batchStart += embedBatchSize {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		batchEnd := min(batchStart+embedBatchSize, len(chunks))
		batch := chunks[batchStart:batchEnd]

		texts := make([]string, len(batch))
		ids := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
			ids[i] = c.ID
		}

		vectors, err := embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return stats, fmt.Errorf("embed batch [%d:%d]: %w", batchStart, batchEnd, err)
		}
		if err := dense.Add(ids, vectors); err != nil {
			return stats, fmt.Errorf("add batch [%d:%d] to dense index: %w", batchStart, batchEnd, err)
		}
		for _, c := range batch {
			sparse.Add(c)
		}

		slog.Info("embedded batch", "done", batchEnd, "total", len(chunks))
	}

	if err := dense.Save(cfg.DenseIndexPath); err != nil {
		return stats, fmt.Errorf("save dense index: %w", err)
	}
	if err := sparse.Save(cfg.SparseIndexPath); err != nil {
		return stats, fmt.Errorf("save sparse index: %w", err)
	}

	for _, f := range stats.Failed {
		slog.Warn("corpus file excluded from index", "file", f.Path, "error", f.Cause)
	}
	slog.Info("ingestion complete",
		"files_processed", stats.FilesProcessed,
		"blocks", stats.Blocks,
		"chunks", stats.Chunks,
		"failures", len(stats.Failed),
		"dense_path", cfg.DenseIndexPath,
		"sparse_path", cfg.SparseIndexPath,
		"elapsed", time.Since(start),
	)
	return stats, nil
}

// acquireIndexLock takes an exclusive, non-blocking lock on a file beside
// denseIndexPath, refusing to run a second ingestion concurrently against
// the same artifact directory.
func acquireIndexLock(denseIndexPath string) (*flock.Flock, error) {
	dir := filepath.Dir(denseIndexPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}

	lock := flock.New(filepath.Join(dir, ".ingest.lock"))
	acquired, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("try lock: %w", err)
	}
	if !acquired {
		return nil, fmt.Errorf("another ingestion run holds the lock on %s", dir)
	}
	return lock, nil
}

// discoverSRTFiles walks dir and returns every .srt file found, sorted by
// walk order (which filepath.WalkDir already gives lexically per directory).
func discoverSRTFiles(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".srt") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}
