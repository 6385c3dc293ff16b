package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gerard-labs/subtranscript-rag/internal/cache"
	"github.com/gerard-labs/subtranscript-rag/internal/classifier"
	"github.com/gerard-labs/subtranscript-rag/internal/config"
	"github.com/gerard-labs/subtranscript-rag/internal/denseindex"
	"github.com/gerard-labs/subtranscript-rag/internal/llmclient"
	"github.com/gerard-labs/subtranscript-rag/internal/middleware"
	"github.com/gerard-labs/subtranscript-rag/internal/pipeline"
	"github.com/gerard-labs/subtranscript-rag/internal/promptcontract"
	"github.com/gerard-labs/subtranscript-rag/internal/retriever"
	"github.com/gerard-labs/subtranscript-rag/internal/router"
	"github.com/gerard-labs/subtranscript-rag/internal/sparseindex"
)

const Version = "0.1.0"

// buildCoordinator loads both index artifacts and wires every collaborator
// the pipeline needs. A missing or corrupt index artifact is a startup
// failure, not a degraded-serving condition: there is nothing to answer
// queries from without it.
func buildCoordinator(ctx context.Context, cfg *config.Config) (*pipeline.Coordinator, *denseindex.Index, *promptcontract.Watcher, *llmclient.GenerationAdapter, error) {
	dense, err := denseindex.Load(cfg.DenseIndexPath)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("load dense index: %w", err)
	}
	sparse, err := sparseindex.Load(cfg.SparseIndexPath)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("load sparse index: %w", err)
	}

	rawEmbedder, err := llmclient.NewEmbeddingAdapter(ctx, cfg.GCPProject, cfg.EmbeddingLocation, cfg.EmbeddingModel)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("build embedding adapter: %w", err)
	}
	embedder := cache.NewCachedEmbedder(rawEmbedder, cache.New(cfg.EmbeddingCacheSize, cfg.RedisAddr))
	generator, err := llmclient.NewGenerationAdapter(ctx, cfg.GCPProject, cfg.VertexAILocation, cfg.VertexAIModel)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("build generation adapter: %w", err)
	}

	tpl, err := promptcontract.New(cfg.PromptsDir)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("load prompt contract: %w", err)
	}
	watcher, err := promptcontract.NewWatcher(tpl)
	if err != nil {
		slog.Warn("prompt hot-reload disabled", "error", err)
		watcher = nil
	}

	cls := classifier.New(classifier.Config{
		KSimple:     cfg.KSimple,
		KMedia:      cfg.KMedia,
		KCompleja:   cfg.KCompleja,
		KExhaustiva: cfg.KExhaustiva,

		NameVocabulary:  cfg.NameVocabulary,
		CollectiveNames: cfg.CollectiveNames,
	})

	coord := pipeline.New(
		pipeline.Config{TotalTimeout: cfg.TotalTimeout},
		cls, dense, sparse, embedder,
		retriever.Config{
			AlphaDefault: cfg.AlphaDefault,
			AlphaLexical: cfg.AlphaLexical,
			RRFConstant:  cfg.RRFConstant,
		},
		tpl, generator,
	)

	return coord, dense, watcher, generator, nil
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	coord, dense, watcher, generator, err := buildCoordinator(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build coordinator: %w", err)
	}
	defer generator.Close()
	if watcher != nil {
		watcher.Start(ctx)
		defer watcher.Stop()
	}

	metricsReg := prometheus.NewRegistry()
	metrics := middleware.NewMetrics(metricsReg)

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		MaxRequests: 30,
		Window:      time.Minute,
	})
	defer rateLimiter.Stop()

	queryCache := cache.NewQueryCache(cfg.QueryCacheTTL)
	defer queryCache.Stop()
	cachedCoord := cache.NewCachedCoordinator(coord, queryCache)

	r := router.New(&router.Dependencies{
		Index:            dense,
		Coordinator:      cachedCoord,
		FrontendURL:      cfg.FrontendURL,
		Version:          Version,
		Metrics:          metrics,
		MetricsReg:       metricsReg,
		QueryRateLimiter: rateLimiter,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.TotalTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "version", Version, "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("received shutdown signal")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
