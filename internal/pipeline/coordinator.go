// Package pipeline wires classification, retrieval, prompt construction,
// generation and post-processing into the single per-request operation the
// core exposes: a query in, an answer and its diagnostics out.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gerard-labs/subtranscript-rag/internal/apierr"
	"github.com/gerard-labs/subtranscript-rag/internal/classifier"
	"github.com/gerard-labs/subtranscript-rag/internal/denseindex"
	"github.com/gerard-labs/subtranscript-rag/internal/formatter"
	"github.com/gerard-labs/subtranscript-rag/internal/model"
	"github.com/gerard-labs/subtranscript-rag/internal/postprocess"
	"github.com/gerard-labs/subtranscript-rag/internal/promptcontract"
	"github.com/gerard-labs/subtranscript-rag/internal/retriever"
	"github.com/gerard-labs/subtranscript-rag/internal/sparseindex"
)

// Generator is the external generative-model collaborator: a single string
// in, a single string out.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Request is the coordinator's single input shape.
type Request struct {
	Query      string
	Exhaustive bool
	// Deadline overrides Config.TotalTimeout when positive.
	Deadline time.Duration
}

// Plan is the diagnostic view of the classifier's decision returned to callers.
type Plan struct {
	Level  model.ComplexityLevel
	K      int
	Reason string
}

// Timings captures the three wall-clock measurements the coordinator owns.
type Timings struct {
	RetrievalMS  int64
	GenerationMS int64
	TotalMS      int64
}

// Response is the coordinator's single output shape.
type Response struct {
	Answer    string
	Plan      Plan
	Method    model.RetrievalMethod
	Retrieved int
	Timings   Timings
	Warnings  []apierr.ValidationWarning
}

// Config bounds the coordinator's per-request behavior.
type Config struct {
	TotalTimeout time.Duration
}

// noQuestionAnswer is returned verbatim for an empty or whitespace-only
// query: there is nothing to retrieve or generate against.
const noQuestionAnswer = "No se proporcionó ninguna pregunta."

// Coordinator runs classify -> retrieve -> format -> generate -> post-process
// for one request at a time; it holds no mutable per-request state, so a
// single instance serves concurrent requests safely.
type Coordinator struct {
	cfg        Config
	classifier *classifier.Classifier
	retriever  *retriever.Retriever
	template   *promptcontract.Template
	generator  Generator
}

// New wires a Coordinator from its concrete collaborators. dense/sparse are
// the loaded indices; embedder and generator are the external services.
func New(cfg Config, cls *classifier.Classifier, dense *denseindex.Index, sparse *sparseindex.Index, embedder retriever.QueryEmbedder, retrCfg retriever.Config, template *promptcontract.Template, generator Generator) *Coordinator {
	r := retriever.New(retrCfg, denseAdapter{dense}, sparseAdapter{sparse}, sparse, embedder, cls)
	return &Coordinator{cfg: cfg, classifier: cls, retriever: r, template: template, generator: generator}
}

// Handle runs one request to completion. Partial results are never
// returned: any failure before generation or during it yields an error.
func (c *Coordinator) Handle(ctx context.Context, req Request) (Response, error) {
	start := time.Now()

	timeout := c.cfg.TotalTimeout
	if req.Deadline > 0 {
		timeout = req.Deadline
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	plan := c.classifier.Classify(req.Query, req.Exhaustive)
	slog.Info("pipeline step 1: classified query", "level", plan.Level, "k", plan.K, "force_lexical", plan.ForceLexical)

	if strings.TrimSpace(req.Query) == "" {
		slog.Info("pipeline short-circuit: empty query, skipping retrieval and generation")
		return Response{
			Answer:  noQuestionAnswer,
			Plan:    Plan{Level: plan.Level, K: plan.K, Reason: plan.Reason},
			Timings: Timings{TotalMS: time.Since(start).Milliseconds()},
		}, nil
	}

	retrievalStart := time.Now()
	outcome, err := c.retriever.Retrieve(ctx, req.Query, plan)
	retrievalMS := time.Since(retrievalStart).Milliseconds()
	if err != nil {
		slog.Error("pipeline step 2: retrieval failed", "error", err)
		return Response{}, err
	}
	slog.Info("pipeline step 2: retrieved chunks", "count", len(outcome.Results), "state", outcome.State)

	chunks := make([]model.Chunk, len(outcome.Results))
	for i, r := range outcome.Results {
		chunks[i] = r.Chunk
	}
	promptContext := formatter.Format(chunks)
	prompt := c.template.Build(promptContext, req.Query)
	slog.Info("pipeline step 3: built prompt", "context_chunks", len(chunks))

	generationStart := time.Now()
	raw, err := c.generator.Generate(ctx, prompt)
	generationMS := time.Since(generationStart).Milliseconds()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			slog.Error("pipeline step 4: generation deadline exceeded")
			return Response{}, apierr.NewDeadlineExceeded("generation")
		}
		slog.Error("pipeline step 4: generation failed", "error", err)
		return Response{}, apierr.NewGenerationFailed(err)
	}
	slog.Info("pipeline step 4: generation completed", "chars", len(raw))

	result := postprocess.Process(raw)
	if len(result.Warnings) > 0 {
		slog.Warn("pipeline step 5: post-processing emitted warnings", "count", len(result.Warnings))
	}

	totalMS := time.Since(start).Milliseconds()
	slog.Info("pipeline completed", "total_ms", totalMS, "retrieval_ms", retrievalMS, "generation_ms", generationMS)

	return Response{
		Answer:    result.Text,
		Plan:      Plan{Level: plan.Level, K: plan.K, Reason: plan.Reason},
		Method:    stateToMethod(outcome.State),
		Retrieved: len(outcome.Results),
		Timings:   Timings{RetrievalMS: retrievalMS, GenerationMS: generationMS, TotalMS: totalMS},
		Warnings:  result.Warnings,
	}, nil
}

func stateToMethod(s retriever.State) model.RetrievalMethod {
	switch s {
	case retriever.StateLexicalOnly:
		return model.MethodSparse
	case retriever.StateDenseOnly:
		return model.MethodDense
	default:
		return model.MethodHybrid
	}
}
