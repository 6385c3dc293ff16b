package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2/google"
)

// EmbeddingAdapter calls the Vertex AI text embedding REST API. It satisfies
// retriever.QueryEmbedder via Embed and the ingestion CLI's batch needs via
// EmbedDocuments.
type EmbeddingAdapter struct {
	project  string
	location string
	model    string
	client   *http.Client
}

// NewEmbeddingAdapter creates an EmbeddingAdapter using application default
// credentials.
func NewEmbeddingAdapter(ctx context.Context, project, location, model string) (*EmbeddingAdapter, error) {
	client, err := google.DefaultClient(ctx, "https://www.googleapis.com/auth/cloud-platform")
	if err != nil {
		return nil, fmt.Errorf("llmclient.NewEmbeddingAdapter: %w", err)
	}
	return &EmbeddingAdapter{project: project, location: location, model: model, client: client}, nil
}

type embeddingRequest struct {
	Instances []embeddingInstance `json:"instances"`
}

type embeddingInstance struct {
	Content  string `json:"content"`
	TaskType string `json:"task_type"`
}

type embeddingResponse struct {
	Predictions []struct {
		Embeddings struct {
			Values []float32 `json:"values"`
		} `json:"embeddings"`
	} `json:"predictions"`
}

// Embed embeds a single query string using RETRIEVAL_QUERY task type.
// Implements retriever.QueryEmbedder.
func (a *EmbeddingAdapter) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := a.embedBatch(ctx, []string{text}, "RETRIEVAL_QUERY")
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("llmclient.Embed: empty response from embedding service")
	}
	return vectors[0], nil
}

// EmbedDocuments embeds a batch of corpus chunks using RETRIEVAL_DOCUMENT
// task type, for offline ingestion.
func (a *EmbeddingAdapter) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return a.embedBatch(ctx, texts, "RETRIEVAL_DOCUMENT")
}

// embedBatch is the shared implementation; text-embedding models produce
// different vector spaces for RETRIEVAL_DOCUMENT vs RETRIEVAL_QUERY, tuned
// for asymmetric retrieval. Retries on 429/RESOURCE_EXHAUSTED.
func (a *EmbeddingAdapter) embedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	return withRetry(ctx, "Embed", func() ([][]float32, error) {
		return a.doEmbed(ctx, texts, taskType)
	})
}

func (a *EmbeddingAdapter) doEmbed(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	instances := make([]embeddingInstance, len(texts))
	for i, t := range texts {
		instances[i] = embeddingInstance{Content: t, TaskType: taskType}
	}

	reqBody, err := json.Marshal(embeddingRequest{Instances: instances})
	if err != nil {
		return nil, fmt.Errorf("llmclient.Embed marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpointURL(), bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("llmclient.Embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llmclient.Embed call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("llmclient.Embed: status %d: %s", resp.StatusCode, body)
	}

	var embResp embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&embResp); err != nil {
		return nil, fmt.Errorf("llmclient.Embed decode: %w", err)
	}

	results := make([][]float32, len(embResp.Predictions))
	for i, p := range embResp.Predictions {
		results[i] = p.Embeddings.Values
	}
	return results, nil
}

func (a *EmbeddingAdapter) endpointURL() string {
	if a.location == "global" {
		return fmt.Sprintf(
			"https://aiplatform.googleapis.com/v1/projects/%s/locations/global/publishers/google/models/%s:predict",
			a.project, a.model,
		)
	}
	return fmt.Sprintf(
		"https://%s-aiplatform.googleapis.com/v1/projects/%s/locations/%s/publishers/google/models/%s:predict",
		a.location, a.project, a.location, a.model,
	)
}

// HealthCheck validates the embedding service connection.
func (a *EmbeddingAdapter) HealthCheck(ctx context.Context) error {
	if _, err := a.Embed(ctx, "health check"); err != nil {
		return fmt.Errorf("embedding health check failed: %w", err)
	}
	return nil
}
