package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"golang.org/x/oauth2/google"
)

// generationTemperature is deliberately small but nonzero: the contract
// requires deterministic-ish citation behavior without fully collapsing
// sampling.
const generationTemperature = 0.2

// GenerationAdapter wraps Vertex AI Gemini to implement the single-string
// generate(prompt) -> text contract. Supports both the regional SDK endpoint
// and the global REST endpoint.
type GenerationAdapter struct {
	client     *genai.Client
	httpClient *http.Client
	project    string
	location   string
	model      string
	useREST    bool
}

// NewGenerationAdapter creates a GenerationAdapter. Location "global" uses
// the REST API directly since the SDK does not support the global endpoint.
func NewGenerationAdapter(ctx context.Context, project, location, model string) (*GenerationAdapter, error) {
	if location == "global" {
		httpClient, err := google.DefaultClient(ctx, "https://www.googleapis.com/auth/cloud-platform")
		if err != nil {
			return nil, fmt.Errorf("llmclient.NewGenerationAdapter: default credentials: %w", err)
		}
		return &GenerationAdapter{httpClient: httpClient, project: project, location: location, model: model, useREST: true}, nil
	}

	client, err := genai.NewClient(ctx, project, location)
	if err != nil {
		return nil, fmt.Errorf("llmclient.NewGenerationAdapter: %w", err)
	}
	return &GenerationAdapter{client: client, project: project, location: location, model: model}, nil
}

// Generate sends prompt (the already-interpolated system+context+query text)
// to the model and returns its raw text response. Retries on
// 429/RESOURCE_EXHAUSTED.
func (a *GenerationAdapter) Generate(ctx context.Context, prompt string) (string, error) {
	return withRetry(ctx, "Generate", func() (string, error) {
		if a.useREST {
			return a.generateREST(ctx, prompt)
		}
		return a.generateSDK(ctx, prompt)
	})
}

func (a *GenerationAdapter) generateSDK(ctx context.Context, prompt string) (string, error) {
	model := a.client.GenerativeModel(a.model)
	temp := float32(generationTemperature)
	model.Temperature = &temp

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("llmclient.Generate: %w", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("llmclient.Generate: empty response from model")
	}

	var parts []string
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			parts = append(parts, string(t))
		}
	}
	return strings.Join(parts, ""), nil
}

type restGenerateRequest struct {
	Contents         []restContent         `json:"contents"`
	GenerationConfig *restGenerationConfig `json:"generationConfig,omitempty"`
}

type restContent struct {
	Role  string     `json:"role"`
	Parts []restPart `json:"parts"`
}

type restPart struct {
	Text string `json:"text"`
}

type restGenerationConfig struct {
	Temperature float64 `json:"temperature"`
}

type restGenerateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (a *GenerationAdapter) generateREST(ctx context.Context, prompt string) (string, error) {
	url := fmt.Sprintf(
		"https://aiplatform.googleapis.com/v1/projects/%s/locations/global/publishers/google/models/%s:generateContent",
		a.project, a.model,
	)

	reqBody := restGenerateRequest{
		Contents:         []restContent{{Role: "user", Parts: []restPart{{Text: prompt}}}},
		GenerationConfig: &restGenerationConfig{Temperature: generationTemperature},
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("llmclient.Generate: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("llmclient.Generate: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("llmclient.Generate: call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("llmclient.Generate: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("llmclient.Generate: status %d: %s", resp.StatusCode, respBody)
	}

	var genResp restGenerateResponse
	if err := json.Unmarshal(respBody, &genResp); err != nil {
		return "", fmt.Errorf("llmclient.Generate: decode: %w", err)
	}
	if genResp.Error != nil {
		return "", fmt.Errorf("llmclient.Generate: API error %d: %s", genResp.Error.Code, genResp.Error.Message)
	}
	if len(genResp.Candidates) == 0 || len(genResp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("llmclient.Generate: empty response from model")
	}

	var parts []string
	for _, p := range genResp.Candidates[0].Content.Parts {
		if p.Text != "" {
			parts = append(parts, p.Text)
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("llmclient.Generate: no text in response")
	}
	return strings.Join(parts, ""), nil
}

// HealthCheck validates the generation service connection.
func (a *GenerationAdapter) HealthCheck(ctx context.Context) error {
	resp, err := a.Generate(ctx, "Reply with only: OK")
	if err != nil {
		return fmt.Errorf("generation health check failed (model: %s, location: %s): %w", a.model, a.location, err)
	}
	if resp == "" {
		return fmt.Errorf("generation service returned empty response (model: %s)", a.model)
	}
	return nil
}

// Close releases the underlying client, if any.
func (a *GenerationAdapter) Close() {
	if a.client != nil {
		a.client.Close()
	}
}
