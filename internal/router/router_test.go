package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gerard-labs/subtranscript-rag/internal/handler"
	"github.com/gerard-labs/subtranscript-rag/internal/pipeline"
)

type stubCoordinator struct{}

func (stubCoordinator) Handle(ctx context.Context, req pipeline.Request) (pipeline.Response, error) {
	return pipeline.Response{Answer: "respuesta"}, nil
}

func newTestRouter() http.Handler {
	return New(&Dependencies{
		Coordinator: stubCoordinator{},
		Version:     "test",
	})
}

func TestRouter_HealthOK(t *testing.T) {
	r := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestRouter_QueryOK(t *testing.T) {
	r := newTestRouter()

	req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(`{"query":"hola"}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["answer"] != "respuesta" {
		t.Errorf("answer = %v, want %q", resp["answer"], "respuesta")
	}
}

func TestRouter_UnknownRouteIs404(t *testing.T) {
	r := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 (legacy multi-tenant routes must not exist)", rec.Code)
	}
}

var _ handler.Coordinator = stubCoordinator{}
