package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubIndexStatus struct {
	count int
}

func (s stubIndexStatus) Count() int { return s.count }

func TestHealth_OK(t *testing.T) {
	handler := Health(stubIndexStatus{count: 1200})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp map[string]any
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["status"] != "ok" {
		t.Errorf("status = %v, want %q", resp["status"], "ok")
	}
}

func TestHealth_EmptyIndexIsDegraded(t *testing.T) {
	handler := Health(stubIndexStatus{count: 0})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}

	var resp map[string]any
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["status"] != "degraded" {
		t.Errorf("status = %v, want %q", resp["status"], "degraded")
	}
}

func TestHealth_NilIndex(t *testing.T) {
	handler := Health(nil)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
