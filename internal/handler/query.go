package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gerard-labs/subtranscript-rag/internal/apierr"
	"github.com/gerard-labs/subtranscript-rag/internal/middleware"
	"github.com/gerard-labs/subtranscript-rag/internal/pipeline"
)

const maxQueryDeadline = 60 * time.Second

// Coordinator is the single collaborator the query handler depends on.
type Coordinator interface {
	Handle(ctx context.Context, req pipeline.Request) (pipeline.Response, error)
}

// queryRequest is the request body for POST /v1/query.
type queryRequest struct {
	Query      string `json:"query"`
	Exhaustive bool   `json:"exhaustive,omitempty"`
	// DeadlineMS overrides the server's default per-request timeout, in
	// milliseconds. Clamped to maxQueryDeadline.
	DeadlineMS int64 `json:"deadline_ms,omitempty"`
}

// planView is the diagnostic classifier decision returned to the caller.
type planView struct {
	Level  string `json:"level"`
	K      int    `json:"k"`
	Reason string `json:"reason"`
}

// timingsView reports the three wall-clock measurements the coordinator owns.
type timingsView struct {
	RetrievalMS  int64 `json:"retrieval_ms"`
	GenerationMS int64 `json:"generation_ms"`
	TotalMS      int64 `json:"total_ms"`
}

// queryResponse is the response body for POST /v1/query.
type queryResponse struct {
	Answer    string        `json:"answer"`
	Plan      planView      `json:"plan"`
	Method    string        `json:"method"`
	Retrieved int           `json:"retrieved"`
	Timings   timingsView   `json:"timings"`
	Warnings  []string      `json:"warnings,omitempty"`
	Error     *apierr.Error `json:"error,omitempty"`
}

// Query returns a handler that answers one question against the indexed
// corpus. POST /v1/query — {query, exhaustive?, deadline_ms?} ->
// {answer, plan, method, retrieved, timings}. metrics is optional; nil
// disables the answer-warnings counter.
func Query(coord Coordinator, metrics *middleware.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req queryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondJSON(w, http.StatusBadRequest, envelope{Success: false, Error: "invalid request body"})
			return
		}

		deadline := time.Duration(req.DeadlineMS) * time.Millisecond
		if deadline > maxQueryDeadline {
			deadline = maxQueryDeadline
		}

		resp, err := coord.Handle(r.Context(), pipeline.Request{
			Query:      req.Query,
			Exhaustive: req.Exhaustive,
			Deadline:   deadline,
		})
		if err != nil {
			writeCoordinatorError(w, err)
			return
		}

		if metrics != nil && len(resp.Warnings) > 0 {
			metrics.IncrementAnswerWarning()
		}

		respondJSON(w, http.StatusOK, queryToView(resp))
	}
}

func queryToView(resp pipeline.Response) queryResponse {
	warnings := make([]string, len(resp.Warnings))
	for i, warn := range resp.Warnings {
		warnings[i] = warn.Message
	}
	return queryResponse{
		Answer: resp.Answer,
		Plan: planView{
			Level:  string(resp.Plan.Level),
			K:      resp.Plan.K,
			Reason: resp.Plan.Reason,
		},
		Method:    string(resp.Method),
		Retrieved: resp.Retrieved,
		Timings: timingsView{
			RetrievalMS:  resp.Timings.RetrievalMS,
			GenerationMS: resp.Timings.GenerationMS,
			TotalMS:      resp.Timings.TotalMS,
		},
		Warnings: warnings,
	}
}

// writeCoordinatorError maps a coordinator failure onto an HTTP status.
// apierr.Error carries its own stable code and recoverability; anything
// else is treated as an unclassified internal failure.
func writeCoordinatorError(w http.ResponseWriter, err error) {
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) {
		respondJSON(w, http.StatusInternalServerError, envelope{Success: false, Error: err.Error()})
		return
	}

	status := http.StatusInternalServerError
	switch apiErr.Code {
	case apierr.CodeDeadlineExceeded:
		status = http.StatusGatewayTimeout
	case apierr.CodeServiceUnavailable, apierr.CodeIndexUnavailable:
		status = http.StatusServiceUnavailable
	case apierr.CodeGenerationFailed, apierr.CodeRetrievalFailed:
		status = http.StatusBadGateway
	}
	respondJSON(w, status, queryResponse{Error: apiErr})
}

// envelope is the minimal error body for failures that carry no apierr.Error.
type envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// respondJSON writes v as a JSON body with the given status code.
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
