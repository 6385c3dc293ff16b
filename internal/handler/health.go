package handler

import (
	"encoding/json"
	"net/http"
)

// IndexStatus reports how many vectors the dense index currently holds.
// denseindex.Index satisfies this.
type IndexStatus interface {
	Count() int
}

// Health returns a handler that reports server liveness and, when idx is
// non-nil, whether the dense index actually holds any vectors — an empty
// index after a successful load still means there is nothing to retrieve
// from, so it is reported as degraded rather than ok.
// GET /api/health — no auth.
func Health(idx IndexStatus, version ...string) http.HandlerFunc {
	ver := "0.0.0"
	if len(version) > 0 && version[0] != "" {
		ver = version[0]
	}
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		httpStatus := http.StatusOK
		indexCount := 0

		if idx != nil {
			indexCount = idx.Count()
			if indexCount == 0 {
				status = "degraded"
				httpStatus = http.StatusServiceUnavailable
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(httpStatus)
		json.NewEncoder(w).Encode(map[string]any{
			"status":      status,
			"version":     ver,
			"index_count": indexCount,
		})
	}
}
