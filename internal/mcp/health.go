package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/bull/course-rag/internal/course"
)

// HealthResponse represents the JSON response from the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Index     string `json:"index"`
	State     string `json:"state,omitempty"`
	Chunks    int    `json:"chunks"`
	Timestamp string `json:"timestamp"`
}

// HealthChecker interface defines the health check dependency.
// The index store implements this via its Health() method.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// StatusReporter supplies pipeline state for the health payload. Optional.
type StatusReporter interface {
	Status() course.Status
}

// NewHealthHandler creates an HTTP handler for the /health endpoint.
// It checks index store connectivity and returns 503 when the store is unreachable.
func NewHealthHandler(store HealthChecker, status StatusReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		err := store.Health(ctx)

		response := HealthResponse{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}
		if status != nil {
			s := status.Status()
			response.State = s.State
			response.Chunks = s.ChunkCount
		}

		w.Header().Set("Content-Type", "application/json")

		if err != nil {
			response.Status = "unhealthy"
			response.Index = "disconnected"
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(response)
			return
		}

		response.Status = "healthy"
		response.Index = "connected"
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}
