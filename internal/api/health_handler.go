package api

import (
	"encoding/json"
	"net/http"
	"time"
)

// Health reports whether the relational store is reachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	health := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  make(map[string]string),
	}

	if err := h.Registry.HealthCheck(ctx); err != nil {
		health.Services["postgres"] = "unhealthy: " + err.Error()
		health.Status = "degraded"
	} else {
		health.Services["postgres"] = "healthy"
	}

	statusCode := http.StatusOK
	if health.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(health) //nolint:errcheck
}
