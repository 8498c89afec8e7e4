package api

import (
	"encoding/json"
	"net/http"
	"time"

	myLogger "github.com/pcristin/stockguard/internal/logger"
	"github.com/pcristin/stockguard/internal/svcerr"
)

// statusFor maps a svcerr.Kind to its one HTTP status. Status-to-kind
// mapping is an edge concern; the core only emits kinds.
func statusFor(kind svcerr.Kind) int {
	switch kind {
	case svcerr.KindProductNotFound:
		return http.StatusNotFound
	case svcerr.KindInsufficientStock:
		return http.StatusBadRequest
	case svcerr.KindProductAlreadyExists, svcerr.KindConcurrentCreationInProgress, svcerr.KindLockAcquisitionFailure:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	logger := myLogger.FromContext(r.Context(), "api")
	kind := svcerr.KindOf(err)
	status := statusFor(kind)

	if status == http.StatusInternalServerError {
		logger.Error("request failed", "kind", kind.String(), "error", err)
	} else {
		logger.Info("request rejected", "kind", kind.String(), "status", status)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{ //nolint:errcheck
		Error:     err.Error(),
		Kind:      kind.String(),
		RequestID: requestIDFrom(r),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func requestIDFrom(r *http.Request) string {
	if id, ok := r.Context().Value(myLogger.RequestIDKey).(string); ok {
		return id
	}
	return ""
}
