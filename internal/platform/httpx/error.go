package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/zainahstore/api/internal/platform/requestctx"
)

// Error is the JSON error envelope handlers return on failure. Code is a
// stable machine-readable identifier; Message is safe to show to clients.
type Error struct {
	Code    string
	Message string
	Status  int
}

// NewError builds an error envelope. Code and message are clamped so handler
// input cannot inflate the response.
func NewError(code, message string, status int) Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return Error{
		Code:    clamp(code, 80),
		Message: clamp(message, 512),
		Status:  status,
	}
}

// WriteError renders the envelope as JSON, attaching the request id and
// trace id from the context when present.
func WriteError(ctx context.Context, w http.ResponseWriter, err Error) {
	status := err.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}

	payload := map[string]any{
		"error":   err.Code,
		"message": err.Message,
		"status":  status,
	}
	if requestID := clamp(middleware.GetReqID(ctx), 80); requestID != "" {
		payload["request_id"] = requestID
	}
	if traceID := clamp(requestctx.TraceID(ctx), 64); traceID != "" {
		payload["trace_id"] = traceID
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

var newlineReplacer = strings.NewReplacer("\n", " ", "\r", " ")

func clamp(value string, limit int) string {
	value = strings.TrimSpace(newlineReplacer.Replace(value))
	if limit > 0 && len(value) > limit {
		value = value[:limit]
	}
	return value
}
