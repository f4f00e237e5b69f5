package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	logpkg "github.com/benvon/tagtube/internal/logger"
)

// ErrorResponse is the body written when a handler panics
type ErrorResponse struct {
	Error     string `json:"error"`
	TraceID   string `json:"trace_id,omitempty"`
	Path      string `json:"path"`
	Timestamp string `json:"timestamp"`
}

// Recovery turns a handler panic into a 500 JSON response and marks the
// request span as failed.
func Recovery(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				span := trace.SpanFromContext(r.Context())
				span.SetStatus(codes.Error, "panic")

				body := ErrorResponse{
					Error:     "internal_error",
					Path:      logpkg.SanitizePath(r.URL.Path),
					Timestamp: time.Now().UTC().Format(time.RFC3339),
				}
				if sc := span.SpanContext(); sc.HasTraceID() {
					body.TraceID = sc.TraceID().String()
				}
				logger.Error("panic_recovered",
					zap.String("panic", logpkg.SanitizeString(fmt.Sprint(rec), 256)),
					zap.String("path", body.Path),
					zap.String("method", r.Method),
					zap.Stack("stack"),
				)

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				if err := json.NewEncoder(w).Encode(body); err != nil {
					logger.Error("failed_to_encode_error_response", zap.Error(err))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
