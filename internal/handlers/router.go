package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"

	"github.com/benvon/tagtube/internal/middleware"
)

// NewRouter builds the ops router: tracing, panic recovery and request
// logging around /healthz.
func NewRouter(serviceName string, health *HealthChecker, logger *zap.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware(serviceName))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logging(logger))
	r.HandleFunc("/healthz", health.HealthCheck).Methods(http.MethodGet)
	return r
}
