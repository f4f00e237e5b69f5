// Package handlers serves the worker's ops endpoints.
package handlers

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	logpkg "github.com/benvon/tagtube/internal/logger"
)

const defaultCheckTimeout = 5 * time.Second

// CheckFunc reports whether one dependency is reachable
type CheckFunc func(ctx context.Context) error

// HealthChecker handles health check requests
type HealthChecker struct {
	checks  map[string]CheckFunc
	timeout time.Duration
	logger  *zap.Logger
}

// NewHealthChecker creates a checker with no dependency checks
func NewHealthChecker(logger *zap.Logger) *HealthChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthChecker{checks: make(map[string]CheckFunc), timeout: defaultCheckTimeout, logger: logger}
}

// AddCheck registers a dependency check run in extended mode
func (h *HealthChecker) AddCheck(name string, check CheckFunc) {
	h.checks[name] = check
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthCheck handles /healthz. Basic mode reports that the process is up;
// ?mode=extended also runs every registered check concurrently and answers
// 503 when any fails.
func (h *HealthChecker) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if r.URL.Query().Get("mode") != "extended" {
		respondJSON(w, http.StatusOK, response, h.logger)
		return
	}

	response.Checks = h.runChecks(r.Context())
	status := http.StatusOK
	for _, result := range response.Checks {
		if result != "healthy" {
			response.Status = "unhealthy"
			status = http.StatusServiceUnavailable
			break
		}
	}
	respondJSON(w, status, response, h.logger)
}

func (h *HealthChecker) runChecks(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	slices.Sort(names)

	results := make(map[string]string, len(names))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, name := range names {
		wg.Add(1)
		go func(name string, check CheckFunc) {
			defer wg.Done()
			result := "healthy"
			if err := check(ctx); err != nil {
				result = "unhealthy: " + logpkg.SanitizeError(err)
				h.logger.Warn("health_check_failed",
					zap.String("check", name),
					zap.String("error", logpkg.SanitizeError(err)),
				)
			}
			mu.Lock()
			results[name] = result
			mu.Unlock()
		}(name, h.checks[name])
	}
	wg.Wait()
	return results
}
