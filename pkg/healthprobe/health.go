package healthprobe

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// CheckFunc reports whether one dependency is healthy.
type CheckFunc func() error

// HealthChecker provides health and readiness checks. Readiness aggregates
// the registered named checks; liveness only requires the process to be up.
type HealthChecker struct {
	startTime time.Time

	mu     sync.RWMutex
	ready  bool
	checks map[string]CheckFunc
}

// New creates a new HealthChecker.
func New() *HealthChecker {
	return &HealthChecker{
		startTime: time.Now(),
		checks:    make(map[string]CheckFunc),
	}
}

// SetReady marks the application as ready to serve traffic.
func (h *HealthChecker) SetReady(ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ready = ready
}

// Register adds a named readiness check. Registering the same name again
// replaces the previous check.
func (h *HealthChecker) Register(name string, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string            `json:"status"`
	Uptime  string            `json:"uptime"`
	Message string            `json:"message,omitempty"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// Health returns an HTTP handler for liveness checks.
// Always returns 200 OK if the application is running.
func (h *HealthChecker) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status: "healthy",
			Uptime: time.Since(h.startTime).String(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// Ready returns an HTTP handler for readiness checks.
// Returns 200 OK if ready and every registered check passes,
// 503 Service Unavailable otherwise.
func (h *HealthChecker) Ready() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.mu.RLock()
		ready := h.ready
		checks := make(map[string]CheckFunc, len(h.checks))
		for name, check := range h.checks {
			checks[name] = check
		}
		h.mu.RUnlock()

		resp := HealthResponse{
			Uptime: time.Since(h.startTime).String(),
			Checks: make(map[string]string, len(checks)),
		}

		healthy := ready
		for name, check := range checks {
			if err := check(); err != nil {
				resp.Checks[name] = err.Error()
				healthy = false
			} else {
				resp.Checks[name] = "ok"
			}
		}

		w.Header().Set("Content-Type", "application/json")

		if !healthy {
			resp.Status = "not_ready"
			if !ready {
				resp.Message = "application is starting"
			}
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(resp)
			return
		}

		resp.Status = "ready"
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
