package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

var startTime = time.Now()

// maxHealthErrors bounds the error history reported by the health endpoint
const maxHealthErrors = 10

type HealthChecker struct {
	mu          sync.RWMutex
	activeRuns  int
	lastRunDone time.Time
	errors      []string
}

type HealthStatus struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	ActiveRuns  int       `json:"active_runs"`
	LastRunDone time.Time `json:"last_run_done,omitempty"`
	Uptime      string    `json:"uptime"`
	Errors      []string  `json:"errors,omitempty"`
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		errors: make([]string, 0),
	}
}

// RunStarted marks a run as active
func (h *HealthChecker) RunStarted() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.activeRuns++
}

// RunFinished marks a run as done, keeping its error if any
func (h *HealthChecker) RunFinished(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.activeRuns > 0 {
		h.activeRuns--
	}
	h.lastRunDone = time.Now()
	if err != nil {
		h.errors = append(h.errors, err.Error())
		if len(h.errors) > maxHealthErrors {
			h.errors = h.errors[1:]
		}
	}
}

// Status returns a copy of the current health
func (h *HealthChecker) Status() HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	if len(h.errors) > 0 {
		status = "degraded"
	}

	return HealthStatus{
		Status:      status,
		Timestamp:   time.Now(),
		ActiveRuns:  h.activeRuns,
		LastRunDone: h.lastRunDone,
		Uptime:      time.Since(startTime).String(),
		Errors:      append([]string(nil), h.errors...),
	}
}

// ServeHTTP reports the health as JSON. Failed runs degrade the status but
// the service keeps answering 200.
func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.Status())
}
