package handlers

import (
	"net/http"
	"time"

	domain "github.com/cafeluna/api/internal/domain"
	"github.com/cafeluna/api/internal/services"
)

// HealthHandlers serves the liveness and readiness endpoints.
type HealthHandlers struct {
	system    services.SystemService
	startedAt time.Time
}

// NewHealthHandlers constructs health handlers. The system service may be nil,
// in which case readiness degrades to the liveness response.
func NewHealthHandlers(system services.SystemService) *HealthHandlers {
	return &HealthHandlers{
		system:    system,
		startedAt: time.Now(),
	}
}

// Healthz reports process liveness without touching dependencies.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"uptime":    time.Since(h.startedAt).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Readyz probes downstream dependencies and reports per-check status.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.system == nil {
		h.Healthz(w, r)
		return
	}

	report, err := h.system.HealthReport(r.Context())
	if err != nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, map[string]any{
			"status":  domain.HealthStatusError,
			"message": "health report unavailable",
		})
		return
	}

	status := http.StatusOK
	if report.Status == domain.HealthStatusError {
		status = http.StatusServiceUnavailable
	}

	checks := make(map[string]any, len(report.Checks))
	for name, check := range report.Checks {
		checks[name] = map[string]any{
			"status":     check.Status,
			"detail":     check.Detail,
			"latency_ms": check.Latency.Milliseconds(),
			"checked_at": formatTime(check.CheckedAt),
		}
	}

	writeJSONResponse(w, status, map[string]any{
		"status":       report.Status,
		"environment":  report.Environment,
		"checks":       checks,
		"generated_at": formatTime(report.GeneratedAt),
	})
}
