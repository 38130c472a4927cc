// Package health provides health checking functionality for the doselog API.
package health

import (
	"math"
	"net/http"
	"time"

	"github.com/giygas/doselog/interfaces"
	"github.com/giygas/doselog/scheduler"
)

// HealthCheckerImpl implements the interfaces.HealthChecker interface
type HealthCheckerImpl struct {
	directory interfaces.UserDirectory
	interval  time.Duration
}

// NewHealthChecker creates a new health checker with injected dependencies.
// interval is the flush interval the scheduler runs with.
func NewHealthChecker(directory interfaces.UserDirectory, interval time.Duration) interfaces.HealthChecker {
	return &HealthCheckerImpl{
		directory: directory,
		interval:  interval,
	}
}

// HealthCheck returns the status and data for the /health endpoint. The
// service is degraded when dirty users have not been saved for several
// flush intervals.
func (h *HealthCheckerImpl) HealthCheck() (status string, data map[string]any, httpStatus int) {
	lastSaved := h.directory.GetLastSaved()
	isSaving := h.directory.IsSaving()
	dirty := h.directory.DirtyCount()

	if scheduler.IsStale(h.directory, h.interval) {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	} else {
		status = "healthy"
		httpStatus = http.StatusOK
	}

	data = map[string]any{
		"users":       len(h.directory.Users()),
		"entries":     h.directory.EntryCount(),
		"dirty_users": dirty,
		"is_saving":   isSaving,
	}

	if lastSaved.IsZero() {
		data["last_saved"] = nil
	} else {
		data["last_saved"] = lastSaved.Format(time.RFC3339)
		data["save_age_minutes"] = math.Round(time.Since(lastSaved).Minutes()*10) / 10
	}

	if start := h.directory.GetServerStartTime(); !start.IsZero() {
		data["uptime_seconds"] = math.Round(time.Since(start).Seconds())
	}

	return status, data, httpStatus
}
