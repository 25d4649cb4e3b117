// Package health provides health checking functionality for the drug match
// service.
package health

import (
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ihtsdo/drugmatch/interfaces"
)

// HealthCheckerImpl implements the interfaces.HealthChecker interface
type HealthCheckerImpl struct {
	dataStore interfaces.DataStore
	runAt     string // semicolon-separated HH:MM daily run times
}

// NewHealthChecker creates a new health checker with injected dependencies
func NewHealthChecker(dataStore interfaces.DataStore, runAt string) interfaces.HealthChecker {
	return &HealthCheckerImpl{
		dataStore: dataStore,
		runAt:     runAt,
	}
}

// HealthCheck returns HTTP-specific health data with stricter thresholds
// Used by /health HTTP endpoint
func (h *HealthCheckerImpl) HealthCheck() (status string, data map[string]any, httpStatus int) {
	result := h.dataStore.GetResult()
	lastUpdate := h.dataStore.GetLastUpdated()
	isUpdating := h.dataStore.IsUpdating()

	snapshotAge := time.Since(lastUpdate)

	// Determine health status and HTTP code using stricter thresholds
	switch {
	case len(result.Pharmaceuticals) == 0:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case snapshotAge > 48*time.Hour:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case snapshotAge > 25*time.Hour:
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable

	case isUpdating && snapshotAge > 6*time.Hour:
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable

	default:
		status = "healthy"
		httpStatus = http.StatusOK
	}

	// Build response data (no system metrics, only snapshot-related fields)
	data = map[string]any{
		"last_update":        lastUpdate.Format(time.RFC3339),
		"snapshot_age_hours": math.Round(snapshotAge.Hours()*10) / 10,
		"pharmaceuticals":    len(result.Pharmaceuticals),
		"matches":            len(result.Matches),
		"is_updating":        isUpdating,
	}

	return status, data, httpStatus
}

// CalculateNextUpdate returns the next scheduled run time based on the
// configured daily HH:MM entries.
func (h *HealthCheckerImpl) CalculateNextUpdate() time.Time {
	now := time.Now()

	var today []time.Time
	for _, entry := range strings.Split(h.runAt, ";") {
		parts := strings.Split(entry, ":")
		if len(parts) != 2 {
			continue
		}
		hour, err := strconv.Atoi(parts[0])
		if err != nil {
			continue
		}
		minute, err := strconv.Atoi(parts[1])
		if err != nil {
			continue
		}
		today = append(today, time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location()))
	}

	if len(today) == 0 {
		// Unparseable schedule, assume a run within the next day.
		return now.AddDate(0, 0, 1)
	}

	sort.Slice(today, func(i, j int) bool { return today[i].Before(today[j]) })

	for _, t := range today {
		if now.Before(t) {
			return t
		}
	}

	// All of today's runs have passed, next is tomorrow's first.
	return today[0].AddDate(0, 0, 1)
}
