// Package data provides thread-safe storage for the latest reconciliation
// snapshot. The container swaps whole results atomically so readers never
// observe a half-updated run.
package data

import (
	"sync/atomic"
	"time"

	"github.com/ihtsdo/drugmatch/interfaces"
	"github.com/ihtsdo/drugmatch/logging"
	"github.com/ihtsdo/drugmatch/match"
	"github.com/ihtsdo/drugmatch/registry/entities"
)

// Compile-time check to ensure DataContainer implements DataStore
var _ interfaces.DataStore = (*DataContainer)(nil)

// DataContainer holds the latest reconciliation result behind atomic
// pointers for zero-downtime updates.
type DataContainer struct {
	result          atomic.Value // *match.ReconciliationResult
	lastUpdated     atomic.Value // time.Time
	updating        atomic.Bool
	serverStartTime atomic.Value // time.Time
}

// NewDataContainer creates a container holding an empty result.
func NewDataContainer() *DataContainer {
	dc := &DataContainer{}
	dc.result.Store(&match.ReconciliationResult{
		Matches: make(map[string]match.PharmaceuticalMatch),
	})
	dc.lastUpdated.Store(time.Time{})
	dc.serverStartTime.Store(time.Time{})
	return dc
}

// GetResult returns the current reconciliation snapshot. The result is
// immutable; callers must not modify it.
func (dc *DataContainer) GetResult() *match.ReconciliationResult {
	if v := dc.result.Load(); v != nil {
		if result, ok := v.(*match.ReconciliationResult); ok {
			return result
		}
	}

	logging.Warn("Reconciliation result is empty or invalid")
	return &match.ReconciliationResult{Matches: make(map[string]match.PharmaceuticalMatch)}
}

// GetPharmaceuticals returns the pharmaceutical records of the current
// snapshot.
func (dc *DataContainer) GetPharmaceuticals() []entities.Pharmaceutical {
	return dc.GetResult().Pharmaceuticals
}

// GetPharmaceutical returns one record by drug id.
func (dc *DataContainer) GetPharmaceutical(drugID string) (entities.Pharmaceutical, bool) {
	m, ok := dc.GetResult().Matches[drugID]
	if !ok {
		return entities.Pharmaceutical{}, false
	}
	return m.Pharmaceutical, true
}

// GetMatch returns the match outcome for one drug id.
func (dc *DataContainer) GetMatch(drugID string) (match.PharmaceuticalMatch, bool) {
	m, ok := dc.GetResult().Matches[drugID]
	return m, ok
}

// GetLastUpdated returns the timestamp of the last completed run.
func (dc *DataContainer) GetLastUpdated() time.Time {
	if v := dc.lastUpdated.Load(); v != nil {
		if lastUpdated, ok := v.(time.Time); ok {
			return lastUpdated
		}
	}

	logging.Warn("Could not get the last updated value")
	return time.Time{}
}

// IsUpdating returns true if a reconciliation run is in progress.
func (dc *DataContainer) IsUpdating() bool {
	return dc.updating.Load()
}

// SetServerStartTime sets the server start time.
func (dc *DataContainer) SetServerStartTime(startTime time.Time) {
	dc.serverStartTime.Store(startTime)
}

// GetServerStartTime returns the server start time.
func (dc *DataContainer) GetServerStartTime() time.Time {
	if v := dc.serverStartTime.Load(); v != nil {
		if startTime, ok := v.(time.Time); ok {
			return startTime
		}
	}

	logging.Warn("Could not get the server start time value")
	return time.Time{}
}

// UpdateResult atomically swaps in a new reconciliation snapshot.
func (dc *DataContainer) UpdateResult(result *match.ReconciliationResult) {
	dc.result.Store(result)
	dc.lastUpdated.Store(time.Now())
}

// BeginUpdate marks the start of a run. Returns true if the run can
// proceed, false if another run is in progress.
func (dc *DataContainer) BeginUpdate() bool {
	return dc.updating.CompareAndSwap(false, true)
}

// EndUpdate marks the end of a run.
func (dc *DataContainer) EndUpdate() {
	dc.updating.Store(false)
}
