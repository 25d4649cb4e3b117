// Package interfaces defines the core abstractions of the reconciliation
// service to improve testability and separation of concerns. The terminology
// client contract itself lives in the match package, next to the pipeline
// that consumes it.
package interfaces

import (
	"context"
	"net/http"
	"time"

	"github.com/ihtsdo/drugmatch/match"
	"github.com/ihtsdo/drugmatch/registry/entities"
)

// DataQualityReport summarizes issues found in a registry extract.
type DataQualityReport struct {
	DuplicateDrugIDs            []string
	RecordsWithoutComponents    int
	RecordsWithoutDoseForm      int
	RecordsWithoutNationalNames int
}

// DataStore provides thread-safe access to the latest reconciliation
// snapshot with atomic swaps for zero-downtime updates.
type DataStore interface {
	GetPharmaceuticals() []entities.Pharmaceutical
	GetPharmaceutical(drugID string) (entities.Pharmaceutical, bool)
	GetResult() *match.ReconciliationResult
	GetMatch(drugID string) (match.PharmaceuticalMatch, bool)
	GetLastUpdated() time.Time
	GetServerStartTime() time.Time
	IsUpdating() bool

	UpdateResult(result *match.ReconciliationResult)
	BeginUpdate() bool
	EndUpdate()
}

// RegistryParser loads and parses the national drug registry extract into
// immutable pharmaceutical records.
type RegistryParser interface {
	ParseAll(ctx context.Context) ([]entities.Pharmaceutical, error)
}

// Reconciler runs the full matching pipeline over a registry extract.
type Reconciler interface {
	Run(ctx context.Context, pharmaceuticals []entities.Pharmaceutical) (*match.ReconciliationResult, error)
}

// Scheduler manages the periodic reconciliation runs and staleness
// monitoring, plus single-run execution for one-shot mode.
type Scheduler interface {
	Start() error
	RunOnce() error
	Stop()
}

// HealthChecker reports the health of the service based on the age and
// content of the current snapshot.
type HealthChecker interface {
	HealthCheck() (status string, details map[string]any, httpStatus int)
	CalculateNextUpdate() time.Time
}

// DataValidator validates registry input records and user-supplied request
// parameters.
type DataValidator interface {
	ValidatePharmaceutical(p *entities.Pharmaceutical) error
	ReportDataQuality(pharmaceuticals []entities.Pharmaceutical) *DataQualityReport
	ValidateInput(input string) error
	ValidateDrugID(input string) (string, error)
}

// HTTPHandler is implemented by the handler set exposed by the server.
type HTTPHandler interface {
	ServeHTTP(w http.ResponseWriter, r *http.Request)
}
