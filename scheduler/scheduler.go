// Package scheduler provides automated reconciliation scheduling and health
// monitoring for the drug match service. It handles cron-based pipeline runs
// and coordinates snapshot swaps with the data container using dependency
// injection.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/ihtsdo/drugmatch/create"
	"github.com/ihtsdo/drugmatch/interfaces"
	"github.com/ihtsdo/drugmatch/logging"
	"github.com/ihtsdo/drugmatch/match"
	"github.com/ihtsdo/drugmatch/report"
	"github.com/ihtsdo/drugmatch/validation"
)

// Compile-time check to ensure Scheduler implements Scheduler interface
var _ interfaces.Scheduler = (*Scheduler)(nil)

// Scheduler handles reconciliation runs and health monitoring using
// dependency injection
type Scheduler struct {
	dataStore  interfaces.DataStore
	parser     interfaces.RegistryParser
	reconciler interfaces.Reconciler
	builder    *create.ExtensionBuilder
	reports    *report.Writer
	reportDir  string
	runAt      string
	scheduler  *gocron.Scheduler
}

// NewScheduler creates a new scheduler instance with injected dependencies.
// builder and reports may be nil to skip authoring and report output.
func NewScheduler(dataStore interfaces.DataStore, parser interfaces.RegistryParser, reconciler interfaces.Reconciler, builder *create.ExtensionBuilder, reports *report.Writer, reportDir, runAt string) *Scheduler {
	return &Scheduler{
		dataStore:  dataStore,
		parser:     parser,
		reconciler: reconciler,
		builder:    builder,
		reports:    reports,
		reportDir:  reportDir,
		runAt:      runAt,
		scheduler:  gocron.NewScheduler(time.Local),
	}
}

// Start runs an initial reconciliation, then schedules the daily runs and
// the staleness monitor.
func (s *Scheduler) Start() error {
	// Initial run
	if err := s.runReconciliation(); err != nil {
		logging.Error("Failed to perform initial reconciliation", "error", err)
		return fmt.Errorf("initial reconciliation failed: %w", err)
	}

	_, err := s.scheduler.Every(1).Days().At(s.runAt).Do(func() {
		if err := s.runReconciliation(); err != nil {
			logging.Error("Failed to run reconciliation", "error", err)
		}
	})

	if err != nil {
		logging.Error("Failed to schedule reconciliation runs", "error", err)
		return fmt.Errorf("failed to schedule reconciliation runs: %w", err)
	}

	s.scheduler.StartAsync()

	// Start health monitoring
	s.startHealthMonitoring()

	return nil
}

// RunOnce performs a single reconciliation with its run artifacts and
// returns without scheduling further runs.
func (s *Scheduler) RunOnce() error {
	return s.runReconciliation()
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// runReconciliation performs one complete run: parse, validate, match, swap
// the snapshot, then write reports and extension content.
func (s *Scheduler) runReconciliation() error {
	// Prevent concurrent runs
	if !s.dataStore.BeginUpdate() {
		logging.Info("Reconciliation already in progress, skipping...")
		return nil
	}
	defer s.dataStore.EndUpdate()

	logging.Info(fmt.Sprintf("Starting reconciliation at: %s", time.Now().Format(time.RFC3339)))
	start := time.Now()
	ctx := context.Background()

	pharmaceuticals, err := s.parser.ParseAll(ctx)
	if err != nil {
		logging.Error("Failed to parse registry extract", "error", err)
		return fmt.Errorf("failed to parse registry extract: %w", err)
	}

	validator := validation.NewDataValidator()
	quality := validator.ReportDataQuality(pharmaceuticals)

	// Log duplicate drug ids
	if len(quality.DuplicateDrugIDs) > 0 {
		logging.Warn("Duplicate drug ids detected",
			"total", len(quality.DuplicateDrugIDs),
			"drug_ids", quality.DuplicateDrugIDs,
		)
	}

	if quality.RecordsWithoutComponents > 0 {
		logging.Warn("Records without components",
			"count", quality.RecordsWithoutComponents,
		)
	}

	if quality.RecordsWithoutDoseForm > 0 {
		logging.Warn("Records without a dose form",
			"count", quality.RecordsWithoutDoseForm,
		)
	}

	if quality.RecordsWithoutNationalNames > 0 {
		logging.Warn("Records with incomplete national names",
			"count", quality.RecordsWithoutNationalNames,
		)
	}

	result, err := s.reconciler.Run(ctx, pharmaceuticals)
	if err != nil {
		logging.Error("Reconciliation pipeline failed", "error", err)
		return fmt.Errorf("reconciliation pipeline failed: %w", err)
	}

	// Atomic swap using the injected data store
	s.dataStore.UpdateResult(result)

	s.writeRunArtifacts(ctx, result)

	elapsed := time.Since(start)
	logging.Info("Reconciliation run completed", "duration", elapsed.String(), "pharmaceutical_count", len(pharmaceuticals))

	return nil
}

// writeRunArtifacts writes the CSV reports and authors extension content for
// unresolved records. Artifact failures are logged, not fatal: the snapshot
// already swapped and the API keeps serving it.
func (s *Scheduler) writeRunArtifacts(ctx context.Context, result *match.ReconciliationResult) {
	if s.reports != nil {
		if err := s.reports.WriteAll(result); err != nil {
			logging.Error("Failed to write run reports", "error", err)
		}
	}

	if s.builder != nil {
		content, err := s.builder.Build(ctx, result)
		if err != nil {
			logging.Error("Failed to author extension content", "error", err)
			return
		}
		if len(content.Concepts) == 0 {
			return
		}
		if err := content.WriteFiles(s.reportDir, result.StartedAt); err != nil {
			logging.Error("Failed to write extension files", "error", err)
		}
	}
}

// startHealthMonitoring monitors the freshness of the snapshot
func (s *Scheduler) startHealthMonitoring() {
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()

		for range ticker.C {
			lastUpdate := s.dataStore.GetLastUpdated()
			if time.Since(lastUpdate) > 25*time.Hour {
				logging.Warn("Snapshot hasn't been refreshed in over 25 hours")
			}
		}
	}()
}
