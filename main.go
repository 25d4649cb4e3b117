package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ihtsdo/drugmatch/config"
	"github.com/ihtsdo/drugmatch/create"
	"github.com/ihtsdo/drugmatch/data"
	"github.com/ihtsdo/drugmatch/health"
	"github.com/ihtsdo/drugmatch/logging"
	"github.com/ihtsdo/drugmatch/match"
	"github.com/ihtsdo/drugmatch/registry"
	"github.com/ihtsdo/drugmatch/report"
	"github.com/ihtsdo/drugmatch/scheduler"
	"github.com/ihtsdo/drugmatch/server"
	"github.com/ihtsdo/drugmatch/snomed"
	"github.com/ihtsdo/drugmatch/validation"
)

func init() {
	// Read the env variables from the working directory, falling back to the
	// executable directory
	if err := godotenv.Load(); err != nil {
		ex, err := os.Executable()
		if err != nil {
			fmt.Println("Failed to get executable path:", err)
			os.Exit(1)
		}

		if err := os.Chdir(filepath.Dir(ex)); err != nil {
			fmt.Println("Failed to change directory:", err)
			os.Exit(1)
		}
	}
}

func main() {
	logging.InitLogger("logs")

	if err := config.ValidateAllEnvVars(); err != nil {
		logging.Error("Environment validation failed", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Error("Configuration loading failed", "error", err)
		os.Exit(1)
	}

	// Reinitialize with the configured retention and size limits
	logging.InitLoggerWithRetentionAndSize("logs", cfg.LogRetentionWeeks, cfg.MaxLogFileSize)

	// Terminology client and pipeline
	client := snomed.NewClient(cfg.SnomedBaseURL, cfg.SnomedBranch, cfg.SnomedRateLimit)
	validator := match.ValidatorFor(cfg.NationalNamespaceID, cfg.NationalLocale)
	attrs := match.AttributeConfig{
		HasDoseFormID:         cfg.HasDoseFormID,
		HasActiveIngredientID: cfg.HasActiveIngredientID,
		HasUnitID:             cfg.HasUnitID,
	}
	reconciler, err := match.NewReconciler(client, validator, attrs, cfg.NationalLocale, cfg.Workers)
	if err != nil {
		logging.Error("Reconciler setup failed", "error", err)
		os.Exit(1)
	}

	// Registry source: remote URL when configured, local file otherwise
	source := cfg.RegistryFile
	if cfg.RegistryURL != "" {
		source = cfg.RegistryURL
	}
	parser := registry.NewParser(source, cfg.RegistryFile)

	// Run artifacts
	namer := match.NewTermMatcher(client, cfg.NationalLocale, cfg.Workers)
	builder := create.NewExtensionBuilder(client, namer, cfg.NationalNamespaceID, cfg.ExtensionModuleID, cfg.NationalLocale, cfg.NationalRefsetID, attrs)
	reports := report.NewWriter(cfg.ReportDir)

	dataContainer := data.NewDataContainer()
	dataContainer.SetServerStartTime(time.Now())

	dataValidator := validation.NewDataValidator()
	healthChecker := health.NewHealthChecker(dataContainer, cfg.ReconcileAt)

	sched := scheduler.NewScheduler(dataContainer, parser, reconciler, builder, reports, cfg.ReportDir, cfg.ReconcileAt)

	// One-shot mode: single reconciliation with reports and extension
	// files, no HTTP server
	if cfg.RunOnce {
		if err := sched.RunOnce(); err != nil {
			logging.Error("Reconciliation run failed", "error", err)
			os.Exit(1)
		}
		logging.Info("Single reconciliation run completed, exiting")
		return
	}

	go func() {
		if err := sched.Start(); err != nil {
			logging.Error("Scheduler failed to start", "error", err)
			os.Exit(1)
		}
	}()

	srv := server.NewServer(cfg, dataContainer, dataValidator, healthChecker)

	// Channel to listen for interrupt signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Start the server in a goroutine
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Block until a signal is received
	<-quit

	sched.Stop()

	// Create a context with timeout for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("Shutdown failed", "error", err)
		os.Exit(1)
	}
}
