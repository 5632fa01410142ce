// Gradewatch - Grading anomaly detection for course teams.
// Copyright (c) 2025 open-courseware
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/open-courseware/gradewatch/internal/analyzer"
	"github.com/open-courseware/gradewatch/internal/api"
	"github.com/open-courseware/gradewatch/internal/bus"
	"github.com/open-courseware/gradewatch/internal/cache"
	"github.com/open-courseware/gradewatch/internal/domain"
	"github.com/open-courseware/gradewatch/internal/report"
	"github.com/open-courseware/gradewatch/internal/repository"
	"github.com/open-courseware/gradewatch/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("GRADEWATCH_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting gradewatch",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("GRADEWATCH_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize custom risk factor engine
	factors, err := analyzer.NewFactorEngine()
	if err != nil {
		slog.Error("failed to initialize factor engine", "error", err)
		os.Exit(1)
	}
	defer factors.Close()

	// Load custom factors from database (no hardcoded defaults - configure via API)
	if err := loadFactorsFromDatabase(ctx, repo, factors); err != nil {
		slog.Error("failed to load risk factors", "error", err)
		os.Exit(1)
	}
	slog.Info("factor engine initialized", "factor_count", factors.FactorCount())

	// Initialize report assembler
	assembler := report.NewAssembler(cfg.Analysis, factors)
	slog.Info("report assembler initialized",
		"severity_threshold", cfg.Analysis.SeverityThreshold,
		"outlier_threshold", cfg.Analysis.OutlierThreshold,
		"cv_threshold", cfg.Analysis.CVThreshold,
	)

	// Initialize async Worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("GRADEWATCH_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, repo, cacheImpl, assembler)

		// Get course IDs to process (from environment or default)
		courseIDs := []string{}
		if envCourses := os.Getenv("GRADEWATCH_COURSES"); envCourses != "" {
			courseIDs = strings.Split(envCourses, ",")
		}

		workerCfg := worker.Config{
			CourseIDs: courseIDs,
		}

		if err := asyncWorker.Start(workerCfg); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started", "course_count", len(courseIDs))
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, factors, assembler, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("gradewatch is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("gradewatch shutdown complete")
}

// loadFactorsFromDatabase loads each course's custom risk factors into the
// engine. All factors are configured via POST /factors - no hardcoded
// defaults. A missing table or empty set is not fatal.
func loadFactorsFromDatabase(ctx context.Context, repo domain.Repository, engine *analyzer.FactorEngine) error {
	courses := strings.Split(os.Getenv("GRADEWATCH_COURSES"), ",")

	total := 0
	for _, courseID := range courses {
		if courseID == "" {
			continue
		}
		dbFactors, err := repo.ListRiskFactors(ctx, courseID)
		if err != nil {
			slog.Warn("failed to list risk factors from database",
				"course_id", courseID,
				"error", err,
			)
			continue
		}
		if err := engine.LoadFactors(dbFactors); err != nil {
			return err
		}
		total += len(dbFactors)
	}

	if total > 0 {
		slog.Info("loaded risk factors from database", "count", total)
	} else {
		slog.Info("no risk factors in database - configure via POST /factors API")
	}
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║              GRADEWATCH                   ║")
	fmt.Println("  ║     Grading Anomaly Detection Engine      ║")
	fmt.Println("  ║      Every grade, fairly given.           ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST  /assignments                    - Create an assignment")
	fmt.Println("    POST  /assignments/{id}/submissions   - Record a graded submission")
	fmt.Println("    POST  /assignments/{id}/analyze       - Run anomaly analysis")
	fmt.Println("    GET   /assignments/{id}/report        - Latest anomaly report")
	fmt.Println("    GET   /reports/{id}                   - Get report by ID")
	fmt.Println("    PATCH /reports/{id}/status            - Review a report")
	fmt.Println("    GET   /factors                        - List custom risk factors")
	fmt.Println("    POST  /factors                        - Create a custom risk factor")
	fmt.Println("    POST  /factors/reload                 - Hot-reload factors from database")
	fmt.Println("    GET   /health                         - Health check")
	fmt.Println()
}
