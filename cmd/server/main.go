package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mescon/Melodarr/internal/api"
	"github.com/mescon/Melodarr/internal/clock"
	"github.com/mescon/Melodarr/internal/config"
	"github.com/mescon/Melodarr/internal/db"
	"github.com/mescon/Melodarr/internal/eventbus"
	"github.com/mescon/Melodarr/internal/ingest"
	"github.com/mescon/Melodarr/internal/integration"
	"github.com/mescon/Melodarr/internal/logger"
	"github.com/mescon/Melodarr/internal/metadata"
	"github.com/mescon/Melodarr/internal/metrics"
	"github.com/mescon/Melodarr/internal/notifier"
	"github.com/mescon/Melodarr/internal/services"
)

func main() {
	// Define command line flags (these override environment variables)
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.BoolVar(showVersion, "v", false, "Print version and exit (shorthand)")

	// Configuration flags - all can also be set via environment variables (MELODARR_*)
	flagPort := flag.String("port", "", "HTTP server port (env: MELODARR_PORT, default: 3080)")
	flagLogLevel := flag.String("log-level", "", "Log level: debug, info, warn, error (env: MELODARR_LOG_LEVEL, default: info)")
	flagDataDir := flag.String("data-dir", "", "Data directory path (env: MELODARR_DATA_DIR)")
	flagDatabasePath := flag.String("database-path", "", "Database file path (env: MELODARR_DATABASE_PATH)")
	flagMinScanInterval := flag.Duration("min-scan-interval", 0, "Minimum time between scans (env: MELODARR_MIN_SCAN_INTERVAL, default: 30s)")
	flagDebounceWindow := flag.Duration("debounce-window", 0, "Quiet period before watcher-triggered rescans (env: MELODARR_DEBOUNCE_WINDOW, default: 2s)")
	flagWatchEnabled := flag.Bool("watch", true, "Enable filesystem watchers (env: MELODARR_WATCH_ENABLED, default: true)")
	flagRetentionDays := flag.Int("retention-days", -1, "Days to keep old events and scan history, 0 to disable pruning (env: MELODARR_RETENTION_DAYS, default: 90)")

	flag.Parse()

	if *showVersion {
		fmt.Printf("Melodarr %s\n", config.Version)
		os.Exit(0)
	}

	// Load configuration from environment variables (initial load, refreshed after flags)
	config.Load()

	// Apply command-line flag overrides
	flagOverrides := config.FlagOverrides{
		Port:            flagPort,
		LogLevel:        flagLogLevel,
		DataDir:         flagDataDir,
		DatabasePath:    flagDatabasePath,
		MinScanInterval: flagMinScanInterval,
		DebounceWindow:  flagDebounceWindow,
	}
	// Only override the watch setting when the flag was given explicitly
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "watch" {
			flagOverrides.WatchEnabled = flagWatchEnabled
		}
	})
	// Special handling for retention days: -1 means not set (use default), 0 means disable
	if *flagRetentionDays >= 0 {
		flagOverrides.RetentionDays = flagRetentionDays
	}
	config.ApplyFlags(flagOverrides)

	// Refresh config after applying flags
	cfg := config.Get()

	// Initialize logger with configured log directory
	logger.Init(cfg.LogDir)
	logger.SetLevel(cfg.LogLevel)

	logger.Infof("========================================")
	logger.Infof("Starting Melodarr %s...", config.Version)
	logger.Infof("Music library ingestion and indexing")
	logger.Infof("========================================")

	logger.Infof("Configuration:")
	logger.Infof("  Port: %s", cfg.Port)
	logger.Infof("  Log Level: %s", cfg.LogLevel)
	logger.Infof("  Profile: %s", cfg.ProfileID)
	logger.Infof("  Data Directory: %s", cfg.DataDir)
	logger.Infof("  Database: %s", cfg.DatabasePath)
	logger.Infof("  Log Directory: %s", cfg.LogDir)
	logger.Infof("  Audio Extensions: %s", strings.Join(cfg.AudioExtensions, ", "))
	logger.Infof("  Min Scan Interval: %s", cfg.MinScanInterval)
	logger.Infof("  Debounce Window: %s", cfg.DebounceWindow)
	logger.Infof("  Filesystem Watch: %v", cfg.WatchEnabled)
	logger.Infof("  Enrichment API: %s (%.1f req/s, burst %d, batch %d)",
		cfg.EnrichmentBaseURL, cfg.EnrichmentRateLimitRPS, cfg.EnrichmentRateLimitBurst, cfg.EnrichmentBatchSize)
	if cfg.ScanSchedule != "" {
		logger.Infof("  Scan Schedule: %s", cfg.ScanSchedule)
	} else {
		logger.Infof("  Scan Schedule: disabled")
	}
	if cfg.MaintenanceSchedule != "" {
		logger.Infof("  Maintenance Schedule: %s", cfg.MaintenanceSchedule)
	} else {
		logger.Infof("  Maintenance Schedule: disabled")
	}
	if cfg.RetentionDays > 0 {
		logger.Infof("  Data Retention: %d days", cfg.RetentionDays)
	} else {
		logger.Infof("  Data Retention: disabled (no automatic pruning)")
	}

	// Initialize Database
	logger.Infof("Initializing database: %s", cfg.DatabasePath)
	repo, err := db.NewRepository(cfg.DatabasePath)
	if err != nil {
		logger.Errorf("Failed to initialize database: %v", err)
		os.Exit(1)
	}
	logger.Infof("✓ Database initialized successfully")

	// Create a database backup on startup
	if backupPath, err := repo.Backup(cfg.DatabasePath); err != nil {
		logger.Errorf("Failed to create startup backup: %v", err)
	} else {
		logger.Infof("✓ Database backup created: %s", backupPath)
	}

	// Periodic WAL checkpoints keep the write-ahead log from growing unbounded
	stopCheckpoint := repo.StartPeriodicCheckpoint(15 * time.Minute)

	// Initialize Event Bus
	logger.Infof("Initializing Event Bus...")
	eb := eventbus.NewEventBus(repo.DB)
	logger.Infof("✓ Event Bus initialized")

	// Library configuration (roots, blacklist, track index)
	library := services.NewLibraryService(repo, cfg.ProfileID)
	logger.Infof("✓ Library Service (roots, blacklist, track index)")

	// Metadata extraction from audio file tags
	extractor := metadata.NewTagExtractor()
	logger.Infof("✓ Tag Extractor (%s)", strings.Join(cfg.AudioExtensions, ", "))

	// Artist enrichment client
	enrichment := integration.NewMusicBrainzClient(repo, eb,
		cfg.EnrichmentBaseURL, cfg.EnrichmentRateLimitRPS, cfg.EnrichmentRateLimitBurst)
	logger.Infof("✓ Enrichment Client (MusicBrainz)")

	// Ingestion pipeline: walker, classifier, coordinator, watcher, debouncer
	logger.Infof("Initializing ingestion pipeline...")
	walker := ingest.NewWalker(cfg.AudioExtensions)
	classifier := ingest.NewClassifier(library, extractor)
	realClock := clock.NewRealClock()
	coordinator := ingest.NewCoordinator(walker, classifier, library,
		realClock, eb, repo, cfg.MinScanInterval)
	pipeline := ingest.NewPipeline(ingest.PipelineOptions{
		Coordinator:    coordinator,
		Walker:         walker,
		Source:         library,
		Clock:          realClock,
		Publisher:      eb,
		Maintainer:     library,
		Enricher:       enrichment,
		DebounceWindow: cfg.DebounceWindow,
		EnrichBatch:    cfg.EnrichmentBatchSize,
	})
	logger.Infof("✓ Ingestion Pipeline (scan, classify, index)")

	// Initialize Notifier Service
	logger.Infof("Initializing Notification Service...")
	notifierService := notifier.New(repo, eb)
	if err := notifierService.Start(); err != nil {
		logger.Errorf("Failed to start notification service: %v", err)
		// Non-fatal - continue without notifications
	} else {
		logger.Infof("✓ Notification Service (alerts for events)")
	}

	// Initialize Metrics Service (Prometheus metrics)
	logger.Infof("Initializing Metrics Service...")
	metricsService := metrics.NewMetricsService(eb)
	metricsService.Start()
	logger.Infof("✓ Metrics Service (Prometheus endpoint at /metrics)")

	// Scheduler: cron-based scans and database maintenance
	schedulerService := services.NewSchedulerService(repo, pipeline, cfg.DatabasePath, cfg.RetentionDays)
	if cfg.ScanSchedule != "" {
		if err := schedulerService.ScheduleScans(cfg.ScanSchedule); err != nil {
			logger.Errorf("Invalid scan schedule %q: %v", cfg.ScanSchedule, err)
			os.Exit(1)
		}
	}
	if cfg.MaintenanceSchedule != "" {
		if err := schedulerService.ScheduleMaintenance(cfg.MaintenanceSchedule); err != nil {
			logger.Errorf("Invalid maintenance schedule %q: %v", cfg.MaintenanceSchedule, err)
			os.Exit(1)
		}
	}
	schedulerService.Start()
	logger.Infof("✓ Scheduler Service (cron-based scans and maintenance)")

	// Start filesystem watchers over the configured roots
	if cfg.WatchEnabled {
		if err := pipeline.StartWatching(); err != nil {
			logger.Errorf("Failed to start filesystem watcher: %v", err)
			// Non-fatal - scans still work on schedule or on demand
		}
	}

	// Start API Server
	logger.Infof("Initializing REST API and WebSocket server...")
	apiServer := api.NewRESTServer(api.ServerDeps{
		Repo:       repo,
		EventBus:   eb,
		Pipeline:   pipeline,
		Scheduler:  schedulerService,
		Notifier:   notifierService,
		Enrichment: enrichment,
		Metrics:    metricsService,
		ProfileID:  cfg.ProfileID,
	})
	go func() {
		addr := ":" + cfg.Port
		if err := apiServer.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("Failed to start API server: %v", err)
			os.Exit(1)
		}
	}()

	logger.Infof("========================================")
	logger.Infof("✓ Melodarr %s started successfully", config.Version)
	logger.Infof("✓ Server listening on port %s", cfg.Port)
	logger.Infof("========================================")

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Infof("========================================")
	logger.Infof("Received signal %v, initiating graceful shutdown...", sig)
	logger.Infof("========================================")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Shutdown in reverse order of startup
	logger.Infof("Stopping API Server...")
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("API Server shutdown error: %v", err)
	} else {
		logger.Infof("✓ API Server stopped")
	}

	logger.Infof("Stopping Ingestion Pipeline (watcher and scans)...")
	pipeline.Shutdown()
	logger.Infof("✓ Ingestion Pipeline stopped")

	logger.Infof("Stopping Scheduler Service...")
	schedulerService.Stop()
	logger.Infof("✓ Scheduler Service stopped")

	logger.Infof("Stopping Notification Service...")
	notifierService.Stop()
	logger.Infof("✓ Notification Service stopped")

	logger.Infof("Stopping Event Bus...")
	eb.Shutdown()
	logger.Infof("✓ Event Bus stopped")

	stopCheckpoint()

	logger.Infof("Closing database connection...")
	if err := repo.GracefulClose(); err != nil {
		logger.Errorf("Failed to close database connection: %v", err)
	} else {
		logger.Infof("✓ Database connection closed")
	}

	logger.Infof("========================================")
	logger.Infof("✓ Melodarr shutdown complete")
	logger.Infof("========================================")
}
