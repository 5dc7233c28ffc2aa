package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/zimmerman-team/the-data-explorer-backend/internal/config"
	"github.com/zimmerman-team/the-data-explorer-backend/internal/datasets"
	"github.com/zimmerman-team/the-data-explorer-backend/internal/fetch"
	"github.com/zimmerman-team/the-data-explorer-backend/internal/logger"
	"github.com/zimmerman-team/the-data-explorer-backend/internal/metrics"
	"github.com/zimmerman-team/the-data-explorer-backend/internal/registry"
	"github.com/zimmerman-team/the-data-explorer-backend/internal/scheduler"
	"github.com/zimmerman-team/the-data-explorer-backend/internal/server"
	"github.com/zimmerman-team/the-data-explorer-backend/internal/store"
	"github.com/zimmerman-team/the-data-explorer-backend/internal/workers"
)

var (
	serveConfigPath string
	serveLogLevel   string
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the backend (main command)",
	Long: `Start the Data Explorer backend with the specified configuration.
This initializes all components (logger, dataset store, refresh manager,
worker pool, scheduler, HTTP server) and handles graceful shutdown.

The serve command is the main entry point for running the backend.`,
	Run: serveHandler,
}

func serveHandler(cmd *cobra.Command, args []string) {
	// Load .env file if exists
	if err := config.LoadEnvOptional("./.env"); err != nil {
		fmt.Printf("❌ Failed to load .env file: %v\n", err)
		os.Exit(1)
	}

	configPath := serveConfigPath
	if configPath == "" {
		configPath = config.DefaultConfigPath
	}

	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		fmt.Printf("❌ Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Override log level if flag is set
	if serveLogLevel != "" {
		cfg.Logging.Level = serveLogLevel
	}

	if errors := cfg.Validate(); len(errors) > 0 {
		fmt.Printf("❌ Configuration validation failed:\n")
		for _, e := range errors {
			fmt.Printf("  - %v\n", e)
		}
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		fmt.Printf("❌ Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	log.Info("🚀 Starting Data Explorer backend",
		logger.Field{Key: "version", Value: Version},
		logger.Field{Key: "git_commit", Value: GitCommit},
		logger.Field{Key: "config", Value: configPath},
		logger.Field{Key: "listen", Value: cfg.Server.Listen},
		logger.Field{Key: "staging", Value: cfg.Staging.Path},
		logger.Field{Key: "storage", Value: cfg.Storage.Path},
	)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Dataset catalog
	reg, err := registry.Load(cfg.Datasets.RegistryPath)
	if err != nil {
		log.Error("Failed to load dataset registry", err)
		os.Exit(1)
	}
	log.Info("✅ Dataset registry loaded",
		logger.Field{Key: "datasets", Value: reg.Len()})

	// Storage
	db, err := store.NewDB(cfg.Storage.Path)
	if err != nil {
		log.Error("Failed to open dataset store", err)
		os.Exit(1)
	}
	if err := store.RunMigrations(db.Writer); err != nil {
		log.Error("Failed to run migrations", err)
		db.Close()
		os.Exit(1)
	}
	st := store.New(db)
	log.Info("✅ Dataset store ready",
		logger.Field{Key: "path", Value: cfg.Storage.Path})

	// Metrics
	promRegistry := prometheus.NewRegistry()
	m := metrics.New("dx_backend", promRegistry)

	// Refresh pipeline
	downloader := fetch.NewDownloader(cfg.Fetch, log)
	pre := datasets.NewStorePreprocessor(st, m, log)
	meta := datasets.NewMetadataStore(cfg.Staging.Path, log)
	manager := datasets.NewManager(reg, downloader, pre, meta, m, cfg.Staging.Path, log)

	// Worker pool executing refresh tasks
	executor := func(taskCtx context.Context, task workers.Task) error {
		if task.Dataset != "" {
			return manager.ForceUpdate(taskCtx, task.Dataset)
		}
		return manager.RefreshAll(taskCtx)
	}
	pool := workers.NewPool(cfg.Workers.PoolSize, cfg.Workers.QueueSize, executor, log)
	pool.Start()

	go func() {
		for result := range pool.Results() {
			if result.Error != nil {
				log.Error("refresh task failed", result.Error,
					logger.Field{Key: "task_id", Value: result.TaskID},
					logger.Field{Key: "duration", Value: result.Duration.Round(time.Millisecond).String()})
				continue
			}
			log.Info("refresh task finished",
				logger.Field{Key: "task_id", Value: result.TaskID},
				logger.Field{Key: "duration", Value: result.Duration.Round(time.Millisecond).String()})
		}
	}()

	// Scheduler
	var sched *scheduler.Scheduler
	if cfg.Refresh.Enabled {
		sched, err = scheduler.New(cfg.Refresh, pool, log)
		if err != nil {
			log.Error("Failed to create scheduler", err)
			os.Exit(1)
		}
		if err := sched.Start(ctx); err != nil {
			log.Error("Failed to start scheduler", err)
			os.Exit(1)
		}
		log.Info("✅ Refresh scheduler enabled",
			logger.Field{Key: "schedule", Value: cfg.Refresh.Schedule})
	} else {
		log.Warn("Refresh scheduler is disabled")
	}

	// HTTP server
	srv := server.New(server.Options{
		Config:   *cfg,
		Manager:  manager,
		Store:    st,
		Gatherer: promRegistry,
		Logger:   log,
	})

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	log.Info("✅ Data Explorer backend is running")

	// Wait for shutdown signal or server failure
	select {
	case sig := <-sigChan:
		log.Info("⏳ Received shutdown signal",
			logger.Field{Key: "signal", Value: sig.String()})
	case err := <-serverErr:
		if err != nil {
			log.Error("HTTP server failed", err)
		}
	}

	// Graceful shutdown
	log.Info("🛑 Shutting down backend...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to shut down HTTP server", err)
	}

	if sched != nil && sched.IsStarted() {
		if err := sched.Stop(); err != nil {
			log.Error("Failed to stop scheduler", err)
		}
	}

	pool.Stop()

	if err := db.Close(); err != nil {
		log.Error("Failed to close dataset store", err)
	}

	log.Info("👋 Backend stopped gracefully")
}

func init() {
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "", "Path to configuration file (default: ./config.toml)")
	serveCmd.Flags().StringVarP(&serveLogLevel, "log-level", "l", "", "Override log level (debug, info, warn, error)")
}
