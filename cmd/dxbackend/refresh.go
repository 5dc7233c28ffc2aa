package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/zimmerman-team/the-data-explorer-backend/internal/config"
	"github.com/zimmerman-team/the-data-explorer-backend/internal/datasets"
	"github.com/zimmerman-team/the-data-explorer-backend/internal/fetch"
	"github.com/zimmerman-team/the-data-explorer-backend/internal/logger"
	"github.com/zimmerman-team/the-data-explorer-backend/internal/metrics"
	"github.com/zimmerman-team/the-data-explorer-backend/internal/registry"
	"github.com/zimmerman-team/the-data-explorer-backend/internal/store"
)

var refreshConfigPath string

// refreshCmd represents the refresh command
var refreshCmd = &cobra.Command{
	Use:   "refresh [dataset]",
	Short: "Run a dataset refresh once and exit",
	Long: `Download and preprocess The Global Fund datasets without starting
the server. With no argument every catalog dataset is refreshed; with a
dataset name only that dataset is updated, bypassing the hash check.`,
	Args: cobra.MaximumNArgs(1),
	Run:  refreshHandler,
}

func refreshHandler(cmd *cobra.Command, args []string) {
	if err := config.LoadEnvOptional("./.env"); err != nil {
		fmt.Printf("❌ Failed to load .env file: %v\n", err)
		os.Exit(1)
	}

	configPath := refreshConfigPath
	if configPath == "" {
		configPath = config.DefaultConfigPath
	}

	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		fmt.Printf("❌ Failed to load configuration: %v\n", err)
		os.Exit(1)
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

	reg, err := registry.Load(cfg.Datasets.RegistryPath)
	if err != nil {
		log.Error("Failed to load dataset registry", err)
		os.Exit(1)
	}

	db, err := store.NewDB(cfg.Storage.Path)
	if err != nil {
		log.Error("Failed to open dataset store", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := store.RunMigrations(db.Writer); err != nil {
		log.Error("Failed to run migrations", err)
		os.Exit(1)
	}
	st := store.New(db)

	m := metrics.New("dx_backend", prometheus.NewRegistry())
	downloader := fetch.NewDownloader(cfg.Fetch, log)
	pre := datasets.NewStorePreprocessor(st, m, log)
	meta := datasets.NewMetadataStore(cfg.Staging.Path, log)
	manager := datasets.NewManager(reg, downloader, pre, meta, m, cfg.Staging.Path, log)

	// Ctrl-C cancels the in-flight downloads.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if len(args) == 1 {
		if err := manager.ForceUpdate(ctx, args[0]); err != nil {
			log.Error("Dataset update failed", err,
				logger.Field{Key: "dataset", Value: args[0]})
			os.Exit(1)
		}
		log.Info("Dataset updated", logger.Field{Key: "dataset", Value: args[0]})
		return
	}

	if err := manager.RefreshAll(ctx); err != nil {
		log.Error("Dataset refresh failed", err)
		os.Exit(1)
	}
	log.Info("All datasets refreshed")
}

func init() {
	refreshCmd.Flags().StringVarP(&refreshConfigPath, "config", "c", "", "Path to configuration file (default: ./config.toml)")
}
