package main

import (
	"fmt"
	"log"
	"os"

	"github.com/pmaffi/jira-flow-metrics/internal/api"
	"github.com/pmaffi/jira-flow-metrics/internal/collector"
	"github.com/pmaffi/jira-flow-metrics/internal/config"
	"github.com/pmaffi/jira-flow-metrics/internal/jobs"
	"github.com/pmaffi/jira-flow-metrics/internal/logger"
	"github.com/pmaffi/jira-flow-metrics/internal/service"
	"github.com/pmaffi/jira-flow-metrics/internal/storage"
	"github.com/pmaffi/jira-flow-metrics/internal/storage/postgres"
	"github.com/pmaffi/jira-flow-metrics/internal/storage/sqlite"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logg := logger.New(cfg)

	// Initialize storage
	var store storage.Storage
	switch cfg.StorageType {
	case "postgres":
		store, err = postgres.NewPostgresStorage(cfg.PostgresURL)
		if err != nil {
			log.Fatalf("Failed to initialize PostgreSQL storage: %v", err)
		}
	default:
		store, err = sqlite.NewSQLiteStorage(cfg.SQLitePath)
		if err != nil {
			log.Fatalf("Failed to initialize SQLite storage: %v", err)
		}
	}
	defer store.Close()

	// Wire collection, metrics, and forecasting
	coll := collector.NewJiraCollector(cfg, logg)
	svc := service.New(cfg, coll, store, logg)

	// Scheduled collection, if configured
	if cr := jobs.NewCron(cfg, logg, svc); cr != nil {
		cr.Start()
		defer cr.Stop()
		logg.Info().Str("spec", cfg.CollectCron).Msg("scheduled collection enabled")
	}

	// Setup routes
	handler := api.NewHandler(svc)
	router := api.SetupRoutes(handler)

	// Start server
	addr := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	logg.Info().Str("addr", addr).Str("storage", cfg.StorageType).Msg("starting API server")

	if err := router.Run(addr); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start server: %v\n", err)
		os.Exit(1)
	}
}
