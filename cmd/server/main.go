package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/biostack-engine/internal/api"
	"github.com/biostack-engine/internal/audit"
	"github.com/biostack-engine/internal/cache"
	"github.com/biostack-engine/internal/catalog"
	"github.com/biostack-engine/internal/config"
	"github.com/biostack-engine/internal/database"
	"github.com/biostack-engine/internal/domain"
	"github.com/biostack-engine/internal/feedback"
	"github.com/biostack-engine/internal/pipeline"
	"github.com/biostack-engine/internal/ruleset"
	"github.com/biostack-engine/pkg/labs"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := newLogger(&cfg.Logging)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Catalog source
	source, db, err := newCatalogSource(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to open catalog source: %v", err)
	}
	if db != nil {
		defer db.Close()
	}

	store := catalog.NewStore(source, logger)
	if err := store.Reload(ctx); err != nil {
		log.Fatalf("Failed to load catalog: %v", err)
	}
	defer store.Close()

	// Audit store and async writer
	audits, err := newAuditStore(cfg, configManager.GetDatabaseConnectionString())
	if err != nil {
		log.Fatalf("Failed to open audit store: %v", err)
	}
	writer := audit.NewWriter(audits, cfg.Audit.QueueSize, logger)
	defer writer.Close()

	// Decision pipeline; run records fan out to the audit writer and,
	// once the server exists, the admin watch hub.
	emitters := &fanout{targets: []pipeline.Emitter{writer}}
	p, err := pipeline.New(ruleset.Default(), store, emitters, pipeline.Options{
		DefaultDeadline: cfg.Pipeline.DefaultDeadline,
		MaxDeadline:     cfg.Pipeline.MaxDeadline,
		TranslatorMemo:  cfg.Pipeline.TranslatorMemo,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}

	deps := api.Deps{
		Pipeline: p,
		Store:    store,
		Audits:   audits,
		Logger:   logger,
	}

	if setter, ok := source.(api.StatusSetter); ok {
		deps.Statuses = setter
	}

	// Optional Redis result cache
	if cfg.Cache.RedisURL != "" {
		resultCache, err := cache.NewResultCache(cfg.Cache, logger)
		if err != nil {
			logger.WithError(err).Warn("Result cache unavailable, continuing without caching")
		} else {
			deps.Cache = resultCache
			defer resultCache.Close()
		}
	}

	// Outcome report store
	if cfg.Feedback.Driver != "none" && cfg.Feedback.Driver != "" {
		outcomes, err := newFeedbackStore(cfg, configManager.GetDatabaseConnectionString())
		if err != nil {
			log.Fatalf("Failed to open feedback store: %v", err)
		}
		deps.Feedback = outcomes
		defer outcomes.Close()
	}

	// Optional lab-provider integration
	if cfg.Labs.BaseURL != "" {
		client := labs.NewClient(labs.Config{
			BaseURL:   cfg.Labs.BaseURL,
			APIKey:    cfg.Labs.APIKey,
			Timeout:   cfg.Labs.Timeout,
			RateLimit: cfg.Labs.RateLimit,
		})
		deps.Labs = labs.NewService(client, labs.NewAdapter(cfg.Labs.Provider))
	}

	server := api.NewServer(configManager, deps)
	emitters.add(server.Hub())

	logger.WithFields(logrus.Fields{
		"host":    cfg.Server.Host,
		"port":    cfg.Server.Port,
		"catalog": cfg.Catalog.Source,
		"audit":   cfg.Audit.Driver,
	}).Info("Starting BioStack protocol engine")

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		log.Fatalf("Server failed: %v", err)
	}

	logger.Info("Server stopped")
}

// newLogger builds the process logger from the logging section.
func newLogger(cfg *domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Output == "stderr" {
		logger.SetOutput(os.Stderr)
	} else {
		logger.SetOutput(os.Stdout)
	}
	return logger
}

// newCatalogSource opens the configured catalog backend. For postgres
// it also runs pending schema migrations and returns the pool so the
// caller can close it on shutdown.
func newCatalogSource(ctx context.Context, cfg *domain.Config, logger *logrus.Logger) (domain.CatalogSource, *database.DB, error) {
	switch cfg.Catalog.Source {
	case "postgres":
		runner, err := database.NewMigrationRunner(cfg.Database.URL(), database.DefaultMigrationsPath, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := runner.Up(ctx); err != nil {
			runner.Close()
			return nil, nil, err
		}
		runner.Close()

		db, err := database.NewConnection(ctx, database.FromDomain(&cfg.Database), logger)
		if err != nil {
			return nil, nil, err
		}
		return catalog.NewPostgresSource(db.Pool, logger), db, nil

	case "sqlite":
		source, err := catalog.NewSQLiteSource(cfg.Catalog.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		if err := source.SeedIfEmpty(ctx); err != nil {
			source.Close()
			return nil, nil, err
		}
		return source, nil, nil

	default:
		return catalog.NewStaticSource(catalog.Seed(), catalog.SeedVersion), nil, nil
	}
}

// newFeedbackStore opens the configured outcome-report backend.
func newFeedbackStore(cfg *domain.Config, connString string) (feedback.Store, error) {
	if cfg.Feedback.Driver == "postgres" {
		return feedback.NewPostgresStoreFromURL(connString)
	}
	return feedback.NewSQLiteStore(cfg.Feedback.SQLitePath)
}

// newAuditStore opens the configured audit backend.
func newAuditStore(cfg *domain.Config, connString string) (domain.AuditStore, error) {
	switch cfg.Audit.Driver {
	case "postgres":
		return audit.NewPostgresStoreFromURL(connString)
	case "sqlite":
		return audit.NewSQLiteStore(cfg.Audit.SQLitePath)
	default:
		return audit.NewNopStore(), nil
	}
}

// fanout forwards run records to every registered emitter.
type fanout struct {
	targets []pipeline.Emitter
}

func (f *fanout) add(e pipeline.Emitter) {
	f.targets = append(f.targets, e)
}

func (f *fanout) Emit(record *domain.RunRecord) {
	for _, target := range f.targets {
		target.Emit(record)
	}
}
