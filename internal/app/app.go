// Package app wires the database-backed evaluation stack shared by the HTTP
// server and the CLI.
package app

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/iliaanaa/genekor/internal/api"
	"github.com/iliaanaa/genekor/internal/database"
	"github.com/iliaanaa/genekor/internal/domain"
	"github.com/iliaanaa/genekor/internal/repository"
	"github.com/iliaanaa/genekor/internal/results"
	"github.com/iliaanaa/genekor/internal/service"
	"github.com/iliaanaa/genekor/pkg/external"
)

// App holds the long-lived collaborators of one process.
type App struct {
	Config    *domain.Config
	DB        *database.DB
	Variants  *repository.VariantRepository
	Results   *results.Store
	Cache     *external.ResultCache
	Indexes   *service.IndexCache
	Evaluator *service.Evaluator
	Pipeline  *service.Pipeline

	logger *logrus.Logger
}

// Open connects to PostgreSQL, applies migrations, opens the results store
// and, when a Redis URL is configured, the evaluation cache. A Redis outage
// is logged and the pipeline runs uncached.
func Open(ctx context.Context, cfg *domain.Config, logger *logrus.Logger) (*App, error) {
	a := &App{Config: cfg, logger: logger}

	db, err := database.NewConnection(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	a.DB = db

	if err := database.Migrate(database.URL(cfg.Database), cfg.Database.MigrationsPath, logger); err != nil {
		a.Close()
		return nil, err
	}
	a.Variants = repository.NewVariantRepository(db.Pool, logger)

	resultsCfg := cfg.Results
	if resultsCfg.Driver == "postgres" && resultsCfg.DSN == "" {
		resultsCfg.DSN = database.URL(cfg.Database)
	}
	store, err := results.Open(resultsCfg, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("opening results store: %w", err)
	}
	a.Results = store

	if cfg.Cache.RedisURL != "" {
		cache, err := external.NewResultCache(cfg.Cache, logger)
		if err != nil {
			logger.WithError(err).Warn("Evaluation cache unavailable, continuing without it")
		} else {
			a.Cache = cache
		}
	}

	a.Indexes = service.NewIndexCache(cfg.Cache.IndexCacheSize, cfg.Cache.DefaultTTL, logger)
	a.Evaluator = service.NewEvaluatorFromConfig(cfg.Evaluation, logger)

	opts := []service.PipelineOption{
		service.WithEvidenceSink(a.Variants),
		service.WithReleaseTracker(a.Variants),
		service.WithWorkers(cfg.Evaluation.Workers),
	}
	if a.Cache != nil {
		opts = append(opts, service.WithEvaluationCache(a.Cache))
	}
	a.Pipeline = service.NewPipeline(a.Variants, a.Evaluator, a.Indexes, logger, opts...)

	return a, nil
}

// NewServer builds the HTTP API over the app's collaborators.
func (a *App) NewServer(cm domain.ConfigManager) *api.Server {
	opts := []api.Option{
		api.WithRunRecorder(a.Results),
		api.WithHealthCheck("database", a.DB.Health),
		api.WithHealthCheck("results", a.Results.Ping),
	}
	if a.Cache != nil {
		opts = append(opts, api.WithHealthCheck("cache", a.Cache.Ping))
	}
	return api.NewServer(cm, a.Variants, a.Pipeline, a.logger, opts...)
}

// Close releases every open connection.
func (a *App) Close() {
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			a.logger.WithError(err).Warn("Closing evaluation cache")
		}
	}
	if a.Results != nil {
		if err := a.Results.Close(); err != nil {
			a.logger.WithError(err).Warn("Closing results store")
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

// Serve runs the HTTP API until ctx is cancelled.
func Serve(ctx context.Context, cm domain.ConfigManager, logger *logrus.Logger) error {
	a, err := Open(ctx, cm.GetConfig(), logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.NewServer(cm).Start(ctx)
}
