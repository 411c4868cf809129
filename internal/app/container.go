package app

import (
	"context"
	"fmt"
	"log"

	"feedsync/internal/config"
	"feedsync/internal/database"
	"feedsync/internal/database/migration"
	dbpostgres "feedsync/internal/database/postgres"
	"feedsync/internal/database/schema"
	"feedsync/internal/infrastructure/cache"
	"feedsync/internal/pipeline"
	"feedsync/internal/repository"
	"feedsync/internal/scraper"
	"feedsync/internal/usecase"
	"feedsync/internal/validation"
	"feedsync/internal/ws"
	"feedsync/migrations"
)

// Container holds the shared wiring for both binaries.
type Container struct {
	Config config.Config
	Logger *log.Logger

	DB    database.DB
	Cache *cache.Redis
	Hub   *ws.Hub

	Registry     *scraper.Registry
	Runs         *repository.PostgresRunRepository
	Queries      *repository.PostgresListingQueryRepository
	Store        *repository.PostgresListingRepository
	Orchestrator *pipeline.Orchestrator

	Scrape   *usecase.Scrape
	Listings *usecase.Listings
	Status   *usecase.Status
}

// NewContainer connects to Postgres, applies pending migrations, verifies
// the schema and builds the adapter registry. Redis is optional: when it is
// unreachable the cache degrades to a pass-through.
func NewContainer(ctx context.Context, cfg config.Config, logger *log.Logger) (*Container, error) {
	if logger == nil {
		logger = log.Default()
	}

	db, err := dbpostgres.Connect(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	c := &Container{Config: cfg, Logger: logger, DB: db}
	if err := c.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Container) init(ctx context.Context) error {
	cfg := c.Config

	r := migration.Runner{Dir: cfg.Database.MigrationsDir, FS: migrations.FS, Logger: c.Logger}
	if err := r.Run(ctx, c.DB.SQLDB()); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := schema.Check(ctx, c.DB); err != nil {
		return fmt.Errorf("schema check: %w", err)
	}

	sources, err := config.LoadSources(cfg.Scraper.SourcesFile)
	if err != nil {
		return err
	}
	c.Registry, err = scraper.NewDefaultRegistry(cfg.Scraper, sources, c.Logger)
	if err != nil {
		return err
	}

	validator := validation.New()
	c.Runs = repository.NewPostgresRunRepository(c.DB)
	c.Queries = repository.NewPostgresListingQueryRepository(c.DB)
	c.Store = repository.NewPostgresListingRepository(c.DB, validator, c.Logger)

	c.Orchestrator = pipeline.NewOrchestrator(pipeline.Params{
		Adapters:       c.Registry,
		Ledger:         c.Runs,
		Admitter:       validator,
		Store:          c.Store,
		AdapterTimeout: cfg.Scraper.AdapterTimeout,
		Logger:         c.Logger,
	})

	c.Cache = cache.NewRedis(cfg.Redis, c.Logger)
	c.Hub = ws.NewHub(c.Logger)

	c.Scrape = usecase.NewScrapeUsecase(c.Orchestrator, c.Runs, c.Registry, c.Cache, c.Hub, c.Logger)
	c.Listings = usecase.NewListingUsecase(c.Queries, c.Cache, c.Logger)
	c.Status = usecase.NewStatusUsecase(repository.NewPostgresStatusRepository(c.DB), c.Runs, c.DB, c.Cache, usecase.DefaultStaleAfter, c.Logger)
	return nil
}

func (c *Container) Close() error {
	if c == nil {
		return nil
	}
	if c.Cache != nil {
		_ = c.Cache.Close()
	}
	if c.DB == nil {
		return nil
	}
	return c.DB.Close()
}
