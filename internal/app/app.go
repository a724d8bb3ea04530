// Package app wires configuration into a ready service: it opens the
// configured record store, applies migrations and assembles the fetcher,
// collector, query engine and event publisher the binaries share.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/helixir/arxiv-collector/internal/collector"
	"github.com/helixir/arxiv-collector/internal/config"
	"github.com/helixir/arxiv-collector/internal/database"
	"github.com/helixir/arxiv-collector/internal/events"
	"github.com/helixir/arxiv-collector/internal/observability"
	"github.com/helixir/arxiv-collector/internal/papersources/arxiv"
	"github.com/helixir/arxiv-collector/internal/query"
	"github.com/helixir/arxiv-collector/internal/repository"
	"github.com/helixir/arxiv-collector/internal/service"
)

// App holds the assembled components and the resources to release.
type App struct {
	Config    *config.Config
	Service   *service.Service
	Collector *collector.Collector
	Query     *query.Engine
	Repo      repository.ArticleRepository

	health    func(ctx context.Context) error
	publisher events.Publisher
	closers   []func() error
	logger    zerolog.Logger
}

// Options adjusts how Open assembles the App.
type Options struct {
	// Registerer receives the metrics when cfg.Metrics.Enabled. Nil means
	// the default Prometheus registry.
	Registerer prometheus.Registerer
}

// Open assembles the App from cfg. The caller must Close it.
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts Options) (*App, error) {
	a := &App{Config: cfg, logger: observability.WithComponent(logger, "app")}

	if err := a.openStore(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		reg := opts.Registerer
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		metrics = observability.NewMetricsWith(reg, cfg.Metrics.Namespace)
	}

	a.publisher = events.NewPublisher(cfg.Kafka, logger)
	a.closers = append(a.closers, a.publisher.Close)

	fetcher := arxiv.New(arxiv.Config{
		BaseURL:     cfg.ArXiv.BaseURL,
		Timeout:     cfg.ArXiv.Timeout,
		MinInterval: cfg.ArXiv.MinInterval,
		MaxRetries:  cfg.ArXiv.MaxRetries,
		RetryDelay:  cfg.ArXiv.RetryDelay,
		UserAgent:   cfg.ArXiv.UserAgent,
	})

	coll, err := collector.New(fetcher, a.Repo, collector.Config{
		Categories:       cfg.Collector.Categories,
		UpdatePageSize:   cfg.Collector.UpdatePageSize,
		BackfillPageSize: cfg.Collector.BackfillPageSize,
		CategoryDelay:    cfg.Collector.CategoryDelay,
		YearDelay:        cfg.Collector.YearDelay,
	}, logger, collector.WithPublisher(a.publisher), collector.WithMetrics(metrics))
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("create collector: %w", err)
	}
	a.Collector = coll

	engine, err := query.NewEngine(a.Repo, query.Config{
		DefaultLimit: cfg.Query.DefaultLimit,
		MaxLimit:     cfg.Query.MaxLimit,
	}, metrics, logger)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("create query engine: %w", err)
	}
	a.Query = engine

	a.Service = service.New(coll, engine, logger)
	return a, nil
}

// openStore connects the configured driver, migrates it when
// migration_auto_run is set and builds the matching repository.
func (a *App) openStore(ctx context.Context) error {
	cfg := a.Config.Database

	switch cfg.Driver {
	case config.DriverSQLite:
		db, err := database.OpenSQLite(ctx, database.SQLiteOptions{
			Path:        cfg.Path,
			BusyTimeout: cfg.BusyTimeout,
		}, a.logger)
		if err != nil {
			return fmt.Errorf("open sqlite store: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		a.health = db.PingContext

		if cfg.MigrationAutoRun {
			if err := migrateSQLite(db, a.logger); err != nil {
				return err
			}
		}
		a.Repo = repository.NewSQLiteArticleRepository(db)
		return nil

	case config.DriverPostgres:
		db, err := database.New(ctx, &cfg, a.logger)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		a.closers = append(a.closers, func() error { db.Close(); return nil })
		a.health = func(ctx context.Context) error {
			return db.Health(ctx).Err()
		}

		if cfg.MigrationAutoRun {
			migrator, err := database.NewMigrator(db, a.logger)
			if err != nil {
				return fmt.Errorf("create migrator: %w", err)
			}
			upErr := migrator.Up()
			if closeErr := migrator.Close(); closeErr != nil {
				a.logger.Warn().Err(closeErr).Msg("failed to close migrator")
			}
			if upErr != nil {
				return fmt.Errorf("run migrations: %w", upErr)
			}
		}
		a.Repo = repository.NewPgArticleRepository(db)
		return nil

	default:
		return fmt.Errorf("unknown database driver: %q", cfg.Driver)
	}
}

func migrateSQLite(db *sql.DB, logger zerolog.Logger) error {
	migrator, err := database.NewSQLiteMigrator(db, logger)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer migrator.Close()

	if err := migrator.Up(); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Health pings the record store.
func (a *App) Health(ctx context.Context) error {
	if a.health == nil {
		return errors.New("store not open")
	}
	return a.health(ctx)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
