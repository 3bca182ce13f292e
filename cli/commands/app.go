package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/satishbabariya/salesreport/analytics"
	"github.com/satishbabariya/salesreport/cli/internal/config"
	"github.com/satishbabariya/salesreport/internal/debug"
	"github.com/satishbabariya/salesreport/query/cache"
	"github.com/satishbabariya/salesreport/query/executor"
	"github.com/satishbabariya/salesreport/query/sqlgen"
	"github.com/satishbabariya/salesreport/telemetry"
)

// App wires the report service and everything it depends on for one run of
// the CLI.
type App struct {
	Config  *config.Config
	Dialect sqlgen.Dialect
	Pool    *executor.Pool
	Gateway *executor.SQLGateway
	Cache   *cache.Cache
	Metrics *telemetry.Metrics
	Service *analytics.Service
}

// NewApp connects to the database and builds the service.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	dialect, err := sqlgen.ParseDialect(cfg.Dialect)
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("no database configured: set database_url, --database-url or DATABASE_URL")
	}
	logger := debug.Logger()

	app := &App{Config: cfg, Dialect: dialect, Metrics: telemetry.New()}

	app.Pool, err = executor.OpenPool(ctx, dialect, cfg.DatabaseURL, executor.DefaultPoolConfig(), logger)
	if err != nil {
		return nil, err
	}
	app.Gateway = executor.NewSQLGateway(app.Pool, logger)
	debug.Info("database opened", "dialect", dialect)

	opts := []cache.Option{
		cache.WithLogger(logger),
		cache.WithObserver(app.Metrics),
	}
	if dir := cfg.Cache.PersistDir; dir != "" {
		store, err := cache.NewDiskStore(config.AppFs, dir)
		if err != nil {
			app.Close()
			return nil, err
		}
		opts = append(opts, cache.WithStore(store))
	}
	app.Cache, err = cache.New(cfg.Cache.Cache(), opts...)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("create cache: %w", err)
	}
	app.Cache.Start()

	app.Service, err = analytics.NewService(dialect, app.Gateway, app.Cache,
		analytics.WithRecorder(app.Metrics),
		analytics.WithServiceLogger(logger),
		analytics.WithWorkers(cfg.Workers),
	)
	if err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

// Close releases everything NewApp acquired.
func (a *App) Close() error {
	var errs []error
	if a.Service != nil {
		errs = append(errs, a.Service.Close())
	}
	if a.Cache != nil {
		errs = append(errs, a.Cache.Close())
	}
	if a.Gateway != nil {
		errs = append(errs, a.Gateway.Close())
	} else if a.Pool != nil {
		errs = append(errs, a.Pool.Close())
	}
	return errors.Join(errs...)
}
