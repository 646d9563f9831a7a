// Package server initializes and runs the fleetcheck backend: it opens and
// migrates PostgreSQL, wires the services and serves the REST API until the
// context is cancelled.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/fleetcheck/internal/logging"
	"github.com/dmitrijs2005/fleetcheck/internal/periodic"
	"github.com/dmitrijs2005/fleetcheck/internal/server/config"
	"github.com/dmitrijs2005/fleetcheck/internal/server/events"
	"github.com/dmitrijs2005/fleetcheck/internal/server/httpapi"
	"github.com/dmitrijs2005/fleetcheck/internal/server/metrics"
	"github.com/dmitrijs2005/fleetcheck/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/fleetcheck/internal/server/services"
)

const tokenPurgePeriod = time.Hour

type App struct {
	config    *config.Config
	logger    logging.Logger
	db        *sql.DB
	publisher *events.Publisher
	scheduler *periodic.Scheduler

	userService   *services.UserService
	recordService *services.RecordService
	photoService  *services.PhotoService
	metrics       *metrics.Metrics
}

func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	db, err := repomanager.Open(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db migration error: %w", err)
	}

	app := &App{config: c, logger: logger, db: db, metrics: metrics.New()}

	var pub services.ChangePublisher
	if c.NatsURL != "" {
		p, err := events.NewPublisher(c.NatsURL, logger)
		if err != nil {
			logger.Warn(ctx, "change notifications disabled", "error", err)
		} else {
			app.publisher = p
			pub = p
		}
	}

	app.userService = services.NewUserService(db, rm, c)
	app.recordService = services.NewRecordService(db, rm, pub, app.metrics, logger)
	app.photoService = services.NewPhotoService(db, rm, c)
	app.scheduler = periodic.NewScheduler(logger)

	return app, nil
}

func (app *App) schedulePurge(ctx context.Context) {
	_, err := app.scheduler.Schedule(periodic.Job{
		Name:         "purge-refresh-tokens",
		Period:       tokenPurgePeriod,
		Timeout:      time.Minute,
		InitialDelay: time.Minute,
		Fn: func(ctx context.Context) error {
			n, err := app.userService.PurgeExpiredTokens(ctx)
			if err != nil {
				return err
			}
			if n > 0 {
				app.logger.Info(ctx, "Purged expired refresh tokens", "count", n)
			}
			return nil
		},
	}, periodic.KeepExisting)
	if err != nil {
		app.logger.Warn(ctx, "cannot schedule token purge", "error", err)
	}
}

// Run blocks until ctx is cancelled or the HTTP server fails, then releases
// every resource the app holds.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.schedulePurge(ctx)

	s := httpapi.NewServer(app.config.HTTPAddr, app.logger, app.userService, app.recordService, app.photoService, app.metrics)

	var (
		wg     sync.WaitGroup
		runErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			runErr = err
			cancelFunc()
		}
	}()
	wg.Wait()

	app.close(ctx)
	return runErr
}

func (app *App) close(ctx context.Context) {
	app.scheduler.Close()
	app.publisher.Close()
	if err := app.db.Close(); err != nil {
		app.logger.Warn(ctx, "db close", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
