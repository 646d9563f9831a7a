package cli

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/fleetcheck/internal/client/client"
	"github.com/dmitrijs2005/fleetcheck/internal/client/config"
	"github.com/dmitrijs2005/fleetcheck/internal/client/notify"
	"github.com/dmitrijs2005/fleetcheck/internal/client/services"
	"github.com/dmitrijs2005/fleetcheck/internal/client/syncer"
	"github.com/dmitrijs2005/fleetcheck/internal/logging"
	"github.com/dmitrijs2005/fleetcheck/internal/periodic"
)

// A full pass makes one list call per page and collection plus one push per
// pending record, so it gets a multiple of the per-request timeout.
const syncTimeoutFactor = 20

// syncTimeout bounds a background pass. It never exceeds the sync interval
// so passes cannot pile up behind each other.
func syncTimeout(cfg *config.Config) time.Duration {
	d := cfg.RequestTimeout * syncTimeoutFactor
	if cfg.SyncInterval > 0 && cfg.SyncInterval < d {
		return cfg.SyncInterval
	}
	return d
}

// Build opens the local database and wires the services, the sync manager
// and the optional change notifier. The returned func releases everything.
func Build(ctx context.Context, cfg *config.Config, log logging.Logger) (*App, func(), error) {
	strategy, err := syncer.ParseStrategy(cfg.ConflictStrategy)
	if err != nil {
		return nil, nil, err
	}

	db, err := client.InitDatabase(ctx, cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("error initializing database: %w", err)
	}
	repos := client.NewRepositories(db)

	rest, err := client.NewHTTPClient(cfg.ServerURL, client.NewMetadataTokenStore(repos.Metadata), cfg.RequestTimeout)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	auth := services.NewAuthService(rest, repos.Metadata)
	inspect := services.NewInspectionService(repos, rest, &http.Client{Timeout: cfg.RequestTimeout})

	state := syncer.NewStateStore(syncer.State{})
	engine := syncer.NewEngine(auth, repos, client.NewCollections(rest), state, syncer.Config{
		PageSize:      cfg.PageSize,
		UploadWorkers: cfg.UploadWorkers,
		Strategy:      strategy,
	}, log)
	engine.RestoreState(ctx)

	scheduler := periodic.NewScheduler(log)
	manager := syncer.NewManager(state, engine, scheduler, syncer.ManagerConfig{
		Interval: cfg.SyncInterval,
		Timeout:  syncTimeout(cfg),
	}, log)
	if _, err := manager.StartPeriodicSync(ctx); err != nil {
		scheduler.Close()
		_ = db.Close()
		return nil, nil, err
	}

	var sub *notify.Subscriber
	if cfg.NatsURL != "" {
		sub, err = notify.Subscribe(ctx, cfg.NatsURL, manager, log)
		if err != nil {
			log.Warn(ctx, "change notifications disabled", "error", err)
		}
	}

	cleanup := func() {
		if sub != nil {
			sub.Close()
		}
		scheduler.Close()
		_ = db.Close()
	}
	return NewApp(cfg, auth, inspect, manager, log), cleanup, nil
}
