// Package syncer reconciles the local store with the remote backend.
//
// A pass runs three phases over every collection in foreign-key order:
// upload of PENDING_UPLOAD records, download of the full remote listing, and
// resolution of CONFLICT records. Concurrent calls share a single in-flight
// pass.
package syncer

import (
	"context"
	"time"

	"github.com/dmitrijs2005/fleetcheck/internal/api"
	"github.com/dmitrijs2005/fleetcheck/internal/client/client"
	"github.com/dmitrijs2005/fleetcheck/internal/client/models"
	"github.com/dmitrijs2005/fleetcheck/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/fleetcheck/internal/logging"
	"golang.org/x/sync/singleflight"
)

const flightKey = "full-sync"

// Authenticator answers the sync precondition without touching the network.
type Authenticator interface {
	IsAuthenticated(ctx context.Context) bool
}

type Config struct {
	PageSize      int
	UploadWorkers int
	Strategy      ConflictResolutionStrategy
}

func DefaultConfig() Config {
	return Config{PageSize: 100, UploadWorkers: 1, Strategy: RemoteWins}
}

type Engine struct {
	auth        Authenticator
	state       StateUpdater
	meta        metadata.Repository
	collections []collectionSyncer
	log         logging.Logger
	now         func() time.Time

	flight singleflight.Group
}

// Option tweaks an Engine; used by tests and wiring code.
type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(
	auth Authenticator,
	repos *client.Repositories,
	remote *client.Collections,
	state StateUpdater,
	cfg Config,
	log logging.Logger,
	opts ...Option,
) *Engine {
	e := &Engine{
		auth:  auth,
		state: state,
		meta:  repos.Metadata,
		log:   log.With("module", "syncer"),
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(e)
	}
	if cfg.Strategy == "" {
		cfg.Strategy = RemoteWins
	}

	co := collectionOptions{
		pageSize: cfg.PageSize,
		workers:  cfg.UploadWorkers,
		strategy: cfg.Strategy,
		now:      e.now,
		log:      e.log,
	}
	e.collections = []collectionSyncer{
		newCollection(api.CollectionVehicleTypes, repos.VehicleTypes, remote.VehicleTypes,
			models.VehicleType.ToDTO, models.VehicleTypeFromDTO, co),
		newCollection(api.CollectionVehicleGroups, repos.VehicleGroups, remote.VehicleGroups,
			models.VehicleGroup.ToDTO, models.VehicleGroupFromDTO, co),
		newCollection(api.CollectionVehicles, repos.Vehicles, remote.Vehicles,
			models.Vehicle.ToDTO, models.VehicleFromDTO, co),
		newCollection(api.CollectionChecklists, repos.Checklists, remote.Checklists,
			models.Checklist.ToDTO, models.ChecklistFromDTO, co),
		newCollection(api.CollectionExecutions, repos.Executions, remote.Executions,
			models.ChecklistExecution.ToDTO, models.ChecklistExecutionFromDTO, co),
	}
	return e
}

// RestoreState seeds the state container with the last successful sync time
// persisted by an earlier run.
func (e *Engine) RestoreState(ctx context.Context) {
	t, ok, err := metadata.GetTime(ctx, e.meta, metadata.KeyLastSyncTime)
	if err != nil {
		e.log.Warn(ctx, "cannot read last sync time", "error", err)
		return
	}
	if !ok {
		return
	}
	st := e.state.Current()
	st.LastSyncTime = &t
	e.state.UpdateSyncState(st)
}

// PerformFullSync runs one reconciliation pass. A call made while a pass is
// in flight waits for it and receives its result, whatever force says.
func (e *Engine) PerformFullSync(ctx context.Context, force bool) Result {
	v, _, shared := e.flight.Do(flightKey, func() (any, error) {
		return e.run(ctx, force), nil
	})
	if shared {
		e.log.Debug(ctx, "joined in-flight sync pass")
	}
	return v.(Result)
}

func (e *Engine) run(ctx context.Context, force bool) (res Result) {
	st := &passStats{}
	started := e.now()

	defer func() {
		if p := recover(); p != nil {
			e.log.Error(ctx, "sync pass panicked", "panic", p)
			res = failure(panicError(p), st.snapshot())
		}
		e.finish(ctx, res, started)
	}()

	if !e.auth.IsAuthenticated(ctx) {
		return failure(tag(phaseAuth, errNotAuthenticated), st.snapshot())
	}

	prev := e.state.Current()
	prev.IsSyncing = true
	e.state.UpdateSyncState(prev)
	e.log.Info(ctx, "sync pass started", "force", force)

	for _, c := range e.collections {
		if err := c.upload(ctx, force, st); err != nil {
			return failure(tag(phaseUpload, err), st.snapshot())
		}
	}
	for _, c := range e.collections {
		if err := c.download(ctx, st); err != nil {
			return failure(tag(phaseDownload, err), st.snapshot())
		}
	}
	for _, c := range e.collections {
		if err := c.resolve(ctx, st); err != nil {
			return failure(tag(phaseResolve, err), st.snapshot())
		}
	}

	return Result{Success: true, Stats: st.snapshot()}
}

func (e *Engine) finish(ctx context.Context, res Result, started time.Time) {
	st := e.state.Current()
	st.IsSyncing = false

	if res.Success {
		now := e.now()
		st.LastSyncTime = &now
		st.LastError = ""
		if err := metadata.SetTime(ctx, e.meta, metadata.KeyLastSyncTime, now); err != nil {
			e.log.Warn(ctx, "cannot persist last sync time", "error", err)
		}
		e.log.Info(ctx, "sync pass finished",
			"uploaded", res.Stats.Uploaded,
			"downloaded", res.Stats.Downloaded,
			"conflicts", res.Stats.Conflicts,
			"resolved", res.Stats.Resolved,
			"failed", res.Stats.Failed,
			"took", e.now().Sub(started).String())
	} else {
		st.LastError = res.ErrorMessage
		e.log.Warn(ctx, "sync pass failed", "error", res.ErrorMessage)
	}

	e.state.UpdateSyncState(st)
}
