package syncer

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/fleetcheck/internal/logging"
	"github.com/dmitrijs2005/fleetcheck/internal/periodic"
)

// PeriodicSyncJobName identifies the background sync job; it is registered
// at most once per scheduler.
const PeriodicSyncJobName = "fleetcheck-periodic-sync"

// FullSyncer is implemented by Engine.
type FullSyncer interface {
	PerformFullSync(ctx context.Context, force bool) Result
}

type ManagerConfig struct {
	Interval     time.Duration
	Timeout      time.Duration
	InitialDelay time.Duration
}

// Manager owns the sync state and the recurring background job.
type Manager struct {
	state     *StateStore
	engine    FullSyncer
	scheduler *periodic.Scheduler
	cfg       ManagerConfig
	log       logging.Logger
}

func NewManager(state *StateStore, engine FullSyncer, scheduler *periodic.Scheduler, cfg ManagerConfig, log logging.Logger) *Manager {
	if cfg.Interval <= 0 {
		cfg.Interval = 6 * time.Hour
	}
	return &Manager{
		state:     state,
		engine:    engine,
		scheduler: scheduler,
		cfg:       cfg,
		log:       log.With("module", "syncmanager"),
	}
}

// State returns the read-only view of the sync state.
func (m *Manager) State() StateView { return m.state }

func (m *Manager) UpdateSyncState(st State) { m.state.UpdateSyncState(st) }

// StartPeriodicSync registers the background job. Calling it again while the
// job exists keeps the existing one.
func (m *Manager) StartPeriodicSync(ctx context.Context) (bool, error) {
	started, err := m.scheduler.Schedule(periodic.Job{
		Name:         PeriodicSyncJobName,
		Period:       m.cfg.Interval,
		Timeout:      m.cfg.Timeout,
		InitialDelay: m.cfg.InitialDelay,
		Fn: func(ctx context.Context) error {
			res := m.engine.PerformFullSync(ctx, false)
			if !res.Success {
				return errors.New(res.ErrorMessage)
			}
			return nil
		},
	}, periodic.KeepExisting)
	if err != nil {
		return false, err
	}
	if started {
		m.log.Info(ctx, "periodic sync started", "interval", m.cfg.Interval.String())
	}
	return started, nil
}

// StopPeriodicSync cancels the background job if it is registered.
func (m *Manager) StopPeriodicSync() {
	m.scheduler.Cancel(PeriodicSyncJobName)
}

// SyncNow runs a pass in the caller's goroutine.
func (m *Manager) SyncNow(ctx context.Context, force bool) Result {
	return m.engine.PerformFullSync(ctx, force)
}

// RequestSync asks for a pass soon: the background job is woken up if it
// runs, otherwise a pass is started in the background.
func (m *Manager) RequestSync(ctx context.Context) {
	if err := m.scheduler.Kick(PeriodicSyncJobName); err == nil {
		return
	}
	go func() {
		res := m.engine.PerformFullSync(context.WithoutCancel(ctx), false)
		if !res.Success {
			m.log.Warn(ctx, "requested sync failed", "error", res.ErrorMessage)
		}
	}()
}
