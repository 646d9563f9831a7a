package cli

import (
	"bufio"
	"context"
	"io"
	"os"
	"time"

	"github.com/dmitrijs2005/fleetcheck/internal/client/config"
	"github.com/dmitrijs2005/fleetcheck/internal/client/services"
	"github.com/dmitrijs2005/fleetcheck/internal/client/syncer"
	"github.com/dmitrijs2005/fleetcheck/internal/logging"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// SyncManager is the part of syncer.Manager the REPL drives.
type SyncManager interface {
	SyncNow(ctx context.Context, force bool) syncer.Result
	RequestSync(ctx context.Context)
	State() syncer.StateView
}

type App struct {
	config   *config.Config
	auth     services.AuthService
	inspect  services.InspectionService
	sync     SyncManager
	log      logging.Logger
	userName string
	Mode     Mode
	reader   *bufio.Reader
	out      io.Writer
}

func NewApp(c *config.Config, auth services.AuthService, inspect services.InspectionService, sm SyncManager, log logging.Logger) *App {
	return &App{
		config:  c,
		auth:    auth,
		inspect: inspect,
		sync:    sm,
		log:     log.With("module", "cli"),
		reader:  bufio.NewReader(os.Stdin),
		out:     os.Stdout,
	}
}

// setMode records the connectivity mode. Coming back online asks for a sync
// so that work done offline is pushed without waiting for the next period.
func (a *App) setMode(ctx context.Context, mode Mode) {
	if a.Mode == mode {
		return
	}
	prev := a.Mode
	a.Mode = mode
	a.log.Info(ctx, "connectivity changed", "mode", mode)

	if mode == ModeOnline && prev == ModeOffline && a.sync != nil && a.isLoggedIn(ctx) {
		a.sync.RequestSync(ctx)
	}
}

func (a *App) isLoggedIn(ctx context.Context) bool {
	return a.auth.IsAuthenticated(ctx)
}

// StartOnlineStatusWatcher pings the server every interval until ctx ends.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.checkOnline(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) checkOnline(ctx context.Context) {
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	err := a.auth.Ping(pctx)
	cancel()

	if err != nil {
		a.setMode(ctx, ModeOffline)
	} else {
		a.setMode(ctx, ModeOnline)
	}
}
