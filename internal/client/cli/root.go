package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
)

func (a *App) getStatus() string {
	s := ""
	if a.userName != "" {
		s = a.userName + " "
	}
	if a.Mode != "" {
		s = s + string(a.Mode)
	}
	if a.sync != nil {
		st := a.sync.State().Current()
		switch {
		case st.IsSyncing:
			s = s + " syncing"
		case st.LastError != "":
			s = s + " sync-failed"
		}
	}
	if s != "" {
		s = fmt.Sprintf(" (%s)", s)
	}
	return s
}

// Root runs the interactive session until the user exits or ctx ends.
func (a *App) Root(ctx context.Context) {
	fmt.Fprintln(a.out, "Welcome to fleetcheck (type 'help' for commands)")

	if name, err := a.auth.Username(ctx); err == nil && name != "" && a.isLoggedIn(ctx) {
		a.userName = name
	}
	a.checkOnline(ctx)

	go a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)

	runREPL(ctx, a, a.getStatus, bufio.NewScanner(os.Stdin))
}
