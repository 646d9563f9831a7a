package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/fleetcheck/internal/api"
	"github.com/dmitrijs2005/fleetcheck/internal/client/models"
)

// Sync runs a full pass in the foreground and prints the outcome.
func (a *App) Sync(ctx context.Context, force bool) error {
	res := a.sync.SyncNow(ctx, force)
	if !res.Success {
		fmt.Fprintln(a.out, "Sync failed:", res.ErrorMessage)
		return errors.New(res.ErrorMessage)
	}
	st := res.Stats
	fmt.Fprintf(a.out, "Sync complete: %d uploaded, %d downloaded, %d conflicts, %d resolved, %d failed\n",
		st.Uploaded, st.Downloaded, st.Conflicts, st.Resolved, st.Failed)
	return nil
}

func (a *App) Status(ctx context.Context) error {
	st := a.sync.State().Current()

	switch {
	case a.userName != "":
		fmt.Fprintln(a.out, "User:      ", a.userName)
	case a.isLoggedIn(ctx):
		fmt.Fprintln(a.out, "User:       (session)")
	default:
		fmt.Fprintln(a.out, "User:       not logged in")
	}
	fmt.Fprintln(a.out, "Server:    ", a.config.ServerURL, string(a.Mode))

	if st.LastSyncTime != nil {
		fmt.Fprintln(a.out, "Last sync: ", st.LastSyncTime.Local().Format(time.DateTime))
	} else {
		fmt.Fprintln(a.out, "Last sync:  never")
	}
	if st.IsSyncing {
		fmt.Fprintln(a.out, "Syncing now")
	}
	if st.LastError != "" {
		fmt.Fprintln(a.out, "Last error:", st.LastError)
	}

	counts, err := a.inspect.Counts(ctx)
	if err != nil {
		fmt.Fprintln(a.out, "error:", err)
		return err
	}
	for _, name := range api.Collections {
		c := counts[name]
		fmt.Fprintf(a.out, "  %-15s synced=%d pending=%d conflict=%d\n", name,
			c[models.StatusSynced], c[models.StatusPendingUpload], c[models.StatusConflict])
	}
	return nil
}

func (a *App) Conflicts(ctx context.Context) error {
	list, err := a.inspect.Conflicts(ctx)
	if err != nil {
		fmt.Fprintln(a.out, "error:", err)
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No conflicts")
		return nil
	}
	for _, c := range list {
		fmt.Fprintf(a.out, "%-15s %s v%d %s\n", c.Collection, c.ID, c.Version, c.LastModified.Local().Format(time.DateTime))
	}
	fmt.Fprintln(a.out, "Conflicts are resolved on the next sync.")
	return nil
}
