package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/fleetcheck/internal/client/models"
)

func (a *App) Inspect(ctx context.Context, checklistID, vehicleID string) error {
	inspector := a.userName
	if inspector == "" {
		var err error
		inspector, err = getSimpleText(a.reader, "Inspector name", a.out)
		if err != nil {
			return err
		}
	}

	e, err := a.inspect.StartExecution(ctx, checklistID, vehicleID, inspector)
	if err != nil {
		fmt.Fprintln(a.out, "error:", err)
		return err
	}
	fmt.Fprintln(a.out, "Started inspection", e.ID)
	return a.Show(ctx, e.ID)
}

// parseResult accepts the short forms used at the prompt.
func parseResult(s string) (models.ResultStatus, error) {
	switch strings.ToLower(s) {
	case "na", "n/a":
		return models.ResultNotApplicable, nil
	}
	return models.ParseResultStatus(s)
}

func (a *App) Record(ctx context.Context, executionID, itemID, status, notes string) error {
	rs, err := parseResult(status)
	if err != nil {
		fmt.Fprintln(a.out, "error:", err)
		return err
	}
	if _, err := a.inspect.RecordResult(ctx, executionID, itemID, rs, notes); err != nil {
		fmt.Fprintln(a.out, "error:", err)
		return err
	}
	fmt.Fprintln(a.out, "Recorded")
	return nil
}

func (a *App) Photo(ctx context.Context, executionID, itemID, path string) error {
	if _, err := a.inspect.AttachPhoto(ctx, executionID, itemID, path); err != nil {
		fmt.Fprintln(a.out, "error:", err)
		return err
	}
	fmt.Fprintln(a.out, "Photo attached")
	return nil
}

func (a *App) Complete(ctx context.Context, executionID string) error {
	e, err := a.inspect.CompleteExecution(ctx, executionID)
	if err != nil {
		fmt.Fprintln(a.out, "error:", err)
		return err
	}
	if e.HasDefects() {
		fmt.Fprintln(a.out, "Inspection completed with defects")
	} else {
		fmt.Fprintln(a.out, "Inspection completed")
	}
	return nil
}

// Show prints an execution item by item.
func (a *App) Show(ctx context.Context, executionID string) error {
	e, c, err := a.inspect.Execution(ctx, executionID)
	if err != nil {
		fmt.Fprintln(a.out, "error:", err)
		return err
	}

	fmt.Fprintf(a.out, "%s  %s  vehicle=%s  inspector=%s  [%s v%d]\n",
		e.ID, c.Title, e.VehicleID, e.Inspector, e.SyncStatus, e.Version)
	fmt.Fprintln(a.out, "Started:", e.StartedAt.Local().Format(time.DateTime))
	if e.CompletedAt != nil {
		fmt.Fprintln(a.out, "Completed:", e.CompletedAt.Local().Format(time.DateTime))
	}

	for _, it := range c.Items {
		mark := " "
		if it.Required {
			mark = "*"
		}
		line := fmt.Sprintf("%s %s  %-24s", mark, it.ID, it.Title)
		if r, ok := e.Result(it.ID); ok {
			line += " " + string(r.Status)
			if r.Notes != "" {
				line += " - " + r.Notes
			}
			if r.PhotoKey != "" {
				line += " [photo]"
			}
		} else {
			line += " -"
		}
		fmt.Fprintln(a.out, line)
	}
	return nil
}
