package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/fleetcheck/internal/client/services"
)

var errUnknownKind = errors.New("unknown kind")

func (a *App) List(ctx context.Context, what string) error {
	var err error
	switch what {
	case "types":
		err = a.listTypes(ctx)
	case "groups":
		err = a.listGroups(ctx)
	case "vehicles":
		err = a.listVehicles(ctx)
	case "checklists":
		err = a.listChecklists(ctx)
	case "executions":
		err = a.listExecutions(ctx)
	default:
		err = fmt.Errorf("%w: %s", errUnknownKind, what)
	}
	if err != nil {
		fmt.Fprintln(a.out, "error:", err)
	}
	return err
}

func (a *App) Add(ctx context.Context, what string) error {
	var err error
	switch what {
	case "type":
		err = a.addType(ctx)
	case "group":
		err = a.addGroup(ctx)
	case "vehicle":
		err = a.addVehicle(ctx)
	case "checklist":
		err = a.addChecklist(ctx)
	default:
		err = fmt.Errorf("%w: %s", errUnknownKind, what)
	}
	if err != nil {
		fmt.Fprintln(a.out, "error:", err)
	}
	return err
}

func (a *App) listTypes(ctx context.Context) error {
	items, err := a.inspect.VehicleTypes(ctx)
	if err != nil {
		return err
	}
	for _, t := range items {
		fmt.Fprintf(a.out, "%s  %-20s %-14s %s\n", t.ID, t.Name, t.SyncStatus, t.Description)
	}
	return nil
}

func (a *App) listGroups(ctx context.Context) error {
	items, err := a.inspect.VehicleGroups(ctx)
	if err != nil {
		return err
	}
	for _, g := range items {
		fmt.Fprintf(a.out, "%s  %-20s %-14s %s\n", g.ID, g.Name, g.SyncStatus, g.Station)
	}
	return nil
}

func (a *App) listVehicles(ctx context.Context) error {
	items, err := a.inspect.Vehicles(ctx)
	if err != nil {
		return err
	}
	for _, v := range items {
		state := "active"
		if !v.Active {
			state = "inactive"
		}
		fmt.Fprintf(a.out, "%s  %-10s %-8s %-14s %s\n", v.ID, v.LicensePlate, state, v.SyncStatus, v.Description)
	}
	return nil
}

func (a *App) listChecklists(ctx context.Context) error {
	items, err := a.inspect.Checklists(ctx)
	if err != nil {
		return err
	}
	for _, c := range items {
		fmt.Fprintf(a.out, "%s  %-20s %2d items %-14s\n", c.ID, c.Title, len(c.Items), c.SyncStatus)
	}
	return nil
}

func (a *App) listExecutions(ctx context.Context) error {
	items, err := a.inspect.Executions(ctx)
	if err != nil {
		return err
	}
	for _, e := range items {
		state := "open"
		if e.Completed() {
			state = "completed"
		}
		if e.HasDefects() {
			state += ",defects"
		}
		fmt.Fprintf(a.out, "%s  vehicle=%s %-17s %-14s %s\n", e.ID, e.VehicleID, state, e.SyncStatus, e.Inspector)
	}
	return nil
}

func (a *App) addType(ctx context.Context) error {
	name, err := getSimpleText(a.reader, "Type name", a.out)
	if err != nil {
		return err
	}
	desc, err := getSimpleText(a.reader, "Description (optional)", a.out)
	if err != nil {
		return err
	}
	t, err := a.inspect.AddVehicleType(ctx, name, desc)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Added type", t.ID)
	return nil
}

func (a *App) addGroup(ctx context.Context) error {
	name, err := getSimpleText(a.reader, "Group name", a.out)
	if err != nil {
		return err
	}
	station, err := getSimpleText(a.reader, "Station (optional)", a.out)
	if err != nil {
		return err
	}
	g, err := a.inspect.AddVehicleGroup(ctx, name, station)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Added group", g.ID)
	return nil
}

func (a *App) addVehicle(ctx context.Context) error {
	plate, err := getSimpleText(a.reader, "License plate", a.out)
	if err != nil {
		return err
	}
	typeID, err := getSimpleText(a.reader, "Vehicle type ID", a.out)
	if err != nil {
		return err
	}
	groupID, err := getSimpleText(a.reader, "Group ID (optional)", a.out)
	if err != nil {
		return err
	}
	desc, err := getSimpleText(a.reader, "Description (optional)", a.out)
	if err != nil {
		return err
	}
	v, err := a.inspect.AddVehicle(ctx, plate, desc, typeID, groupID)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Added vehicle", v.ID)
	return nil
}

func (a *App) addChecklist(ctx context.Context) error {
	title, err := getSimpleText(a.reader, "Checklist title", a.out)
	if err != nil {
		return err
	}
	typeID, err := getSimpleText(a.reader, "Vehicle type ID (empty for any)", a.out)
	if err != nil {
		return err
	}
	items, err := getLines(a.reader, "Items, one per line (end with ? for optional)", a.out)
	if err != nil {
		return err
	}
	c, err := a.inspect.AddChecklist(ctx, title, typeID, items)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Added checklist", c.ID)
	for _, it := range c.Items {
		fmt.Fprintf(a.out, "  %s  %s\n", it.ID, it.Title)
	}
	return nil
}

// EditVehicle prompts for each editable field; an empty answer keeps it.
func (a *App) EditVehicle(ctx context.Context, id string) error {
	var patch services.VehiclePatch

	desc, err := getSimpleText(a.reader, "New description (empty keeps)", a.out)
	if err != nil {
		return err
	}
	if desc != "" {
		patch.Description = &desc
	}
	group, err := getSimpleText(a.reader, "New group ID (empty keeps, - clears)", a.out)
	if err != nil {
		return err
	}
	switch group {
	case "":
	case "-":
		none := ""
		patch.GroupID = &none
	default:
		patch.GroupID = &group
	}
	active, err := getSimpleText(a.reader, "Active? y/n (empty keeps)", a.out)
	if err != nil {
		return err
	}
	switch strings.ToLower(active) {
	case "y", "yes":
		v := true
		patch.Active = &v
	case "n", "no":
		v := false
		patch.Active = &v
	}

	v, err := a.inspect.UpdateVehicle(ctx, id, patch)
	if err != nil {
		fmt.Fprintln(a.out, "error:", err)
		return err
	}
	fmt.Fprintf(a.out, "Updated %s (v%d)\n", v.ID, v.Version)
	return nil
}
