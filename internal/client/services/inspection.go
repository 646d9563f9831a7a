package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/fleetcheck/internal/api"
	"github.com/dmitrijs2005/fleetcheck/internal/client/client"
	"github.com/dmitrijs2005/fleetcheck/internal/client/models"
	"github.com/dmitrijs2005/fleetcheck/internal/client/repositories/entities"
	"github.com/dmitrijs2005/fleetcheck/internal/common"
	"github.com/dmitrijs2005/fleetcheck/internal/filex"
	"github.com/dmitrijs2005/fleetcheck/internal/netx"
)

// MaxPhotoSize caps inspection photos read from disk.
const MaxPhotoSize = 10 << 20

var (
	ErrNoResult        = errors.New("record a result for the item before attaching a photo")
	ErrUnknownVehicle  = errors.New("unknown vehicle")
	ErrUnknownExec     = errors.New("unknown execution")
	ErrUnknownType     = errors.New("unknown vehicle type")
	ErrUnknownGroup    = errors.New("unknown vehicle group")
	ErrUnknownList     = errors.New("unknown checklist")
	ErrWrongChecklist  = errors.New("checklist does not apply to this vehicle type")
	ErrNothingToUpdate = errors.New("nothing to update")
)

// VehiclePatch lists the vehicle fields to change; nil fields are kept.
type VehiclePatch struct {
	Description *string
	GroupID     *string
	Active      *bool
}

// ConflictInfo describes one local record flagged CONFLICT.
type ConflictInfo struct {
	Collection   string
	ID           string
	Version      int64
	LastModified time.Time
}

// InspectionService is the domain API used by the REPL. Every write goes to
// the local store only and leaves the record PENDING_UPLOAD for the next sync.
type InspectionService interface {
	AddVehicleType(ctx context.Context, name, description string) (models.VehicleType, error)
	AddVehicleGroup(ctx context.Context, name, station string) (models.VehicleGroup, error)
	AddVehicle(ctx context.Context, plate, description, typeID, groupID string) (models.Vehicle, error)
	UpdateVehicle(ctx context.Context, id string, patch VehiclePatch) (models.Vehicle, error)
	AddChecklist(ctx context.Context, title, vehicleTypeID string, items []string) (models.Checklist, error)

	StartExecution(ctx context.Context, checklistID, vehicleID, inspector string) (models.ChecklistExecution, error)
	RecordResult(ctx context.Context, executionID, itemID string, status models.ResultStatus, notes string) (models.ChecklistExecution, error)
	CompleteExecution(ctx context.Context, executionID string) (models.ChecklistExecution, error)
	AttachPhoto(ctx context.Context, executionID, itemID, path string) (models.ChecklistExecution, error)

	VehicleTypes(ctx context.Context) ([]models.VehicleType, error)
	VehicleGroups(ctx context.Context) ([]models.VehicleGroup, error)
	Vehicles(ctx context.Context) ([]models.Vehicle, error)
	Checklists(ctx context.Context) ([]models.Checklist, error)
	Executions(ctx context.Context) ([]models.ChecklistExecution, error)
	Execution(ctx context.Context, id string) (models.ChecklistExecution, models.Checklist, error)

	Conflicts(ctx context.Context) ([]ConflictInfo, error)
	Counts(ctx context.Context) (map[string]map[models.SyncStatus]int, error)
}

type inspectionService struct {
	repos  *client.Repositories
	client client.Client
	upload *http.Client
	now    func() time.Time
}

// NewInspectionService builds the service. upload is the HTTP client used for
// presigned photo uploads; nil means http.DefaultClient.
func NewInspectionService(repos *client.Repositories, c client.Client, upload *http.Client) InspectionService {
	return &inspectionService{repos: repos, client: c, upload: upload, now: time.Now}
}

func (s *inspectionService) AddVehicleType(ctx context.Context, name, description string) (models.VehicleType, error) {
	vt, err := models.NewVehicleType(name, description, s.now())
	if err != nil {
		return models.VehicleType{}, err
	}
	if err := s.repos.VehicleTypes.Insert(ctx, vt); err != nil {
		return models.VehicleType{}, err
	}
	return vt, nil
}

func (s *inspectionService) AddVehicleGroup(ctx context.Context, name, station string) (models.VehicleGroup, error) {
	g, err := models.NewVehicleGroup(name, station, s.now())
	if err != nil {
		return models.VehicleGroup{}, err
	}
	if err := s.repos.VehicleGroups.Insert(ctx, g); err != nil {
		return models.VehicleGroup{}, err
	}
	return g, nil
}

func (s *inspectionService) AddVehicle(ctx context.Context, plate, description, typeID, groupID string) (models.Vehicle, error) {
	v, err := models.NewVehicle(plate, description, typeID, groupID, s.now())
	if err != nil {
		return models.Vehicle{}, err
	}
	if err := exists(ctx, s.repos.VehicleTypes, typeID, ErrUnknownType); err != nil {
		return models.Vehicle{}, err
	}
	if groupID != "" {
		if err := exists(ctx, s.repos.VehicleGroups, groupID, ErrUnknownGroup); err != nil {
			return models.Vehicle{}, err
		}
	}
	if err := s.repos.Vehicles.Insert(ctx, v); err != nil {
		return models.Vehicle{}, err
	}
	return v, nil
}

func (s *inspectionService) UpdateVehicle(ctx context.Context, id string, patch VehiclePatch) (models.Vehicle, error) {
	if patch.Description == nil && patch.GroupID == nil && patch.Active == nil {
		return models.Vehicle{}, ErrNothingToUpdate
	}
	v, err := get(ctx, s.repos.Vehicles, id, ErrUnknownVehicle)
	if err != nil {
		return models.Vehicle{}, err
	}

	if patch.Description != nil {
		v.Description = *patch.Description
	}
	if patch.GroupID != nil {
		if *patch.GroupID != "" {
			if err := exists(ctx, s.repos.VehicleGroups, *patch.GroupID, ErrUnknownGroup); err != nil {
				return models.Vehicle{}, err
			}
		}
		v.GroupID = *patch.GroupID
	}
	if patch.Active != nil {
		v.Active = *patch.Active
	}

	v.SyncMeta = v.Touched(s.now())
	if err := s.repos.Vehicles.Update(ctx, v); err != nil {
		return models.Vehicle{}, err
	}
	return v, nil
}

func (s *inspectionService) AddChecklist(ctx context.Context, title, vehicleTypeID string, items []string) (models.Checklist, error) {
	if vehicleTypeID != "" {
		if err := exists(ctx, s.repos.VehicleTypes, vehicleTypeID, ErrUnknownType); err != nil {
			return models.Checklist{}, err
		}
	}
	c, err := models.NewChecklist(title, vehicleTypeID, items, s.now())
	if err != nil {
		return models.Checklist{}, err
	}
	if err := s.repos.Checklists.Insert(ctx, c); err != nil {
		return models.Checklist{}, err
	}
	return c, nil
}

// StartExecution opens an inspection. A checklist bound to a vehicle type
// can only be run against vehicles of that type.
func (s *inspectionService) StartExecution(ctx context.Context, checklistID, vehicleID, inspector string) (models.ChecklistExecution, error) {
	c, err := get(ctx, s.repos.Checklists, checklistID, ErrUnknownList)
	if err != nil {
		return models.ChecklistExecution{}, err
	}
	v, err := get(ctx, s.repos.Vehicles, vehicleID, ErrUnknownVehicle)
	if err != nil {
		return models.ChecklistExecution{}, err
	}
	if c.VehicleTypeID != "" && c.VehicleTypeID != v.TypeID {
		return models.ChecklistExecution{}, ErrWrongChecklist
	}

	e := models.NewChecklistExecution(c.ID, v.ID, strings.TrimSpace(inspector), s.now())
	if err := s.repos.Executions.Insert(ctx, e); err != nil {
		return models.ChecklistExecution{}, err
	}
	return e, nil
}

func (s *inspectionService) RecordResult(ctx context.Context, executionID, itemID string, status models.ResultStatus, notes string) (models.ChecklistExecution, error) {
	status, err := models.ParseResultStatus(string(status))
	if err != nil {
		return models.ChecklistExecution{}, err
	}
	e, c, err := s.Execution(ctx, executionID)
	if err != nil {
		return models.ChecklistExecution{}, err
	}
	e, err = e.WithResult(c, models.ItemResult{ItemID: itemID, Status: status, Notes: notes}, s.now())
	if err != nil {
		return models.ChecklistExecution{}, err
	}
	if err := s.repos.Executions.Update(ctx, e); err != nil {
		return models.ChecklistExecution{}, err
	}
	return e, nil
}

func (s *inspectionService) CompleteExecution(ctx context.Context, executionID string) (models.ChecklistExecution, error) {
	e, c, err := s.Execution(ctx, executionID)
	if err != nil {
		return models.ChecklistExecution{}, err
	}
	e, err = e.Complete(c, s.now())
	if err != nil {
		return models.ChecklistExecution{}, err
	}
	if err := s.repos.Executions.Update(ctx, e); err != nil {
		return models.ChecklistExecution{}, err
	}
	return e, nil
}

// AttachPhoto uploads the file at path to object storage and stores the
// returned key on the item result. This is the one write that needs the
// network; the execution itself still syncs later.
func (s *inspectionService) AttachPhoto(ctx context.Context, executionID, itemID, path string) (models.ChecklistExecution, error) {
	e, c, err := s.Execution(ctx, executionID)
	if err != nil {
		return models.ChecklistExecution{}, err
	}
	if e.Completed() {
		return models.ChecklistExecution{}, models.ErrExecutionCompleted
	}
	r, ok := e.Result(itemID)
	if !ok {
		return models.ChecklistExecution{}, ErrNoResult
	}

	data, err := filex.ReadLimited(path, MaxPhotoSize)
	if err != nil {
		return models.ChecklistExecution{}, err
	}

	target, err := s.client.PhotoUploadURL(ctx, executionID, itemID)
	if err != nil {
		return models.ChecklistExecution{}, fmt.Errorf("get upload url: %w", err)
	}
	if err := netx.UploadToPresignedURL(ctx, s.upload, target.URL, photoContentType(path, data), data); err != nil {
		return models.ChecklistExecution{}, err
	}

	r.PhotoKey = target.Key
	e, err = e.WithResult(c, r, s.now())
	if err != nil {
		return models.ChecklistExecution{}, err
	}
	if err := s.repos.Executions.Update(ctx, e); err != nil {
		return models.ChecklistExecution{}, err
	}
	return e, nil
}

func (s *inspectionService) VehicleTypes(ctx context.Context) ([]models.VehicleType, error) {
	return s.repos.VehicleTypes.GetAll(ctx)
}

func (s *inspectionService) VehicleGroups(ctx context.Context) ([]models.VehicleGroup, error) {
	return s.repos.VehicleGroups.GetAll(ctx)
}

func (s *inspectionService) Vehicles(ctx context.Context) ([]models.Vehicle, error) {
	return s.repos.Vehicles.GetAll(ctx)
}

func (s *inspectionService) Checklists(ctx context.Context) ([]models.Checklist, error) {
	return s.repos.Checklists.GetAll(ctx)
}

func (s *inspectionService) Executions(ctx context.Context) ([]models.ChecklistExecution, error) {
	return s.repos.Executions.GetAll(ctx)
}

// Execution loads an execution together with the checklist it runs.
func (s *inspectionService) Execution(ctx context.Context, id string) (models.ChecklistExecution, models.Checklist, error) {
	e, err := get(ctx, s.repos.Executions, id, ErrUnknownExec)
	if err != nil {
		return models.ChecklistExecution{}, models.Checklist{}, err
	}
	c, err := get(ctx, s.repos.Checklists, e.ChecklistID, ErrUnknownList)
	if err != nil {
		return models.ChecklistExecution{}, models.Checklist{}, err
	}
	return e, c, nil
}

func (s *inspectionService) Conflicts(ctx context.Context) ([]ConflictInfo, error) {
	var (
		out []ConflictInfo
		err error
	)
	if out, err = conflictsOf(ctx, api.CollectionVehicleTypes, s.repos.VehicleTypes, out); err != nil {
		return nil, err
	}
	if out, err = conflictsOf(ctx, api.CollectionVehicleGroups, s.repos.VehicleGroups, out); err != nil {
		return nil, err
	}
	if out, err = conflictsOf(ctx, api.CollectionVehicles, s.repos.Vehicles, out); err != nil {
		return nil, err
	}
	if out, err = conflictsOf(ctx, api.CollectionChecklists, s.repos.Checklists, out); err != nil {
		return nil, err
	}
	if out, err = conflictsOf(ctx, api.CollectionExecutions, s.repos.Executions, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Counts returns per-collection row counts grouped by sync status.
func (s *inspectionService) Counts(ctx context.Context) (map[string]map[models.SyncStatus]int, error) {
	type counter interface {
		CountByStatus(ctx context.Context) (map[models.SyncStatus]int, error)
	}
	sources := map[string]counter{
		api.CollectionVehicleTypes:  s.repos.VehicleTypes,
		api.CollectionVehicleGroups: s.repos.VehicleGroups,
		api.CollectionVehicles:      s.repos.Vehicles,
		api.CollectionChecklists:    s.repos.Checklists,
		api.CollectionExecutions:    s.repos.Executions,
	}
	out := make(map[string]map[models.SyncStatus]int, len(sources))
	for name, src := range sources {
		m, err := src.CountByStatus(ctx)
		if err != nil {
			return nil, err
		}
		out[name] = m
	}
	return out, nil
}

func conflictsOf[T models.Syncable[T]](ctx context.Context, name string, repo entities.Repository[T], acc []ConflictInfo) ([]ConflictInfo, error) {
	rows, err := repo.GetByStatus(ctx, models.StatusConflict)
	if err != nil {
		return acc, err
	}
	for _, r := range rows {
		m := r.Meta()
		acc = append(acc, ConflictInfo{Collection: name, ID: m.ID, Version: m.Version, LastModified: m.LastModifiedTime})
	}
	return acc, nil
}

func get[T models.Syncable[T]](ctx context.Context, repo entities.Repository[T], id string, notFound error) (T, error) {
	v, err := repo.GetByID(ctx, id)
	if errors.Is(err, common.ErrorNotFound) {
		var zero T
		return zero, fmt.Errorf("%w: %s", notFound, id)
	}
	return v, err
}

func exists[T models.Syncable[T]](ctx context.Context, repo entities.Repository[T], id string, notFound error) error {
	_, err := get(ctx, repo, id, notFound)
	return err
}

func photoContentType(path string, data []byte) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	}
	return http.DetectContentType(data)
}
