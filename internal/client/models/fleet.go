package models

import (
	"errors"
	"strings"
	"time"

	"github.com/dmitrijs2005/fleetcheck/internal/api"
)

var (
	ErrEmptyName         = errors.New("name must not be empty")
	ErrEmptyLicensePlate = errors.New("license plate must not be empty")
	ErrMissingType       = errors.New("vehicle type is required")
)

type VehicleType struct {
	SyncMeta
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func NewVehicleType(name, description string, now time.Time) (VehicleType, error) {
	if strings.TrimSpace(name) == "" {
		return VehicleType{}, ErrEmptyName
	}
	return VehicleType{SyncMeta: NewSyncMeta(now), Name: name, Description: description}, nil
}

func (v VehicleType) IsConflictWith(other VehicleType) bool {
	return v.SyncMeta.ConflictsWith(other.SyncMeta)
}

func (v VehicleType) WithUpdatedSync(status SyncStatus, lastModified time.Time, version int64) VehicleType {
	v.SyncMeta = v.withSync(status, lastModified, version)
	return v
}

func (v VehicleType) ToDTO() api.VehicleTypeDTO {
	return api.VehicleTypeDTO{Meta: metaToDTO(v.SyncMeta), Name: v.Name, Description: v.Description}
}

func VehicleTypeFromDTO(d api.VehicleTypeDTO) VehicleType {
	return VehicleType{SyncMeta: metaFromDTO(d.Meta), Name: d.Name, Description: d.Description}
}

type VehicleGroup struct {
	SyncMeta
	Name    string `json:"name"`
	Station string `json:"station,omitempty"`
}

func NewVehicleGroup(name, station string, now time.Time) (VehicleGroup, error) {
	if strings.TrimSpace(name) == "" {
		return VehicleGroup{}, ErrEmptyName
	}
	return VehicleGroup{SyncMeta: NewSyncMeta(now), Name: name, Station: station}, nil
}

func (g VehicleGroup) IsConflictWith(other VehicleGroup) bool {
	return g.SyncMeta.ConflictsWith(other.SyncMeta)
}

func (g VehicleGroup) WithUpdatedSync(status SyncStatus, lastModified time.Time, version int64) VehicleGroup {
	g.SyncMeta = g.withSync(status, lastModified, version)
	return g
}

func (g VehicleGroup) ToDTO() api.VehicleGroupDTO {
	return api.VehicleGroupDTO{Meta: metaToDTO(g.SyncMeta), Name: g.Name, Station: g.Station}
}

func VehicleGroupFromDTO(d api.VehicleGroupDTO) VehicleGroup {
	return VehicleGroup{SyncMeta: metaFromDTO(d.Meta), Name: d.Name, Station: d.Station}
}

// Vehicle is a single apparatus of the department.
type Vehicle struct {
	SyncMeta
	LicensePlate string `json:"license_plate"`
	Description  string `json:"description,omitempty"`
	TypeID       string `json:"type_id"`
	GroupID      string `json:"group_id,omitempty"`
	Active       bool   `json:"active"`
}

func NewVehicle(plate, description, typeID, groupID string, now time.Time) (Vehicle, error) {
	v := Vehicle{
		SyncMeta:     NewSyncMeta(now),
		LicensePlate: strings.TrimSpace(plate),
		Description:  description,
		TypeID:       typeID,
		GroupID:      groupID,
		Active:       true,
	}
	if err := v.Validate(); err != nil {
		return Vehicle{}, err
	}
	return v, nil
}

func (v Vehicle) Validate() error {
	if v.LicensePlate == "" {
		return ErrEmptyLicensePlate
	}
	if v.TypeID == "" {
		return ErrMissingType
	}
	return nil
}

func (v Vehicle) IsConflictWith(other Vehicle) bool {
	return v.SyncMeta.ConflictsWith(other.SyncMeta)
}

func (v Vehicle) WithUpdatedSync(status SyncStatus, lastModified time.Time, version int64) Vehicle {
	v.SyncMeta = v.withSync(status, lastModified, version)
	return v
}

func (v Vehicle) ToDTO() api.VehicleDTO {
	return api.VehicleDTO{
		Meta:         metaToDTO(v.SyncMeta),
		LicensePlate: v.LicensePlate,
		Description:  v.Description,
		TypeID:       v.TypeID,
		GroupID:      v.GroupID,
		Active:       v.Active,
	}
}

func VehicleFromDTO(d api.VehicleDTO) Vehicle {
	return Vehicle{
		SyncMeta:     metaFromDTO(d.Meta),
		LicensePlate: d.LicensePlate,
		Description:  d.Description,
		TypeID:       d.TypeID,
		GroupID:      d.GroupID,
		Active:       d.Active,
	}
}

func metaToDTO(m SyncMeta) api.Meta {
	return api.Meta{ID: m.ID, Version: m.Version, CreatedAt: m.CreatedAt, UpdatedAt: m.LastModifiedTime}
}

// metaFromDTO hydrates metadata of a record fetched from the backend; such a
// record is by definition in sync. A missing timestamp is filled from the
// other one.
func metaFromDTO(m api.Meta) SyncMeta {
	created, updated := m.CreatedAt, m.UpdatedAt
	if created.IsZero() {
		created = updated
	}
	if updated.IsZero() {
		updated = created
	}
	version := m.Version
	if version < 1 {
		version = 1
	}
	return SyncMeta{
		ID:               m.ID,
		CreatedAt:        created.UTC(),
		LastModifiedTime: updated.UTC(),
		Version:          version,
		SyncStatus:       StatusSynced,
	}
}
