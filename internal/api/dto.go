// Package api defines the JSON wire types exchanged between the fleetcheck
// client and the REST backend.
package api

import (
	"encoding/json"
	"fmt"
	"time"
)

// Collection names double as REST path segments under /api/v1.
const (
	CollectionVehicleTypes  = "vehicle-types"
	CollectionVehicleGroups = "vehicle-groups"
	CollectionVehicles      = "vehicles"
	CollectionChecklists    = "checklists"
	CollectionExecutions    = "executions"
)

// Collections lists every synchronizable collection in foreign-key order:
// a record never references one from a later collection.
var Collections = []string{
	CollectionVehicleTypes,
	CollectionVehicleGroups,
	CollectionVehicles,
	CollectionChecklists,
	CollectionExecutions,
}

// IsCollection reports whether name is a known collection.
func IsCollection(name string) bool {
	for _, c := range Collections {
		if c == name {
			return true
		}
	}
	return false
}

// Meta is the server-owned part of every record.
type Meta struct {
	ID        string    `json:"id"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Page is one slice of a collection listing. Page numbers start at 1.
type Page[T any] struct {
	Items []T `json:"items"`
	Page  int `json:"page"`
	Size  int `json:"size"`
	Total int `json:"total"`
}

// HasMore reports whether pages after this one exist.
func (p Page[T]) HasMore() bool {
	return p.Size > 0 && p.Page*p.Size < p.Total && len(p.Items) > 0
}

type VehicleTypeDTO struct {
	Meta
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type VehicleGroupDTO struct {
	Meta
	Name    string `json:"name"`
	Station string `json:"station,omitempty"`
}

type VehicleDTO struct {
	Meta
	LicensePlate string `json:"license_plate"`
	Description  string `json:"description,omitempty"`
	TypeID       string `json:"type_id"`
	GroupID      string `json:"group_id,omitempty"`
	Active       bool   `json:"active"`
}

type ChecklistItemDTO struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Position    int    `json:"position"`
	Required    bool   `json:"required"`
}

type ChecklistDTO struct {
	Meta
	Title         string             `json:"title"`
	VehicleTypeID string             `json:"vehicle_type_id,omitempty"`
	Items         []ChecklistItemDTO `json:"items"`
}

type ItemResultDTO struct {
	ItemID     string    `json:"item_id"`
	Status     string    `json:"status"`
	Notes      string    `json:"notes,omitempty"`
	PhotoKey   string    `json:"photo_key,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

type ChecklistExecutionDTO struct {
	Meta
	ChecklistID string          `json:"checklist_id"`
	VehicleID   string          `json:"vehicle_id"`
	Inspector   string          `json:"inspector"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Results     []ItemResultDTO `json:"results"`
}

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type PhotoUploadResponse struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// ChangeNotification is published after the backend accepts a write.
type ChangeNotification struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
	Version    int64  `json:"version"`
}

// WithMeta overwrites the meta fields of an arbitrary JSON object while
// leaving every other field untouched.
func WithMeta(raw json.RawMessage, m Meta) (json.RawMessage, error) {
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}

	set := func(key string, v any) error {
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		fields[key] = b
		return nil
	}
	if err := set("id", m.ID); err != nil {
		return nil, err
	}
	if err := set("version", m.Version); err != nil {
		return nil, err
	}
	if err := set("created_at", m.CreatedAt); err != nil {
		return nil, err
	}
	if err := set("updated_at", m.UpdatedAt); err != nil {
		return nil, err
	}
	return json.Marshal(fields)
}
