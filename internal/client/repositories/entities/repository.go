// Package entities stores synchronizable records in the local SQLite
// database. Every collection lives in its own table; the record body is kept
// as JSON while the sync metadata has dedicated columns so it can be queried.
package entities

import (
	"context"

	"github.com/dmitrijs2005/fleetcheck/internal/client/models"
)

// Table names of the synchronizable collections.
const (
	TableVehicleTypes  = "vehicle_types"
	TableVehicleGroups = "vehicle_groups"
	TableVehicles      = "vehicles"
	TableChecklists    = "checklists"
	TableExecutions    = "executions"
)

// Repository is the local store of one collection.
//
// GetByStatus and GetAll return records in insertion order. GetByID returns
// common.ErrorNotFound for unknown IDs. Insert and Update are both upserts
// keyed on the record ID and are durable once they return.
type Repository[T models.Syncable[T]] interface {
	GetAll(ctx context.Context) ([]T, error)
	GetByStatus(ctx context.Context, status models.SyncStatus) ([]T, error)
	GetByID(ctx context.Context, id string) (T, error)
	Insert(ctx context.Context, e T) error
	Update(ctx context.Context, e T) error
	CountByStatus(ctx context.Context) (map[models.SyncStatus]int, error)
}
