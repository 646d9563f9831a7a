package client

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/fleetcheck/internal/client/migrations"
	"github.com/dmitrijs2005/fleetcheck/internal/client/models"
	"github.com/dmitrijs2005/fleetcheck/internal/client/repositories/entities"
	"github.com/dmitrijs2005/fleetcheck/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/fleetcheck/internal/filex"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

// Repositories groups the local stores opened on one database.
type Repositories struct {
	Metadata      metadata.Repository
	VehicleTypes  entities.Repository[models.VehicleType]
	VehicleGroups entities.Repository[models.VehicleGroup]
	Vehicles      entities.Repository[models.Vehicle]
	Checklists    entities.Repository[models.Checklist]
	Executions    entities.Repository[models.ChecklistExecution]
}

func NewRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		Metadata:      metadata.NewSQLiteRepository(db),
		VehicleTypes:  entities.NewVehicleTypes(db),
		VehicleGroups: entities.NewVehicleGroups(db),
		Vehicles:      entities.NewVehicles(db),
		Checklists:    entities.NewChecklists(db),
		Executions:    entities.NewExecutions(db),
	}
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// InitDatabase opens (creating if needed) the local SQLite database and
// brings its schema up to date.
func InitDatabase(ctx context.Context, dsn string) (*sql.DB, error) {
	if err := filex.EnsureParentDir(dsn); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// one writer at a time; also keeps ":memory:" on a single database
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate local db: %w", err)
	}
	return db, nil
}
