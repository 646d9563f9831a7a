package entities

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/fleetcheck/internal/client/models"
	"github.com/dmitrijs2005/fleetcheck/internal/common"
	"github.com/dmitrijs2005/fleetcheck/internal/dbx"
)

type SQLiteRepository[T models.Syncable[T]] struct {
	db    dbx.DBTX
	table string
}

func NewVehicleTypes(db dbx.DBTX) *SQLiteRepository[models.VehicleType] {
	return &SQLiteRepository[models.VehicleType]{db: db, table: TableVehicleTypes}
}

func NewVehicleGroups(db dbx.DBTX) *SQLiteRepository[models.VehicleGroup] {
	return &SQLiteRepository[models.VehicleGroup]{db: db, table: TableVehicleGroups}
}

func NewVehicles(db dbx.DBTX) *SQLiteRepository[models.Vehicle] {
	return &SQLiteRepository[models.Vehicle]{db: db, table: TableVehicles}
}

func NewChecklists(db dbx.DBTX) *SQLiteRepository[models.Checklist] {
	return &SQLiteRepository[models.Checklist]{db: db, table: TableChecklists}
}

func NewExecutions(db dbx.DBTX) *SQLiteRepository[models.ChecklistExecution] {
	return &SQLiteRepository[models.ChecklistExecution]{db: db, table: TableExecutions}
}

func (r *SQLiteRepository[T]) GetAll(ctx context.Context) ([]T, error) {
	query := fmt.Sprintf(`SELECT payload, sync_status, version, last_modified_ns FROM %s ORDER BY seq`, r.table)
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", r.table, err)
	}
	return r.collect(rows)
}

func (r *SQLiteRepository[T]) GetByStatus(ctx context.Context, status models.SyncStatus) ([]T, error) {
	query := fmt.Sprintf(`SELECT payload, sync_status, version, last_modified_ns FROM %s WHERE sync_status = ? ORDER BY seq`, r.table)
	rows, err := r.db.QueryContext(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to select %s by status %s: %w", r.table, status, err)
	}
	return r.collect(rows)
}

func (r *SQLiteRepository[T]) GetByID(ctx context.Context, id string) (T, error) {
	var zero T

	query := fmt.Sprintf(`SELECT payload, sync_status, version, last_modified_ns FROM %s WHERE id = ?`, r.table)
	e, err := r.scan(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return zero, common.ErrorNotFound
	}
	if err != nil {
		return zero, fmt.Errorf("failed to get %s[%s]: %w", r.table, id, err)
	}
	return e, nil
}

func (r *SQLiteRepository[T]) Insert(ctx context.Context, e T) error {
	return r.upsert(ctx, e)
}

func (r *SQLiteRepository[T]) Update(ctx context.Context, e T) error {
	return r.upsert(ctx, e)
}

func (r *SQLiteRepository[T]) CountByStatus(ctx context.Context) (map[models.SyncStatus]int, error) {
	query := fmt.Sprintf(`SELECT sync_status, COUNT(*) FROM %s GROUP BY sync_status`, r.table)
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count %s: %w", r.table, err)
	}
	defer rows.Close()

	counts := make(map[models.SyncStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan %s count: %w", r.table, err)
		}
		counts[models.SyncStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s counts: %w", r.table, err)
	}
	return counts, nil
}

func (r *SQLiteRepository[T]) upsert(ctx context.Context, e T) error {
	meta := e.Meta()
	if meta.ID == "" {
		return fmt.Errorf("%s: %w: empty id", r.table, common.ErrInvalidPayload)
	}
	if !meta.SyncStatus.Valid() {
		return fmt.Errorf("%s[%s]: %w: sync status %q", r.table, meta.ID, common.ErrInvalidPayload, meta.SyncStatus)
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode %s[%s]: %w", r.table, meta.ID, err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, payload, sync_status, version, last_modified_ns)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			payload          = excluded.payload,
			sync_status      = excluded.sync_status,
			version          = excluded.version,
			last_modified_ns = excluded.last_modified_ns
	`, r.table)

	_, err = r.db.ExecContext(ctx, query,
		meta.ID, payload, string(meta.SyncStatus), meta.Version, toNanos(meta.LastModifiedTime))
	if err != nil {
		return fmt.Errorf("failed to upsert %s[%s]: %w", r.table, meta.ID, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scan decodes one row. The metadata columns win over whatever the JSON body
// carries.
func (r *SQLiteRepository[T]) scan(s scanner) (T, error) {
	var (
		zero    T
		e       T
		payload []byte
		status  string
		version int64
		lmNanos int64
	)
	if err := s.Scan(&payload, &status, &version, &lmNanos); err != nil {
		return zero, err
	}
	if err := json.Unmarshal(payload, &e); err != nil {
		return zero, fmt.Errorf("failed to decode %s payload: %w", r.table, err)
	}
	return e.WithUpdatedSync(models.SyncStatus(status), fromNanos(lmNanos), version), nil
}

// The zero time is stored as 0; UnixNano is undefined for it.
func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func (r *SQLiteRepository[T]) collect(rows *sql.Rows) ([]T, error) {
	defer rows.Close()

	var result []T
	for rows.Next() {
		e, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", r.table, err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s rows: %w", r.table, err)
	}
	return result, nil
}
