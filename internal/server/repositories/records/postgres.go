package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/fleetcheck/internal/common"
	"github.com/dmitrijs2005/fleetcheck/internal/dbx"
	"github.com/dmitrijs2005/fleetcheck/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) List(ctx context.Context, collection string, offset, limit int) ([]models.Record, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM records WHERE collection = $1`, collection).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	query := `
		SELECT id, version, payload, created_at, updated_at, updated_by
		FROM records
		WHERE collection = $1
		ORDER BY seq
		OFFSET $2 LIMIT $3
	`
	rows, err := r.db.QueryContext(ctx, query, collection, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := make([]models.Record, 0, limit)
	for rows.Next() {
		rec := models.Record{Collection: collection}
		if err := scanRecord(rows, &rec); err != nil {
			return nil, 0, fmt.Errorf("db error: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}
	return out, total, nil
}

func (r *PostgresRepository) Get(ctx context.Context, collection, id string) (*models.Record, error) {
	query := `
		SELECT id, version, payload, created_at, updated_at, updated_by
		FROM records
		WHERE collection = $1 AND id = $2
	`
	rec := &models.Record{Collection: collection}
	if err := scanRecord(r.db.QueryRowContext(ctx, query, collection, id), rec); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) Create(ctx context.Context, rec *models.Record) error {
	query := `
		INSERT INTO records (collection, id, version, payload, created_at, updated_at, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.Collection, rec.ID, rec.Version, []byte(rec.Payload),
		rec.CreatedAt.UTC(), rec.UpdatedAt.UTC(), nullable(rec.UpdatedBy))
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Update is a compare-and-set on the version column; a miss is resolved into
// not-found or stale by a second lookup.
func (r *PostgresRepository) Update(ctx context.Context, rec *models.Record) error {
	query := `
		UPDATE records
		SET version = $3, payload = $4, updated_at = $5, updated_by = $6
		WHERE collection = $1 AND id = $2 AND version < $3
	`
	err := dbx.ExecOne(ctx, r.db, query,
		rec.Collection, rec.ID, rec.Version, []byte(rec.Payload),
		rec.UpdatedAt.UTC(), nullable(rec.UpdatedBy))
	if err == nil {
		return nil
	}
	if !errors.Is(err, dbx.ErrNoRowsAffected) {
		return fmt.Errorf("db error: %w", err)
	}

	cur, err := r.Get(ctx, rec.Collection, rec.ID)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: stored %d, got %d", ErrStaleVersion, cur.Version, rec.Version)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner, rec *models.Record) error {
	var (
		payload   []byte
		updatedBy sql.NullString
	)
	if err := s.Scan(&rec.ID, &rec.Version, &payload, &rec.CreatedAt, &rec.UpdatedAt, &updatedBy); err != nil {
		return err
	}
	rec.Payload = payload
	rec.UpdatedBy = updatedBy.String
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
