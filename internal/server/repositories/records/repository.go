// Package records stores the documents of every synchronizable collection in
// one table keyed by (collection, id).
package records

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/fleetcheck/internal/server/models"
)

// ErrStaleVersion is returned by Update when the stored row already carries
// a version at least as high as the incoming one.
var ErrStaleVersion = errors.New("stale version")

type Repository interface {
	// List returns records in insertion order together with the collection size.
	List(ctx context.Context, collection string, offset, limit int) ([]models.Record, int, error)

	// Get returns common.ErrorNotFound for unknown ids.
	Get(ctx context.Context, collection, id string) (*models.Record, error)

	// Create returns common.ErrAlreadyExists when the id is taken.
	Create(ctx context.Context, rec *models.Record) error

	// Update replaces payload and version. It returns common.ErrorNotFound for
	// unknown ids and ErrStaleVersion when rec.Version does not exceed the
	// stored one.
	Update(ctx context.Context, rec *models.Record) error
}
