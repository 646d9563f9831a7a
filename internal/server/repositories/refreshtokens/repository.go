// Package refreshtokens stores the opaque refresh tokens issued at login.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/fleetcheck/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, userID, token string, expiresAt time.Time) error

	// Find returns common.ErrorNotFound when the token is unknown.
	Find(ctx context.Context, token string) (*models.RefreshToken, error)

	// Delete is a no-op for unknown tokens.
	Delete(ctx context.Context, token string) error

	// DeleteExpired purges tokens that expired before now and reports how
	// many rows went away.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
