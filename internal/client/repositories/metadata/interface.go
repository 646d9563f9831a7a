// Package metadata is a small key/value store in the local database. It
// holds the auth session and bookkeeping of the sync engine.
package metadata

import (
	"context"
	"time"
)

// Well-known keys.
const (
	KeyUsername     = "username"
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyLastSyncTime = "last_sync_time"
)

// Repository returns (nil, nil) from Get when the key is absent.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
}

// GetTime reads a timestamp stored by SetTime. A missing key yields the zero
// time and ok=false.
func GetTime(ctx context.Context, r Repository, key string) (t time.Time, ok bool, err error) {
	raw, err := r.Get(ctx, key)
	if err != nil || raw == nil {
		return time.Time{}, false, err
	}
	if err := t.UnmarshalText(raw); err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

func SetTime(ctx context.Context, r Repository, key string, t time.Time) error {
	raw, err := t.UTC().MarshalText()
	if err != nil {
		return err
	}
	return r.Set(ctx, key, raw)
}
