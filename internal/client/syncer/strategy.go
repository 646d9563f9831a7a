package syncer

import (
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/fleetcheck/internal/client/models"
)

// ConflictResolutionStrategy decides the fate of a record flagged CONFLICT.
type ConflictResolutionStrategy string

const (
	// RemoteWins marks the record SYNCED, taking the remote copy when one
	// was fetched during the pass. Local edits are discarded.
	RemoteWins ConflictResolutionStrategy = "remote_wins"
	// LocalWins pushes the local copy again with a version above the remote.
	LocalWins ConflictResolutionStrategy = "local_wins"
	// LastWriteWins keeps whichever side was modified later.
	LastWriteWins ConflictResolutionStrategy = "last_write_wins"
)

func ParseStrategy(s string) (ConflictResolutionStrategy, error) {
	switch v := ConflictResolutionStrategy(strings.ToLower(strings.TrimSpace(s))); v {
	case RemoteWins, LocalWins, LastWriteWins:
		return v, nil
	case "":
		return RemoteWins, nil
	}
	return "", fmt.Errorf("unknown conflict resolution strategy %q", s)
}

// localWins reports whether the local copy should be kept.
func (s ConflictResolutionStrategy) localWins(local, remote models.SyncMeta, haveRemote bool) bool {
	switch s {
	case LocalWins:
		return true
	case LastWriteWins:
		return !haveRemote || local.LastModifiedTime.After(remote.LastModifiedTime)
	default:
		return false
	}
}

// takeRemote stores a remote copy over a local one without letting the
// version go backwards.
func takeRemote[T models.Syncable[T]](local, remote T) T {
	lm, rm := local.Meta(), remote.Meta()
	return remote.WithUpdatedSync(models.StatusSynced, rm.LastModifiedTime, max(lm.Version, rm.Version))
}

// bumpForReupload prepares a local copy to overwrite the remote one.
func bumpForReupload[T models.Syncable[T]](local T, remote *models.SyncMeta, now time.Time) T {
	v := local.Meta().Version
	if remote != nil {
		v = max(v, remote.Version)
	}
	return local.WithUpdatedSync(models.StatusPendingUpload, now, v+1)
}
