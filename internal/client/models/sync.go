// Package models defines the synchronizable records kept in the local store
// of the fleetcheck client and their mapping to the wire DTOs.
package models

import (
	"time"

	"github.com/google/uuid"
)

// SyncStatus is the replica-local reconciliation state of a record.
type SyncStatus string

const (
	StatusSynced        SyncStatus = "SYNCED"
	StatusPendingUpload SyncStatus = "PENDING_UPLOAD"
	StatusConflict      SyncStatus = "CONFLICT"
)

// Valid reports whether s is one of the known statuses.
func (s SyncStatus) Valid() bool {
	switch s {
	case StatusSynced, StatusPendingUpload, StatusConflict:
		return true
	}
	return false
}

// SyncMeta is the sync metadata embedded in every synchronizable record.
type SyncMeta struct {
	ID               string     `json:"id"`
	CreatedAt        time.Time  `json:"created_at"`
	LastModifiedTime time.Time  `json:"last_modified_time"`
	Version          int64      `json:"version"`
	SyncStatus       SyncStatus `json:"sync_status"`
}

// NewSyncMeta returns metadata for a record created locally at now.
func NewSyncMeta(now time.Time) SyncMeta {
	now = now.UTC()
	return SyncMeta{
		ID:               uuid.NewString(),
		CreatedAt:        now,
		LastModifiedTime: now,
		Version:          1,
		SyncStatus:       StatusPendingUpload,
	}
}

func (m SyncMeta) Meta() SyncMeta { return m }

// ConflictsWith is true iff both sides carry the same ID but neither the
// timestamp nor the version agree.
func (m SyncMeta) ConflictsWith(other SyncMeta) bool {
	return m.ID == other.ID &&
		!m.LastModifiedTime.Equal(other.LastModifiedTime) &&
		m.Version != other.Version
}

// Touched returns the metadata of a locally edited record.
func (m SyncMeta) Touched(now time.Time) SyncMeta {
	m.Version++
	m.LastModifiedTime = now.UTC()
	m.SyncStatus = StatusPendingUpload
	return m
}

func (m SyncMeta) withSync(status SyncStatus, lastModified time.Time, version int64) SyncMeta {
	m.SyncStatus = status
	m.LastModifiedTime = lastModified.UTC()
	m.Version = version
	return m
}

// Syncable is implemented by every record the sync engine reconciles.
// Implementations are values: WithUpdatedSync returns a copy and never
// changes the receiver.
type Syncable[T any] interface {
	Meta() SyncMeta
	IsConflictWith(other T) bool
	WithUpdatedSync(status SyncStatus, lastModified time.Time, version int64) T
}

// ShouldDownloadRemoteChange reports whether a remote copy may overwrite the
// local one: only records without unconfirmed local state are replaced.
func ShouldDownloadRemoteChange[T Syncable[T]](local, remote T) bool {
	return local.Meta().SyncStatus == StatusSynced
}
