package models

import (
	"encoding/json"
	"time"

	"github.com/dmitrijs2005/fleetcheck/internal/api"
)

// Record is one stored document of a synchronizable collection. The payload
// is the client DTO as JSON; ID, version and timestamps live in columns and
// are written back into the payload on read.
type Record struct {
	Collection string
	ID         string
	Version    int64
	Payload    json.RawMessage
	CreatedAt  time.Time
	UpdatedAt  time.Time
	UpdatedBy  string
}

func (r Record) Meta() api.Meta {
	return api.Meta{ID: r.ID, Version: r.Version, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt}
}
