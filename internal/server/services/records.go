package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/fleetcheck/internal/api"
	"github.com/dmitrijs2005/fleetcheck/internal/common"
	"github.com/dmitrijs2005/fleetcheck/internal/dbx"
	"github.com/dmitrijs2005/fleetcheck/internal/logging"
	"github.com/dmitrijs2005/fleetcheck/internal/server/metrics"
	"github.com/dmitrijs2005/fleetcheck/internal/server/models"
	"github.com/dmitrijs2005/fleetcheck/internal/server/repositories/records"
	"github.com/dmitrijs2005/fleetcheck/internal/server/repositories/repomanager"
)

const (
	DefaultPageSize = 100
	MaxPageSize     = 500
)

var (
	ErrUnknownCollection = errors.New("unknown collection")
	ErrIDMismatch        = errors.New("id in body does not match path")
)

// ChangePublisher announces accepted writes. Publishing is best effort.
type ChangePublisher interface {
	PublishChange(ctx context.Context, n api.ChangeNotification) error
}

// RecordService stores the documents of every synchronizable collection.
// Records are shared by all users of the department; the author of the last
// write is kept for auditing only.
//
// Version rule: a create stores the client's version (at least 1); an update
// is accepted only when the incoming version is greater than the stored one,
// otherwise records.ErrStaleVersion is returned. The acceptance time becomes
// updated_at.
type RecordService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	publisher   ChangePublisher
	metrics     *metrics.Metrics
	log         logging.Logger
	now         func() time.Time
}

func NewRecordService(db *sql.DB, m repomanager.RepositoryManager, pub ChangePublisher, mx *metrics.Metrics, log logging.Logger) *RecordService {
	return &RecordService{
		db:          db,
		repomanager: m,
		publisher:   pub,
		metrics:     mx,
		log:         log.With("module", "records"),
		now:         func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// List returns one page of a collection in insertion order. page starts at
// 1; out-of-range sizes fall back to DefaultPageSize or are capped at
// MaxPageSize.
func (s *RecordService) List(ctx context.Context, collection string, page, size int) (api.Page[json.RawMessage], error) {
	if !api.IsCollection(collection) {
		return api.Page[json.RawMessage]{}, fmt.Errorf("%w: %q", ErrUnknownCollection, collection)
	}
	if page < 1 {
		page = 1
	}
	switch {
	case size < 1:
		size = DefaultPageSize
	case size > MaxPageSize:
		size = MaxPageSize
	}

	recs, total, err := s.repomanager.Records(s.db).List(ctx, collection, (page-1)*size, size)
	if err != nil {
		return api.Page[json.RawMessage]{}, err
	}

	items := make([]json.RawMessage, 0, len(recs))
	for _, r := range recs {
		doc, err := render(r)
		if err != nil {
			return api.Page[json.RawMessage]{}, err
		}
		items = append(items, doc)
	}
	return api.Page[json.RawMessage]{Items: items, Page: page, Size: size, Total: total}, nil
}

func (s *RecordService) Get(ctx context.Context, collection, id string) (json.RawMessage, error) {
	if !api.IsCollection(collection) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCollection, collection)
	}
	rec, err := s.repomanager.Records(s.db).Get(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	return render(*rec)
}

// Create stores a new record. An existing ID yields common.ErrAlreadyExists.
func (s *RecordService) Create(ctx context.Context, userID, collection string, body json.RawMessage) (json.RawMessage, error) {
	meta, err := s.decode(collection, body)
	if err != nil {
		s.metrics.RecordWrite(collection, "create", "invalid")
		return nil, err
	}
	if meta.ID == "" {
		s.metrics.RecordWrite(collection, "create", "invalid")
		return nil, fmt.Errorf("%w: id is required", common.ErrInvalidPayload)
	}

	now := s.now()
	rec := &models.Record{
		Collection: collection,
		ID:         meta.ID,
		Version:    max(meta.Version, 1),
		CreatedAt:  now,
		UpdatedAt:  now,
		UpdatedBy:  userID,
	}
	if !meta.CreatedAt.IsZero() {
		rec.CreatedAt = meta.CreatedAt.UTC().Truncate(time.Microsecond)
	}
	if rec.Payload, err = api.WithMeta(body, rec.Meta()); err != nil {
		s.metrics.RecordWrite(collection, "create", "invalid")
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidPayload, err)
	}

	if err := s.repomanager.Records(s.db).Create(ctx, rec); err != nil {
		s.metrics.RecordWrite(collection, "create", outcome(err))
		return nil, err
	}

	s.metrics.RecordWrite(collection, "create", "ok")
	s.log.Info(ctx, "record created", "collection", collection, "id", rec.ID, "version", rec.Version, "user", userID)
	s.notify(ctx, rec)
	return rec.Payload, nil
}

// Update replaces a record under the version rule. Unknown IDs yield
// common.ErrorNotFound.
func (s *RecordService) Update(ctx context.Context, userID, collection, id string, body json.RawMessage) (json.RawMessage, error) {
	meta, err := s.decode(collection, body)
	if err != nil {
		s.metrics.RecordWrite(collection, "update", "invalid")
		return nil, err
	}
	if meta.ID != "" && meta.ID != id {
		s.metrics.RecordWrite(collection, "update", "invalid")
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidPayload, ErrIDMismatch)
	}
	if meta.Version < 1 {
		s.metrics.RecordWrite(collection, "update", "invalid")
		return nil, fmt.Errorf("%w: version must be positive", common.ErrInvalidPayload)
	}

	rec := &models.Record{
		Collection: collection,
		ID:         id,
		Version:    meta.Version,
		UpdatedAt:  s.now(),
		UpdatedBy:  userID,
	}
	if rec.Payload, err = api.WithMeta(body, rec.Meta()); err != nil {
		s.metrics.RecordWrite(collection, "update", "invalid")
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidPayload, err)
	}

	var stored *models.Record
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Records(tx)
		if err := repo.Update(ctx, rec); err != nil {
			return err
		}
		var err error
		stored, err = repo.Get(ctx, collection, id)
		return err
	})
	if err != nil {
		s.metrics.RecordWrite(collection, "update", outcome(err))
		if errors.Is(err, records.ErrStaleVersion) {
			s.log.Info(ctx, "stale update rejected", "collection", collection, "id", id, "version", meta.Version, "user", userID)
		}
		return nil, err
	}

	s.metrics.RecordWrite(collection, "update", "ok")
	s.log.Info(ctx, "record updated", "collection", collection, "id", id, "version", stored.Version, "user", userID)
	s.notify(ctx, stored)
	return render(*stored)
}

func (s *RecordService) decode(collection string, body json.RawMessage) (api.Meta, error) {
	if !api.IsCollection(collection) {
		return api.Meta{}, fmt.Errorf("%w: %q", ErrUnknownCollection, collection)
	}
	var meta api.Meta
	if err := json.Unmarshal(body, &meta); err != nil {
		return api.Meta{}, fmt.Errorf("%w: %v", common.ErrInvalidPayload, err)
	}
	return meta, nil
}

func (s *RecordService) notify(ctx context.Context, rec *models.Record) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishChange(ctx, api.ChangeNotification{
		Collection: rec.Collection,
		ID:         rec.ID,
		Version:    rec.Version,
	})
	s.metrics.Published(err == nil)
	if err != nil {
		s.log.Warn(ctx, "change notification not published", "collection", rec.Collection, "id", rec.ID, "error", err)
	}
}

// render writes the column-held metadata back into the stored document.
func render(r models.Record) (json.RawMessage, error) {
	doc, err := api.WithMeta(r.Payload, r.Meta())
	if err != nil {
		return nil, fmt.Errorf("%s[%s]: %w", r.Collection, r.ID, err)
	}
	return doc, nil
}

func outcome(err error) string {
	switch {
	case errors.Is(err, records.ErrStaleVersion), errors.Is(err, common.ErrAlreadyExists):
		return "conflict"
	case errors.Is(err, common.ErrorNotFound):
		return "not_found"
	default:
		return "error"
	}
}
