package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/fleetcheck/internal/client/client"
	"github.com/dmitrijs2005/fleetcheck/internal/client/models"
	"github.com/dmitrijs2005/fleetcheck/internal/client/repositories/entities"
	"github.com/dmitrijs2005/fleetcheck/internal/common"
	"github.com/dmitrijs2005/fleetcheck/internal/logging"
	"golang.org/x/sync/errgroup"
)

// collectionSyncer runs the three phases for one collection.
type collectionSyncer interface {
	Name() string
	upload(ctx context.Context, force bool, st *passStats) error
	download(ctx context.Context, st *passStats) error
	resolve(ctx context.Context, st *passStats) error
}

type passStats struct {
	uploaded   atomic.Int64
	conflicts  atomic.Int64
	failed     atomic.Int64
	downloaded atomic.Int64
	resolved   atomic.Int64
}

func (p *passStats) snapshot() Stats {
	return Stats{
		Uploaded:   int(p.uploaded.Load()),
		Conflicts:  int(p.conflicts.Load()),
		Failed:     int(p.failed.Load()),
		Downloaded: int(p.downloaded.Load()),
		Resolved:   int(p.resolved.Load()),
	}
}

type collectionOptions struct {
	pageSize int
	workers  int
	strategy ConflictResolutionStrategy
	now      func() time.Time
	log      logging.Logger
}

// collection binds a local table to its remote endpoint. T is the stored
// record and D its wire form.
type collection[T models.Syncable[T], D any] struct {
	name    string
	local   entities.Repository[T]
	remote  client.Collection[D]
	toDTO   func(T) D
	fromDTO func(D) T
	opts    collectionOptions

	// remote copies of records that had unconfirmed local state during the
	// last download; consumed by resolve
	mu   sync.Mutex
	seen map[string]T
}

func newCollection[T models.Syncable[T], D any](
	name string,
	local entities.Repository[T],
	remote client.Collection[D],
	toDTO func(T) D,
	fromDTO func(D) T,
	opts collectionOptions,
) *collection[T, D] {
	return &collection[T, D]{
		name:    name,
		local:   local,
		remote:  remote,
		toDTO:   toDTO,
		fromDTO: fromDTO,
		opts:    opts,
		seen:    map[string]T{},
	}
}

func (c *collection[T, D]) Name() string { return c.name }

func (c *collection[T, D]) upload(ctx context.Context, force bool, st *passStats) error {
	pending, err := c.local.GetByStatus(ctx, models.StatusPendingUpload)
	if err != nil {
		return fmt.Errorf("%s: load pending: %w", c.name, err)
	}
	if len(pending) == 0 {
		return nil
	}
	c.opts.log.Debug(ctx, "uploading pending records", "collection", c.name, "count", len(pending))

	workers := c.opts.workers
	if workers < 1 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, e := range pending {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() (err error) {
			// errgroup goroutines are outside the engine's recover
			defer func() {
				if p := recover(); p != nil {
					c.opts.log.Error(ctx, "upload panicked", "collection", c.name, "id", e.Meta().ID, "panic", p)
					err = panicError(p)
				}
			}()
			if err := gctx.Err(); err != nil {
				return err
			}
			err = c.uploadOne(gctx, e, st)
			if err == nil {
				return nil
			}
			st.failed.Add(1)
			if force && ctx.Err() == nil {
				c.opts.log.Warn(gctx, "upload failed, continuing", "collection", c.name, "id", e.Meta().ID, "error", err)
				return nil
			}
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (c *collection[T, D]) uploadOne(ctx context.Context, e T, st *passStats) error {
	stored, err := c.push(ctx, e)
	if err != nil {
		return err
	}
	if err := c.local.Update(ctx, stored); err != nil {
		return fmt.Errorf("%s[%s]: store: %w", c.name, e.Meta().ID, err)
	}
	if stored.Meta().SyncStatus == models.StatusConflict {
		st.conflicts.Add(1)
	} else {
		st.uploaded.Add(1)
	}
	return nil
}

// push sends one record. Records at version 1 were never acknowledged and
// are created, everything else is updated; each falls back to the other when
// the backend disagrees about existence. A stale update is not an error: the
// record comes back flagged CONFLICT.
func (c *collection[T, D]) push(ctx context.Context, e T) (T, error) {
	m := e.Meta()
	dto := c.toDTO(e)

	var (
		out D
		err error
	)
	if m.Version <= 1 {
		out, err = c.remote.Create(ctx, dto)
		if errors.Is(err, client.ErrConflict) {
			out, err = c.remote.Update(ctx, m.ID, dto)
		}
	} else {
		out, err = c.remote.Update(ctx, m.ID, dto)
		if errors.Is(err, client.ErrNotFound) {
			out, err = c.remote.Create(ctx, dto)
		}
	}

	switch {
	case errors.Is(err, client.ErrConflict):
		c.opts.log.Info(ctx, "remote rejected stale record", "collection", c.name, "id", m.ID, "version", m.Version)
		return e.WithUpdatedSync(models.StatusConflict, m.LastModifiedTime, m.Version), nil
	case err != nil:
		var zero T
		return zero, fmt.Errorf("%s[%s]: %w", c.name, m.ID, err)
	}

	// the acceptance time assigned by the backend is the fresh stamp; a later
	// download then sees an echo instead of a change
	rm := c.fromDTO(out).Meta()
	stamp := rm.LastModifiedTime
	if stamp.IsZero() {
		stamp = c.opts.now()
	}
	return e.WithUpdatedSync(models.StatusSynced, stamp, max(m.Version, rm.Version)), nil
}

func (c *collection[T, D]) download(ctx context.Context, st *passStats) error {
	c.mu.Lock()
	c.seen = map[string]T{}
	c.mu.Unlock()

	size := c.opts.pageSize
	if size < 1 {
		size = 100
	}

	for page := 1; ; page++ {
		p, err := c.remote.List(ctx, page, size)
		if err != nil {
			return fmt.Errorf("%s: %w", c.name, err)
		}
		for _, d := range p.Items {
			if err := c.apply(ctx, c.fromDTO(d), st); err != nil {
				return err
			}
		}
		if !p.HasMore() {
			return nil
		}
	}
}

func (c *collection[T, D]) apply(ctx context.Context, remote T, st *passStats) error {
	rm := remote.Meta()
	if rm.ID == "" {
		return fmt.Errorf("%s: %w: record without id", c.name, common.ErrInvalidPayload)
	}

	local, err := c.local.GetByID(ctx, rm.ID)
	if errors.Is(err, common.ErrorNotFound) {
		if err := c.local.Insert(ctx, remote); err != nil {
			return fmt.Errorf("%s[%s]: insert: %w", c.name, rm.ID, err)
		}
		st.downloaded.Add(1)
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s[%s]: load: %w", c.name, rm.ID, err)
	}

	if !models.ShouldDownloadRemoteChange(local, remote) {
		c.mu.Lock()
		c.seen[rm.ID] = remote
		c.mu.Unlock()
		return nil
	}

	lm := local.Meta()
	if lm.LastModifiedTime.Equal(rm.LastModifiedTime) && lm.Version >= rm.Version {
		return nil
	}
	if err := c.local.Update(ctx, takeRemote(local, remote)); err != nil {
		return fmt.Errorf("%s[%s]: update: %w", c.name, rm.ID, err)
	}
	st.downloaded.Add(1)
	return nil
}

func (c *collection[T, D]) resolve(ctx context.Context, st *passStats) error {
	conflicted, err := c.local.GetByStatus(ctx, models.StatusConflict)
	if err != nil {
		return fmt.Errorf("%s: load conflicts: %w", c.name, err)
	}

	for _, local := range conflicted {
		if err := ctx.Err(); err != nil {
			return err
		}

		lm := local.Meta()
		c.mu.Lock()
		remote, haveRemote := c.seen[lm.ID]
		c.mu.Unlock()

		var remoteMeta *models.SyncMeta
		if haveRemote {
			m := remote.Meta()
			remoteMeta = &m
		}

		var resolved T
		switch {
		case c.opts.strategy.localWins(lm, derefMeta(remoteMeta), haveRemote):
			resolved, err = c.push(ctx, bumpForReupload(local, remoteMeta, c.opts.now()))
			if err != nil {
				return err
			}
		case haveRemote:
			resolved = takeRemote(local, remote)
		default:
			resolved = local.WithUpdatedSync(models.StatusSynced, lm.LastModifiedTime, lm.Version)
		}

		if err := c.local.Update(ctx, resolved); err != nil {
			return fmt.Errorf("%s[%s]: store: %w", c.name, lm.ID, err)
		}
		if resolved.Meta().SyncStatus != models.StatusSynced {
			c.opts.log.Warn(ctx, "conflict still open", "collection", c.name, "id", lm.ID,
				"strategy", string(c.opts.strategy))
			st.conflicts.Add(1)
			continue
		}
		c.opts.log.Info(ctx, "conflict resolved", "collection", c.name, "id", lm.ID,
			"strategy", string(c.opts.strategy))
		st.resolved.Add(1)
	}
	return nil
}

func derefMeta(m *models.SyncMeta) models.SyncMeta {
	if m == nil {
		return models.SyncMeta{}
	}
	return *m
}
