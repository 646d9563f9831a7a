package syncer

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/fleetcheck/internal/api"
	"github.com/dmitrijs2005/fleetcheck/internal/client/client"
	"github.com/dmitrijs2005/fleetcheck/internal/logging"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 9, 1, 6, 0, 0, 0, time.UTC)

type fakeAuth struct {
	ok    bool
	calls atomic.Int32
}

func (f *fakeAuth) IsAuthenticated(context.Context) bool {
	f.calls.Add(1)
	return f.ok
}

// fakeRemote is an in-memory backend collection. Updates with a version not
// above the stored one are rejected as stale, like the real server does.
type fakeRemote[D any] struct {
	mu       sync.Mutex
	meta     func(D) api.Meta
	withMeta func(D, api.Meta) D
	records  []D
	clock    time.Time

	listErr  error
	failIDs  map[string]error
	listHook func()
	pushHook func(id string)

	creates atomic.Int32
	updates atomic.Int32
	lists   atomic.Int32
}

func newFakeRemote[D any](meta func(D) api.Meta, withMeta func(D, api.Meta) D) *fakeRemote[D] {
	return &fakeRemote[D]{meta: meta, withMeta: withMeta, clock: t0.Add(24 * time.Hour), failIDs: map[string]error{}}
}

// stamp sets the server-side acceptance time.
func (f *fakeRemote[D]) stamp(d D) D {
	f.clock = f.clock.Add(time.Second)
	m := f.meta(d)
	m.UpdatedAt = f.clock
	return f.withMeta(d, m)
}

func (f *fakeRemote[D]) calls() int {
	return int(f.creates.Load() + f.updates.Load() + f.lists.Load())
}

func (f *fakeRemote[D]) find(id string) int {
	for i, r := range f.records {
		if f.meta(r).ID == id {
			return i
		}
	}
	return -1
}

func (f *fakeRemote[D]) get(id string) (D, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i := f.find(id); i >= 0 {
		return f.records[i], true
	}
	var zero D
	return zero, false
}

func (f *fakeRemote[D]) List(ctx context.Context, page, size int) (api.Page[D], error) {
	f.lists.Add(1)
	if f.listHook != nil {
		f.listHook()
	}
	if f.listErr != nil {
		return api.Page[D]{}, f.listErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	from := (page - 1) * size
	to := min(from+size, len(f.records))
	var items []D
	if from < len(f.records) {
		items = append(items, f.records[from:to]...)
	}
	return api.Page[D]{Items: items, Page: page, Size: size, Total: len(f.records)}, nil
}

func (f *fakeRemote[D]) Create(ctx context.Context, d D) (D, error) {
	f.creates.Add(1)
	var zero D
	id := f.meta(d).ID
	if f.pushHook != nil {
		f.pushHook(id)
	}
	if err := f.failIDs[id]; err != nil {
		return zero, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.find(id) >= 0 {
		return zero, client.ErrConflict
	}
	d = f.stamp(d)
	f.records = append(f.records, d)
	return d, nil
}

func (f *fakeRemote[D]) Update(ctx context.Context, id string, d D) (D, error) {
	f.updates.Add(1)
	var zero D
	if f.pushHook != nil {
		f.pushHook(id)
	}
	if err := f.failIDs[id]; err != nil {
		return zero, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.find(id)
	if i < 0 {
		return zero, client.ErrNotFound
	}
	if f.meta(f.records[i]).Version >= f.meta(d).Version {
		return zero, client.ErrConflict
	}
	d = f.stamp(d)
	f.records[i] = d
	return d, nil
}

type harness struct {
	repos      *client.Repositories
	types      *fakeRemote[api.VehicleTypeDTO]
	groups     *fakeRemote[api.VehicleGroupDTO]
	vehicles   *fakeRemote[api.VehicleDTO]
	checklists *fakeRemote[api.ChecklistDTO]
	executions *fakeRemote[api.ChecklistExecutionDTO]
	auth       *fakeAuth
	state      *StateStore
	engine     *Engine
	clock      atomic.Int64
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	ctx := context.Background()

	db, err := client.InitDatabase(ctx, filepath.Join(t.TempDir(), "fleet.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	h := &harness{
		repos:      client.NewRepositories(db),
		types:      newFakeRemote(func(d api.VehicleTypeDTO) api.Meta { return d.Meta },
			func(d api.VehicleTypeDTO, m api.Meta) api.VehicleTypeDTO { d.Meta = m; return d }),
		groups:     newFakeRemote(func(d api.VehicleGroupDTO) api.Meta { return d.Meta },
			func(d api.VehicleGroupDTO, m api.Meta) api.VehicleGroupDTO { d.Meta = m; return d }),
		vehicles:   newFakeRemote(func(d api.VehicleDTO) api.Meta { return d.Meta },
			func(d api.VehicleDTO, m api.Meta) api.VehicleDTO { d.Meta = m; return d }),
		checklists: newFakeRemote(func(d api.ChecklistDTO) api.Meta { return d.Meta },
			func(d api.ChecklistDTO, m api.Meta) api.ChecklistDTO { d.Meta = m; return d }),
		executions: newFakeRemote(func(d api.ChecklistExecutionDTO) api.Meta { return d.Meta },
			func(d api.ChecklistExecutionDTO, m api.Meta) api.ChecklistExecutionDTO { d.Meta = m; return d }),
		auth:       &fakeAuth{ok: true},
		state:      NewStateStore(State{}),
	}
	h.rebuild(cfg)
	return h
}

func (h *harness) rebuild(cfg Config) {
	remote := &client.Collections{
		VehicleTypes:  h.types,
		VehicleGroups: h.groups,
		Vehicles:      h.vehicles,
		Checklists:    h.checklists,
		Executions:    h.executions,
	}
	h.engine = NewEngine(h.auth, h.repos, remote, h.state, cfg, logging.NewNop(), WithClock(h.now))
}

// now advances one second per call.
func (h *harness) now() time.Time {
	return t0.Add(time.Duration(h.clock.Add(1)) * time.Second)
}

func (h *harness) remoteCalls() int {
	return h.types.calls() + h.groups.calls() + h.vehicles.calls() + h.checklists.calls() + h.executions.calls()
}

func (h *harness) listCalls() int {
	return int(h.types.lists.Load() + h.groups.lists.Load() + h.vehicles.lists.Load() +
		h.checklists.lists.Load() + h.executions.lists.Load())
}
