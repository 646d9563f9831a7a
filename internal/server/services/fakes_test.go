package services

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/fleetcheck/internal/api"
	"github.com/dmitrijs2005/fleetcheck/internal/common"
	"github.com/dmitrijs2005/fleetcheck/internal/dbx"
	"github.com/dmitrijs2005/fleetcheck/internal/server/models"
	"github.com/dmitrijs2005/fleetcheck/internal/server/repositories/records"
	"github.com/dmitrijs2005/fleetcheck/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/fleetcheck/internal/server/repositories/users"
	"github.com/stretchr/testify/require"
)

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

type fakeUsersRepo struct {
	mu     sync.Mutex
	byName map[string]*models.User
	getErr error
}

func newFakeUsers() *fakeUsersRepo {
	return &fakeUsersRepo{byName: map[string]*models.User{}}
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byName[u.UserName]; ok {
		return nil, common.ErrAlreadyExists
	}
	cp := *u
	cp.ID = fmt.Sprintf("u-%d", len(f.byName)+1)
	cp.CreatedAt = time.Now()
	f.byName[u.UserName] = &cp
	return &cp, nil
}

func (f *fakeUsersRepo) GetUserByLogin(ctx context.Context, login string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byName[login]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

type fakeRefreshRepo struct {
	mu        sync.Mutex
	tokens    map[string]models.RefreshToken
	createErr error
	deleteErr error
}

func newFakeRefresh() *fakeRefreshRepo {
	return &fakeRefreshRepo{tokens: map[string]models.RefreshToken{}}
}

func (f *fakeRefreshRepo) Create(ctx context.Context, userID, token string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.tokens[token] = models.RefreshToken{UserID: userID, Token: token, Expires: expiresAt}
	return nil
}

func (f *fakeRefreshRepo) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rt, ok := f.tokens[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &rt, nil
}

func (f *fakeRefreshRepo) Delete(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.tokens, token)
	return nil
}

func (f *fakeRefreshRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for k, rt := range f.tokens {
		if rt.Expires.Before(now) {
			delete(f.tokens, k)
			n++
		}
	}
	return n, nil
}

// fakeRecordsRepo mirrors the Postgres semantics in memory, including the
// version compare-and-set of Update.
type fakeRecordsRepo struct {
	mu    sync.Mutex
	order []string
	rows  map[string]models.Record
	err   error
}

func newFakeRecords() *fakeRecordsRepo {
	return &fakeRecordsRepo{rows: map[string]models.Record{}}
}

func rowKey(collection, id string) string { return collection + "/" + id }

func (f *fakeRecordsRepo) List(ctx context.Context, collection string, offset, limit int) ([]models.Record, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, 0, f.err
	}
	var all []models.Record
	for _, k := range f.order {
		if r := f.rows[k]; r.Collection == collection {
			all = append(all, r)
		}
	}
	if offset > len(all) {
		offset = len(all)
	}
	end := min(offset+limit, len(all))
	return all[offset:end], len(all), nil
}

func (f *fakeRecordsRepo) Get(ctx context.Context, collection, id string) (*models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	r, ok := f.rows[rowKey(collection, id)]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &r, nil
}

func (f *fakeRecordsRepo) Create(ctx context.Context, rec *models.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	k := rowKey(rec.Collection, rec.ID)
	if _, ok := f.rows[k]; ok {
		return common.ErrAlreadyExists
	}
	f.rows[k] = *rec
	f.order = append(f.order, k)
	return nil
}

func (f *fakeRecordsRepo) Update(ctx context.Context, rec *models.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	k := rowKey(rec.Collection, rec.ID)
	cur, ok := f.rows[k]
	if !ok {
		return common.ErrorNotFound
	}
	if rec.Version <= cur.Version {
		return fmt.Errorf("%w: stored %d, got %d", records.ErrStaleVersion, cur.Version, rec.Version)
	}
	cur.Version = rec.Version
	cur.Payload = rec.Payload
	cur.UpdatedAt = rec.UpdatedAt
	cur.UpdatedBy = rec.UpdatedBy
	f.rows[k] = cur
	return nil
}

type fakeRepoManager struct {
	u   *fakeUsersRepo
	r   *fakeRefreshRepo
	rec *fakeRecordsRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{u: newFakeUsers(), r: newFakeRefresh(), rec: newFakeRecords()}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error    { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) users.Repository             { return m.u }
func (m *fakeRepoManager) RefreshTokens(db dbx.DBTX) refreshtokens.Repository { return m.r }
func (m *fakeRepoManager) Records(db dbx.DBTX) records.Repository         { return m.rec }

type fakePublisher struct {
	mu   sync.Mutex
	sent []api.ChangeNotification
	err  error
}

func (p *fakePublisher) PublishChange(ctx context.Context, n api.ChangeNotification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, n)
	return nil
}

func (p *fakePublisher) Sent() []api.ChangeNotification {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]api.ChangeNotification(nil), p.sent...)
}
