package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/fleetcheck/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	insertQuery = `(?s)^INSERT\s+INTO\s+refresh_tokens\b.*VALUES\s*\(\$1,\s*\$2,\s*\$3\)\s*$`
	findQuery   = `(?s)^SELECT\s+user_id,\s*expires_at\s+FROM\s+refresh_tokens\s+WHERE\s+token\s*=\s*\$1\s*$`
	deleteQuery = `(?s)^DELETE\s+FROM\s+refresh_tokens\s+WHERE\s+token\s*=\s*\$1\s*$`
	purgeQuery  = `(?s)^DELETE\s+FROM\s+refresh_tokens\s+WHERE\s+expires_at\s*<\s*\$1\s*$`
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

func TestCreate(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	exp := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(insertQuery).
		WithArgs("u1", "tok123", exp).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), "u1", "tok123", exp))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(insertQuery).
		WithArgs("u1", "tok123", sqlmock.AnyArg()).
		WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), "u1", "tok123", time.Now())
	require.Error(t, err)
	assert.Regexp(t, `db error: .*db down`, err.Error())
}

func TestFind(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	expires := time.Now().Add(10 * time.Minute)

	mock.ExpectQuery(findQuery).
		WithArgs("tok123").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "expires_at"}).AddRow("u1", expires))

	got, err := repo.Find(context.Background(), "tok123")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, "tok123", got.Token)
	assert.True(t, got.Expires.Equal(expires))
}

func TestFind_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(findQuery).WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := repo.Find(context.Background(), "missing")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestFind_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(findQuery).WithArgs("tok123").WillReturnError(errors.New("db err"))

	_, err := repo.Find(context.Background(), "tok123")
	require.Error(t, err)
	assert.Regexp(t, `db error: .*db err`, err.Error())
}

func TestDelete(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(deleteQuery).WithArgs("tok123").WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), "tok123"))

	mock.ExpectExec(deleteQuery).WithArgs("tok123").WillReturnError(errors.New("db err"))
	err := repo.Delete(context.Background(), "tok123")
	require.Error(t, err)
	assert.Regexp(t, `db error: .*db err`, err.Error())
}

func TestDeleteExpired(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(purgeQuery).WithArgs(now).WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
