package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/fleetcheck/internal/server/repositories/records"
	"github.com/dmitrijs2005/fleetcheck/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/fleetcheck/internal/server/repositories/users"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T) *sql.DB {
	t.Helper()
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestFactories_ReturnConcreteRepos(t *testing.T) {
	db := newDB(t)
	m := NewPostgresRepositoryManager()

	assert.IsType(t, &users.PostgresRepository{}, m.Users(db))
	assert.IsType(t, &refreshtokens.PostgresRepository{}, m.RefreshTokens(db))
	assert.IsType(t, &records.PostgresRepository{}, m.Records(db))
}

func TestRunMigrations(t *testing.T) {
	tests := []struct {
		name    string
		upErr   error
		wantErr bool
	}{
		{name: "success"},
		{name: "goose error", upErr: errors.New("boom"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newDB(t)

			orig := gooseUpContext
			t.Cleanup(func() { gooseUpContext = orig })

			var gotDir string
			gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
				gotDir = dir
				return tt.upErr
			}

			err := NewPostgresRepositoryManager().RunMigrations(context.Background(), db)
			if tt.wantErr {
				assert.ErrorIs(t, err, tt.upErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, ".", gotDir)
		})
	}
}

func TestOpen_BadDSN(t *testing.T) {
	_, err := Open(context.Background(), "postgres://nobody@127.0.0.1:1/none?sslmode=disable&connect_timeout=1")
	assert.Error(t, err)
}
