package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/fleetcheck/internal/common"
	"github.com/dmitrijs2005/fleetcheck/internal/cryptox"
	"github.com/dmitrijs2005/fleetcheck/internal/server/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newUserService(t *testing.T) (*UserService, *fakeRepoManager, sqlmock.Sqlmock) {
	t.Helper()
	cryptox.Cost = bcrypt.MinCost
	t.Cleanup(func() { cryptox.Cost = bcrypt.DefaultCost })

	db, mock := newSQLMockDB(t)
	rm := newFakeRepoManager()
	cfg := &config.Config{
		SecretKey:                    "k",
		AccessTokenValidityDuration:  time.Hour,
		RefreshTokenValidityDuration: 2 * time.Hour,
	}
	return NewUserService(db, rm, cfg), rm, mock
}

func TestRegister(t *testing.T) {
	s, rm, _ := newUserService(t)

	u, err := s.Register(context.Background(), "  maschinist ", "geheim")
	require.NoError(t, err)
	assert.Equal(t, "maschinist", u.UserName)
	assert.NotEqual(t, []byte("geheim"), u.PasswordHash)
	assert.NoError(t, cryptox.CheckPassword(rm.u.byName["maschinist"].PasswordHash, []byte("geheim")))

	_, err = s.Register(context.Background(), "maschinist", "other")
	assert.ErrorIs(t, err, common.ErrAlreadyExists)
}

func TestRegister_Invalid(t *testing.T) {
	s, _, _ := newUserService(t)

	_, err := s.Register(context.Background(), " ", "pw")
	assert.ErrorIs(t, err, common.ErrInvalidPayload)

	_, err = s.Register(context.Background(), "name", "")
	assert.ErrorIs(t, err, common.ErrInvalidPayload)
}

func TestLogin(t *testing.T) {
	s, rm, _ := newUserService(t)
	_, err := s.Register(context.Background(), "alice", "pw")
	require.NoError(t, err)

	pair, err := s.Login(context.Background(), "alice", "pw")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.Len(t, pair.RefreshToken, 64)

	uid, err := s.Authenticate(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, rm.u.byName["alice"].ID, uid)

	stored, ok := rm.r.tokens[pair.RefreshToken]
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), stored.Expires, time.Minute)
}

func TestLogin_Failures(t *testing.T) {
	s, rm, _ := newUserService(t)
	_, err := s.Register(context.Background(), "alice", "pw")
	require.NoError(t, err)

	_, err = s.Login(context.Background(), "alice", "wrong")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	_, err = s.Login(context.Background(), "bob", "pw")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	rm.u.getErr = errors.New("db down")
	_, err = s.Login(context.Background(), "alice", "pw")
	assert.ErrorIs(t, err, common.ErrorInternal)
}

func TestLogin_TokenStoreFailure(t *testing.T) {
	s, rm, _ := newUserService(t)
	_, err := s.Register(context.Background(), "alice", "pw")
	require.NoError(t, err)

	rm.r.createErr = errors.New("db down")
	_, err = s.Login(context.Background(), "alice", "pw")
	assert.ErrorIs(t, err, common.ErrorInternal)
}

func TestRefreshToken_Rotates(t *testing.T) {
	s, rm, mock := newUserService(t)
	require.NoError(t, rm.r.Create(context.Background(), "u1", "old", time.Now().Add(time.Hour)))

	mock.ExpectBegin()
	mock.ExpectCommit()

	pair, err := s.RefreshToken(context.Background(), "old")
	require.NoError(t, err)
	assert.NotEqual(t, "old", pair.RefreshToken)

	_, stillThere := rm.r.tokens["old"]
	assert.False(t, stillThere)
	assert.Equal(t, "u1", rm.r.tokens[pair.RefreshToken].UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshToken_Failures(t *testing.T) {
	t.Run("unknown", func(t *testing.T) {
		s, _, _ := newUserService(t)
		_, err := s.RefreshToken(context.Background(), "nope")
		assert.ErrorIs(t, err, common.ErrorUnauthorized)
	})

	t.Run("expired", func(t *testing.T) {
		s, rm, _ := newUserService(t)
		require.NoError(t, rm.r.Create(context.Background(), "u1", "old", time.Now().Add(-time.Minute)))
		_, err := s.RefreshToken(context.Background(), "old")
		assert.ErrorIs(t, err, common.ErrRefreshTokenExpired)
	})

	t.Run("delete fails rolls back", func(t *testing.T) {
		s, rm, mock := newUserService(t)
		require.NoError(t, rm.r.Create(context.Background(), "u1", "old", time.Now().Add(time.Hour)))
		rm.r.deleteErr = errors.New("db err")

		mock.ExpectBegin()
		mock.ExpectRollback()

		_, err := s.RefreshToken(context.Background(), "old")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "error deleting refresh token")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPurgeExpiredTokens(t *testing.T) {
	s, rm, _ := newUserService(t)
	ctx := context.Background()
	require.NoError(t, rm.r.Create(ctx, "u1", "a", time.Now().Add(-time.Hour)))
	require.NoError(t, rm.r.Create(ctx, "u1", "b", time.Now().Add(time.Hour)))

	n, err := s.PurgeExpiredTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Contains(t, rm.r.tokens, "b")
}
