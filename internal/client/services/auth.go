// Package services contains the application services of the fleetcheck
// client. This file holds authentication: register, login, logout, the
// session check used as the sync precondition, and the liveness probe.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/fleetcheck/internal/client/client"
	"github.com/dmitrijs2005/fleetcheck/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/fleetcheck/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

var ErrEmptyCredentials = errors.New("username and password are required")

// AuthService defines authentication operations for the CLI.
//
// IsAuthenticated never touches the network: it only inspects the stored
// session. A session counts as usable while it has a refresh token or an
// access token that has not expired yet.
type AuthService interface {
	Register(ctx context.Context, username string, password []byte) error
	Login(ctx context.Context, username string, password []byte) error
	Logout(ctx context.Context) error
	IsAuthenticated(ctx context.Context) bool
	Username(ctx context.Context) (string, error)
	Ping(ctx context.Context) error
}

type authService struct {
	client client.Client
	meta   metadata.Repository
	now    func() time.Time
}

func NewAuthService(c client.Client, meta metadata.Repository) AuthService {
	return &authService{client: c, meta: meta, now: time.Now}
}

func (a *authService) Register(ctx context.Context, username string, password []byte) error {
	defer common.WipeByteArray(password)

	username = strings.TrimSpace(username)
	if username == "" || len(password) == 0 {
		return ErrEmptyCredentials
	}
	if err := a.client.Register(ctx, username, string(password)); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	return nil
}

// Login authenticates online; the client stores the issued tokens and the
// username is remembered for display.
func (a *authService) Login(ctx context.Context, username string, password []byte) error {
	defer common.WipeByteArray(password)

	username = strings.TrimSpace(username)
	if username == "" || len(password) == 0 {
		return ErrEmptyCredentials
	}
	if err := a.client.Login(ctx, username, string(password)); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if err := a.meta.Set(ctx, metadata.KeyUsername, []byte(username)); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Logout forgets the session. Local records, including unsynced ones, stay.
func (a *authService) Logout(ctx context.Context) error {
	return a.meta.Delete(ctx, metadata.KeyAccessToken, metadata.KeyRefreshToken, metadata.KeyUsername)
}

func (a *authService) IsAuthenticated(ctx context.Context) bool {
	access, err := a.meta.Get(ctx, metadata.KeyAccessToken)
	if err != nil || len(access) == 0 {
		return false
	}
	refresh, err := a.meta.Get(ctx, metadata.KeyRefreshToken)
	if err == nil && len(refresh) > 0 {
		return true
	}

	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(string(access), claims); err != nil {
		return false
	}
	return claims.ExpiresAt == nil || claims.ExpiresAt.After(a.now())
}

func (a *authService) Username(ctx context.Context) (string, error) {
	v, err := a.meta.Get(ctx, metadata.KeyUsername)
	if err != nil {
		return "", err
	}
	return string(v), nil
}

func (a *authService) Ping(ctx context.Context) error {
	return a.client.Ping(ctx)
}
