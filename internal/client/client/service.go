package client

import (
	"context"

	"github.com/dmitrijs2005/fleetcheck/internal/api"
)

// Client is the non-collection part of the backend API.
type Client interface {
	Register(ctx context.Context, username, password string) error
	Login(ctx context.Context, username, password string) error
	Ping(ctx context.Context) error
	PhotoUploadURL(ctx context.Context, executionID, itemID string) (api.PhotoUploadResponse, error)
}

// Collection is the stateless remote side of one synchronizable collection.
// Pages are numbered from 1.
type Collection[D any] interface {
	List(ctx context.Context, page, size int) (api.Page[D], error)
	Create(ctx context.Context, dto D) (D, error)
	Update(ctx context.Context, id string, dto D) (D, error)
}

// TokenStore persists the bearer tokens between runs.
type TokenStore interface {
	Tokens(ctx context.Context) (access, refresh string, err error)
	SaveTokens(ctx context.Context, access, refresh string) error
}
