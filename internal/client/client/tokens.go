package client

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/fleetcheck/internal/client/repositories/metadata"
)

// MetadataTokenStore keeps tokens in the local metadata table.
type MetadataTokenStore struct {
	repo metadata.Repository
}

func NewMetadataTokenStore(repo metadata.Repository) *MetadataTokenStore {
	return &MetadataTokenStore{repo: repo}
}

func (s *MetadataTokenStore) Tokens(ctx context.Context) (string, string, error) {
	access, err := s.repo.Get(ctx, metadata.KeyAccessToken)
	if err != nil {
		return "", "", fmt.Errorf("read access token: %w", err)
	}
	refresh, err := s.repo.Get(ctx, metadata.KeyRefreshToken)
	if err != nil {
		return "", "", fmt.Errorf("read refresh token: %w", err)
	}
	return string(access), string(refresh), nil
}

func (s *MetadataTokenStore) SaveTokens(ctx context.Context, access, refresh string) error {
	if err := s.repo.Set(ctx, metadata.KeyAccessToken, []byte(access)); err != nil {
		return err
	}
	return s.repo.Set(ctx, metadata.KeyRefreshToken, []byte(refresh))
}
