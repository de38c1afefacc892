// Package tokenstore persists the access and refresh tokens. Backends are
// key/value stores that write and delete several keys as one operation;
// Store maps the token pair onto two fixed keys.
package tokenstore

import (
	"context"
	"errors"
	"fmt"

	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/apperr"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/model"
)

const (
	AccessTokenKey  = "accessToken"
	RefreshTokenKey = "refreshToken"
)

// Backend returns apperr.ErrNotFound from Get for a missing key. Set and
// Delete apply to all given keys or to none. Deleting a missing key is not an
// error.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, values map[string]string) error
	Delete(ctx context.Context, keys ...string) error
}

type Store struct {
	backend Backend
}

func New(backend Backend) *Store {
	return &Store{backend: backend}
}

// Load returns the persisted pair. Missing keys yield empty strings.
func (s *Store) Load(ctx context.Context) (model.Tokens, error) {
	access, err := s.get(ctx, AccessTokenKey)
	if err != nil {
		return model.Tokens{}, err
	}
	refresh, err := s.get(ctx, RefreshTokenKey)
	if err != nil {
		return model.Tokens{}, err
	}
	return model.Tokens{AccessToken: access, RefreshToken: refresh}, nil
}

// Save replaces the pair in one backend write, so a reader never sees a new
// access token next to an old refresh token.
func (s *Store) Save(ctx context.Context, tokens model.Tokens) error {
	err := s.backend.Set(ctx, map[string]string{
		AccessTokenKey:  tokens.AccessToken,
		RefreshTokenKey: tokens.RefreshToken,
	})
	if err != nil {
		return fmt.Errorf("failed to save tokens: %w", err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	if err := s.backend.Delete(ctx, AccessTokenKey, RefreshTokenKey); err != nil {
		return fmt.Errorf("failed to clear tokens: %w", err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, key string) (string, error) {
	v, err := s.backend.Get(ctx, key)
	if errors.Is(err, apperr.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return v, nil
}
