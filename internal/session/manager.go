//go:generate mockgen -source ./manager.go -destination=./mocks/manager.go -package=mock_session

// Package session owns the authenticated identity of the client. It is the
// only writer of the session; everyone else reads value snapshots.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/apperr"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/metrics"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/model"
)

const refreshKey = "refresh"

var (
	ErrNoSession    = errors.New("no active session")
	ErrSessionEnded = errors.New("session ended while refreshing")
)

type TokenStore interface {
	Load(ctx context.Context) (model.Tokens, error)
	Save(ctx context.Context, tokens model.Tokens) error
	Clear(ctx context.Context) error
}

type AuthGateway interface {
	Refresh(ctx context.Context, refreshToken string) (model.Tokens, error)
	Logout(ctx context.Context, refreshToken string) error
	Profile(ctx context.Context, accessToken string) (*model.User, error)
}

type Manager struct {
	store   TokenStore
	gateway AuthGateway
	logger  *zap.Logger

	mu      sync.RWMutex
	session model.Session
	// gen is bumped on every login and logout. Work started under an older
	// generation must not touch the session.
	gen uint64
	// refreshCtx outlives callers so that one caller giving up does not abort
	// a refresh others are waiting on. Logout cancels it.
	refreshCtx    context.Context
	cancelRefresh context.CancelFunc

	flight singleflight.Group

	restoreMu  sync.Mutex
	restored   bool
	restoreErr error
}

func NewManager(store TokenStore, gateway AuthGateway, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		store:         store,
		gateway:       gateway,
		logger:        logger.With(zap.String("component", "session")),
		refreshCtx:    ctx,
		cancelRefresh: cancel,
	}
}

// Restore validates persisted tokens with a single profile fetch. Once it has
// succeeded or the tokens were rejected, later calls return that outcome
// without doing any I/O. Cancellation and transport failures are not
// remembered, and the tokens are kept for the next attempt.
func (m *Manager) Restore(ctx context.Context) error {
	m.restoreMu.Lock()
	defer m.restoreMu.Unlock()

	if m.restored {
		return m.restoreErr
	}
	err := m.restore(ctx)
	var authErr *apperr.AuthError
	if err == nil || errors.As(err, &authErr) {
		m.restored, m.restoreErr = true, err
	}
	return err
}

func (m *Manager) restore(ctx context.Context) error {
	tokens, err := m.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load tokens: %w", err)
	}
	if tokens.AccessToken == "" {
		m.logger.Debug("no persisted session")
		return nil
	}

	gen := m.begin()
	user, err := m.gateway.Profile(ctx, tokens.AccessToken)
	if err != nil && (ctx.Err() != nil || apperr.IsNetwork(err)) {
		m.fail(gen)
		m.logger.Warn("could not validate persisted session", zap.Error(err))
		return fmt.Errorf("failed to restore session: %w", err)
	}
	if err != nil {
		m.logger.Warn("persisted session rejected", zap.Error(err))
		m.fail(gen)
		m.clearStore(ctx)
		return &apperr.AuthError{Op: "restore", Err: err}
	}

	if !m.establish(gen, tokens, user) {
		return &apperr.AuthError{Op: "restore", Err: ErrSessionEnded}
	}
	m.logger.Info("session restored", zap.Int64("user_id", user.ID), zap.String("role", string(user.Role)))
	return nil
}

// Login persists tokens and validates them by fetching the profile. On failure
// the tokens are cleared again and an *apperr.AuthError is returned.
func (m *Manager) Login(ctx context.Context, tokens model.Tokens) error {
	if tokens.AccessToken == "" {
		return &apperr.AuthError{Op: "login", Err: errors.New("empty access token")}
	}
	if err := m.store.Save(ctx, tokens); err != nil {
		return fmt.Errorf("failed to persist tokens: %w", err)
	}

	gen := m.begin()
	user, err := m.gateway.Profile(ctx, tokens.AccessToken)
	if err != nil {
		m.fail(gen)
		m.clearStore(ctx)
		return &apperr.AuthError{Op: "login", Err: err}
	}

	if !m.establish(gen, tokens, user) {
		return &apperr.AuthError{Op: "login", Err: ErrSessionEnded}
	}
	m.logger.Info("logged in", zap.Int64("user_id", user.ID), zap.String("role", string(user.Role)))
	return nil
}

// Logout always clears the local session. The remote logout is best-effort
// and its failure is only logged.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	refreshToken := m.session.RefreshToken
	m.gen++
	m.cancelRefresh()
	m.refreshCtx, m.cancelRefresh = context.WithCancel(context.Background())
	m.session = model.Session{State: model.Unauthenticated}
	m.mu.Unlock()

	if refreshToken != "" {
		if err := m.gateway.Logout(ctx, refreshToken); err != nil {
			m.logger.Warn("remote logout failed", zap.Error(err))
		}
	}

	if err := m.store.Clear(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("failed to clear tokens: %w", err)
	}
	m.logger.Info("logged out")
	return nil
}

// Refresh exchanges the current refresh token for a new pair. Concurrent
// callers share one backend call and its outcome.
func (m *Manager) Refresh(ctx context.Context) (model.Tokens, error) {
	return m.Renew(ctx, m.AccessToken())
}

// Renew refreshes only if stale is still the current access token. When the
// session already moved on it returns the current pair without network I/O.
func (m *Manager) Renew(ctx context.Context, stale string) (model.Tokens, error) {
	ch := m.flight.DoChan(refreshKey, func() (any, error) {
		return m.refresh(stale)
	})

	select {
	case <-ctx.Done():
		return model.Tokens{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return model.Tokens{}, res.Err
		}
		return res.Val.(model.Tokens), nil
	}
}

func (m *Manager) refresh(stale string) (model.Tokens, error) {
	m.mu.Lock()
	if !m.session.Authenticated() {
		m.mu.Unlock()
		return model.Tokens{}, &apperr.AuthError{Op: "refresh", Err: ErrNoSession}
	}
	if stale != "" && m.session.AccessToken != stale {
		current := model.Tokens{AccessToken: m.session.AccessToken, RefreshToken: m.session.RefreshToken}
		m.mu.Unlock()
		return current, nil
	}
	gen := m.gen
	ctx := m.refreshCtx
	refreshToken := m.session.RefreshToken
	m.session.State = model.Refreshing
	m.mu.Unlock()

	l := m.logger.With(zap.Uint64("generation", gen))
	metrics.RefreshCallsTotal.Inc()

	tokens, err := m.gateway.Refresh(ctx, refreshToken)

	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen {
		l.Info("dropping refresh result of an ended session")
		return model.Tokens{}, &apperr.AuthError{Op: "refresh", Err: ErrSessionEnded}
	}

	if err != nil {
		metrics.RefreshFailuresTotal.Inc()
		var ae *apperr.AuthError
		if !errors.As(err, &ae) {
			l.Warn("refresh failed, keeping session", zap.Error(err))
			m.session.State = model.Authenticated
			return model.Tokens{}, err
		}
		l.Warn("refresh rejected, clearing session", zap.Error(err))
		m.gen++
		m.session = model.Session{State: model.Unauthenticated}
		m.clearStore(ctx)
		return model.Tokens{}, ae
	}

	if tokens.RefreshToken == "" {
		tokens.RefreshToken = refreshToken
	}
	if err := m.store.Save(context.WithoutCancel(ctx), tokens); err != nil {
		l.Warn("failed to persist refreshed tokens", zap.Error(err))
	}

	m.session = model.Session{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		Expiry:       Expiry(tokens.AccessToken),
		User:         m.session.User,
		State:        model.Authenticated,
	}
	l.Debug("tokens refreshed")
	return tokens, nil
}

// RefreshUser re-fetches the profile. A failure leaves the session as it was.
func (m *Manager) RefreshUser(ctx context.Context) error {
	access := m.AccessToken()
	if access == "" {
		return &apperr.AuthError{Op: "refresh user", Err: ErrNoSession}
	}

	user, err := m.gateway.Profile(ctx, access)
	if err != nil {
		m.logger.Warn("profile refresh failed", zap.Error(err))
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session.AccessToken == access {
		m.session.User = user
	}
	return nil
}

// Snapshot returns a copy of the session that shares nothing with the manager.
func (m *Manager) Snapshot() model.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.session
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

func (m *Manager) AccessToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.session.Authenticated() {
		return ""
	}
	return m.session.AccessToken
}

func (m *Manager) State() model.AuthState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.State
}

// begin starts a new generation in the Authenticating state. Tokens are not
// exposed until the profile fetch confirms them.
func (m *Manager) begin() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	m.session = model.Session{State: model.Authenticating}
	return m.gen
}

func (m *Manager) establish(gen uint64, tokens model.Tokens, user *model.User) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return false
	}
	m.session = model.Session{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		Expiry:       Expiry(tokens.AccessToken),
		User:         user,
		State:        model.Authenticated,
	}
	return true
}

func (m *Manager) fail(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen == m.gen {
		m.session = model.Session{State: model.Unauthenticated}
	}
}

func (m *Manager) clearStore(ctx context.Context) {
	if err := m.store.Clear(context.WithoutCancel(ctx)); err != nil {
		m.logger.Warn("failed to clear tokens", zap.Error(err))
	}
}
