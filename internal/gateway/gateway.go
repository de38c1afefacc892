//go:generate mockgen -source ./gateway.go -destination=./mocks/gateway.go -package=mock_gateway

// Package gateway decorates the transport with session handling: attach the
// access token, detect a 401, renew once and retry once.
package gateway

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/apperr"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/metrics"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/model"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/transport"
)

type Transport interface {
	Do(ctx context.Context, req transport.Request) (*transport.Response, error)
}

type SessionSource interface {
	AccessToken() string
	Renew(ctx context.Context, staleAccessToken string) (model.Tokens, error)
	Logout(ctx context.Context) error
}

type Gateway struct {
	transport Transport
	session   SessionSource
	logger    *zap.Logger
}

func New(t Transport, s SessionSource, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{transport: t, session: s, logger: logger}
}

// Do sends an authenticated request. A request sent without a token is never
// retried. A retried request that is rejected again is returned as an
// *apperr.AuthError.
func (g *Gateway) Do(ctx context.Context, req transport.Request) (*transport.Response, error) {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	req.Token = g.session.AccessToken()

	resp, err := g.transport.Do(ctx, req)
	if err == nil || req.Token == "" || !apperr.IsUnauthorized(err) {
		return resp, err
	}

	l := g.logger.With(
		zap.String("request_id", req.RequestID),
		zap.String("op", req.Method+" "+req.Path),
	)
	original := &apperr.AuthError{Op: req.Method + " " + req.Path, Err: err}

	tokens, rerr := g.session.Renew(ctx, req.Token)
	if rerr != nil {
		var ae *apperr.AuthError
		if !errors.As(rerr, &ae) {
			metrics.RequestRetriesTotal.WithLabelValues("refresh_error").Inc()
			l.Warn("token renewal failed", zap.Error(rerr))
			return nil, rerr
		}
		metrics.RequestRetriesTotal.WithLabelValues("refresh_rejected").Inc()
		l.Info("token renewal rejected, ending session", zap.Error(rerr))
		if lerr := g.session.Logout(context.WithoutCancel(ctx)); lerr != nil {
			l.Warn("session teardown failed", zap.Error(lerr))
		}
		return nil, original
	}

	req.Token = tokens.AccessToken
	resp, err = g.transport.Do(ctx, req)
	if err != nil {
		if apperr.IsUnauthorized(err) {
			metrics.RequestRetriesTotal.WithLabelValues("rejected").Inc()
			return nil, &apperr.AuthError{Op: req.Method + " " + req.Path, Err: err}
		}
		metrics.RequestRetriesTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	metrics.RequestRetriesTotal.WithLabelValues("ok").Inc()
	return resp, nil
}

// DoPublic sends a request without credentials.
func (g *Gateway) DoPublic(ctx context.Context, req transport.Request) (*transport.Response, error) {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	req.Token = ""
	return g.transport.Do(ctx, req)
}
