package gateway_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/apperr"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/gateway"
	mock_gateway "gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/gateway/mocks"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/model"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/transport"
)

var unauthorized = &apperr.StatusError{Code: http.StatusUnauthorized}

func TestGateway_Do(t *testing.T) {
	ctx := context.Background()
	req := transport.Request{Method: http.MethodGet, Path: "/orders/7"}
	ok := &transport.Response{StatusCode: http.StatusOK}

	t.Run("attaches the token", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		tr := mock_gateway.NewMockTransport(ctrl)
		s := mock_gateway.NewMockSessionSource(ctrl)

		s.EXPECT().AccessToken().Return("a1")
		tr.EXPECT().Do(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, r transport.Request) (*transport.Response, error) {
			assert.Equal(t, "a1", r.Token)
			assert.NotEmpty(t, r.RequestID)
			return ok, nil
		})

		resp, err := gateway.New(tr, s, nil).Do(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, ok, resp)
	})

	t.Run("renews once and retries with the same request id", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		tr := mock_gateway.NewMockTransport(ctrl)
		s := mock_gateway.NewMockSessionSource(ctrl)

		var firstID string
		s.EXPECT().AccessToken().Return("a1")
		gomock.InOrder(
			tr.EXPECT().Do(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, r transport.Request) (*transport.Response, error) {
				firstID = r.RequestID
				return nil, unauthorized
			}),
			s.EXPECT().Renew(gomock.Any(), "a1").Return(model.Tokens{AccessToken: "a2", RefreshToken: "r2"}, nil),
			tr.EXPECT().Do(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, r transport.Request) (*transport.Response, error) {
				assert.Equal(t, "a2", r.Token)
				assert.Equal(t, firstID, r.RequestID)
				return ok, nil
			}),
		)

		_, err := gateway.New(tr, s, nil).Do(ctx, req)
		assert.NoError(t, err)
	})

	t.Run("second 401 is not retried", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		tr := mock_gateway.NewMockTransport(ctrl)
		s := mock_gateway.NewMockSessionSource(ctrl)

		s.EXPECT().AccessToken().Return("a1")
		s.EXPECT().Renew(gomock.Any(), "a1").Return(model.Tokens{AccessToken: "a2"}, nil).Times(1)
		tr.EXPECT().Do(gomock.Any(), gomock.Any()).Return(nil, unauthorized).Times(2)

		_, err := gateway.New(tr, s, nil).Do(ctx, req)
		var ae *apperr.AuthError
		assert.True(t, errors.As(err, &ae))
	})

	t.Run("rejected renewal tears the session down", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		tr := mock_gateway.NewMockTransport(ctrl)
		s := mock_gateway.NewMockSessionSource(ctrl)

		s.EXPECT().AccessToken().Return("a1")
		tr.EXPECT().Do(gomock.Any(), gomock.Any()).Return(nil, unauthorized).Times(1)
		s.EXPECT().Renew(gomock.Any(), "a1").Return(model.Tokens{}, &apperr.AuthError{Op: "refresh"})
		s.EXPECT().Logout(gomock.Any()).Return(nil)

		_, err := gateway.New(tr, s, nil).Do(ctx, req)
		var ae *apperr.AuthError
		require.True(t, errors.As(err, &ae))
		assert.True(t, apperr.IsUnauthorized(err), "the original 401 is surfaced")
	})

	t.Run("network failure during renewal keeps the session", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		tr := mock_gateway.NewMockTransport(ctrl)
		s := mock_gateway.NewMockSessionSource(ctrl)

		s.EXPECT().AccessToken().Return("a1")
		tr.EXPECT().Do(gomock.Any(), gomock.Any()).Return(nil, unauthorized).Times(1)
		s.EXPECT().Renew(gomock.Any(), "a1").Return(model.Tokens{}, &apperr.NetworkError{Op: "refresh", Err: errors.New("offline")})

		_, err := gateway.New(tr, s, nil).Do(ctx, req)
		assert.True(t, apperr.IsNetwork(err))
	})

	t.Run("401 without a token is not renewed", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		tr := mock_gateway.NewMockTransport(ctrl)
		s := mock_gateway.NewMockSessionSource(ctrl)

		s.EXPECT().AccessToken().Return("")
		tr.EXPECT().Do(gomock.Any(), gomock.Any()).Return(nil, unauthorized).Times(1)

		_, err := gateway.New(tr, s, nil).Do(ctx, req)
		assert.True(t, apperr.IsUnauthorized(err))
	})

	t.Run("other errors pass through", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		tr := mock_gateway.NewMockTransport(ctrl)
		s := mock_gateway.NewMockSessionSource(ctrl)

		s.EXPECT().AccessToken().Return("a1")
		tr.EXPECT().Do(gomock.Any(), gomock.Any()).Return(nil, &apperr.StatusError{Code: http.StatusConflict})

		_, err := gateway.New(tr, s, nil).Do(ctx, req)
		var se *apperr.StatusError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, http.StatusConflict, se.Code)
	})
}

func TestGateway_DoPublic(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mock_gateway.NewMockTransport(ctrl)
	s := mock_gateway.NewMockSessionSource(ctrl)

	tr.EXPECT().Do(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, r transport.Request) (*transport.Response, error) {
		assert.Empty(t, r.Token)
		return nil, unauthorized
	})

	req := transport.Request{Method: http.MethodGet, Path: "/orders/pin/123456", Token: "leaked"}
	_, err := gateway.New(tr, s, nil).DoPublic(context.Background(), req)
	assert.True(t, apperr.IsUnauthorized(err))
}
