package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/apperr"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/transport"
)

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()

	router := mux.NewRouter()
	router.HandleFunc("/auth/refresh-token", func(w http.ResponseWriter, r *http.Request) {
		var req refreshRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		switch req.RefreshToken {
		case "good":
			_, _ = w.Write([]byte(`{"success":true,"data":{"accessToken":"a2","refreshToken":"r2"}}`))
		case "empty":
			_, _ = w.Write([]byte(`{"success":true,"data":{}}`))
		case "boom":
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"success":false,"message":"refresh token revoked"}`))
		}
	}).Methods(http.MethodPost)
	router.HandleFunc("/auth/email/verify-otp", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":{"newUser":true,"tempToken":"tmp"}}`))
	}).Methods(http.MethodPost)
	router.HandleFunc("/users/profile", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer a1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"data":{"id":3,"role":"PARTNER","email":"p@x.io"}}`))
	}).Methods(http.MethodGet)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func TestGateway_Refresh(t *testing.T) {
	srv := newBackend(t)
	g := NewGateway(transport.New(srv.URL, srv.Client(), nil))
	ctx := context.Background()

	tests := []struct {
		name     string
		token    string
		wantAuth bool
	}{
		{name: "accepted", token: "good"},
		{name: "rejected", token: "revoked", wantAuth: true},
		{name: "empty response", token: "empty", wantAuth: true},
		{name: "no token", token: "", wantAuth: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, err := g.Refresh(ctx, tt.token)
			if tt.wantAuth {
				var ae *apperr.AuthError
				assert.True(t, errors.As(err, &ae), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "a2", tokens.AccessToken)
			assert.Equal(t, "r2", tokens.RefreshToken)
		})
	}

	t.Run("server error is not an auth failure", func(t *testing.T) {
		_, err := g.Refresh(ctx, "boom")
		var ae *apperr.AuthError
		assert.False(t, errors.As(err, &ae))
		assert.Error(t, err)
	})
}

func TestGateway_Profile(t *testing.T) {
	srv := newBackend(t)
	g := NewGateway(transport.New(srv.URL, srv.Client(), nil))

	user, err := g.Profile(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), user.ID)
	assert.EqualValues(t, "PARTNER", user.Role)

	_, err = g.Profile(context.Background(), "stale")
	var ae *apperr.AuthError
	assert.True(t, errors.As(err, &ae))
}

func TestGateway_VerifyEmailOTP_NewUser(t *testing.T) {
	srv := newBackend(t)
	g := NewGateway(transport.New(srv.URL, srv.Client(), nil))

	res, err := g.VerifyEmailOTP(context.Background(), "u@x.io", "123456")
	require.NoError(t, err)
	assert.True(t, res.NewUser)
	assert.Equal(t, "tmp", res.TempToken)
	assert.True(t, res.Tokens().Empty())
}
