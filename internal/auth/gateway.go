// Package auth talks to the backend authentication endpoints. Calls are sent
// straight through the transport so a failing refresh can never recurse into
// another refresh.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/apperr"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/model"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/transport"
)

type Doer interface {
	Do(ctx context.Context, req transport.Request) (*transport.Response, error)
}

type Gateway struct {
	client Doer
}

func NewGateway(client Doer) *Gateway {
	return &Gateway{client: client}
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (g *Gateway) PhoneLogin(ctx context.Context, idToken string) (model.LoginResult, error) {
	return post[model.LoginResult](ctx, g.client, "phone login", "/auth/phone-login", map[string]string{"idToken": idToken})
}

func (g *Gateway) CompleteRegistration(ctx context.Context, req model.CompleteRegistrationRequest) (model.Tokens, error) {
	return post[model.Tokens](ctx, g.client, "complete registration", "/auth/complete-registration", req)
}

func (g *Gateway) SendEmailOTP(ctx context.Context, email string) error {
	_, err := post[struct{}](ctx, g.client, "send otp", "/auth/email/send-otp", map[string]string{"email": email})
	return err
}

func (g *Gateway) VerifyEmailOTP(ctx context.Context, email, otp string) (model.LoginResult, error) {
	body := map[string]string{"email": email, "otp": otp}
	return post[model.LoginResult](ctx, g.client, "verify otp", "/auth/email/verify-otp", body)
}

func (g *Gateway) EmailCompleteRegistration(ctx context.Context, req model.CompleteRegistrationRequest) (model.Tokens, error) {
	return post[model.Tokens](ctx, g.client, "complete registration", "/auth/email/complete-registration", req)
}

// Refresh exchanges a refresh token for a new pair. A rejection by the backend
// is an *apperr.AuthError; transport failures stay *apperr.NetworkError.
func (g *Gateway) Refresh(ctx context.Context, refreshToken string) (model.Tokens, error) {
	if refreshToken == "" {
		return model.Tokens{}, &apperr.AuthError{Op: "refresh", Err: errors.New("no refresh token")}
	}
	tokens, err := post[model.Tokens](ctx, g.client, "refresh", "/auth/refresh-token", refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return model.Tokens{}, err
	}
	if tokens.AccessToken == "" {
		return model.Tokens{}, &apperr.AuthError{Op: "refresh", Err: errors.New("empty access token in response")}
	}
	return tokens, nil
}

func (g *Gateway) Logout(ctx context.Context, refreshToken string) error {
	_, err := post[struct{}](ctx, g.client, "logout", "/auth/logout", refreshRequest{RefreshToken: refreshToken})
	return err
}

func (g *Gateway) Profile(ctx context.Context, accessToken string) (*model.User, error) {
	resp, err := g.client.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   "/users/profile",
		Token:  accessToken,
	})
	if err != nil {
		return nil, classify("profile", err)
	}
	user, err := transport.DecodeEnvelope[model.User](resp)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func post[T any](ctx context.Context, client Doer, op, path string, body any) (T, error) {
	var zero T
	resp, err := client.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   path,
		Body:   body,
	})
	if err != nil {
		return zero, classify(op, err)
	}
	v, err := transport.DecodeEnvelope[T](resp)
	if err != nil {
		return zero, fmt.Errorf("failed to %s: %w", op, err)
	}
	return v, nil
}

// classify turns 4xx answers into auth failures. Network errors, context
// errors and 5xx answers are returned unchanged.
func classify(op string, err error) error {
	var se *apperr.StatusError
	if errors.As(err, &se) && se.Code >= 400 && se.Code < 500 {
		return &apperr.AuthError{Op: op, Err: err}
	}
	return err
}
