package lockerapi

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/model"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/transport"
)

// Partner-side transitions of the laundry workflow.

func (c *Client) CollectOrder(ctx context.Context, id string) (*model.Order, error) {
	return callOrder(ctx, c.r.Do, transport.Request{Method: http.MethodPut, Path: orderPath(id, "/collect")})
}

func (c *Client) ProcessOrder(ctx context.Context, id string) (*model.Order, error) {
	return callOrder(ctx, c.r.Do, transport.Request{Method: http.MethodPut, Path: orderPath(id, "/process")})
}

func (c *Client) ReadyOrder(ctx context.Context, id string) (*model.Order, error) {
	return callOrder(ctx, c.r.Do, transport.Request{Method: http.MethodPut, Path: orderPath(id, "/ready")})
}

func (c *Client) ReturnOrder(ctx context.Context, id string, boxID int64) (*model.Order, error) {
	return callOrder(ctx, c.r.Do, transport.Request{
		Method: http.MethodPut,
		Path:   orderPath(id, "/return"),
		Query:  url.Values{"boxId": {strconv.FormatInt(boxID, 10)}},
	})
}

// Kiosk hardware endpoints. They authenticate by PIN only.

func (c *Client) VerifyPin(ctx context.Context, req model.VerifyPinRequest) (model.VerifyPinResponse, error) {
	return call[model.VerifyPinResponse](ctx, c.r.DoPublic, transport.Request{Method: http.MethodPost, Path: "/iot/verify-pin", Body: req})
}

func (c *Client) UnlockBox(ctx context.Context, req model.UnlockBoxRequest) (model.UnlockBoxResponse, error) {
	return call[model.UnlockBoxResponse](ctx, c.r.DoPublic, transport.Request{Method: http.MethodPost, Path: "/iot/unlock", Body: req})
}
