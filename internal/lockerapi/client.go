// Package lockerapi is the typed REST client for locker and order endpoints.
package lockerapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/apperr"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/model"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/transport"
)

type Requester interface {
	Do(ctx context.Context, req transport.Request) (*transport.Response, error)
	DoPublic(ctx context.Context, req transport.Request) (*transport.Response, error)
}

type Client struct {
	r Requester
}

func New(r Requester) *Client {
	return &Client{r: r}
}

type checkoutRequest struct {
	PaymentMethod model.PaymentMethod `json:"paymentMethod"`
}

func (c *Client) Lockers(ctx context.Context) ([]model.Locker, error) {
	return call[[]model.Locker](ctx, c.r.Do, transport.Request{Method: http.MethodGet, Path: "/lockers"})
}

func (c *Client) LockersByStore(ctx context.Context, storeID int64) ([]model.Locker, error) {
	return call[[]model.Locker](ctx, c.r.Do, transport.Request{
		Method: http.MethodGet,
		Path:   "/lockers",
		Query:  url.Values{"storeId": {strconv.FormatInt(storeID, 10)}},
	})
}

func (c *Client) Locker(ctx context.Context, id int64) (model.Locker, error) {
	return call[model.Locker](ctx, c.r.Do, transport.Request{Method: http.MethodGet, Path: fmt.Sprintf("/lockers/%d", id)})
}

func (c *Client) Boxes(ctx context.Context, lockerID int64) ([]model.Box, error) {
	return call[[]model.Box](ctx, c.r.Do, transport.Request{Method: http.MethodGet, Path: fmt.Sprintf("/lockers/%d/boxes", lockerID)})
}

func (c *Client) AvailableBoxes(ctx context.Context, lockerID int64) ([]model.Box, error) {
	return call[[]model.Box](ctx, c.r.Do, transport.Request{Method: http.MethodGet, Path: fmt.Sprintf("/lockers/%d/boxes/available", lockerID)})
}

func (c *Client) CreateOrder(ctx context.Context, req model.CreateOrderRequest) (*model.Order, error) {
	return callOrder(ctx, c.r.Do, transport.Request{Method: http.MethodPost, Path: "/orders", Body: req})
}

func (c *Client) Orders(ctx context.Context, page, size int) (model.Page[model.Order], error) {
	return call[model.Page[model.Order]](ctx, c.r.Do, transport.Request{
		Method: http.MethodGet,
		Path:   "/orders",
		Query:  url.Values{"page": {strconv.Itoa(page)}, "size": {strconv.Itoa(size)}},
	})
}

func (c *Client) Order(ctx context.Context, id string) (*model.Order, error) {
	return callOrder(ctx, c.r.Do, transport.Request{Method: http.MethodGet, Path: orderPath(id, "")})
}

// OrderByPin is public. A PIN the backend does not know is apperr.ErrNotFound.
func (c *Client) OrderByPin(ctx context.Context, pin string) (*model.Order, error) {
	o, err := callOrder(ctx, c.r.DoPublic, transport.Request{
		Method: http.MethodGet,
		Path:   "/orders/pin/" + url.PathEscape(pin),
	})
	if err != nil {
		return nil, err
	}
	if o.ID == "" {
		return nil, apperr.ErrNotFound
	}
	return o, nil
}

func (c *Client) ConfirmOrder(ctx context.Context, id string) (*model.Order, error) {
	return callOrder(ctx, c.r.Do, transport.Request{Method: http.MethodPut, Path: orderPath(id, "/confirm")})
}

// Checkout starts a payment and returns the URL the customer pays on.
func (c *Client) Checkout(ctx context.Context, id string, method model.PaymentMethod) (string, error) {
	res, err := call[model.CheckoutResult](ctx, c.r.Do, transport.Request{
		Method: http.MethodPost,
		Path:   orderPath(id, "/checkout"),
		Body:   checkoutRequest{PaymentMethod: method},
	})
	if err != nil {
		return "", err
	}
	return res.PaymentURL, nil
}

func (c *Client) CancelOrder(ctx context.Context, id, reason string) (*model.Order, error) {
	return callOrder(ctx, c.r.Do, transport.Request{
		Method: http.MethodPut,
		Path:   orderPath(id, "/cancel"),
		Query:  url.Values{"reason": {reason}},
	})
}

func (c *Client) OrderStatus(ctx context.Context, id string) (model.OrderTracking, error) {
	return call[model.OrderTracking](ctx, c.r.Do, transport.Request{Method: http.MethodGet, Path: orderPath(id, "/status")})
}

func (c *Client) ApplyPromotion(ctx context.Context, id, code string) (*model.Order, error) {
	return callOrder(ctx, c.r.Do, transport.Request{
		Method: http.MethodPut,
		Path:   orderPath(id, "/promotion"),
		Query:  url.Values{"code": {code}},
	})
}

func (c *Client) RemovePromotion(ctx context.Context, id string) (*model.Order, error) {
	return callOrder(ctx, c.r.Do, transport.Request{Method: http.MethodDelete, Path: orderPath(id, "/promotion")})
}

func (c *Client) CompleteOrder(ctx context.Context, id string) (*model.Order, error) {
	return callOrder(ctx, c.r.Do, transport.Request{Method: http.MethodPut, Path: orderPath(id, "/complete")})
}
