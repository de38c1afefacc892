package lockerapi

import (
	"context"
	"net/url"

	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/model"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/transport"
)

type doFunc func(ctx context.Context, req transport.Request) (*transport.Response, error)

func call[T any](ctx context.Context, do doFunc, req transport.Request) (T, error) {
	resp, err := do(ctx, req)
	if err != nil {
		var zero T
		return zero, err
	}
	return transport.DecodeEnvelope[T](resp)
}

func callOrder(ctx context.Context, do doFunc, req transport.Request) (*model.Order, error) {
	o, err := call[model.Order](ctx, do, req)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func orderPath(id, suffix string) string {
	return "/orders/" + url.PathEscape(id) + suffix
}
