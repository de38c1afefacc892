package kiosk

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/apperr"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/metrics"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/model"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/order"
)

// PickupServiceName is the full gRPC service name of the kiosk surface.
const PickupServiceName = "lockerclient.kiosk.v1.Pickup"

// PinRequest is the request of every Pickup method.
type PinRequest struct {
	Pin string `json:"pin"`
}

// PickupServer is the gRPC twin of the HTTP kiosk routes. Messages are JSON
// encoded, see Codec.
type PickupServer interface {
	LookupByPin(ctx context.Context, req *PinRequest) (*model.PickupView, error)
	ConfirmPlacement(ctx context.Context, req *PinRequest) (*model.PickupView, error)
	Complete(ctx context.Context, req *PinRequest) (*model.PickupView, error)
}

type pickupCall func(srv PickupServer, ctx context.Context, req *PinRequest) (*model.PickupView, error)

func pickupHandler(method string, call pickupCall) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(PinRequest)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(PickupServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + PickupServiceName + "/" + method,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(PickupServer), ctx, req.(*PinRequest))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var PickupServiceDesc = grpc.ServiceDesc{
	ServiceName: PickupServiceName,
	HandlerType: (*PickupServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "LookupByPin", Handler: pickupHandler("LookupByPin", PickupServer.LookupByPin)},
		{MethodName: "ConfirmPlacement", Handler: pickupHandler("ConfirmPlacement", PickupServer.ConfirmPlacement)},
		{MethodName: "Complete", Handler: pickupHandler("Complete", PickupServer.Complete)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "kiosk/pickup",
}

func RegisterPickupServer(r grpc.ServiceRegistrar, srv PickupServer) {
	r.RegisterService(&PickupServiceDesc, srv)
}

// Codec carries Pickup messages as JSON, so clients need no generated stubs.
type Codec struct{}

func (Codec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (Codec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (Codec) Name() string                       { return "json" }

// GRPC builds the gRPC server for the kiosk. Calls are audited like HTTP
// requests.
func (s *Server) GRPC() *grpc.Server {
	srv := grpc.NewServer(
		grpc.ForceServerCodec(Codec{}),
		grpc.ChainUnaryInterceptor(s.auditInterceptor),
	)
	RegisterPickupServer(srv, &pickupService{orders: s.orders, logger: s.logger})
	return srv
}

func (s *Server) auditInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	entry := &AuditLogEntry{
		Timestamp: start,
		Handler:   methodName(info.FullMethod),
		Method:    "GRPC",
		Route:     info.FullMethod,
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		entry.RemoteAddr = p.Addr.String()
	}

	resp, err := handler(context.WithValue(ctx, auditKey{}, entry), req)

	entry.StatusCode = int(status.Code(err))
	entry.Duration = time.Since(start)
	s.AuditManager.LogEntry(*entry)
	return resp, err
}

func methodName(fullMethod string) string {
	return fullMethod[strings.LastIndex(fullMethod, "/")+1:]
}

type pickupService struct {
	orders Orders
	logger *zap.Logger
}

var _ PickupServer = (*pickupService)(nil)

func (p *pickupService) lookup(ctx context.Context, l *zap.Logger, op, pin string) (model.PickupView, error) {
	if !order.ValidPin(pin) {
		l.Warn("Invalid argument: malformed pin")
		metrics.OperationErrorsTotal.WithLabelValues(op).Inc()
		return model.PickupView{}, status.Error(codes.InvalidArgument, "pin must be 6 digits")
	}
	view, err := p.orders.LookupByPin(ctx, pin)
	if err != nil {
		return model.PickupView{}, p.fail(ctx, l, op, err)
	}
	if entry := auditEntryFrom(ctx); entry != nil {
		entry.OrderID = view.OrderID
		entry.OldStatus = string(view.Status)
	}
	return view, nil
}

func (p *pickupService) fail(ctx context.Context, l *zap.Logger, op string, err error) error {
	if entry := auditEntryFrom(ctx); entry != nil {
		entry.Error = err.Error()
	}
	metrics.OperationErrorsTotal.WithLabelValues(op).Inc()

	var (
		transition   *apperr.InvalidTransitionError
		terminal     *apperr.TerminalStateError
		precondition *apperr.PreconditionError
		capacity     *apperr.NoCapacityError
	)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		l.Warn("No active order for pin")
		return status.Error(codes.NotFound, "no active order for this pin")
	case errors.As(err, &transition), errors.As(err, &terminal), errors.As(err, &capacity), errors.As(err, &precondition):
		l.Warn("Precondition failed", zap.Error(err))
		return status.Error(codes.FailedPrecondition, err.Error())
	}
	l.Error("Kiosk call failed", zap.Error(err))
	return status.Error(codes.Internal, "internal error")
}

func (p *pickupService) done(ctx context.Context, o *model.Order) *model.PickupView {
	if entry := auditEntryFrom(ctx); entry != nil {
		entry.NewStatus = string(o.Status)
	}
	return &model.PickupView{OrderID: o.ID, Status: o.Status, LockerID: o.LockerID, BoxID: o.BoxID}
}

func (p *pickupService) LookupByPin(ctx context.Context, req *PinRequest) (*model.PickupView, error) {
	l := p.logger.With(zap.String("rpc_method", "LookupByPin"))
	l.Debug("RPC call received")

	view, err := p.lookup(ctx, l, "kiosk_lookup", req.Pin)
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func (p *pickupService) ConfirmPlacement(ctx context.Context, req *PinRequest) (*model.PickupView, error) {
	l := p.logger.With(zap.String("rpc_method", "ConfirmPlacement"))
	l.Debug("RPC call received")

	view, err := p.lookup(ctx, l, "kiosk_confirm", req.Pin)
	if err != nil {
		return nil, err
	}
	o, err := p.orders.ConfirmPlacement(ctx, view.OrderID)
	if err != nil {
		return nil, p.fail(ctx, l, "kiosk_confirm", err)
	}
	l.Info("Placement confirmed", zap.String("order_id", o.ID))
	return p.done(ctx, o), nil
}

func (p *pickupService) Complete(ctx context.Context, req *PinRequest) (*model.PickupView, error) {
	l := p.logger.With(zap.String("rpc_method", "Complete"))
	l.Debug("RPC call received")

	view, err := p.lookup(ctx, l, "kiosk_pickup", req.Pin)
	if err != nil {
		return nil, err
	}
	if view.Status != model.StatusReady {
		return nil, p.fail(ctx, l, "kiosk_pickup",
			&apperr.InvalidTransitionError{From: string(view.Status), To: string(model.StatusCompleted)})
	}
	o, err := p.orders.Complete(ctx, view.OrderID)
	if err != nil {
		return nil, p.fail(ctx, l, "kiosk_pickup", err)
	}
	l.Info("Order picked up", zap.String("order_id", o.ID))
	return p.done(ctx, o), nil
}
