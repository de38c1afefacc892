//go:generate mockgen -source ./server.go -destination=./mocks/server.go -package=mock_kiosk

// Package kiosk serves the locker tablet. The PIN printed for an order is the
// only credential its routes accept.
package kiosk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/apperr"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/model"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/order"
)

type Orders interface {
	LookupByPin(ctx context.Context, pin string) (model.PickupView, error)
	ConfirmPlacement(ctx context.Context, orderID string) (*model.Order, error)
	Complete(ctx context.Context, orderID string) (*model.Order, error)
}

type Server struct {
	orders       Orders
	logger       *zap.Logger
	server       *http.Server
	grpcServer   *grpc.Server
	AuditManager *AuditManager
}

func New(orders Orders, logger *zap.Logger) *Server {
	return &Server{
		orders:       orders,
		logger:       logger,
		AuditManager: NewAuditManager(2, 5, 500*time.Millisecond, logger),
	}
}

// Run serves HTTP on port and, unless grpcPort is empty, the gRPC service on
// grpcPort until ctx is cancelled, then shuts both down gracefully.
func (s *Server) Run(ctx context.Context, port, grpcPort string) error {
	s.server = &http.Server{
		Addr:         ":" + port,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	var lis net.Listener
	if grpcPort != "" {
		var err error
		if lis, err = net.Listen("tcp", ":"+grpcPort); err != nil {
			return fmt.Errorf("failed to listen for grpc: %w", err)
		}
		s.grpcServer = s.GRPC()
	}

	s.AuditManager.Start(ctx)

	errCh := make(chan error, 2)
	go func() {
		s.logger.Info("kiosk server starting", zap.String("port", port))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	if s.grpcServer != nil {
		go func() {
			s.logger.Info("kiosk grpc server starting", zap.String("port", grpcPort))
			if err := s.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				errCh <- err
			}
		}()
	}

	select {
	case err := <-errCh:
		if s.grpcServer != nil {
			s.grpcServer.Stop()
		}
		_ = s.server.Close()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down kiosk server")
	if s.grpcServer != nil {
		stopped := make(chan struct{})
		go func() {
			s.grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-ctx.Done():
			s.grpcServer.Stop()
		}
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	s.AuditManager.Shutdown(ctx)
	return nil
}

func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.auditLogMiddleware)

	r.HandleFunc("/kiosk/orders/pin/{pin}", s.handleLookup).Methods(http.MethodGet).Name("lookup")
	r.HandleFunc("/kiosk/orders/pin/{pin}/confirm", s.handleConfirm).Methods(http.MethodPost).Name("confirm")
	r.HandleFunc("/kiosk/orders/pin/{pin}/pickup", s.handlePickup).Methods(http.MethodPost).Name("pickup")

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet).Name("metrics")
	return r
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	var (
		transition   *apperr.InvalidTransitionError
		terminal     *apperr.TerminalStateError
		precondition *apperr.PreconditionError
		capacity     *apperr.NoCapacityError
	)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		status, message = http.StatusNotFound, "no active order for this pin"
	case errors.As(err, &transition), errors.As(err, &terminal), errors.As(err, &capacity):
		status, message = http.StatusConflict, err.Error()
	case errors.As(err, &precondition):
		status, message = http.StatusUnprocessableEntity, err.Error()
	}

	if entry := auditEntry(r); entry != nil {
		entry.Error = err.Error()
	}
	respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (model.PickupView, bool) {
	pin := mux.Vars(r)["pin"]
	if !order.ValidPin(pin) {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "pin must be 6 digits"})
		return model.PickupView{}, false
	}

	view, err := s.orders.LookupByPin(r.Context(), pin)
	if err != nil {
		respondError(w, r, err)
		return model.PickupView{}, false
	}
	if entry := auditEntry(r); entry != nil {
		entry.OrderID = view.OrderID
		entry.OldStatus = string(view.Status)
	}
	return view, true
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	view, ok := s.lookup(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	view, ok := s.lookup(w, r)
	if !ok {
		return
	}

	o, err := s.orders.ConfirmPlacement(r.Context(), view.OrderID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	s.respondOrder(w, r, o)
}

func (s *Server) handlePickup(w http.ResponseWriter, r *http.Request) {
	view, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if view.Status != model.StatusReady {
		respondError(w, r, &apperr.InvalidTransitionError{From: string(view.Status), To: string(model.StatusCompleted)})
		return
	}

	o, err := s.orders.Complete(r.Context(), view.OrderID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	s.respondOrder(w, r, o)
}

func (s *Server) respondOrder(w http.ResponseWriter, r *http.Request, o *model.Order) {
	if entry := auditEntry(r); entry != nil {
		entry.NewStatus = string(o.Status)
	}
	respondJSON(w, http.StatusOK, model.PickupView{
		OrderID:  o.ID,
		Status:   o.Status,
		LockerID: o.LockerID,
		BoxID:    o.BoxID,
	})
}
