// Package app assembles the components from configuration for the binaries.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/auth"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/cache"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/config"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/events"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/gateway"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/kafka"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/locker"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/lockerapi"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/order"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/repository/postgresql"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/session"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/tokenstore"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/transport"
)

// Client is everything a signed-in surface needs to talk to the backend.
type Client struct {
	Auth    *auth.Gateway
	Session *session.Manager
	API     *lockerapi.Client

	closers []func()
}

func (c *Client) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

// NewClient builds the client stack. The session is not restored; callers
// decide whether a stored session is required.
func NewClient(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Client, error) {
	backend, closeBackend, err := NewTokenBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	tr := transport.New(cfg.APIURL, httpClient, logger)

	authGateway := auth.NewGateway(tr)
	manager := session.NewManager(tokenstore.New(backend), authGateway, logger)
	requests := gateway.New(tr, manager, logger)

	return &Client{
		Auth:    authGateway,
		Session: manager,
		API:     lockerapi.New(requests),
		closers: []func(){closeBackend},
	}, nil
}

// NewTokenBackend opens the backend selected by TOKEN_STORE. The returned
// func releases its connections.
func NewTokenBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (tokenstore.Backend, func(), error) {
	nop := func() {}

	switch cfg.TokenStore {
	case "memory":
		return tokenstore.NewMemory(), nop, nil

	case "file":
		f, err := tokenstore.NewFile(cfg.TokenFile, cfg.TokenKey)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open token file: %w", err)
		}
		return f, nop, nil

	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.RedisAddr, err)
		}
		return tokenstore.NewRedis(rdb, cfg.RedisPrefix), func() {
			if err := rdb.Close(); err != nil {
				logger.Warn("failed to close redis client", zap.Error(err))
			}
		}, nil

	case "postgres":
		database, err := OpenDatabase(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return postgresql.NewTokenRepo(database, cfg.TokenProfile), database.Close, nil
	}

	return nil, nil, fmt.Errorf("unknown token store %q", cfg.TokenStore)
}

// OpenDatabase connects to postgres and applies pending migrations.
func OpenDatabase(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*db.Pool, error) {
	database, err := db.Connect(ctx, cfg.DSN())
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx, database, logger); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

// NewProducer returns a kafka writer, or a console producer when
// KAFKA_BROKERS is "console".
func NewProducer(cfg *config.Config, logger *zap.Logger) kafka.Producer {
	if len(cfg.KafkaBrokers) == 0 || cfg.KafkaBrokers[0] == "console" {
		return kafka.NewConsoleProducer(logger)
	}
	return kafka.NewWriterProducer(cfg.KafkaBrokers)
}

// NewLifecycle runs the order lifecycle over postgres, with active orders
// cached in memory and status changes published to the status topic.
func NewLifecycle(ctx context.Context, database db.DB, payments order.PaymentGateway, producer kafka.Producer, cfg *config.Config, logger *zap.Logger) (*order.Lifecycle, error) {
	orders := cache.NewOrderCache(postgresql.NewOrderRepo(database), logger)
	if err := orders.LoadInitialData(ctx); err != nil {
		return nil, fmt.Errorf("failed to warm order cache: %w", err)
	}

	alloc := locker.NewAllocator(postgresql.NewBoxRepo(database), logger)
	return order.New(orders, alloc, payments, logger,
		order.WithHistory(postgresql.NewHistoryRepo(database)),
		order.WithNotifier(events.NewStatusPublisher(producer, cfg.KafkaStatusTopic)),
	), nil
}
