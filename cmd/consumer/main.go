// consumer applies payment confirmations from kafka or rabbitmq to the order
// store.
package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/app"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/config"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/events"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/kafka"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/logger"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/rabbit"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("invalid configuration", zap.Error(err))
	}
	log := logger.New(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("consumer stopped", zap.Error(err))
		return
	}
	log.Info("consumer stopped")
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	client, err := app.NewClient(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer client.Close()

	database, err := app.OpenDatabase(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer database.Close()

	producer := app.NewProducer(cfg, log)
	defer func() { _ = producer.Close() }()

	lifecycle, err := app.NewLifecycle(ctx, database, client.API, producer, cfg, log)
	if err != nil {
		return err
	}
	dispatcher := events.NewDispatcher(lifecycle, log)

	switch cfg.EventSource {
	case "kafka":
		reader := kafka.NewReader(cfg.KafkaBrokers, cfg.KafkaPaymentTopic, cfg.KafkaGroupID)
		defer func() {
			if err := reader.Close(); err != nil {
				log.Warn("failed to close kafka reader", zap.Error(err))
			}
		}()
		log.Info("consuming payments from kafka",
			zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaPaymentTopic))
		return kafka.NewConsumer(reader, dispatcher, kafka.DefaultConsumerConfig(), log).Run(ctx)

	case "rabbit":
		conn, err := amqp091.Dial(cfg.RabbitURL)
		if err != nil {
			return fmt.Errorf("failed to connect to rabbitmq: %w", err)
		}
		defer conn.Close()

		ch, err := conn.Channel()
		if err != nil {
			return fmt.Errorf("failed to open rabbitmq channel: %w", err)
		}
		defer ch.Close()

		log.Info("consuming payments from rabbitmq", zap.String("queue", cfg.RabbitQueue))
		return rabbit.NewConsumer(ch, cfg.RabbitQueue, cfg.RabbitExchange, dispatcher, log).Run(ctx)
	}

	return fmt.Errorf("unknown event source %q", cfg.EventSource)
}
