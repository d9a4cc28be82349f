package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/noah-isme/exam-hall-api/pkg/config"
	"github.com/noah-isme/exam-hall-api/pkg/logger"
	"github.com/noah-isme/exam-hall-api/pkg/notify"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck
	logr = logr.With(zap.String("component", "notify-consumer"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumer, err := notify.NewAMQPConsumer(cfg.Notifications.AMQPURL, cfg.Notifications.AMQPQueue, 0, logr)
	if err != nil {
		logr.Fatal("invalid consumer config", zap.Error(err))
	}

	logr.Info("consuming notifications", zap.String("queue", cfg.Notifications.AMQPQueue))
	err = consumer.Run(ctx, func(_ context.Context, msg notify.Message) error {
		logr.Info("notification delivered",
			zap.String("id", msg.ID),
			zap.String("user_id", msg.UserID),
			zap.String("kind", msg.Kind),
			zap.String("message", msg.Message),
			zap.Time("created_at", msg.CreatedAt),
		)
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logr.Error("consumer stopped", zap.Error(err))
	}
}
