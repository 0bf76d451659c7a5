package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/deliveries/internal/config"
	"gitlab.ozon.dev/pupkingeorgij/deliveries/internal/logger"
	"gitlab.ozon.dev/pupkingeorgij/deliveries/internal/server"
)

const groupID = "deliveries-audit-consumer-group"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	config.LoadEnv()
	log := logger.New(os.Getenv("LOG_LEVEL"))
	defer func() { _ = log.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration", zap.Error(err))
	}
	if len(cfg.Kafka.Brokers) == 0 {
		log.Fatal("KAFKA_BROKERS is not set")
	}

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Kafka.Brokers,
		GroupID:        groupID,
		Topic:          cfg.Kafka.Topic,
		MinBytes:       10e3,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
		MaxWait:        3 * time.Second,
	})
	defer func() {
		log.Info("Closing Kafka reader...")
		if err := r.Close(); err != nil {
			log.Error("Error closing Kafka reader", zap.Error(err))
		}
	}()

	log.Info("Consumer connected", zap.String("topic", cfg.Kafka.Topic), zap.Strings("brokers", cfg.Kafka.Brokers))

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				log.Info("Shutdown signal received, stopping consumer")
				return
			}
			log.Error("Error reading message", zap.Error(err))
			select {
			case <-time.After(5 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		var entry server.AuditLogEntry
		if err := json.Unmarshal(m.Value, &entry); err != nil {
			log.Warn("Skipping malformed audit entry", zap.Int64("offset", m.Offset), zap.Error(err))
			continue
		}

		log.Info("Audit entry",
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
			zap.ByteString("key", m.Key),
			zap.Time("timestamp", entry.Timestamp),
			zap.String("handler", entry.Handler),
			zap.String("method", entry.Method),
			zap.String("path", entry.Path),
			zap.Int("status_code", entry.StatusCode),
			zap.String("order_id", entry.OrderID),
			zap.String("old_status", entry.OldStatus),
			zap.String("new_status", entry.NewStatus),
		)
	}
}
