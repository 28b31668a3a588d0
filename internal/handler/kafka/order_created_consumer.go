package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"postfinance/internal/domain"
	kafka_infra "postfinance/internal/infrastructure/kafka"
)

type OrderRegistry interface {
	RegisterOrder(ctx context.Context, event domain.OrderCreatedEvent) (bool, error)
}

// OrderCreatedMessageHandler feeds order events into the registry. Messages
// that cannot be decoded are logged and committed; they would never succeed
// on redelivery.
func OrderCreatedMessageHandler(registry OrderRegistry, logger *zap.Logger) kafka_infra.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		var event domain.OrderCreatedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Error("Failed to unmarshal OrderCreatedEvent",
				zap.Error(err),
				zap.ByteString("value", msg.Value),
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
			)
			return nil
		}
		if event.OrderID == "" {
			event.OrderID = string(msg.Key)
		}

		created, err := registry.RegisterOrder(ctx, event)
		if err != nil {
			logger.Error("Failed to register order",
				zap.String("order_id", event.OrderID),
				zap.Error(err),
			)
			return fmt.Errorf("failed to register order %s: %w", event.OrderID, err)
		}

		if created {
			logger.Info("Order registered",
				zap.String("order_id", event.OrderID),
				zap.String("amount", event.Amount.String()),
				zap.String("currency", event.Currency),
			)
		} else {
			logger.Debug("Order already registered", zap.String("order_id", event.OrderID))
		}
		return nil
	}
}
