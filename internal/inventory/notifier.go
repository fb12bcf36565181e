package inventory

import (
	"context"
	"encoding/json"

	"stockservice/internal/platform/kafka"
	"stockservice/internal/platform/observability"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Notifier announces stock changes that have already been committed.
type Notifier interface {
	StockChanged(ctx context.Context, events []StockChangedEvent)
}

type nopNotifier struct{}

func (nopNotifier) StockChanged(context.Context, []StockChangedEvent) {}

// NopNotifier discards every notification.
func NopNotifier() Notifier { return nopNotifier{} }

// KafkaNotifier publishes stock changes keyed by store and sku, so every
// change of one line lands on the same partition in commit order.
type KafkaNotifier struct {
	producer kafka.Producer
	logger   observability.Logger
}

func NewKafkaNotifier(producer kafka.Producer, logger observability.Logger) *KafkaNotifier {
	return &KafkaNotifier{producer: producer, logger: logger}
}

// StockChanged is best effort: failures are logged and dropped because the
// change is already committed.
func (n *KafkaNotifier) StockChanged(ctx context.Context, events []StockChangedEvent) {
	for _, ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			n.logger.Error("❌ Failed to serialize StockChanged event",
				zap.Error(err),
				zap.String("store_code", ev.StoreCode),
				zap.String("sku", ev.SKU),
			)
			continue
		}

		msg := kafkago.Message{
			Key:   []byte(ev.StoreCode + "/" + ev.SKU),
			Value: payload,
		}
		if err := n.producer.WriteMessage(ctx, msg); err != nil {
			n.logger.Error("❌ Failed to publish StockChanged event",
				zap.Error(err),
				zap.String("store_code", ev.StoreCode),
				zap.String("sku", ev.SKU),
			)
			continue
		}

		n.logger.Debug("📤 Sent StockChanged event",
			zap.String("store_code", ev.StoreCode),
			zap.String("sku", ev.SKU),
			zap.Int64("quantity", ev.Quantity),
		)
	}
}
