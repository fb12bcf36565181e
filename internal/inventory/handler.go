package inventory

import (
	"context"
	"errors"

	"stockservice/internal/platform/kafka"
	"stockservice/internal/platform/observability"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageHandler defines the interface for processing incoming messages.
// A nil error means the message may be committed.
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg kafkago.Message) error
}

// KafkaMessageHandler routes stock event messages by topic to the orchestrator
type KafkaMessageHandler struct {
	service Service
	kinds   map[string]Kind
	logger  observability.Logger
}

// NewMessageHandler creates a new MessageHandler instance with explicit
// dependencies. kinds maps each subscribed topic to the event kind it carries.
func NewMessageHandler(service Service, kinds map[string]Kind, logger observability.Logger) MessageHandler {
	return &KafkaMessageHandler{
		service: service,
		kinds:   kinds,
		logger:  logger,
	}
}

// HandleMessage decodes one message and applies it. Only infrastructure
// failures are returned; malformed and unroutable messages are logged and left
// unclaimed.
func (h *KafkaMessageHandler) HandleMessage(ctx context.Context, msg kafkago.Message) error {
	// Extract trace context to connect spans across services
	msgCtx := kafka.ExtractTraceContext(ctx, msg.Headers)

	h.logger.Debug("📨 Raw Kafka message received",
		zap.String("topic", msg.Topic),
		zap.ByteString("key", msg.Key),
		zap.Int("partition", msg.Partition),
		zap.Int64("offset", msg.Offset),
	)

	kind, ok := h.kinds[msg.Topic]
	if !ok {
		h.logger.Warn("⚠️ Message from unrouted topic ignored", zap.String("topic", msg.Topic))
		return nil
	}

	delivery := Delivery{
		Topic:      msg.Topic,
		Partition:  msg.Partition,
		Offset:     msg.Offset,
		Positioned: true,
	}

	env, err := Decode(kind, msg.Value, delivery)
	if err != nil {
		if errors.Is(err, ErrMalformedPayload) {
			h.logger.Warn("⚠️ Invalid JSON in stock event, leaving it unclaimed",
				zap.Error(err),
				zap.String("topic", msg.Topic),
				zap.Int64("offset", msg.Offset),
				zap.ByteString("raw_value", msg.Value),
			)
			return nil
		}
		return err
	}

	_, err = h.service.Handle(msgCtx, env)
	return err
}
