package kafka

import (
	"context"
	"time"

	otelkafka "github.com/Trendyol/otel-kafka-konsumer"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
	"go.opentelemetry.io/otel/trace"
)

// ReaderConfig describes one consumer-group member.
type ReaderConfig struct {
	Brokers []string
	GroupID string
	Topics  []string
}

// NewReader creates a group reader over every topic. Offsets are committed
// explicitly by the caller.
func NewReader(cfg ReaderConfig) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		GroupTopics:    cfg.Topics,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: 0,
	})
}

// WriterConfig describes an instrumented producer for one topic.
type WriterConfig struct {
	Brokers      []string
	Topic        string
	ClientID     string
	BatchTimeout time.Duration
	BatchSize    int
}

// NewWriter creates a Kafka writer that injects trace context into message headers.
func NewWriter(cfg WriterConfig, tp trace.TracerProvider) (Producer, error) {
	baseWriter := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: cfg.BatchTimeout,
		BatchSize:    cfg.BatchSize,
	}

	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	writer, err := otelkafka.NewWriter(baseWriter,
		otelkafka.WithTracerProvider(tp),
		otelkafka.WithPropagator(propagation.TraceContext{}),
		otelkafka.WithAttributes(
			[]attribute.KeyValue{
				semconv.MessagingDestinationNameKey.String(cfg.Topic),
				attribute.String("messaging.kafka.client_id", cfg.ClientID),
			},
		),
	)
	if err != nil {
		return nil, err
	}
	return writer, nil
}

// ExtractTraceContext extracts OpenTelemetry trace context from Kafka message headers
func ExtractTraceContext(ctx context.Context, headers []kafka.Header) context.Context {
	carrier := propagation.MapCarrier{}
	for _, header := range headers {
		carrier[string(header.Key)] = string(header.Value)
	}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}
