package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// Producer publishes to a single fixed topic.
type Producer interface {
	WriteMessage(ctx context.Context, msg kafka.Message) error
	Close() error
}

// Consumer fetches without committing so an offset only advances once the
// message has been handled.
type Consumer interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var _ Consumer = (*kafka.Reader)(nil)
