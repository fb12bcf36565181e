package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stockservice/internal/platform/kafka"

	"github.com/cenkalti/backoff/v4"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type ConsumerService interface {
	Start(ctx context.Context) error
}

// KafkaConsumerService runs one fetch-handle-commit loop per consumer. All
// consumers belong to the same group, so partitions are spread across them.
type KafkaConsumerService struct {
	consumers       []kafka.Consumer
	messageHandler  MessageHandler
	logger          *zap.Logger
	retryMaxElapsed time.Duration
}

// NewConsumerService wires the workers. retryMaxElapsed bounds how long a
// failing message is retried before the service gives up; 0 retries until
// shutdown.
func NewConsumerService(consumers []kafka.Consumer, messageHandler MessageHandler, logger *zap.Logger, retryMaxElapsed time.Duration) ConsumerService {
	return &KafkaConsumerService{
		consumers:       consumers,
		messageHandler:  messageHandler,
		logger:          logger,
		retryMaxElapsed: retryMaxElapsed,
	}
}

func (c *KafkaConsumerService) Start(ctx context.Context) error {
	if len(c.consumers) == 0 {
		return errors.New("no kafka consumers configured")
	}
	c.logger.Info("Kafka consumer started. Waiting for messages...", zap.Int("workers", len(c.consumers)))

	g, gctx := errgroup.WithContext(ctx)
	for i, consumer := range c.consumers {
		worker := i
		consumer := consumer
		g.Go(func() error {
			return c.run(gctx, worker, consumer)
		})
	}
	err := g.Wait()

	c.logger.Info("Consumer service finished. Shutting down...")
	return err
}

func (c *KafkaConsumerService) run(ctx context.Context, worker int, consumer kafka.Consumer) error {
	logger := c.logger.With(zap.Int("worker", worker))
	fetchWait := newRetryPolicy(0)

	for {
		msg, err := consumer.FetchMessage(ctx)
		if err != nil {
			if isDone(ctx, err) {
				logger.Info("Context done, exiting Kafka read loop.", zap.Error(err))
				return nil
			}
			wait := fetchWait.NextBackOff()
			logger.Error("❌ Error reading from Kafka", zap.Error(err), zap.Duration("retry_in", wait))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(wait):
			}
			continue
		}
		fetchWait.Reset()

		if err := c.handle(ctx, logger, msg); err != nil {
			if isDone(ctx, err) {
				return nil
			}
			return fmt.Errorf("worker %d: message %s/%d/%d: %w", worker, msg.Topic, msg.Partition, msg.Offset, err)
		}

		if err := consumer.CommitMessages(ctx, msg); err != nil {
			if isDone(ctx, err) {
				return nil
			}
			// the message is redelivered and absorbed by dedup
			logger.Error("❌ Failed to commit offset", zap.Error(err),
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
			)
		}
	}
}

// handle retries a failing message with exponential backoff. The offset is
// not committed until the handler succeeds.
func (c *KafkaConsumerService) handle(ctx context.Context, logger *zap.Logger, msg kafkago.Message) error {
	policy := newRetryPolicy(c.retryMaxElapsed)

	return backoff.RetryNotify(func() error {
		return c.messageHandler.HandleMessage(ctx, msg)
	}, backoff.WithContext(policy, ctx), func(err error, next time.Duration) {
		logger.Warn("⚠️ Stock event failed, retrying",
			zap.Error(err),
			zap.Duration("retry_in", next),
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
		)
	})
}

// newRetryPolicy backs off from 100ms to 10s. maxElapsed 0 never gives up.
func newRetryPolicy(maxElapsed time.Duration) *backoff.ExponentialBackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.MaxInterval = 10 * time.Second
	policy.MaxElapsedTime = maxElapsed
	policy.Reset()
	return policy
}

func isDone(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
