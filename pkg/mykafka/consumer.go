package mykafka

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Skotchmaster/storefront/pkg/logging"
)

const (
	minReadBackoff = 100 * time.Millisecond
	maxReadBackoff = 5 * time.Second
)

type MessageHandler func(ctx context.Context, key, value []byte) error

type Consumer struct {
	reader *kafka.Reader
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	return &Consumer{reader: kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})}
}

// Consume blocks until ctx is cancelled. Handler errors are logged and the
// message is committed anyway.
func (c *Consumer) Consume(ctx context.Context, handler MessageHandler) error {
	l := logging.FromContext(ctx).With("consumer", c.reader.Config().Topic)
	backoff := time.Duration(0)
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			backoff = nextBackoff(backoff)
			l.Error("kafka_read_error", "error", err, "retry_in_ms", backoff.Milliseconds())
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			continue
		}
		backoff = 0

		if err := handler(ctx, msg.Key, msg.Value); err != nil {
			l.Error("kafka_handle_error", "offset", msg.Offset, "key", string(msg.Key), "error", err)
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// nextBackoff doubles the wait between failed reads up to maxReadBackoff.
func nextBackoff(cur time.Duration) time.Duration {
	if cur < minReadBackoff {
		return minReadBackoff
	}
	if cur *= 2; cur > maxReadBackoff {
		return maxReadBackoff
	}
	return cur
}
