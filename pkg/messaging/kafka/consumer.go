package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/erain9/ordercache/pkg/messaging"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// messageReader is the part of *kafka.Reader the consumer uses
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// EventHandler processes one decoded order event
type EventHandler func(*messaging.OrderEvent) error

// Consumer reads order events from a topic
type Consumer struct {
	reader messageReader
	logger zerolog.Logger
}

// NewConsumer creates a consumer in group groupID reading topic from brokers
func NewConsumer(brokers []string, topic, groupID string, logger zerolog.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  500 * time.Millisecond,
	})
	return &Consumer{reader: reader, logger: logger}
}

// Consume reads messages until ctx is done or the reader is closed. Messages
// that do not decode are logged and skipped; a handler error stops the loop.
func (c *Consumer) Consume(ctx context.Context, handle EventHandler) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to read message: %w", err)
		}

		var event messaging.OrderEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.logger.Warn().Err(err).
				Int64("offset", msg.Offset).
				Msg("Skipping undecodable order event")
			continue
		}

		if err := handle(&event); err != nil {
			return fmt.Errorf("failed to handle order event %s: %w", event.OrderID, err)
		}
	}
}

// Close closes the underlying reader
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// SetupConsumer starts a consumer that logs every order event it receives.
// It returns once the consumer goroutine is running; cancel ctx and call
// Close to stop it.
func SetupConsumer(ctx context.Context, brokers []string, topic string, logger zerolog.Logger) *Consumer {
	consumer := NewConsumer(brokers, topic, "ordercache-events-log", logger)

	go func() {
		logger.Info().Str("topic", topic).Msg("Starting Kafka consumer")
		err := consumer.Consume(ctx, func(event *messaging.OrderEvent) error {
			logger.Info().
				Str("type", string(event.Type)).
				Str("reason", string(event.Reason)).
				Str("order_id", event.OrderID).
				Str("security_id", event.SecurityID).
				Str("side", event.Side).
				Uint64("qty", event.Quantity).
				Str("user", event.User).
				Str("company", event.Company).
				Time("time", event.Time).
				Msg("Received order event")
			return nil
		})
		if err != nil {
			logger.Error().Err(err).Msg("Kafka consumer error")
		}
	}()

	return consumer
}
