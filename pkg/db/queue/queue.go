package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/erain9/ordercache/pkg/messaging"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	defaultBroker = "localhost:9092"
	defaultTopic  = "ordercache-events"
	maxRetry      = 5
)

// newSyncProducer is replaced in tests
var newSyncProducer = sarama.NewSyncProducer

// Config describes how to reach the broker
type Config struct {
	Brokers []string
	Topic   string
	// Logger receives sarama's internal log lines when set
	Logger *zap.Logger
}

func (c Config) withDefaults() Config {
	if len(c.Brokers) == 0 {
		c.Brokers = []string{defaultBroker}
	}
	if c.Topic == "" {
		c.Topic = defaultTopic
	}
	return c
}

// SetLogger routes sarama's package logger through z
func SetLogger(z *zap.Logger) {
	sarama.Logger = zap.NewStdLog(z.Named("sarama"))
}

// QueueMessageSender implements the MessageSender interface
// for sending messages to Kafka through a sarama sync producer
type QueueMessageSender struct {
	producer sarama.SyncProducer
	topic    string
}

// NewQueueMessageSender connects a sync producer to the configured brokers
func NewQueueMessageSender(cfg Config) (*QueueMessageSender, error) {
	cfg = cfg.withDefaults()
	if cfg.Logger != nil {
		SetLogger(cfg.Logger)
	}

	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = maxRetry
	config.Producer.Return.Successes = true
	config.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := newSyncProducer(cfg.Brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	return &QueueMessageSender{
		producer: producer,
		topic:    cfg.Topic,
	}, nil
}

// SendOrderEvent sends the OrderEvent to the Kafka queue
func (q *QueueMessageSender) SendOrderEvent(ctx context.Context, event *messaging.OrderEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	messageBytes, err := EncodeOrderEvent(event)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic:     q.topic,
		Key:       sarama.StringEncoder(event.OrderID),
		Value:     sarama.ByteEncoder(messageBytes),
		Timestamp: event.Time,
	}

	if _, _, err := q.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("failed to send message to Kafka: %w", err)
	}
	return nil
}

// Close closes the producer
func (q *QueueMessageSender) Close() error {
	return q.producer.Close()
}

// EncodeOrderEvent serializes event as a protobuf Struct
func EncodeOrderEvent(event *messaging.OrderEvent) ([]byte, error) {
	payload, err := structpb.NewStruct(map[string]interface{}{
		"type":       string(event.Type),
		"reason":     string(event.Reason),
		"orderId":    event.OrderID,
		"securityId": event.SecurityID,
		"side":       event.Side,
		"quantity":   event.Quantity,
		"user":       event.User,
		"company":    event.Company,
		"time":       event.Time.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build order event payload: %w", err)
	}

	data, err := proto.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order event: %w", err)
	}
	return data, nil
}

// DecodeOrderEvent is the inverse of EncodeOrderEvent
func DecodeOrderEvent(data []byte) (*messaging.OrderEvent, error) {
	var payload structpb.Struct
	if err := proto.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order event: %w", err)
	}

	fields := payload.GetFields()
	str := func(key string) string {
		return fields[key].GetStringValue()
	}

	event := &messaging.OrderEvent{
		Type:       messaging.EventType(str("type")),
		Reason:     messaging.CancelReason(str("reason")),
		OrderID:    str("orderId"),
		SecurityID: str("securityId"),
		Side:       str("side"),
		Quantity:   uint64(fields["quantity"].GetNumberValue()),
		User:       str("user"),
		Company:    str("company"),
	}

	if ts := str("time"); ts != "" {
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("failed to parse event time: %w", err)
		}
		event.Time = t
	}
	return event, nil
}

var _ messaging.MessageSender = (*QueueMessageSender)(nil)
