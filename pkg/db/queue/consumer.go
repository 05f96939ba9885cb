package queue

import (
	"fmt"
	"sync"

	"github.com/IBM/sarama"
	"github.com/erain9/ordercache/pkg/messaging"
)

// QueueMessageConsumer reads order events from every partition of a topic
type QueueMessageConsumer struct {
	consumer  sarama.Consumer
	topic     string
	done      chan struct{}
	closeOnce sync.Once
}

// NewQueueMessageConsumer creates a consumer starting at the newest offset
func NewQueueMessageConsumer(cfg Config) (*QueueMessageConsumer, error) {
	cfg = cfg.withDefaults()

	config := sarama.NewConfig()
	config.Consumer.Return.Errors = true

	consumer, err := sarama.NewConsumer(cfg.Brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
	}

	return &QueueMessageConsumer{
		consumer: consumer,
		topic:    cfg.Topic,
		done:     make(chan struct{}),
	}, nil
}

// ConsumeOrderEvents calls handler for every decoded event on partition 0
// until Close is called. Undecodable messages are skipped.
func (c *QueueMessageConsumer) ConsumeOrderEvents(handler func(*messaging.OrderEvent) error) error {
	pc, err := c.consumer.ConsumePartition(c.topic, 0, sarama.OffsetNewest)
	if err != nil {
		return fmt.Errorf("failed to consume partition: %w", err)
	}
	defer pc.Close()

	for {
		select {
		case <-c.done:
			return nil
		case msg, ok := <-pc.Messages():
			if !ok {
				return nil
			}
			event, err := DecodeOrderEvent(msg.Value)
			if err != nil {
				continue
			}
			if err := handler(event); err != nil {
				return err
			}
		case cerr, ok := <-pc.Errors():
			if !ok {
				return nil
			}
			return cerr
		}
	}
}

// Close stops ConsumeOrderEvents and closes the underlying consumer
func (c *QueueMessageConsumer) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.consumer.Close()
	})
	return err
}
