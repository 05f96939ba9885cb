package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/erain9/ordercache/pkg/messaging"
	"github.com/erain9/ordercache/pkg/testutil"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	deadline bool
	closed   bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, w.deadline = ctx.Deadline()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

type fakeReader struct {
	messages chan kafka.Message
	closed   bool
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	case msg, ok := <-r.messages:
		if !ok {
			return kafka.Message{}, errors.New("reader closed")
		}
		return msg, nil
	}
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

func testEvent() *messaging.OrderEvent {
	return &messaging.OrderEvent{
		Type:       messaging.EventCanceled,
		Reason:     messaging.ReasonUser,
		OrderID:    "OrdId7",
		SecurityID: "SecId1",
		Side:       "Sell",
		Quantity:   700,
		User:       "User10",
		Company:    "Company2",
		Time:       time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC),
	}
}

func TestNewKafkaMessageSender_Validation(t *testing.T) {
	_, err := NewKafkaMessageSender(nil, "events")
	assert.Error(t, err)

	_, err = NewKafkaMessageSender([]string{"localhost:9092"}, "")
	assert.Error(t, err)

	sender, err := NewKafkaMessageSender([]string{"localhost:9092"}, "events")
	require.NoError(t, err)
	assert.Equal(t, "events", sender.Topic())
}

func TestKafkaMessageSender_SendOrderEvent(t *testing.T) {
	writer := &fakeWriter{}
	sender := &KafkaMessageSender{writer: writer, topic: "events"}
	event := testEvent()

	require.NoError(t, sender.SendOrderEvent(context.Background(), event))

	require.Len(t, writer.messages, 1)
	msg := writer.messages[0]
	assert.Equal(t, []byte("OrdId7"), msg.Key)
	assert.Equal(t, event.Time, msg.Time)
	assert.True(t, writer.deadline, "write should carry a timeout")

	var decoded messaging.OrderEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, *event, decoded)

	require.NoError(t, sender.Close())
	assert.True(t, writer.closed)
}

func TestKafkaMessageSender_WriteError(t *testing.T) {
	writer := &fakeWriter{err: errors.New("leader not available")}
	sender := &KafkaMessageSender{writer: writer, topic: "events"}

	err := sender.SendOrderEvent(context.Background(), testEvent())
	require.Error(t, err)
	assert.ErrorIs(t, err, writer.err)
}

func TestConsumer_Consume(t *testing.T) {
	reader := &fakeReader{messages: make(chan kafka.Message, 3)}
	consumer := &Consumer{reader: reader, logger: zerolog.Nop()}

	event := testEvent()
	data, err := json.Marshal(event)
	require.NoError(t, err)

	reader.messages <- kafka.Message{Value: []byte("not json"), Offset: 1}
	reader.messages <- kafka.Message{Value: data, Offset: 2}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan *messaging.OrderEvent, 1)
	done := make(chan error, 1)
	go func() {
		done <- consumer.Consume(ctx, func(e *messaging.OrderEvent) error {
			received <- e
			return nil
		})
	}()

	select {
	case got := <-received:
		assert.Equal(t, event, got)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}

	require.NoError(t, consumer.Close())
	assert.True(t, reader.closed)
}

func TestConsumer_HandlerErrorStops(t *testing.T) {
	reader := &fakeReader{messages: make(chan kafka.Message, 1)}
	consumer := &Consumer{reader: reader, logger: zerolog.Nop()}

	data, err := json.Marshal(testEvent())
	require.NoError(t, err)
	reader.messages <- kafka.Message{Value: data}

	handlerErr := errors.New("boom")
	err = consumer.Consume(context.Background(), func(*messaging.OrderEvent) error {
		return handlerErr
	})
	assert.ErrorIs(t, err, handlerErr)
}

func TestKafkaMessageSender_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	broker := testutil.KafkaAddr()
	testutil.SkipIfKafkaUnavailable(t, broker)

	sender, err := NewKafkaMessageSender([]string{broker}, "ordercache-test")
	require.NoError(t, err)
	defer sender.Close()

	assert.NoError(t, sender.SendOrderEvent(context.Background(), testEvent()))
}
