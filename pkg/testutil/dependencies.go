package testutil

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

// DefaultKafkaAddr is the broker used by integration tests unless
// ORDERCACHE_TEST_KAFKA overrides it
const DefaultKafkaAddr = "localhost:9092"

// KafkaAddr returns the broker address integration tests should use
func KafkaAddr() string {
	if addr := os.Getenv("ORDERCACHE_TEST_KAFKA"); addr != "" {
		return addr
	}
	return DefaultKafkaAddr
}

// SkipIfKafkaUnavailable skips the test if Kafka is unavailable on the specified address
func SkipIfKafkaUnavailable(t testing.TB, kafkaAddr string) {
	t.Helper()

	if err := probeKafka(kafkaAddr, 2*time.Second); err != nil {
		t.Skipf("Skipping test: Kafka not available at %s - %v", kafkaAddr, err)
	}
}

// probeKafka dials the broker and asks it for its partitions
func probeKafka(kafkaAddr string, timeout time.Duration) error {
	conn, err := net.DialTimeout("tcp", kafkaAddr, timeout)
	if err != nil {
		return err
	}
	_ = conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	kconn, err := kafka.DialContext(ctx, "tcp", kafkaAddr)
	if err != nil {
		return err
	}
	defer kconn.Close()

	// An empty broker still answers; EOF here means it hung up on us
	if _, err := kconn.ReadPartitions(); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
