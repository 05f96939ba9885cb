package testutil

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKafkaAddr(t *testing.T) {
	t.Setenv("ORDERCACHE_TEST_KAFKA", "")
	assert.Equal(t, DefaultKafkaAddr, KafkaAddr())

	t.Setenv("ORDERCACHE_TEST_KAFKA", "broker:29092")
	assert.Equal(t, "broker:29092", KafkaAddr())
}

func TestProbeKafka_ClosedPort(t *testing.T) {
	// Grab a free port and release it so nothing is listening there
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot open a local listener: %v", err)
	}
	addr := l.Addr().String()
	_ = l.Close()

	assert.Error(t, probeKafka(addr, 200*time.Millisecond))
}
