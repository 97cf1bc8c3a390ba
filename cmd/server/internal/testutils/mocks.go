package testutils

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Shwethakalyani/stock-broker-client-dashboard/cmd/server/internal/egress"
	"github.com/Shwethakalyani/stock-broker-client-dashboard/cmd/server/internal/protocol"
)

// MockClient simulates a connected websocket client
type MockClient struct {
	IDVal    string
	Messages []protocol.WSResponse // Stores decoded JSON messages
	RawBytes []string              // Stores raw broadcast bytes
	Closed   bool
	Mu       sync.Mutex
}

func NewMockClient(id string) *MockClient {
	return &MockClient{IDVal: id, Messages: make([]protocol.WSResponse, 0)}
}

func (m *MockClient) ID() string { return m.IDVal }

func (m *MockClient) Close() {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Closed = true
}

func (m *MockClient) SendJSON(v interface{}) {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if resp, ok := v.(protocol.WSResponse); ok {
		m.Messages = append(m.Messages, resp)
	}
}

func (m *MockClient) SendBytes(b []byte) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.RawBytes = append(m.RawBytes, string(b))

	// Broadcasts arrive as marshalled responses; keep the decoded form too
	var resp protocol.WSResponse
	if err := json.Unmarshal(b, &resp); err == nil {
		m.Messages = append(m.Messages, resp)
	}
}

func (m *MockClient) LastMsgType() string {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if len(m.Messages) == 0 {
		return ""
	}
	return m.Messages[len(m.Messages)-1].Type
}

func (m *MockClient) BroadcastCount() int {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return len(m.RawBytes)
}

// MockClock fixes time for deterministic updates
type MockClock struct {
	CurrentTime time.Time
}

func (m *MockClock) Now() time.Time        { return m.CurrentTime }
func (m *MockClock) Sleep(d time.Duration) { m.CurrentTime = m.CurrentTime.Add(d) }

// MockRand returns a fixed draw; 0.5 means "no move" for the price walk
type MockRand struct {
	ValFloat float64
}

func (m *MockRand) Float64() float64 { return m.ValFloat }

type MockKafkaWriter struct {
	Messages   []kafka.Message
	Mu         sync.Mutex
	ShouldFail bool
}

func (m *MockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.ShouldFail {
		return errors.New("kafka error")
	}
	m.Messages = append(m.Messages, msgs...)
	return nil
}

func (m *MockKafkaWriter) Close() error { return nil }

type MockKafkaConn struct {
	CreatedTopics []string
}

func (m *MockKafkaConn) Controller() (kafka.Broker, error) {
	return kafka.Broker{Host: "localhost", Port: 9092}, nil
}
func (m *MockKafkaConn) Close() error { return nil }
func (m *MockKafkaConn) CreateTopics(topics ...kafka.TopicConfig) error {
	for _, t := range topics {
		m.CreatedTopics = append(m.CreatedTopics, t.Topic)
	}
	return nil
}
func (m *MockKafkaConn) ReadPartitions(topics ...string) ([]kafka.Partition, error) {
	// Simulate "Ready" state immediately
	return []kafka.Partition{{ID: 0}}, nil
}

type MockKafkaDialer struct {
	ConnSpy *MockKafkaConn
}

func (d *MockKafkaDialer) DialContext(ctx context.Context, network, address string) (egress.KafkaConn, error) {
	if d.ConnSpy == nil {
		d.ConnSpy = &MockKafkaConn{}
	}
	return d.ConnSpy, nil
}
