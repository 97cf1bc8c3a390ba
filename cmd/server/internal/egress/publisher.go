// Package egress publishes generated ticks to Kafka for downstream
// consumers (history writers, analytics) that should not ride the
// websocket path.
package egress

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/Shwethakalyani/stock-broker-client-dashboard/pkg/models"
)

// KafkaWriter abstracts the producer for testing.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher forwards tick batches to Kafka, keyed by symbol so one
// symbol's updates stay ordered within a partition. Like the Redis
// mirror, it drops whole ticks instead of stalling the tick loop.
type Publisher struct {
	writer KafkaWriter
	logger *zap.Logger
	ch     chan []models.StockUpdate
}

func NewPublisher(writer KafkaWriter, logger *zap.Logger) *Publisher {
	return &Publisher{
		writer: writer,
		logger: logger,
		ch:     make(chan []models.StockUpdate, 16),
	}
}

// NewWriter builds the kafka-go producer tuned for this feed: async
// batched writes keep the publish path off the tick loop's critical path.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		Async:        true,
	}
}

// OnTick implements the engine's sink contract. Never blocks.
func (p *Publisher) OnTick(batch []models.StockUpdate) {
	select {
	case p.ch <- batch:
	default:
		p.logger.Warn("Egress behind, dropping tick", zap.Int("batch_size", len(batch)))
	}
}

// Run drains the channel until the context is cancelled, then flushes the writer.
func (p *Publisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			if err := p.writer.Close(); err != nil {
				p.logger.Error("Error closing Kafka writer", zap.Error(err))
			}
			return
		case batch := <-p.ch:
			p.publish(ctx, batch)
		}
	}
}

func (p *Publisher) publish(ctx context.Context, batch []models.StockUpdate) {
	msgs := make([]kafka.Message, 0, len(batch))
	for _, update := range batch {
		payload, err := json.Marshal(update)
		if err != nil {
			p.logger.Error("JSON Marshal Error", zap.Error(err))
			continue
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(update.Symbol), // Key ensures partition ordering
			Value: payload,
		})
	}
	if len(msgs) == 0 {
		return
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		p.logger.Error("Kafka Write Error", zap.Error(err))
	}
}
