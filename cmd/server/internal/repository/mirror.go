package repository

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Shwethakalyani/stock-broker-client-dashboard/pkg/models"
)

// Mirror decouples the tick loop from Redis latency. OnTick hands the batch
// to a buffered channel and returns immediately; a worker goroutine does the
// actual writes. When the worker falls behind, whole ticks are dropped:
// for a last-price cache, fresh beats complete.
type Mirror struct {
	store  PriceStore
	logger *zap.Logger
	ch     chan []models.StockUpdate
}

func NewMirror(store PriceStore, logger *zap.Logger) *Mirror {
	return &Mirror{
		store:  store,
		logger: logger,
		ch:     make(chan []models.StockUpdate, 16),
	}
}

// OnTick implements the engine's sink contract. Never blocks.
func (m *Mirror) OnTick(batch []models.StockUpdate) {
	select {
	case m.ch <- batch:
	default:
		m.logger.Warn("Mirror behind, dropping tick", zap.Int("batch_size", len(batch)))
	}
}

// Run drains the channel until the context is cancelled.
func (m *Mirror) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch := <-m.ch:
			writeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := m.store.PutBatch(writeCtx, batch); err != nil {
				m.logger.Error("Mirror write failed", zap.Error(err))
			}
			cancel()
		}
	}
}
