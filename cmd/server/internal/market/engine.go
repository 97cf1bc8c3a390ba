package market

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Shwethakalyani/stock-broker-client-dashboard/pkg/models"
)

// Engine is the synthetic price generator. Once per interval it perturbs
// every instrument's price by a bounded random walk, commits the whole
// batch to the registry, and hands the batch to each registered sink.
//
// Run drives generation and sink dispatch from a single goroutine, so one
// tick always finishes before the next begins.
type Engine struct {
	registry *Registry
	logger   *zap.Logger
	interval time.Duration
	bound    float64 // max relative move per tick, e.g. 0.02 for +/-2%
	rand     Rand
	clock    Clock

	sinks []TickSink
	seq   map[string]int64
}

func NewEngine(registry *Registry, logger *zap.Logger, interval time.Duration, bound float64, rnd Rand, clock Clock) *Engine {
	return &Engine{
		registry: registry,
		logger:   logger,
		interval: interval,
		bound:    bound,
		rand:     rnd,
		clock:    clock,
		seq:      make(map[string]int64),
	}
}

// AddSink registers a tick consumer. Not safe to call after Run has started.
func (e *Engine) AddSink(s TickSink) {
	e.sinks = append(e.sinks, s)
}

// Run generates ticks until the context is cancelled.
func (e *Engine) Run(ctx context.Context) {
	e.logger.Info("Price engine started",
		zap.Duration("interval", e.interval),
		zap.Float64("bound", e.bound),
		zap.Strings("tickers", e.registry.List()))

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Price engine stopped")
			return
		case <-ticker.C:
			batch := e.Tick()
			for _, sink := range e.sinks {
				sink.OnTick(batch)
			}
		}
	}
}

// Tick advances every instrument one step and returns the finished batch.
// The registry write happens in a single critical section before any sink
// sees the batch.
func (e *Engine) Tick() []models.StockUpdate {
	current := e.registry.Snapshot()
	now := e.clock.Now().UnixMicro()

	batch := make([]models.StockUpdate, 0, len(current))
	next := make(map[string]float64, len(current))

	for _, sym := range e.registry.List() {
		price := e.nextPrice(current[sym])
		next[sym] = price
		e.seq[sym]++
		batch = append(batch, models.StockUpdate{
			Symbol:    sym,
			Price:     price,
			Timestamp: now,
			SeqID:     e.seq[sym],
		})
	}

	e.registry.SetBatch(next)
	return batch
}

// nextPrice applies a uniform perturbation in [-bound, +bound] and rounds
// to cents. decimal.Round avoids the float64 half-even surprises that
// math.Round(x*100)/100 can produce on prices like 2800.005.
func (e *Engine) nextPrice(p float64) float64 {
	perturbation := (e.rand.Float64()*2 - 1) * e.bound
	raw := p * (1 + perturbation)
	return decimal.NewFromFloat(raw).Round(2).InexactFloat64()
}
