package market

import (
	"math/rand"
	"time"

	"github.com/Shwethakalyani/stock-broker-client-dashboard/pkg/models"
)

// for deterministic testing
type Clock interface {
	Now() time.Time
}

// for deterministic values
type Rand interface {
	Float64() float64
}

// TickSink receives the finished batch of one tick. Implementations must not
// block: the engine calls every sink inline before starting its next tick.
type TickSink interface {
	OnTick(batch []models.StockUpdate)
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

type RealRand struct{ *rand.Rand }

func (r RealRand) Float64() float64 { return r.Rand.Float64() }

// TickSinkFunc adapts a function to the TickSink interface.
type TickSinkFunc func(batch []models.StockUpdate)

func (f TickSinkFunc) OnTick(batch []models.StockUpdate) { f(batch) }
