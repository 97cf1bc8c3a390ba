package market

import (
	"errors"
	"fmt"
	"sync"
)

// ErrUnknownInstrument is returned for any symbol outside the configured set.
var ErrUnknownInstrument = errors.New("unknown instrument")

// Registry owns the fixed instrument set and each instrument's current
// reference price. The set is frozen at construction; only prices change,
// and only the price engine writes them.
type Registry struct {
	mu      sync.RWMutex
	symbols []string // configuration order
	prices  map[string]float64
}

// NewRegistry seeds the registry from the configured instrument list.
// Symbols without a seed price are rejected up front so the engine never
// has to deal with a zero price.
func NewRegistry(symbols []string, seedPrices map[string]float64) (*Registry, error) {
	r := &Registry{
		symbols: make([]string, 0, len(symbols)),
		prices:  make(map[string]float64, len(symbols)),
	}
	for _, sym := range symbols {
		seed, ok := seedPrices[sym]
		if !ok || seed <= 0 {
			return nil, fmt.Errorf("symbol %s: missing or non-positive seed price", sym)
		}
		if _, dup := r.prices[sym]; dup {
			continue
		}
		r.symbols = append(r.symbols, sym)
		r.prices[sym] = seed
	}
	return r, nil
}

// Get returns the current reference price for a symbol.
func (r *Registry) Get(symbol string) (float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	price, ok := r.prices[symbol]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownInstrument, symbol)
	}
	return price, nil
}

// Set stores a new reference price. Only the price engine calls this.
func (r *Registry) Set(symbol string, price float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.prices[symbol]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownInstrument, symbol)
	}
	r.prices[symbol] = price
	return nil
}

// Has reports whether the symbol is part of the fixed set.
func (r *Registry) Has(symbol string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.prices[symbol]
	return ok
}

// Snapshot returns a copy of every current price.
func (r *Registry) Snapshot() map[string]float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]float64, len(r.prices))
	for sym, p := range r.prices {
		out[sym] = p
	}
	return out
}

// SetBatch stores a whole tick's prices under one critical section, so a
// concurrent reader sees either the pre-tick or post-tick state, never a mix.
// Symbols outside the fixed set are ignored.
func (r *Registry) SetBatch(prices map[string]float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for sym, p := range prices {
		if _, ok := r.prices[sym]; ok {
			r.prices[sym] = p
		}
	}
}

// List returns the symbols in configuration order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.symbols))
	copy(out, r.symbols)
	return out
}
