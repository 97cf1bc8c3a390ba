package hub

import (
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Shwethakalyani/stock-broker-client-dashboard/cmd/server/internal/market"
	"github.com/Shwethakalyani/stock-broker-client-dashboard/cmd/server/internal/protocol"
	"github.com/Shwethakalyani/stock-broker-client-dashboard/pkg/models"
)

// ClientInterface is the delivery target the hub fans out to. SendBytes must
// never block; slow clients shed load in their own send path.
type ClientInterface interface {
	ID() string
	SendJSON(v interface{})
	SendBytes(b []byte)
	Close()
}

// Hub is the subscription registry and broadcast dispatcher. It keeps the
// symbol->clients and client->symbols indices in lockstep under one mutex:
// every mutation touches both sides inside the same critical section, so a
// concurrent Broadcast can never observe half an edge.
//
// Lock ordering: the hub may read the market registry while holding mu; the
// price engine never calls into the hub while holding a registry lock.
type Hub struct {
	mu          sync.Mutex
	subscribers map[string]map[ClientInterface]bool
	clientSubs  map[ClientInterface]map[string]bool
	last        map[string]models.StockUpdate // freshest broadcast per symbol

	registry *market.Registry
	logger   *zap.Logger
}

func NewHub(registry *market.Registry, logger *zap.Logger) *Hub {
	return &Hub{
		subscribers: make(map[string]map[ClientInterface]bool),
		clientSubs:  make(map[ClientInterface]map[string]bool),
		last:        make(map[string]models.StockUpdate),
		registry:    registry,
		logger:      logger,
	}
}

// Subscribe adds the client<->symbol edge and returns the freshest price as
// an immediate snapshot. Subscribing twice to the same symbol is a no-op that
// still returns the snapshot. Symbols outside the fixed set fail with
// market.ErrUnknownInstrument.
func (h *Hub) Subscribe(client ClientInterface, symbol string) (models.StockUpdate, error) {
	if !h.registry.Has(symbol) {
		return models.StockUpdate{}, fmt.Errorf("%w: %s", market.ErrUnknownInstrument, symbol)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clientSubs[client] == nil {
		h.clientSubs[client] = make(map[string]bool)
	}
	if h.subscribers[symbol] == nil {
		h.subscribers[symbol] = make(map[ClientInterface]bool)
	}
	h.clientSubs[client][symbol] = true
	h.subscribers[symbol][client] = true

	return h.snapshotLocked(symbol), nil
}

// snapshotLocked prefers the last broadcast update (it carries the real
// sequence number); before the first tick it falls back to the seed price.
func (h *Hub) snapshotLocked(symbol string) models.StockUpdate {
	if update, ok := h.last[symbol]; ok {
		return update
	}
	price, err := h.registry.Get(symbol)
	if err != nil {
		// Has() passed above; the set is fixed, so this cannot happen.
		h.logger.Error("Registry lookup failed after validation", zap.String("symbol", symbol), zap.Error(err))
	}
	return models.StockUpdate{Symbol: symbol, Price: price}
}

// Unsubscribe removes the edge if present. An absent edge is a no-op; a
// symbol outside the fixed set fails with market.ErrUnknownInstrument.
func (h *Hub) Unsubscribe(client ClientInterface, symbol string) error {
	if !h.registry.Has(symbol) {
		return fmt.Errorf("%w: %s", market.ErrUnknownInstrument, symbol)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.clientSubs[client]; ok && subs[symbol] {
		delete(subs, symbol)
		delete(h.subscribers[symbol], client)
	}
	return nil
}

// Unregister purges every edge for the client. Safe to call more than once
// and on clients that never subscribed.
func (h *Hub) Unregister(client ClientInterface) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.clientSubs[client]; ok {
		for sym := range subs {
			delete(h.subscribers[sym], client)
		}
		delete(h.clientSubs, client)
	}
}

// Broadcast delivers one tick's batch. Each update is marshalled once and
// handed to every subscriber of its symbol; symbols nobody follows cost a
// single map lookup. Client sends are non-blocking, so the tick loop is
// never held up by a slow connection.
func (h *Hub) Broadcast(batch []models.StockUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, update := range batch {
		h.last[update.Symbol] = update

		clients := h.subscribers[update.Symbol]
		if len(clients) == 0 {
			continue
		}

		msg, err := json.Marshal(protocol.WSResponse{Type: protocol.TypePriceUpdate, Data: update})
		if err != nil {
			h.logger.Error("Marshal failed", zap.String("symbol", update.Symbol), zap.Error(err))
			continue
		}
		for client := range clients {
			client.SendBytes(msg)
		}
	}
}

// OnTick lets the Hub hang directly off the price engine as a sink.
func (h *Hub) OnTick(batch []models.StockUpdate) { h.Broadcast(batch) }

// SubscribersOf returns the clients currently following a symbol.
func (h *Hub) SubscribersOf(symbol string) []ClientInterface {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]ClientInterface, 0, len(h.subscribers[symbol]))
	for client := range h.subscribers[symbol] {
		out = append(out, client)
	}
	return out
}

// Subscriptions returns the symbols a client currently follows.
func (h *Hub) Subscriptions(client ClientInterface) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]string, 0, len(h.clientSubs[client]))
	for sym := range h.clientSubs[client] {
		out = append(out, sym)
	}
	return out
}
