package hub_test

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/Shwethakalyani/stock-broker-client-dashboard/cmd/server/internal/hub"
	"github.com/Shwethakalyani/stock-broker-client-dashboard/cmd/server/internal/market"
	"github.com/Shwethakalyani/stock-broker-client-dashboard/cmd/server/internal/testutils"
	"github.com/Shwethakalyani/stock-broker-client-dashboard/pkg/models"
)

func setup(t *testing.T) *hub.Hub {
	t.Helper()
	registry, err := market.NewRegistry(
		[]string{"GOOG", "TSLA", "AMZN"},
		map[string]float64{"GOOG": 2800.00, "TSLA": 700.00, "AMZN": 3100.00},
	)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	return hub.NewHub(registry, zap.NewNop())
}

func TestHub_Subscribe_ReturnsSeedSnapshot(t *testing.T) {
	h := setup(t)
	client := testutils.NewMockClient("c1")

	snap, err := h.Subscribe(client, "GOOG")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if snap.Symbol != "GOOG" || snap.Price != 2800.00 {
		t.Errorf("Expected GOOG @ 2800.00 snapshot, got %+v", snap)
	}

	if len(h.SubscribersOf("GOOG")) != 1 {
		t.Error("Expected one subscriber for GOOG")
	}
}

func TestHub_Subscribe_UnknownInstrument(t *testing.T) {
	h := setup(t)
	client := testutils.NewMockClient("c1")

	_, err := h.Subscribe(client, "BTC")
	if !errors.Is(err, market.ErrUnknownInstrument) {
		t.Fatalf("Expected ErrUnknownInstrument, got %v", err)
	}

	if len(h.SubscribersOf("BTC")) != 0 || len(h.Subscriptions(client)) != 0 {
		t.Error("Failed subscribe must not create an edge")
	}
}

func TestHub_Subscribe_Idempotency(t *testing.T) {
	h := setup(t)
	client := testutils.NewMockClient("c1")

	h.Subscribe(client, "GOOG")
	snap, err := h.Subscribe(client, "GOOG")
	if err != nil {
		t.Fatalf("Duplicate subscribe must not fail: %v", err)
	}
	if snap.Price != 2800.00 {
		t.Errorf("Duplicate subscribe should still return a snapshot, got %+v", snap)
	}

	if n := len(h.SubscribersOf("GOOG")); n != 1 {
		t.Errorf("Expected one edge after duplicate subscribe, got %d", n)
	}
	if n := len(h.Subscriptions(client)); n != 1 {
		t.Errorf("Expected one subscription after duplicate subscribe, got %d", n)
	}
}

func TestHub_Unsubscribe(t *testing.T) {
	h := setup(t)
	client := testutils.NewMockClient("c1")

	h.Subscribe(client, "GOOG")
	h.Subscribe(client, "TSLA")

	if err := h.Unsubscribe(client, "GOOG"); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}

	if len(h.SubscribersOf("GOOG")) != 0 {
		t.Error("GOOG edge should be gone")
	}
	if len(h.SubscribersOf("TSLA")) != 1 {
		t.Error("TSLA edge should survive")
	}

	// Absent edge is a no-op, not an error
	if err := h.Unsubscribe(client, "GOOG"); err != nil {
		t.Errorf("Second unsubscribe should be a no-op, got %v", err)
	}

	// Unknown symbols still fail
	if err := h.Unsubscribe(client, "BTC"); !errors.Is(err, market.ErrUnknownInstrument) {
		t.Errorf("Expected ErrUnknownInstrument, got %v", err)
	}
}

func TestHub_Unregister_PurgesEverything(t *testing.T) {
	h := setup(t)
	client := testutils.NewMockClient("c1")

	h.Subscribe(client, "GOOG")
	h.Subscribe(client, "TSLA")
	h.Subscribe(client, "AMZN")

	h.Unregister(client)

	for _, sym := range []string{"GOOG", "TSLA", "AMZN"} {
		if len(h.SubscribersOf(sym)) != 0 {
			t.Errorf("%s still has the purged client", sym)
		}
	}
	if len(h.Subscriptions(client)) != 0 {
		t.Error("Client subscriptions should be empty after purge")
	}

	// Purging again, or purging a client that never subscribed, is harmless
	h.Unregister(client)
	h.Unregister(testutils.NewMockClient("ghost"))
}

func TestHub_Broadcast_Isolation(t *testing.T) {
	h := setup(t)
	x := testutils.NewMockClient("x")
	y := testutils.NewMockClient("y")

	h.Subscribe(x, "GOOG")
	h.Subscribe(y, "TSLA")

	h.Broadcast([]models.StockUpdate{{Symbol: "GOOG", Price: 2810.50, SeqID: 1}})

	if x.BroadcastCount() != 1 {
		t.Errorf("Subscriber x should get one update, got %d", x.BroadcastCount())
	}
	if !strings.Contains(x.RawBytes[0], "2810.5") {
		t.Errorf("Payload should carry the new price, got %s", x.RawBytes[0])
	}
	if y.BroadcastCount() != 0 {
		t.Errorf("y is not subscribed to GOOG and must receive nothing, got %d", y.BroadcastCount())
	}
}

func TestHub_Broadcast_EmptyInterest(t *testing.T) {
	h := setup(t)

	// Nobody subscribed: must be a pure no-op
	h.Broadcast([]models.StockUpdate{{Symbol: "GOOG", Price: 2810.50, SeqID: 1}})
}

func TestHub_SnapshotReflectsLastBroadcast(t *testing.T) {
	h := setup(t)
	h.Broadcast([]models.StockUpdate{{Symbol: "GOOG", Price: 2756.00, SeqID: 7}})

	client := testutils.NewMockClient("c1")
	snap, err := h.Subscribe(client, "GOOG")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if snap.Price != 2756.00 || snap.SeqID != 7 {
		t.Errorf("Snapshot should be the freshest broadcast, got %+v", snap)
	}
}

// Index consistency: symbol->clients and client->symbols must agree after any
// interleaving of operations.
func TestHub_IndexConsistency(t *testing.T) {
	h := setup(t)
	symbols := []string{"GOOG", "TSLA", "AMZN"}

	clients := make([]*testutils.MockClient, 8)
	var wg sync.WaitGroup
	for i := range clients {
		clients[i] = testutils.NewMockClient(fmt.Sprintf("c%d", i))
		wg.Add(1)
		go func(c *testutils.MockClient, n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				sym := symbols[(n+j)%len(symbols)]
				h.Subscribe(c, sym)
				if j%3 == 0 {
					h.Unsubscribe(c, sym)
				}
				if j%17 == 0 {
					h.Unregister(c)
				}
			}
		}(clients[i], i)
	}
	wg.Wait()

	for _, c := range clients {
		subs := make(map[string]bool)
		for _, sym := range h.Subscriptions(c) {
			subs[sym] = true
		}
		for _, sym := range symbols {
			inInverse := false
			for _, sc := range h.SubscribersOf(sym) {
				if sc == hub.ClientInterface(c) {
					inInverse = true
				}
			}
			if subs[sym] != inInverse {
				t.Errorf("Index divergence for %s/%s: forward=%v inverse=%v", c.ID(), sym, subs[sym], inInverse)
			}
		}
	}
}

func TestHub_RaceCondition(t *testing.T) {
	// Run with `go test -race ./...`
	h := setup(t)
	client := testutils.NewMockClient("c1")

	var wg sync.WaitGroup
	wg.Add(4)
	go func() { defer wg.Done(); h.Subscribe(client, "GOOG") }()
	go func() { defer wg.Done(); h.Unsubscribe(client, "GOOG") }()
	go func() { defer wg.Done(); h.Broadcast([]models.StockUpdate{{Symbol: "GOOG", Price: 2801.00, SeqID: 1}}) }()
	go func() { defer wg.Done(); h.Unregister(client) }()
	wg.Wait()
}
