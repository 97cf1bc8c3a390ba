package repository_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Shwethakalyani/stock-broker-client-dashboard/cmd/server/internal/repository"
	"github.com/Shwethakalyani/stock-broker-client-dashboard/pkg/models"
)

func newTestStore(t *testing.T) (*repository.RedisStore, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return repository.NewRedisStore(rdb), mr, rdb
}

func TestRedisStore_PutBatch_SetsKeys(t *testing.T) {
	store, mr, _ := newTestStore(t)

	batch := []models.StockUpdate{
		{Symbol: "GOOG", Price: 2810.25, SeqID: 3},
		{Symbol: "TSLA", Price: 695.10, SeqID: 3},
	}
	if err := store.PutBatch(context.Background(), batch); err != nil {
		t.Fatalf("PutBatch failed: %v", err)
	}

	val, err := mr.Get("stock:GOOG")
	if err != nil {
		t.Fatalf("Key stock:GOOG not written: %v", err)
	}
	var update models.StockUpdate
	if err := json.Unmarshal([]byte(val), &update); err != nil {
		t.Fatalf("Stored payload is not valid JSON: %v", err)
	}
	if update.Price != 2810.25 || update.SeqID != 3 {
		t.Errorf("Unexpected stored update: %+v", update)
	}

	if mr.TTL("stock:GOOG") <= 0 {
		t.Error("Snapshot key should carry a TTL")
	}
}

func TestRedisStore_PutBatch_Publishes(t *testing.T) {
	store, _, rdb := newTestStore(t)

	sub := rdb.Subscribe(context.Background(), "prices.GOOG")
	defer sub.Close()
	// Wait for the subscription to be established
	if _, err := sub.Receive(context.Background()); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	batch := []models.StockUpdate{{Symbol: "GOOG", Price: 2790.00, SeqID: 9}}
	if err := store.PutBatch(context.Background(), batch); err != nil {
		t.Fatalf("PutBatch failed: %v", err)
	}

	select {
	case msg := <-sub.Channel():
		if !strings.Contains(msg.Payload, "2790") {
			t.Errorf("Published payload should carry the price, got %s", msg.Payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("No message published to prices.GOOG")
	}
}

func TestRedisStore_GetSnapshots(t *testing.T) {
	store, _, _ := newTestStore(t)

	batch := []models.StockUpdate{
		{Symbol: "GOOG", Price: 2810.25, SeqID: 1},
		{Symbol: "TSLA", Price: 695.10, SeqID: 1},
	}
	if err := store.PutBatch(context.Background(), batch); err != nil {
		t.Fatalf("PutBatch failed: %v", err)
	}

	snaps, err := store.GetSnapshots(context.Background(), []string{"GOOG", "TSLA", "NVDA"})
	if err != nil {
		t.Fatalf("GetSnapshots failed: %v", err)
	}
	// NVDA was never written; only two snapshots come back
	if len(snaps) != 2 {
		t.Errorf("Expected 2 snapshots, got %d", len(snaps))
	}

	snaps, err = store.GetSnapshots(context.Background(), nil)
	if err != nil || snaps != nil {
		t.Errorf("Empty symbol list should return nothing, got %v / %v", snaps, err)
	}
}

func TestMirror_WritesThrough(t *testing.T) {
	store, mr, _ := newTestStore(t)
	mirror := repository.NewMirror(store, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mirror.Run(ctx)

	mirror.OnTick([]models.StockUpdate{{Symbol: "GOOG", Price: 2820.00, SeqID: 2}})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if val, err := mr.Get("stock:GOOG"); err == nil && strings.Contains(val, "2820") {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("Mirror never wrote the tick to redis")
}
