package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Shwethakalyani/stock-broker-client-dashboard/pkg/models"
)

const (
	keyPrefix     = "stock:"
	channelPrefix = "prices."
	snapshotTTL   = 1 * time.Hour
)

// Compile-time check to ensure RedisStore implements PriceStore
var _ PriceStore = (*RedisStore)(nil)

// RedisStore mirrors each tick into Redis: SET for late-joining readers,
// PUBLISH for live external consumers. The TTL keeps stale symbols from
// lingering if the instrument list ever shrinks across restarts.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// PutBatch writes one tick's updates as a single pipeline, so external
// readers see SET and PUBLISH for a symbol land together.
func (r *RedisStore) PutBatch(ctx context.Context, batch []models.StockUpdate) error {
	if len(batch) == 0 {
		return nil
	}

	pipe := r.client.Pipeline()
	for _, update := range batch {
		payload, err := json.Marshal(update)
		if err != nil {
			return err
		}
		pipe.Set(ctx, keyPrefix+update.Symbol, payload, snapshotTTL)
		pipe.Publish(ctx, channelPrefix+update.Symbol, payload)
	}

	_, err := pipe.Exec(ctx)
	return err
}

// GetSnapshots fetches the latest mirrored payload for a list of symbols (MGET)
func (r *RedisStore) GetSnapshots(ctx context.Context, symbols []string) ([]string, error) {
	if len(symbols) == 0 {
		return nil, nil
	}

	keys := make([]string, len(symbols))
	for i, sym := range symbols {
		keys[i] = keyPrefix + sym
	}

	results, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	var snapshots []string
	for _, val := range results {
		if payload, ok := val.(string); ok && payload != "" {
			snapshots = append(snapshots, payload)
		}
	}
	return snapshots, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
