package repository

import (
	"context"

	"github.com/Shwethakalyani/stock-broker-client-dashboard/pkg/models"
)

// PriceStore is the external last-price cache the mirror writes to.
type PriceStore interface {
	PutBatch(ctx context.Context, batch []models.StockUpdate) error
	GetSnapshots(ctx context.Context, symbols []string) ([]string, error)
	Close() error
}
