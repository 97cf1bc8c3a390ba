// Package models holds the wire types shared by the price engine and the
// websocket gateway.
package models

// StockUpdate is one generated price for a symbol. SeqID increases by one
// per symbol per tick, so consumers can detect stale or duplicate updates.
type StockUpdate struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"` // unix micro
	SeqID     int64   `json:"seq_id"`
}
