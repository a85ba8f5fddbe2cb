// Package ledger persists the append-only record of executed trades.
// Appends are idempotent: a record that matches an existing entry on
// symbol, quantity, price and timestamp is refused rather than
// duplicated, so replaying a cycle after a crash never double-counts.
package ledger

import (
	"context"
	"fmt"
	"time"

	"alpaca-trader/internal/models"
)

// TradeRecord is one executed trade as written to the ledger.
type TradeRecord struct {
	OrderID   string    `csv:"order_id"`
	Symbol    string    `csv:"symbol"`
	Side      string    `csv:"side"`
	Quantity  float64   `csv:"quantity"`
	Price     float64   `csv:"price"`
	Timestamp time.Time `csv:"timestamp"`
}

// NewTradeRecord builds a ledger record from a submitted intent and its
// brokerage result.
func NewTradeRecord(intent models.TradeIntent, result models.OrderResult, filledAt time.Time) TradeRecord {
	price := intent.ReferencePrice
	if intent.OrderType == models.OrderTypeLimit && intent.LimitPrice > 0 {
		price = intent.LimitPrice
	}
	return TradeRecord{
		OrderID:   result.OrderID,
		Symbol:    intent.Symbol,
		Side:      string(intent.Side),
		Quantity:  intent.Quantity,
		Price:     price,
		Timestamp: filledAt,
	}
}

// key is the identity used for duplicate detection. Timestamps are
// truncated to the second so a reread CSV round-trips to the same key.
func (r TradeRecord) key() string {
	return fmt.Sprintf("%s|%.5f|%.5f|%d", r.Symbol, r.Quantity, r.Price, r.Timestamp.Unix())
}

// Ledger is the persisted trade history.
type Ledger interface {
	// Append writes a record. A record matching an existing entry on
	// symbol, quantity, price and timestamp returns ErrLedgerDuplicate
	// and leaves the ledger unchanged.
	Append(ctx context.Context, record TradeRecord) error

	// Records returns all entries, oldest first.
	Records(ctx context.Context) ([]TradeRecord, error)

	// Close releases underlying resources.
	Close() error
}
