package models

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// TradeIntent is a proposed trade created by the sizing layer and consumed
// by the validator. It is terminal: once submitted or rejected it is never
// reused. ClientID is an idempotency token so a retried submission can be
// detected downstream.
type TradeIntent struct {
	ClientID       string
	Symbol         string
	Side           OrderSide
	Quantity       float64
	ReferencePrice float64
	OrderType      OrderType
	LimitPrice     float64
	CreatedAt      time.Time
}

// NewTradeIntent builds a market-order intent with a fresh client ID.
func NewTradeIntent(symbol string, side OrderSide, qty, refPrice float64) TradeIntent {
	return TradeIntent{
		ClientID:       NewClientID(),
		Symbol:         symbol,
		Side:           side,
		Quantity:       qty,
		ReferencePrice: refPrice,
		OrderType:      OrderTypeMarket,
		CreatedAt:      time.Now(),
	}
}

// Value returns the notional value of the intent at its reference price.
func (t TradeIntent) Value() float64 {
	return t.Quantity * t.ReferencePrice
}

// OrderResult is the brokerage's acknowledgement of a submitted intent.
// The engine logs the order ID for later reconciliation and otherwise
// treats submission as fire-and-forget.
type OrderResult struct {
	OrderID string
	Status  OrderStatus
}

// NewClientID returns a lexicographically sortable unique order token.
func NewClientID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}
