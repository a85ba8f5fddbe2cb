// Package models provides domain models for the trading risk engine.
package models

import (
	"strings"
	"time"
)

// AssetClass represents the coarse asset category a symbol belongs to.
type AssetClass string

const (
	AssetClassCrypto    AssetClass = "crypto"
	AssetClassCommodity AssetClass = "commodity"
)

// ClassOf returns the asset class for a symbol. A symbol is crypto iff it
// ends with "USD" (BTCUSD, ETHUSD, ...); everything else is treated as a
// commodity/equity ticker.
func ClassOf(symbol string) AssetClass {
	if strings.HasSuffix(symbol, "USD") {
		return AssetClassCrypto
	}
	return AssetClassCommodity
}

// OrderSide represents the side of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderType represents the type of an order.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// OrderStatus represents the lifecycle status of a brokerage order.
type OrderStatus string

const (
	OrderStatusOpen   OrderStatus = "open"
	OrderStatusFilled OrderStatus = "filled"
	OrderStatusClosed OrderStatus = "closed"
)

// Account is a point-in-time snapshot of the brokerage account. It is
// taken once per trading cycle and shared read-only by all workers; it
// must never be cached across cycles.
type Account struct {
	Cash        float64
	Equity      float64
	BuyingPower float64
	FetchedAt   time.Time
}

// Position is a read-only mirror of a brokerage position, valid for the
// duration of a single decision.
type Position struct {
	Symbol          string
	Quantity        float64
	AvgEntryPrice   float64
	CurrentPrice    float64
	UnrealizedPLPct float64
}

// MarketValue returns the current market value of the position.
func (p Position) MarketValue() float64 {
	return p.Quantity * p.CurrentPrice
}

// CostBasis returns the total entry cost of the position.
func (p Position) CostBasis() float64 {
	return p.Quantity * p.AvgEntryPrice
}

// Class returns the asset class of the position's symbol.
func (p Position) Class() AssetClass {
	return ClassOf(p.Symbol)
}

// OpenOrder represents an order resting at the brokerage. The validator
// uses open orders only to prevent duplicate concurrent exposure on the
// same symbol.
type OpenOrder struct {
	Symbol   string
	Side     OrderSide
	Quantity float64
	Status   OrderStatus
}

// Fill represents an order fill activity reported by the brokerage.
type Fill struct {
	Symbol   string
	Side     OrderSide
	Quantity float64
	Price    float64
	FilledAt time.Time
}

// Quote represents a market quote.
type Quote struct {
	Symbol    string
	Price     float64
	Timestamp time.Time
}
