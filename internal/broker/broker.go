// Package broker provides brokerage integration interfaces and implementations.
package broker

import (
	"context"
	"time"

	"alpaca-trader/internal/models"
)

// Broker defines the interface for brokerage operations the risk engine
// consumes. The engine treats order submission as fire-and-forget for its
// own bookkeeping; the returned order ID is logged for reconciliation.
type Broker interface {
	// GetAccount returns a fresh account snapshot. Callers take one
	// snapshot per trading cycle and never cache across cycles.
	GetAccount(ctx context.Context) (*models.Account, error)

	// GetPositions returns all held positions.
	GetPositions(ctx context.Context) ([]models.Position, error)

	// GetPosition returns the position for a symbol, or (nil, nil) when
	// none exists. Absence is a normal outcome, not an error.
	GetPosition(ctx context.Context, symbol string) (*models.Position, error)

	// GetOpenOrders returns orders with the given status.
	GetOpenOrders(ctx context.Context, status models.OrderStatus) ([]models.OpenOrder, error)

	// GetDayFills returns fill activity for the given trading day.
	GetDayFills(ctx context.Context, day time.Time) ([]models.Fill, error)

	// SubmitOrder submits a trade intent and returns the brokerage
	// acknowledgement.
	SubmitOrder(ctx context.Context, intent models.TradeIntent) (*models.OrderResult, error)
}
