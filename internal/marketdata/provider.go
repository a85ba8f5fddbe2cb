// Package marketdata provides market data provider interfaces and implementations.
package marketdata

import (
	"context"
	"math"

	"alpaca-trader/internal/models"
)

// QuoteProvider supplies quotes and indicator values to the trading
// cycle. Any failure is reported as a data-unavailable condition: the
// affected symbol is skipped for the cycle and the cycle continues.
type QuoteProvider interface {
	// GetQuote returns the latest price for a symbol.
	GetQuote(ctx context.Context, symbol string) (*models.Quote, error)

	// GetIndicator returns a single technical indicator value.
	GetIndicator(ctx context.Context, symbol, kind string, params map[string]string) (float64, error)

	// GetDailyReturns returns the log returns over the last days closes,
	// oldest first. Used by the rebalancer to rank positions by
	// historical volatility.
	GetDailyReturns(ctx context.Context, symbol string, days int) ([]float64, error)
}

// Volatility computes the standard deviation of a return series. An
// empty series has zero volatility.
func Volatility(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns))

	return math.Sqrt(variance)
}
