package marketdata

import (
	"context"
	"fmt"

	"alpaca-trader/internal/errors"
	"alpaca-trader/internal/models"
	"alpaca-trader/internal/resilience"
)

// ResilientProvider wraps a QuoteProvider with a circuit breaker. When
// the upstream keeps failing, calls short-circuit to a data-unavailable
// error instead of hammering a dead API; affected symbols are skipped
// the same way as any other fetch failure.
type ResilientProvider struct {
	inner   QuoteProvider
	breaker *resilience.Breaker
}

// NewResilientProvider wraps a provider with the given breaker.
func NewResilientProvider(inner QuoteProvider, breaker *resilience.Breaker) *ResilientProvider {
	return &ResilientProvider{inner: inner, breaker: breaker}
}

func (r *ResilientProvider) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	if err := r.breaker.Allow(); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrDataUnavailable, err)
	}
	quote, err := r.inner.GetQuote(ctx, symbol)
	r.record(err)
	return quote, err
}

func (r *ResilientProvider) GetIndicator(ctx context.Context, symbol, kind string, params map[string]string) (float64, error) {
	if err := r.breaker.Allow(); err != nil {
		return 0, fmt.Errorf("%w: %v", errors.ErrDataUnavailable, err)
	}
	value, err := r.inner.GetIndicator(ctx, symbol, kind, params)
	r.record(err)
	return value, err
}

func (r *ResilientProvider) GetDailyReturns(ctx context.Context, symbol string, days int) ([]float64, error) {
	if err := r.breaker.Allow(); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrDataUnavailable, err)
	}
	returns, err := r.inner.GetDailyReturns(ctx, symbol, days)
	r.record(err)
	return returns, err
}

func (r *ResilientProvider) record(err error) {
	if err != nil {
		r.breaker.RecordFailure()
		return
	}
	r.breaker.RecordSuccess()
}
