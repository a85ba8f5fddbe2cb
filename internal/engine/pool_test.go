package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alpaca-trader/internal/config"
	"alpaca-trader/internal/errors"
)

func TestQuotePoolFetchesAllSymbols(t *testing.T) {
	pool := newQuotePool(config.EngineConfig{Workers: 3}, func(ctx context.Context, symbol string) (float64, error) {
		return float64(len(symbol)), nil
	})

	results := pool.run(context.Background(), []string{"A", "BB", "CCC", "DDDD"})
	require.Len(t, results, 4)

	bySymbol := map[string]float64{}
	for _, r := range results {
		require.NoError(t, r.Err)
		bySymbol[r.Symbol] = r.Price
	}
	assert.Equal(t, 2.0, bySymbol["BB"])
	assert.Equal(t, 4.0, bySymbol["DDDD"])
}

func TestQuotePoolBoundsConcurrency(t *testing.T) {
	var current, peak int64
	var mu sync.Mutex

	pool := newQuotePool(config.EngineConfig{Workers: 2}, func(ctx context.Context, symbol string) (float64, error) {
		n := atomic.AddInt64(&current, 1)
		mu.Lock()
		if n > peak {
			peak = n
		}
		mu.Unlock()
		defer atomic.AddInt64(&current, -1)
		return 1, nil
	})

	pool.run(context.Background(), []string{"A", "B", "C", "D", "E", "F", "G", "H"})

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, peak, int64(2))
}

func TestQuotePoolRetriesThenReportsFailure(t *testing.T) {
	var calls int64
	pool := newQuotePool(config.EngineConfig{Workers: 1, QuoteRetries: 2}, func(ctx context.Context, symbol string) (float64, error) {
		atomic.AddInt64(&calls, 1)
		return 0, errors.ErrDataUnavailable
	})

	results := pool.run(context.Background(), []string{"GLD"})
	require.Len(t, results, 1)
	assert.Error(t, results[0].Err)
	assert.Equal(t, int64(3), atomic.LoadInt64(&calls)) // initial attempt plus two retries
}

func TestQuotePoolStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int64
	pool := newQuotePool(config.EngineConfig{Workers: 2}, func(ctx context.Context, symbol string) (float64, error) {
		atomic.AddInt64(&calls, 1)
		return 1, nil
	})

	results := pool.run(ctx, []string{"A", "B", "C", "D"})
	assert.LessOrEqual(t, len(results), 4)
	assert.LessOrEqual(t, atomic.LoadInt64(&calls), int64(2))
}
