package engine

import (
	"context"
	"sync"

	"alpaca-trader/internal/config"
	"alpaca-trader/pkg/utils"
)

// quoteJob asks a worker to fetch the latest price for one symbol.
type quoteJob struct {
	Symbol string
}

// quoteResult carries a fetched price or the fetch error.
type quoteResult struct {
	Symbol string
	Price  float64
	Err    error
}

// quotePool fans quote fetches out over a bounded set of workers. Quote
// fetching is the only parallel stage of a cycle; every decision that
// mutates state runs serially afterwards.
type quotePool struct {
	workers int
	retry   utils.RetryConfig
	fetch   func(ctx context.Context, symbol string) (float64, error)
}

func newQuotePool(cfg config.EngineConfig, fetch func(ctx context.Context, symbol string) (float64, error)) *quotePool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	retry := utils.DefaultRetryConfig()
	if cfg.QuoteRetries > 0 {
		retry.MaxAttempts = cfg.QuoteRetries + 1
	}
	return &quotePool{workers: workers, retry: retry, fetch: fetch}
}

// run fetches all symbols and returns one result per symbol. Workers
// stop draining jobs once ctx is cancelled; cancelled symbols simply do
// not appear in the output.
func (p *quotePool) run(ctx context.Context, symbols []string) []quoteResult {
	jobs := make(chan quoteJob, len(symbols))
	results := make(chan quoteResult, len(symbols))

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}
				price, err := utils.RetryWithResult(ctx, p.retry, func() (float64, error) {
					return p.fetch(ctx, job.Symbol)
				})
				results <- quoteResult{Symbol: job.Symbol, Price: price, Err: err}
			}
		}()
	}

	for _, s := range symbols {
		jobs <- quoteJob{Symbol: s}
	}
	close(jobs)
	wg.Wait()
	close(results)

	out := make([]quoteResult, 0, len(symbols))
	for r := range results {
		out = append(out, r)
	}
	return out
}
