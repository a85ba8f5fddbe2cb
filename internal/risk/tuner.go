package risk

import (
	"context"
	"math"

	"github.com/rs/zerolog"

	"alpaca-trader/internal/broker"
	"alpaca-trader/internal/config"
)

// Tuner adjusts the persisted risk limits from realized performance. One
// losing evaluation shrinks the position limit by a larger step than one
// winning evaluation grows it, so limits contract fast and recover
// slowly. Every run also refreshes the portfolio-wide limits from live
// equity.
type Tuner struct {
	cfg    config.RiskConfig
	broker broker.Broker
	params *Manager
	logger zerolog.Logger
}

// NewTuner creates a parameter tuner.
func NewTuner(cfg config.RiskConfig, b broker.Broker, params *Manager, logger zerolog.Logger) *Tuner {
	return &Tuner{
		cfg:    cfg,
		broker: b,
		params: params,
		logger: logger.With().Str("component", "tuner").Logger(),
	}
}

// TuneResult records one tuning evaluation.
type TuneResult struct {
	PnL             float64
	PreviousMaxSize float64
	NewMaxSize      float64
	Shrunk          bool
}

// Tune evaluates unrealized performance as equity minus total cost basis
// and applies one bounded multiplicative step to MaxPositionSize: only a
// strictly positive pnl grows the limit. The limit never drops below the
// configured floor. The adjusted record is
// persisted before it takes effect; a persistence failure leaves the
// previous limits in force.
func (t *Tuner) Tune(ctx context.Context) (TuneResult, error) {
	account, err := t.broker.GetAccount(ctx)
	if err != nil {
		return TuneResult{}, err
	}
	positions, err := t.broker.GetPositions(ctx)
	if err != nil {
		return TuneResult{}, err
	}

	var costBasis float64
	for _, p := range positions {
		costBasis += p.CostBasis()
	}
	pnl := account.Equity - costBasis

	var result TuneResult
	result.PnL = pnl

	params, err := t.params.ApplyTuning(ctx, func(p *RiskParameters) {
		result.PreviousMaxSize = p.MaxPositionSize
		if pnl <= 0 {
			p.MaxPositionSize = math.Max(t.cfg.PositionSizeFloor, p.MaxPositionSize*t.cfg.ShrinkFactor)
			result.Shrunk = true
		} else {
			p.MaxPositionSize *= t.cfg.GrowthFactor
		}
		p.MaxPortfolioSize = account.Equity
		p.MaxCryptoEquity = account.Equity * t.cfg.ClassCapFraction
	})
	if err != nil {
		return result, err
	}
	result.NewMaxSize = params.MaxPositionSize

	t.logger.Info().
		Float64("pnl", pnl).
		Float64("previous_max_size", result.PreviousMaxSize).
		Float64("new_max_size", result.NewMaxSize).
		Bool("shrunk", result.Shrunk).
		Msg("risk limits tuned")
	return result, nil
}
