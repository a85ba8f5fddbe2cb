package risk

import (
	"context"
	"math"

	"github.com/rs/zerolog"

	"alpaca-trader/internal/config"
	"alpaca-trader/internal/marketdata"
	"alpaca-trader/internal/models"
)

// momentumPeriod is the lookback, in trading days, for the momentum
// indicator consulted before cutting a losing position.
const momentumPeriod = "5"

// ExitPlanner proposes position exits independent of class rebalancing:
// profit taking, stop losses, momentum-driven cuts of losing positions
// and trimming a single symbol that has grown past its share of equity.
type ExitPlanner struct {
	cfg      config.RiskConfig
	provider marketdata.QuoteProvider
	logger   zerolog.Logger
}

// NewExitPlanner creates an exit planner.
func NewExitPlanner(cfg config.RiskConfig, p marketdata.QuoteProvider, logger zerolog.Logger) *ExitPlanner {
	return &ExitPlanner{
		cfg:      cfg,
		provider: p,
		logger:   logger.With().Str("component", "exits").Logger(),
	}
}

// ExitReason names why an exit was proposed.
type ExitReason string

const (
	ExitTakeProfit      ExitReason = "take_profit"
	ExitStopLoss        ExitReason = "stop_loss"
	ExitMomentum        ExitReason = "momentum"
	ExitDiversification ExitReason = "diversification"
)

// Exit pairs a sell intent with the rule that produced it.
type Exit struct {
	Intent models.TradeIntent
	Reason ExitReason
}

// Plan walks the snapshot's positions and proposes at most one exit per
// symbol. Rules are checked in order: take profit, stop loss, momentum
// cut, then the single-symbol concentration trim. Profit, loss and
// momentum exits close the full position; the concentration trim sells
// only the excess above the per-symbol share of equity.
//
// The momentum cut covers losing positions still above the stop loss: a
// position in the red whose momentum indicator has turned negative is
// closed early instead of riding out the full drawdown.
func (e *ExitPlanner) Plan(ctx context.Context, snap Snapshot) []Exit {
	var exits []Exit
	for _, pos := range snap.Positions {
		if pos.Quantity <= 0 || pos.CurrentPrice <= 0 {
			continue
		}

		if pos.UnrealizedPLPct >= e.cfg.TakeProfitPct {
			exits = append(exits, e.fullExit(pos, ExitTakeProfit))
			continue
		}
		if pos.UnrealizedPLPct <= -e.cfg.StopLossPct {
			exits = append(exits, e.fullExit(pos, ExitStopLoss))
			continue
		}
		if pos.UnrealizedPLPct < 0 && e.momentumTurnedNegative(ctx, pos.Symbol) {
			exits = append(exits, e.fullExit(pos, ExitMomentum))
			continue
		}

		maxValue := snap.Account.Equity * e.cfg.MaxSymbolFraction
		if excess := pos.MarketValue() - maxValue; excess > 0 {
			qty := excess / pos.CurrentPrice
			if !e.cfg.FractionalQuantities {
				qty = math.Floor(qty)
			}
			qty = math.Min(roundTo(qty, quantityPrecision), pos.Quantity)
			if qty <= 0 {
				continue
			}
			intent := models.NewTradeIntent(pos.Symbol, models.OrderSideSell, qty, pos.CurrentPrice)
			exits = append(exits, Exit{Intent: intent, Reason: ExitDiversification})
			e.logger.Info().
				Str("symbol", pos.Symbol).
				Float64("quantity", qty).
				Float64("excess_value", excess).
				Msg("concentration trim proposed")
		}
	}
	return exits
}

// momentumTurnedNegative reports whether the momentum indicator is below
// zero for a symbol. An unavailable indicator never forces an exit.
func (e *ExitPlanner) momentumTurnedNegative(ctx context.Context, symbol string) bool {
	mom, err := e.provider.GetIndicator(ctx, symbol, "MOM", map[string]string{"time_period": momentumPeriod})
	if err != nil {
		e.logger.Debug().Err(err).Str("symbol", symbol).Msg("momentum unavailable")
		return false
	}
	return mom < 0
}

func (e *ExitPlanner) fullExit(pos models.Position, reason ExitReason) Exit {
	intent := models.NewTradeIntent(pos.Symbol, models.OrderSideSell, pos.Quantity, pos.CurrentPrice)
	e.logger.Info().
		Str("symbol", pos.Symbol).
		Float64("quantity", pos.Quantity).
		Float64("unrealized_pl_pct", pos.UnrealizedPLPct).
		Str("reason", string(reason)).
		Msg("exit proposed")
	return Exit{Intent: intent, Reason: reason}
}
