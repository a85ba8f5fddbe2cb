package risk

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"alpaca-trader/internal/broker"
	"alpaca-trader/internal/config"
	"alpaca-trader/internal/marketdata"
	"alpaca-trader/internal/models"
)

// volatilityLookbackDays is how far back the rebalancer looks when
// ranking positions by historical volatility.
const volatilityLookbackDays = 20

// Rebalancer inspects aggregate exposure by asset class and proposes
// corrective sells when a class exceeds its share of equity. It only
// plans intents; submitting them is the caller's job.
type Rebalancer struct {
	cfg      config.RiskConfig
	broker   broker.Broker
	provider marketdata.QuoteProvider
	logger   zerolog.Logger
	now      func() time.Time
}

// NewRebalancer creates a portfolio rebalancer.
func NewRebalancer(cfg config.RiskConfig, b broker.Broker, p marketdata.QuoteProvider, logger zerolog.Logger) *Rebalancer {
	return &Rebalancer{
		cfg:      cfg,
		broker:   b,
		provider: p,
		logger:   logger.With().Str("component", "rebalancer").Logger(),
		now:      time.Now,
	}
}

// Plan computes the corrective sell intents for the current portfolio.
// For each asset class above the rebalance threshold, candidates are
// sold highest-volatility first, a fixed fraction of each, until the
// class falls back under threshold or candidates run out.
//
// Small-account guard: when equity is under the configured threshold, a
// candidate bought earlier the same day is skipped. The check runs
// against the day's fill activity, not position age.
func (r *Rebalancer) Plan(ctx context.Context) ([]models.TradeIntent, error) {
	account, err := r.broker.GetAccount(ctx)
	if err != nil {
		return nil, err
	}
	positions, err := r.broker.GetPositions(ctx)
	if err != nil {
		return nil, err
	}

	classValues := map[models.AssetClass]float64{}
	for _, p := range positions {
		classValues[p.Class()] += p.MarketValue()
	}

	threshold := r.cfg.RebalanceThreshold * account.Equity
	var overweight []models.AssetClass
	for class, value := range classValues {
		if value > threshold {
			overweight = append(overweight, class)
		}
	}
	if len(overweight) == 0 {
		return nil, nil
	}
	sort.Slice(overweight, func(i, j int) bool { return overweight[i] < overweight[j] })

	var boughtToday map[string]bool
	if account.Equity < r.cfg.SmallAccountEquity {
		boughtToday, err = r.buysToday(ctx)
		if err != nil {
			r.logger.Warn().Err(err).Msg("day fills unavailable, skipping same-day guard")
			boughtToday = map[string]bool{}
		}
	}

	var intents []models.TradeIntent
	for _, class := range overweight {
		candidates := r.rankByVolatility(ctx, positionsInClass(positions, class))
		remaining := classValues[class]

		for _, pos := range candidates {
			if remaining <= threshold {
				break
			}
			if boughtToday != nil && boughtToday[pos.Symbol] {
				r.logger.Info().
					Str("symbol", pos.Symbol).
					Msg("skipping same-day purchase under small-account protection")
				continue
			}

			qty := pos.Quantity * r.cfg.RebalanceSellFrac
			if !r.cfg.FractionalQuantities {
				qty = math.Floor(qty)
			}
			qty = math.Min(qty, pos.Quantity)
			if qty <= 0 {
				continue
			}

			intent := models.NewTradeIntent(pos.Symbol, models.OrderSideSell, qty, pos.CurrentPrice)
			intent.OrderType = models.OrderTypeLimit
			intent.LimitPrice = r.sellLimitPrice(pos.CurrentPrice)
			intents = append(intents, intent)

			remaining -= qty * pos.CurrentPrice
			r.logger.Info().
				Str("symbol", pos.Symbol).
				Float64("quantity", qty).
				Float64("limit_price", intent.LimitPrice).
				Str("class", string(class)).
				Msg("rebalance sell proposed")
		}
	}
	return intents, nil
}

// sellLimitPrice prices a corrective exit 1% under market, rounded to
// cents. The floor applies after rounding: a sub-cent asset would
// otherwise round to a zero limit price, which the brokerage rejects.
func (r *Rebalancer) sellLimitPrice(currentPrice float64) float64 {
	price := math.Round(currentPrice*0.99*100) / 100
	return math.Max(r.cfg.PriceFloor, price)
}

// rankByVolatility orders positions highest historical volatility
// first. A position whose return series is unavailable gets volatility
// zero and sorts last.
func (r *Rebalancer) rankByVolatility(ctx context.Context, positions []models.Position) []models.Position {
	vols := make(map[string]float64, len(positions))
	for _, p := range positions {
		returns, err := r.provider.GetDailyReturns(ctx, p.Symbol, volatilityLookbackDays)
		if err != nil {
			r.logger.Debug().Err(err).Str("symbol", p.Symbol).Msg("returns unavailable")
			vols[p.Symbol] = 0
			continue
		}
		vols[p.Symbol] = marketdata.Volatility(returns)
	}

	ranked := make([]models.Position, len(positions))
	copy(ranked, positions)
	sort.SliceStable(ranked, func(i, j int) bool {
		return vols[ranked[i].Symbol] > vols[ranked[j].Symbol]
	})
	return ranked
}

// buysToday returns the set of symbols with buy fills on the current
// trading day.
func (r *Rebalancer) buysToday(ctx context.Context) (map[string]bool, error) {
	fills, err := r.broker.GetDayFills(ctx, r.now())
	if err != nil {
		return nil, err
	}
	bought := map[string]bool{}
	for _, f := range fills {
		if f.Side == models.OrderSideBuy {
			bought[f.Symbol] = true
		}
	}
	return bought, nil
}

func positionsInClass(positions []models.Position, class models.AssetClass) []models.Position {
	var out []models.Position
	for _, p := range positions {
		if p.Class() == class {
			out = append(out, p)
		}
	}
	return out
}
