// Package engine orchestrates the trading cycle: one account snapshot,
// parallel quote fetches, serial risk decisions, order submission and
// the bookkeeping around them.
package engine

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"alpaca-trader/internal/broker"
	"alpaca-trader/internal/config"
	"alpaca-trader/internal/errors"
	"alpaca-trader/internal/ledger"
	"alpaca-trader/internal/marketdata"
	"alpaca-trader/internal/metrics"
	"alpaca-trader/internal/models"
	"alpaca-trader/internal/notify"
	"alpaca-trader/internal/risk"
)

// Engine wires the risk components into a runnable trading cycle. All
// dependencies are injected at construction; the engine holds no global
// state beyond the running equity peak used for drawdown reporting.
type Engine struct {
	cfg        *config.Config
	broker     broker.Broker
	provider   marketdata.QuoteProvider
	params     *risk.Manager
	sizer      *risk.Sizer
	validator  *risk.Validator
	rebalancer *risk.Rebalancer
	exits      *risk.ExitPlanner
	tuner      *risk.Tuner
	trades     ledger.Ledger
	notifier   notify.Notifier
	logger     zerolog.Logger

	peakEquity float64
}

// New assembles an engine from its dependencies.
func New(
	cfg *config.Config,
	b broker.Broker,
	provider marketdata.QuoteProvider,
	params *risk.Manager,
	trades ledger.Ledger,
	notifier notify.Notifier,
	logger zerolog.Logger,
) *Engine {
	log := logger.With().Str("component", "engine").Logger()
	return &Engine{
		cfg:        cfg,
		broker:     b,
		provider:   provider,
		params:     params,
		sizer:      risk.NewSizer(cfg.Risk.Tiers),
		validator:  risk.NewValidator(cfg.Risk, params, logger),
		rebalancer: risk.NewRebalancer(cfg.Risk, b, provider, logger),
		exits:      risk.NewExitPlanner(cfg.Risk, provider, logger),
		tuner:      risk.NewTuner(cfg.Risk, b, params, logger),
		trades:     trades,
		notifier:   notifier,
		logger:     log,
	}
}

// CycleReport summarizes one completed trading cycle.
type CycleReport struct {
	Started   time.Time
	Duration  time.Duration
	Evaluated int
	Submitted int
	Rejected  int
	Skipped   int
	Exits     int
	Errors    int
}

// RunCycle executes one full trading pass: exits first, then sized
// entries for the configured symbols. Per-symbol failures are logged and
// skipped; only snapshot failures abort the cycle.
func (e *Engine) RunCycle(ctx context.Context) (*CycleReport, error) {
	if e.cfg.Engine.CycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Engine.CycleTimeout)
		defer cancel()
	}

	report := &CycleReport{Started: time.Now()}
	cycleLogger := e.logger.With().Int64("cycle", report.Started.Unix()).Logger()

	snap, err := e.snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("taking account snapshot: %w", err)
	}
	e.trackEquity(snap.Account.Equity)
	metrics.UpdateMaxPositionSize(e.params.Snapshot().MaxPositionSize)

	// Exits run before entries so freed cash is visible to sizing in the
	// next cycle, never this one; the planner works off the same
	// immutable snapshot as every other decision.
	for _, exit := range e.exits.Plan(ctx, snap) {
		if e.decideAndSubmit(ctx, cycleLogger, snap, exit.Intent, report) {
			report.Exits++
		}
	}

	results := e.quotes(ctx)
	sort.Slice(results, func(i, j int) bool { return results[i].Symbol < results[j].Symbol })

	for _, r := range results {
		report.Evaluated++
		if r.Err != nil {
			cycleLogger.Warn().Err(r.Err).Str("symbol", r.Symbol).Msg("quote unavailable, skipping symbol")
			metrics.RecordError("data_unavailable")
			report.Skipped++
			continue
		}
		intent, ok := e.sizeEntry(cycleLogger, snap, r.Symbol, r.Price)
		if !ok {
			report.Skipped++
			continue
		}
		e.decideAndSubmit(ctx, cycleLogger, snap, intent, report)
	}

	report.Duration = time.Since(report.Started)
	metrics.RecordCycle(report.Duration)
	cycleLogger.Info().
		Int("evaluated", report.Evaluated).
		Int("submitted", report.Submitted).
		Int("rejected", report.Rejected).
		Int("skipped", report.Skipped).
		Int("exits", report.Exits).
		Dur("duration", report.Duration).
		Msg("cycle complete")

	e.notifyCycle(report, snap.Account)
	return report, nil
}

// Rebalance plans and submits corrective sells for overweight classes.
func (e *Engine) Rebalance(ctx context.Context) (int, error) {
	intents, err := e.rebalancer.Plan(ctx)
	if err != nil {
		return 0, err
	}
	if len(intents) == 0 {
		e.logger.Info().Msg("portfolio within class limits, nothing to rebalance")
		return 0, nil
	}

	snap, err := e.snapshot(ctx)
	if err != nil {
		return 0, fmt.Errorf("taking account snapshot: %w", err)
	}

	report := &CycleReport{Started: time.Now()}
	submitted := 0
	for _, intent := range intents {
		if e.decideAndSubmit(ctx, e.logger, snap, intent, report) {
			submitted++
		}
	}
	return submitted, nil
}

// Tune runs one parameter-tuning evaluation.
func (e *Engine) Tune(ctx context.Context) (risk.TuneResult, error) {
	result, err := e.tuner.Tune(ctx)
	if err != nil {
		return result, err
	}
	metrics.UpdateMaxPositionSize(result.NewMaxSize)
	notify.SendAsync(e.notifier, e.logger, notify.Event{
		Title:   "Risk limits tuned",
		Message: "parameter evaluation complete",
		Facts: [][2]string{
			{"pnl", fmt.Sprintf("%.2f", result.PnL)},
			{"max_position_size", fmt.Sprintf("%.2f -> %.2f", result.PreviousMaxSize, result.NewMaxSize)},
		},
		Timestamp: time.Now(),
	})
	return result, nil
}

// snapshot fetches the account state exactly once. Every decision in the
// cycle shares it.
func (e *Engine) snapshot(ctx context.Context) (risk.Snapshot, error) {
	account, err := e.broker.GetAccount(ctx)
	if err != nil {
		return risk.Snapshot{}, err
	}
	positions, err := e.broker.GetPositions(ctx)
	if err != nil {
		return risk.Snapshot{}, err
	}
	open, err := e.broker.GetOpenOrders(ctx, models.OrderStatusOpen)
	if err != nil {
		return risk.Snapshot{}, err
	}
	return risk.Snapshot{Account: *account, Positions: positions, OpenOrders: open}, nil
}

func (e *Engine) quotes(ctx context.Context) []quoteResult {
	pool := newQuotePool(e.cfg.Engine, func(ctx context.Context, symbol string) (float64, error) {
		quote, err := e.provider.GetQuote(ctx, symbol)
		if err != nil {
			return 0, err
		}
		return quote.Price, nil
	})
	return pool.run(ctx, e.cfg.Trading.Symbols)
}

// sizeEntry proposes a buy for one symbol from the shared snapshot. A
// zero size is a quiet skip, not an error.
func (e *Engine) sizeEntry(logger zerolog.Logger, snap risk.Snapshot, symbol string, price float64) (models.TradeIntent, bool) {
	class := models.ClassOf(symbol)
	pos := snap.PositionFor(symbol)

	qty := e.sizer.Size(risk.SizeRequest{
		Symbol:        symbol,
		CurrentPrice:  price,
		AvailableCash: snap.Account.Cash,
		ClassCap:      risk.RemainingClassHeadroom(snap, class, e.cfg.Risk.ClassCapFraction),
		Fractionable:  class == models.AssetClassCrypto || e.cfg.Risk.FractionalQuantities,
		EnteringNew:   pos == nil,
	})
	if qty <= 0 {
		logger.Debug().Str("symbol", symbol).Float64("price", price).Msg("sizer proposed nothing")
		return models.TradeIntent{}, false
	}
	return models.NewTradeIntent(symbol, models.OrderSideBuy, qty, price), true
}

// decideAndSubmit validates one intent against the shared snapshot and
// submits it when approved. Returns true when an order went out.
func (e *Engine) decideAndSubmit(ctx context.Context, logger zerolog.Logger, snap risk.Snapshot, intent models.TradeIntent, report *CycleReport) bool {
	verdict := e.validator.Validate(snap, intent)
	if !verdict.Approved() {
		metrics.RecordRejection(string(verdict.Reason))
		report.Rejected++
		e.notifyRejection(intent, verdict)
		return false
	}
	intent.Quantity = verdict.Quantity

	result, err := e.broker.SubmitOrder(ctx, intent)
	if err != nil {
		// No blind retry: a resubmission could double-fill. The client
		// order ID lets reconciliation find out what actually happened.
		logger.Error().Err(err).
			Str("symbol", intent.Symbol).
			Str("client_id", intent.ClientID).
			Msg("order submission failed")
		metrics.RecordError("brokerage")
		report.Errors++
		return false
	}

	logger.Info().
		Str("symbol", intent.Symbol).
		Str("side", string(intent.Side)).
		Float64("quantity", intent.Quantity).
		Str("order_id", result.OrderID).
		Int("daily_count", verdict.DailyCount).
		Msg("order submitted")
	metrics.RecordTrade(intent.Symbol, string(intent.Side))
	report.Submitted++

	e.record(ctx, logger, intent, *result)
	e.notifyTrade(intent, *result)
	return true
}

// record appends the trade to the ledger. A duplicate means the trade is
// already on file, which is fine; any other failure is logged loudly but
// does not undo a submitted order.
func (e *Engine) record(ctx context.Context, logger zerolog.Logger, intent models.TradeIntent, result models.OrderResult) {
	rec := ledger.NewTradeRecord(intent, result, time.Now())
	if err := e.trades.Append(ctx, rec); err != nil {
		if stderrors.Is(err, errors.ErrLedgerDuplicate) {
			logger.Debug().Str("order_id", result.OrderID).Msg("trade already on ledger")
			return
		}
		logger.Error().Err(err).Str("order_id", result.OrderID).Msg("ledger append failed")
		metrics.RecordError("persistence")
	}
}

func (e *Engine) trackEquity(equity float64) {
	if equity > e.peakEquity {
		e.peakEquity = equity
	}
	metrics.UpdateEquity(equity, e.peakEquity)
}

func (e *Engine) notifyTrade(intent models.TradeIntent, result models.OrderResult) {
	notify.SendAsync(e.notifier, e.logger, notify.Event{
		Title:   fmt.Sprintf("Order submitted: %s %s", intent.Side, intent.Symbol),
		Message: "risk checks passed",
		Facts: [][2]string{
			{"symbol", intent.Symbol},
			{"side", string(intent.Side)},
			{"quantity", fmt.Sprintf("%.5f", intent.Quantity)},
			{"reference_price", fmt.Sprintf("%.2f", intent.ReferencePrice)},
			{"order_id", result.OrderID},
		},
		Timestamp: time.Now(),
	})
}

// notifyRejection surfaces a turned-away trade with its reason code. A
// rejection is an expected outcome, never silently dropped.
func (e *Engine) notifyRejection(intent models.TradeIntent, verdict risk.Verdict) {
	notify.SendAsync(e.notifier, e.logger, notify.Event{
		Title:   fmt.Sprintf("Trade rejected: %s %s", intent.Side, intent.Symbol),
		Message: verdict.Detail,
		Facts: [][2]string{
			{"symbol", intent.Symbol},
			{"side", string(intent.Side)},
			{"quantity", fmt.Sprintf("%.5f", intent.Quantity)},
			{"reason", string(verdict.Reason)},
		},
		Timestamp: time.Now(),
	})
}

func (e *Engine) notifyCycle(report *CycleReport, account models.Account) {
	notify.SendAsync(e.notifier, e.logger, notify.Event{
		Title:   "Trading cycle complete",
		Message: fmt.Sprintf("finished in %s", report.Duration.Round(time.Millisecond)),
		Facts: [][2]string{
			{"equity", fmt.Sprintf("%.2f", account.Equity)},
			{"cash", fmt.Sprintf("%.2f", account.Cash)},
			{"evaluated", fmt.Sprintf("%d", report.Evaluated)},
			{"submitted", fmt.Sprintf("%d", report.Submitted)},
			{"rejected", fmt.Sprintf("%d", report.Rejected)},
			{"skipped", fmt.Sprintf("%d", report.Skipped)},
			{"exits", fmt.Sprintf("%d", report.Exits)},
		},
		Timestamp: time.Now(),
	})
}
