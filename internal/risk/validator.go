package risk

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"alpaca-trader/internal/config"
	"alpaca-trader/internal/errors"
	"alpaca-trader/internal/models"
)

// Outcome is the terminal state of a validation decision.
type Outcome string

const (
	OutcomeApproved Outcome = "approved"
	OutcomeRejected Outcome = "rejected"
	OutcomeClamped  Outcome = "clamped"
)

// Verdict is the result of validating one trade intent. On approval or
// clamping, Quantity holds the (possibly adjusted) quantity to submit
// and DailyCount the counter value after the increment.
type Verdict struct {
	Outcome    Outcome
	Quantity   float64
	Reason     errors.RejectReason
	Detail     string
	DailyCount int
}

// Approved reports whether the trade may proceed.
func (v Verdict) Approved() bool {
	return v.Outcome == OutcomeApproved || v.Outcome == OutcomeClamped
}

// Snapshot bundles the account state a validation decision runs against.
// It is taken once at cycle start; the validator never refreshes it.
// A stale snapshot is the caller's risk.
type Snapshot struct {
	Account    models.Account
	Positions  []models.Position
	OpenOrders []models.OpenOrder
}

// PositionFor returns the held position for a symbol, or nil.
func (s Snapshot) PositionFor(symbol string) *models.Position {
	for i := range s.Positions {
		if s.Positions[i].Symbol == symbol {
			return &s.Positions[i]
		}
	}
	return nil
}

// ClassValue returns the aggregate market value of all positions in the
// given asset class.
func (s Snapshot) ClassValue(class models.AssetClass) float64 {
	var total float64
	for _, p := range s.Positions {
		if p.Class() == class {
			total += p.MarketValue()
		}
	}
	return total
}

// hasOpenOrder reports whether an open order already rests on a symbol.
func (s Snapshot) hasOpenOrder(symbol string) bool {
	for _, o := range s.OpenOrders {
		if o.Symbol == symbol && o.Status == models.OrderStatusOpen {
			return true
		}
	}
	return false
}

// Validator is the trade gate. Checks run synchronously against the
// snapshot passed in, short-circuiting in a fixed order so the first
// failing check determines the rejection reason. On approval the daily
// trade counter is incremented exactly once, as the final step.
type Validator struct {
	cfg    config.RiskConfig
	params *Manager
	logger zerolog.Logger
}

// NewValidator creates a trade validator.
func NewValidator(cfg config.RiskConfig, params *Manager, logger zerolog.Logger) *Validator {
	return &Validator{
		cfg:    cfg,
		params: params,
		logger: logger.With().Str("component", "validator").Logger(),
	}
}

// Validate runs the check sequence for one intent and returns the
// verdict. It never retries and performs no I/O.
func (v *Validator) Validate(snap Snapshot, intent models.TradeIntent) Verdict {
	params := v.params.Snapshot()

	// 1. Daily trade cap.
	if params.DailyTradeCount >= v.cfg.DailyTradeCap {
		return v.reject(intent, errors.ReasonDailyLimitExceeded,
			fmt.Sprintf("%d trades today, cap %d", params.DailyTradeCount, v.cfg.DailyTradeCap))
	}

	// 2. Duplicate exposure: an order already resting on the symbol, or
	// a proposal that would not net-increase exposure.
	if snap.hasOpenOrder(intent.Symbol) {
		return v.reject(intent, errors.ReasonDuplicateExposure, "open order already exists")
	}
	if intent.Quantity <= 0 {
		return v.reject(intent, errors.ReasonDuplicateExposure, "no net exposure increase")
	}

	pos := snap.PositionFor(intent.Symbol)

	if intent.Side == models.OrderSideBuy {
		tradeValue := intent.Quantity * intent.ReferencePrice

		// 3. Cash sufficiency.
		if tradeValue > snap.Account.Cash {
			return v.reject(intent, errors.ReasonInsufficientCash,
				fmt.Sprintf("trade value %.2f exceeds cash %.2f", tradeValue, snap.Account.Cash))
		}

		// 4. Asset-class exposure cap.
		class := models.ClassOf(intent.Symbol)
		classCap := snap.Account.Equity * v.cfg.ClassCapFraction
		if snap.ClassValue(class)+tradeValue > classCap {
			return v.reject(intent, errors.ReasonExceedsClassCap,
				fmt.Sprintf("%s value %.2f + trade %.2f exceeds cap %.2f",
					class, snap.ClassValue(class), tradeValue, classCap))
		}

		// 5. Position-size cap: clamp to headroom instead of rejecting
		// when any headroom remains.
		var held float64
		if pos != nil {
			held = pos.Quantity
		}
		headroom := params.MaxPositionSize - held
		if headroom <= 0 {
			return v.reject(intent, errors.ReasonExceedsPositionCap,
				fmt.Sprintf("position %.5f already at cap %.5f", held, params.MaxPositionSize))
		}
		if intent.Quantity > headroom {
			clamped := roundTo(headroom, quantityPrecision)
			count := v.params.IncrementDailyCount()
			v.logger.Info().
				Str("symbol", intent.Symbol).
				Float64("requested", intent.Quantity).
				Float64("clamped", clamped).
				Msg("trade clamped to position headroom")
			return Verdict{Outcome: OutcomeClamped, Quantity: clamped, DailyCount: count}
		}
	}

	if intent.Side == models.OrderSideSell {
		// 6. Never sell more than is held.
		var held float64
		if pos != nil {
			held = pos.Quantity
		}
		if intent.Quantity > held+1e-9 {
			return v.reject(intent, errors.ReasonOversizedSell,
				fmt.Sprintf("sell %.5f exceeds held %.5f", intent.Quantity, held))
		}
	}

	count := v.params.IncrementDailyCount()
	return Verdict{Outcome: OutcomeApproved, Quantity: intent.Quantity, DailyCount: count}
}

func (v *Validator) reject(intent models.TradeIntent, reason errors.RejectReason, detail string) Verdict {
	v.logger.Info().
		Str("symbol", intent.Symbol).
		Str("side", string(intent.Side)).
		Float64("quantity", intent.Quantity).
		Str("reason", string(reason)).
		Str("detail", detail).
		Msg("trade rejected")
	return Verdict{Outcome: OutcomeRejected, Reason: reason, Detail: detail}
}

// RemainingClassHeadroom returns how much equity headroom is left for a
// class before its cap, never negative. Used by callers sizing a buy.
func RemainingClassHeadroom(snap Snapshot, class models.AssetClass, capFraction float64) float64 {
	cap := snap.Account.Equity * capFraction
	return math.Max(0, cap-snap.ClassValue(class))
}
