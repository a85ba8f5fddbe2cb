package risk

import (
	"math"

	"alpaca-trader/internal/config"
)

// quantityPrecision is the fixed decimal precision of fractional
// quantities.
const quantityPrecision = 5

// Sizer computes trade quantities from available capital, current price
// and the price-tiered scaling policy. It is a pure function of its
// inputs plus the configured tier table.
type Sizer struct {
	tiers []config.Tier
}

// NewSizer creates a sizer with the given tier table. The table is
// validated at config load.
func NewSizer(tiers []config.Tier) *Sizer {
	return &Sizer{tiers: tiers}
}

// SizeRequest carries the inputs of a sizing decision.
type SizeRequest struct {
	Symbol        string
	CurrentPrice  float64
	AvailableCash float64
	ClassCap      float64 // remaining equity headroom for the symbol's asset class
	Fractionable  bool
	EnteringNew   bool // no existing position for the symbol
}

// Size returns the proposed buy quantity. A zero result is a valid
// "do nothing" signal, not a failure: it is returned without error when
// the price is non-positive or less than one unit of cash is investable.
func (s *Sizer) Size(req SizeRequest) float64 {
	if req.CurrentPrice <= 0 {
		return 0
	}
	investable := math.Min(req.AvailableCash, req.ClassCap)
	if investable < 1 {
		return 0
	}

	preliminary := investable / req.CurrentPrice
	qty := preliminary * s.factorFor(req.CurrentPrice)
	qty = roundTo(qty, quantityPrecision)
	if qty < 0 {
		return 0
	}

	if !req.Fractionable {
		floored := math.Floor(qty)
		if floored < 1 && req.EnteringNew && qty > 0 {
			// Entering a whole-unit instrument: take one unit rather
			// than nothing, provided it is affordable.
			if req.CurrentPrice <= investable {
				return 1
			}
			return 0
		}
		return floored
	}
	return qty
}

// factorFor returns the tier scaling factor for a price. The last tier
// with MaxPrice 0 is the unbounded top band.
func (s *Sizer) factorFor(price float64) float64 {
	for _, t := range s.tiers {
		if t.MaxPrice == 0 || price <= t.MaxPrice {
			return t.Factor
		}
	}
	// Table always terminates with an unbounded tier; validated at load.
	return s.tiers[len(s.tiers)-1].Factor
}

func roundTo(v float64, places int) float64 {
	shift := math.Pow(10, float64(places))
	return math.Round(v*shift) / shift
}
