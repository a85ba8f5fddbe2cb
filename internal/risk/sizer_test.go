package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"alpaca-trader/internal/config"
)

func TestSizerTierScalingAtPrice50(t *testing.T) {
	// Cash 1000, price 50: preliminary quantity is 20 shares, and the
	// price-50 tier factor (0.094 for prices up to 200) scales it down.
	s := NewSizer(config.DefaultTiers)

	qty := s.Size(SizeRequest{
		Symbol:        "GLD",
		CurrentPrice:  50,
		AvailableCash: 1000,
		ClassCap:      100000,
		Fractionable:  true,
	})

	assert.Less(t, qty, 20.0)
	assert.InDelta(t, 20*0.094, qty, 1e-5)
}

func TestSizerZeroOnBadInputs(t *testing.T) {
	s := NewSizer(config.DefaultTiers)

	assert.Zero(t, s.Size(SizeRequest{CurrentPrice: 0, AvailableCash: 1000, ClassCap: 1000}))
	assert.Zero(t, s.Size(SizeRequest{CurrentPrice: -5, AvailableCash: 1000, ClassCap: 1000}))
	assert.Zero(t, s.Size(SizeRequest{CurrentPrice: 50, AvailableCash: 0.5, ClassCap: 1000}))
	assert.Zero(t, s.Size(SizeRequest{CurrentPrice: 50, AvailableCash: 1000, ClassCap: 0}))
}

func TestSizerClassCapLimitsInvestable(t *testing.T) {
	s := NewSizer(config.DefaultTiers)

	capped := s.Size(SizeRequest{
		CurrentPrice: 10, AvailableCash: 100000, ClassCap: 500, Fractionable: true,
	})
	uncapped := s.Size(SizeRequest{
		CurrentPrice: 10, AvailableCash: 500, ClassCap: 100000, Fractionable: true,
	})
	assert.Equal(t, uncapped, capped)
}

func TestSizerTierSelection(t *testing.T) {
	s := NewSizer(config.DefaultTiers)

	cases := []struct {
		price  float64
		factor float64
	}{
		{5, 0.031},
		{20, 0.031},
		{21, 0.094},
		{200, 0.094},
		{999, 0.045},
		{2500, 0.033},
		{3500, 0.035},
		{50000, 0.01}, // unbounded top tier
	}
	for _, tc := range cases {
		assert.InDelta(t, tc.factor, s.factorFor(tc.price), 1e-12, "price %v", tc.price)
	}
}

func TestSizerWholeUnitFloorsQuantity(t *testing.T) {
	s := NewSizer(config.DefaultTiers)

	qty := s.Size(SizeRequest{
		CurrentPrice:  10,
		AvailableCash: 1000,
		ClassCap:      100000,
		Fractionable:  false,
	})
	assert.Equal(t, 3.0, qty) // 100 * 0.031 = 3.1 floored
}

func TestSizerWholeUnitEntryTakesOneShare(t *testing.T) {
	s := NewSizer(config.DefaultTiers)

	// The scaled quantity rounds below one share, but a new position in
	// an affordable whole-unit instrument still enters with one.
	qty := s.Size(SizeRequest{
		CurrentPrice:  150,
		AvailableCash: 1000,
		ClassCap:      100000,
		Fractionable:  false,
		EnteringNew:   true,
	})
	assert.Equal(t, 1.0, qty)

	// Not affordable: stay out.
	qty = s.Size(SizeRequest{
		CurrentPrice:  1500,
		AvailableCash: 1000,
		ClassCap:      100000,
		Fractionable:  false,
		EnteringNew:   true,
	})
	assert.Zero(t, qty)
}
