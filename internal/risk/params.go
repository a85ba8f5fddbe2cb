// Package risk implements the trading risk-control core: the persisted
// risk parameters, position sizing, trade validation, portfolio
// rebalancing and feedback tuning of the limits themselves.
package risk

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// SchemaVersion is the current version of the persisted parameter record.
const SchemaVersion = 1

// RiskParameters is the mutable, persisted risk configuration. The
// position and portfolio size limits change only through the tuner, by a
// bounded multiplicative step per cycle. All values are non-negative.
type RiskParameters struct {
	SchemaVersion    int     `json:"schema_version"`
	MaxPositionSize  float64 `json:"max_position_size"`
	MaxPortfolioSize float64 `json:"max_portfolio_size"`
	MaxRiskPerTrade  float64 `json:"max_risk_per_trade"`
	MaxCryptoEquity  float64 `json:"max_crypto_equity"`
	DailyTradeCount  int     `json:"daily_trade_count"`
	TradeDay         string  `json:"trade_day"` // yyyy-mm-dd the counter belongs to
}

// Validate checks the record's invariants.
func (p RiskParameters) Validate() error {
	if p.MaxPositionSize < 0 {
		return fmt.Errorf("max_position_size must be non-negative")
	}
	if p.MaxPortfolioSize < 0 {
		return fmt.Errorf("max_portfolio_size must be non-negative")
	}
	if p.MaxRiskPerTrade < 0 {
		return fmt.Errorf("max_risk_per_trade must be non-negative")
	}
	if p.MaxCryptoEquity < 0 {
		return fmt.Errorf("max_crypto_equity must be non-negative")
	}
	if p.DailyTradeCount < 0 {
		return fmt.Errorf("daily_trade_count must be non-negative")
	}
	return nil
}

// DefaultParameters returns a conservative starting record for a fresh
// deployment. These are only ever used by an explicit bootstrap; a
// missing record at trading time halts the process instead.
func DefaultParameters(equity float64) RiskParameters {
	return RiskParameters{
		SchemaVersion:    SchemaVersion,
		MaxPositionSize:  500,
		MaxPortfolioSize: equity,
		MaxRiskPerTrade:  0.02,
		MaxCryptoEquity:  equity * 0.45,
		TradeDay:         time.Now().Format(tradeDayLayout),
	}
}

const tradeDayLayout = "2006-01-02"

// Manager is the sole owner of the in-memory risk parameters. All other
// components receive read-only snapshots per decision; every mutation
// goes through the manager's lock so the daily counter is monotonic even
// when quote fetching runs in parallel. No blocking I/O happens while
// the lock is held except the atomic parameter save itself.
type Manager struct {
	mu     sync.Mutex
	store  ParameterStore
	params RiskParameters
	loaded bool
	logger zerolog.Logger

	// now is swappable for day-boundary tests.
	now func() time.Time
}

// NewManager creates a parameter manager backed by the given store.
func NewManager(store ParameterStore, logger zerolog.Logger) *Manager {
	return &Manager{
		store:  store,
		logger: logger.With().Str("component", "risk_params").Logger(),
		now:    time.Now,
	}
}

// Load reads the persisted record into memory. A missing or corrupt
// record returns ErrConfigUnavailable; the caller must halt before any
// trading decision rather than proceed with undefined limits.
func (m *Manager) Load(ctx context.Context) error {
	params, err := m.store.Load(ctx)
	if err != nil {
		return err
	}
	if err := params.Validate(); err != nil {
		return fmt.Errorf("loaded parameters invalid: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.params = params
	m.loaded = true
	m.rollDayLocked()
	m.logger.Info().
		Float64("max_position_size", params.MaxPositionSize).
		Float64("max_portfolio_size", params.MaxPortfolioSize).
		Int("daily_trade_count", m.params.DailyTradeCount).
		Msg("risk parameters loaded")
	return nil
}

// Bootstrap persists and adopts a fresh default record. Used only by the
// explicit init path, never as a silent fallback.
func (m *Manager) Bootstrap(ctx context.Context, params RiskParameters) error {
	if err := params.Validate(); err != nil {
		return err
	}
	if err := m.store.Save(ctx, params); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.params = params
	m.loaded = true
	return nil
}

// Snapshot returns a copy of the current parameters with the daily
// counter rolled over if the trading day has changed.
func (m *Manager) Snapshot() RiskParameters {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollDayLocked()
	return m.params
}

// IncrementDailyCount bumps the daily trade counter by one. It is the
// last step of every approved validation, so workers observe a counter
// that never decreases within a trading day.
func (m *Manager) IncrementDailyCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollDayLocked()
	m.params.DailyTradeCount++
	return m.params.DailyTradeCount
}

// ApplyTuning runs mutate against a copy of the current parameters,
// persists the result, and commits it to memory only if the save
// succeeded. On a save failure the in-memory parameters are untouched,
// so memory and durable state never diverge silently.
func (m *Manager) ApplyTuning(ctx context.Context, mutate func(p *RiskParameters)) (RiskParameters, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollDayLocked()

	updated := m.params
	mutate(&updated)
	updated.SchemaVersion = SchemaVersion

	if err := updated.Validate(); err != nil {
		return m.params, fmt.Errorf("tuned parameters invalid: %w", err)
	}
	if err := m.store.Save(ctx, updated); err != nil {
		m.logger.Error().Err(err).Msg("parameter save failed, keeping previous limits")
		return m.params, err
	}

	m.params = updated
	return m.params, nil
}

// rollDayLocked resets the daily counter when the trading day changed.
// Caller holds m.mu.
func (m *Manager) rollDayLocked() {
	today := m.now().Format(tradeDayLayout)
	if m.params.TradeDay != today {
		m.params.TradeDay = today
		m.params.DailyTradeCount = 0
	}
}
