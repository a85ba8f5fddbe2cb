package engine

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alpaca-trader/internal/broker"
	"alpaca-trader/internal/config"
	"alpaca-trader/internal/errors"
	"alpaca-trader/internal/ledger"
	"alpaca-trader/internal/models"
	"alpaca-trader/internal/notify"
	"alpaca-trader/internal/risk"
)

// stubProvider serves canned prices and return series.
type stubProvider struct {
	prices  map[string]float64
	returns map[string][]float64
}

func (s *stubProvider) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	price, ok := s.prices[symbol]
	if !ok {
		return nil, errors.ErrDataUnavailable
	}
	return &models.Quote{Symbol: symbol, Price: price, Timestamp: time.Now()}, nil
}

func (s *stubProvider) GetIndicator(ctx context.Context, symbol, kind string, params map[string]string) (float64, error) {
	return 0, errors.ErrDataUnavailable
}

func (s *stubProvider) GetDailyReturns(ctx context.Context, symbol string, days int) ([]float64, error) {
	r, ok := s.returns[symbol]
	if !ok {
		return nil, errors.ErrDataUnavailable
	}
	return r, nil
}

func testConfig(symbols ...string) *config.Config {
	return &config.Config{
		Trading: config.TradingConfig{Mode: "paper", Symbols: symbols},
		Risk: config.RiskConfig{
			ClassCapFraction:     0.45,
			RebalanceThreshold:   0.50,
			RebalanceSellFrac:    0.35,
			SmallAccountEquity:   25000,
			PriceFloor:           0.001,
			DailyTradeCap:        120,
			TakeProfitPct:        0.05,
			StopLossPct:          0.07,
			MaxSymbolFraction:    0.30,
			ShrinkFactor:         0.90,
			GrowthFactor:         1.0015,
			PositionSizeFloor:    50,
			Tiers:                config.DefaultTiers,
			FractionalQuantities: true,
		},
		Engine: config.EngineConfig{Workers: 4, CycleTimeout: time.Minute, QuoteRetries: 1},
	}
}

func newTestEngine(t *testing.T, cfg *config.Config, pb *broker.PaperBroker, provider *stubProvider) (*Engine, *risk.Manager) {
	t.Helper()

	store := risk.NewFileParameterStore(filepath.Join(t.TempDir(), "params.json"))
	manager := risk.NewManager(store, zerolog.Nop())
	require.NoError(t, manager.Bootstrap(context.Background(), risk.DefaultParameters(10000)))

	trades, err := ledger.NewCSVLedger(filepath.Join(t.TempDir(), "trades.csv"))
	require.NoError(t, err)

	return New(cfg, pb, provider, manager, trades, notify.NopNotifier{}, zerolog.Nop()), manager
}

func TestRunCycleBuysConfiguredSymbols(t *testing.T) {
	pb := broker.NewPaperBroker(10000)
	provider := &stubProvider{prices: map[string]float64{"BTCUSD": 1000, "GLD": 50}}

	e, _ := newTestEngine(t, testConfig("BTCUSD", "GLD"), pb, provider)

	report, err := e.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Evaluated)
	assert.Equal(t, 2, report.Submitted)
	assert.Zero(t, report.Skipped)

	positions, err := pb.GetPositions(context.Background())
	require.NoError(t, err)
	assert.Len(t, positions, 2)
}

func TestRunCycleSkipsSymbolWithoutQuote(t *testing.T) {
	pb := broker.NewPaperBroker(10000)
	provider := &stubProvider{prices: map[string]float64{"GLD": 50}}

	e, _ := newTestEngine(t, testConfig("GLD", "NOQUOTE"), pb, provider)

	report, err := e.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Evaluated)
	assert.Equal(t, 1, report.Submitted)
	assert.Equal(t, 1, report.Skipped)
}

func TestRunCycleUsesSingleSnapshot(t *testing.T) {
	// Both symbols are sized against the same starting cash: the intents
	// together may exceed remaining live cash, but neither decision sees
	// the other's fill. The paper broker's balance only changes through
	// submissions, so two approvals prove the snapshot was shared.
	pb := broker.NewPaperBroker(10000)
	provider := &stubProvider{prices: map[string]float64{"GLD": 50, "SLV": 25}}

	e, _ := newTestEngine(t, testConfig("GLD", "SLV"), pb, provider)

	report, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Submitted)
}

func TestRunCycleDailyCapStopsSubmissions(t *testing.T) {
	pb := broker.NewPaperBroker(100000)
	provider := &stubProvider{prices: map[string]float64{"GLD": 50, "SLV": 25, "BTCUSD": 1000}}

	cfg := testConfig("GLD", "SLV", "BTCUSD")
	cfg.Risk.DailyTradeCap = 1

	e, m := newTestEngine(t, cfg, pb, provider)

	report, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Submitted)
	assert.Equal(t, 2, report.Rejected)
	assert.Equal(t, 1, m.Snapshot().DailyTradeCount)
}

func TestRunCycleTakesProfitBeforeEntries(t *testing.T) {
	pb := broker.NewPaperBroker(1000)
	pb.SeedPosition(models.Position{
		Symbol: "GLD", Quantity: 10, AvgEntryPrice: 100, CurrentPrice: 110, UnrealizedPLPct: 0.10,
	})
	provider := &stubProvider{prices: map[string]float64{}}

	e, _ := newTestEngine(t, testConfig(), pb, provider)

	report, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Exits)

	pos, err := pb.GetPosition(context.Background(), "GLD")
	require.NoError(t, err)
	assert.Nil(t, pos)
}

func TestRunCycleHonorsCancellation(t *testing.T) {
	pb := broker.NewPaperBroker(10000)
	provider := &stubProvider{prices: map[string]float64{"GLD": 50}}

	e, _ := newTestEngine(t, testConfig("GLD"), pb, provider)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := e.RunCycle(ctx)
	if err == nil {
		// The snapshot may complete before cancellation is observed; in
		// that case nothing must have been submitted downstream.
		assert.Zero(t, report.Submitted)
	}
}

func TestRebalanceSubmitsCorrectiveSells(t *testing.T) {
	pb := broker.NewPaperBroker(2000)
	pb.SeedPosition(models.Position{Symbol: "BTCUSD", Quantity: 8, AvgEntryPrice: 900, CurrentPrice: 1000})
	provider := &stubProvider{returns: map[string][]float64{"BTCUSD": {0.1, -0.1}}}

	e, _ := newTestEngine(t, testConfig(), pb, provider)

	submitted, err := e.Rebalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, submitted)

	pos, err := pb.GetPosition(context.Background(), "BTCUSD")
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Less(t, pos.Quantity, 8.0)
}

func TestTuneAdjustsLimits(t *testing.T) {
	pb := broker.NewPaperBroker(100)
	pb.SeedPosition(models.Position{Symbol: "GLD", Quantity: 10, AvgEntryPrice: 100, CurrentPrice: 80})

	e, m := newTestEngine(t, testConfig(), pb, &stubProvider{})

	before := m.Snapshot().MaxPositionSize
	result, err := e.Tune(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Shrunk)
	assert.Less(t, m.Snapshot().MaxPositionSize, before)
}
