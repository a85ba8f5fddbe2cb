package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutConfigFile(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "paper", cfg.Trading.Mode)
	assert.Equal(t, 0.45, cfg.Risk.ClassCapFraction)
	assert.Equal(t, 0.50, cfg.Risk.RebalanceThreshold)
	assert.Equal(t, 120, cfg.Risk.DailyTradeCap)
	assert.Equal(t, 8, cfg.Engine.Workers)
	assert.Equal(t, "csv", cfg.Store.LedgerBackend)
	assert.Equal(t, DefaultTiers, cfg.Risk.Tiers)
}

func TestLoadReadsTOML(t *testing.T) {
	dir := t.TempDir()
	content := `
[trading]
mode = "paper"
symbols = ["BTCUSD", "GLD"]

[risk]
daily_trade_cap = 10
rebalance_threshold = 0.6

[store]
ledger_backend = "sqlite"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSD", "GLD"}, cfg.Trading.Symbols)
	assert.Equal(t, 10, cfg.Risk.DailyTradeCap)
	assert.Equal(t, 0.6, cfg.Risk.RebalanceThreshold)
	assert.Equal(t, "sqlite", cfg.Store.LedgerBackend)
	// Unset keys keep defaults.
	assert.Equal(t, 0.45, cfg.Risk.ClassCapFraction)
}

func TestLoadRejectsInvalidMode(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"),
		[]byte("[trading]\nmode = \"margin\"\n"), 0644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestLoadCredentialsFromEnv(t *testing.T) {
	t.Setenv("ALPACA_API_KEY", "key123")
	t.Setenv("ALPACA_SECRET_KEY", "sec456")
	t.Setenv("ALPACA_BASE_URL", "")
	t.Setenv("ALPHA_VANTAGE_API_KEY", "av789")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "key123", cfg.Credentials.AlpacaAPIKey)
	assert.Equal(t, "sec456", cfg.Credentials.AlpacaSecretKey)
	assert.Equal(t, "https://paper-api.alpaca.markets", cfg.Credentials.AlpacaBaseURL)
	assert.Equal(t, "av789", cfg.Credentials.AlphaVantageKey)
}

func TestValidateTiers(t *testing.T) {
	cases := []struct {
		name  string
		tiers []Tier
		ok    bool
	}{
		{"canonical table", DefaultTiers, true},
		{"empty", nil, false},
		{"unsorted prices", []Tier{{MaxPrice: 200, Factor: 0.1}, {MaxPrice: 20, Factor: 0.1}, {MaxPrice: 0, Factor: 0.1}}, false},
		{"unbounded tier not last", []Tier{{MaxPrice: 0, Factor: 0.1}, {MaxPrice: 20, Factor: 0.1}}, false},
		{"zero factor", []Tier{{MaxPrice: 20, Factor: 0}, {MaxPrice: 0, Factor: 0.1}}, false},
		{"factor above one", []Tier{{MaxPrice: 20, Factor: 1.5}, {MaxPrice: 0, Factor: 0.1}}, false},
		{"no unbounded tier", []Tier{{MaxPrice: 20, Factor: 0.1}, {MaxPrice: 200, Factor: 0.05}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateTiers(tc.tiers)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidateBounds(t *testing.T) {
	base := func() *Config {
		cfg, err := Load(t.TempDir())
		require.NoError(t, err)
		return cfg
	}

	cfg := base()
	cfg.Risk.ClassCapFraction = 0.6
	assert.Error(t, cfg.Validate(), "two classes at 0.6 could exceed total equity")

	cfg = base()
	cfg.Risk.ShrinkFactor = 1.0
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Risk.GrowthFactor = 0.99
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Engine.Workers = 0
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Store.LedgerBackend = "redis"
	assert.Error(t, cfg.Validate())
}
