// Package config provides configuration management for the risk engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Trading       TradingConfig      `mapstructure:"trading"`
	Risk          RiskConfig         `mapstructure:"risk"`
	Engine        EngineConfig       `mapstructure:"engine"`
	Store         StoreConfig        `mapstructure:"store"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Metrics       MetricsConfig      `mapstructure:"metrics"`
	Credentials   Credentials        `mapstructure:"-"` // env only, never written to disk
}

// TradingConfig holds trading-related configuration.
type TradingConfig struct {
	Mode    string   `mapstructure:"mode"` // "live", "paper"
	Symbols []string `mapstructure:"symbols"`
}

// Tier is one row of the price-tier scaling table: the factor applies to
// preliminary quantities for prices up to MaxPrice. The table must be
// sorted by ascending MaxPrice; a zero MaxPrice terminates it as the
// unbounded top tier.
type Tier struct {
	MaxPrice float64 `mapstructure:"max_price"`
	Factor   float64 `mapstructure:"factor"`
}

// RiskConfig holds the risk-control configuration. The persisted,
// tuner-owned limits (max position/portfolio size) live in the parameter
// store, not here; this is the static policy around them.
type RiskConfig struct {
	ClassCapFraction     float64 `mapstructure:"class_cap_fraction"`     // per-class share of equity
	RebalanceThreshold   float64 `mapstructure:"rebalance_threshold"`    // class share that triggers rebalance
	RebalanceSellFrac    float64 `mapstructure:"rebalance_sell_fraction"`
	SmallAccountEquity   float64 `mapstructure:"small_account_equity"`   // day-trade protection threshold
	PriceFloor           float64 `mapstructure:"price_floor"`            // degenerate limit-price guard
	DailyTradeCap        int     `mapstructure:"daily_trade_cap"`
	TakeProfitPct        float64 `mapstructure:"take_profit_pct"`
	StopLossPct          float64 `mapstructure:"stop_loss_pct"`
	MaxSymbolFraction    float64 `mapstructure:"max_symbol_fraction"`    // diversification cap per symbol
	ShrinkFactor         float64 `mapstructure:"shrink_factor"`          // tuner step on losing cycles
	GrowthFactor         float64 `mapstructure:"growth_factor"`          // tuner step on winning cycles
	PositionSizeFloor    float64 `mapstructure:"position_size_floor"`
	Tiers                []Tier  `mapstructure:"tiers"`
	FractionalQuantities bool    `mapstructure:"fractional_quantities"`
}

// EngineConfig holds trading-cycle orchestration configuration.
type EngineConfig struct {
	Workers      int           `mapstructure:"workers"`
	CycleTimeout time.Duration `mapstructure:"cycle_timeout"`
	QuoteRetries int           `mapstructure:"quote_retries"`
}

// StoreConfig holds persistence configuration.
type StoreConfig struct {
	ParamsPath    string `mapstructure:"params_path"`
	LedgerBackend string `mapstructure:"ledger_backend"` // "csv", "sqlite"
	LedgerPath    string `mapstructure:"ledger_path"`
}

// NotificationConfig holds notification configuration.
type NotificationConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Webhook WebhookConfig `mapstructure:"webhook"`
}

// WebhookConfig holds webhook notification configuration.
type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

// MetricsConfig holds Prometheus exposition configuration.
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
}

// Credentials holds API credentials, loaded from the environment.
type Credentials struct {
	AlpacaAPIKey    string
	AlpacaSecretKey string
	AlpacaBaseURL   string
	AlphaVantageKey string
}

// DefaultTiers is the canonical price-tier scaling table: high-priced
// assets get a small fraction of the preliminary quantity, low-priced
// ones a larger fraction. Factors are configuration, not code; override
// them with [[risk.tiers]] entries.
var DefaultTiers = []Tier{
	{MaxPrice: 20, Factor: 0.031},
	{MaxPrice: 200, Factor: 0.094},
	{MaxPrice: 1000, Factor: 0.045},
	{MaxPrice: 3000, Factor: 0.033},
	{MaxPrice: 4000, Factor: 0.035},
	{MaxPrice: 0, Factor: 0.01}, // MaxPrice 0 = unbounded top tier
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/alpaca-trader"
	}
	return filepath.Join(home, ".config", "alpaca-trader")
}

// Load loads configuration from the specified directory. If configDir is
// empty, the default config directory is used. A missing config file
// yields the defaults.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	setDefaults(v, configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config.toml: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if len(cfg.Risk.Tiers) == 0 {
		cfg.Risk.Tiers = DefaultTiers
	}

	loadCredentials(&cfg.Credentials)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("trading.mode", "paper")
	v.SetDefault("trading.symbols", []string{})

	v.SetDefault("risk.class_cap_fraction", 0.45)
	v.SetDefault("risk.rebalance_threshold", 0.50)
	v.SetDefault("risk.rebalance_sell_fraction", 0.35)
	v.SetDefault("risk.small_account_equity", 25000.0)
	v.SetDefault("risk.price_floor", 0.001)
	v.SetDefault("risk.daily_trade_cap", 120)
	v.SetDefault("risk.take_profit_pct", 0.05)
	v.SetDefault("risk.stop_loss_pct", 0.07)
	v.SetDefault("risk.max_symbol_fraction", 0.30)
	v.SetDefault("risk.shrink_factor", 0.90)
	v.SetDefault("risk.growth_factor", 1.0015)
	v.SetDefault("risk.position_size_floor", 50.0)
	v.SetDefault("risk.fractional_quantities", true)

	v.SetDefault("engine.workers", 8)
	v.SetDefault("engine.cycle_timeout", 5*time.Minute)
	v.SetDefault("engine.quote_retries", 2)

	v.SetDefault("store.params_path", filepath.Join(configDir, "risk_params.json"))
	v.SetDefault("store.ledger_backend", "csv")
	v.SetDefault("store.ledger_path", filepath.Join(configDir, "trades.csv"))

	v.SetDefault("notifications.enabled", true)
	v.SetDefault("notifications.webhook.enabled", false)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen_addr", ":9090")
}

func loadCredentials(creds *Credentials) {
	creds.AlpacaAPIKey = os.Getenv("ALPACA_API_KEY")
	creds.AlpacaSecretKey = os.Getenv("ALPACA_SECRET_KEY")
	creds.AlpacaBaseURL = os.Getenv("ALPACA_BASE_URL")
	if creds.AlpacaBaseURL == "" {
		creds.AlpacaBaseURL = "https://paper-api.alpaca.markets"
	}
	creds.AlphaVantageKey = os.Getenv("ALPHA_VANTAGE_API_KEY")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Trading.Mode != "" && c.Trading.Mode != "live" && c.Trading.Mode != "paper" {
		return fmt.Errorf("invalid trading mode: %s (must be 'live' or 'paper')", c.Trading.Mode)
	}

	if c.Risk.ClassCapFraction <= 0 || c.Risk.ClassCapFraction > 0.5 {
		return fmt.Errorf("class_cap_fraction must be in (0, 0.5]: two classes may not both reach 100%%")
	}
	if c.Risk.RebalanceThreshold <= 0 || c.Risk.RebalanceThreshold > 1 {
		return fmt.Errorf("rebalance_threshold must be in (0, 1]")
	}
	if c.Risk.RebalanceSellFrac <= 0 || c.Risk.RebalanceSellFrac > 1 {
		return fmt.Errorf("rebalance_sell_fraction must be in (0, 1]")
	}
	if c.Risk.DailyTradeCap < 0 {
		return fmt.Errorf("daily_trade_cap must be non-negative")
	}
	// Tuning steps are bounded to 10% per cycle in either direction so the
	// limits cannot drift away in one bad evaluation.
	if c.Risk.ShrinkFactor < 0.90 || c.Risk.ShrinkFactor >= 1 {
		return fmt.Errorf("shrink_factor must be in [0.90, 1)")
	}
	if c.Risk.GrowthFactor < 1 || c.Risk.GrowthFactor > 1.10 {
		return fmt.Errorf("growth_factor must be in [1, 1.10]")
	}
	if c.Risk.PositionSizeFloor < 0 {
		return fmt.Errorf("position_size_floor must be non-negative")
	}
	if err := validateTiers(c.Risk.Tiers); err != nil {
		return err
	}

	if c.Engine.Workers < 1 || c.Engine.Workers > 64 {
		return fmt.Errorf("engine.workers must be in [1, 64]")
	}

	switch c.Store.LedgerBackend {
	case "csv", "sqlite":
	default:
		return fmt.Errorf("invalid ledger_backend: %s (must be 'csv' or 'sqlite')", c.Store.LedgerBackend)
	}

	return nil
}

// validateTiers checks that the tier table is sorted by ascending
// MaxPrice. A zero MaxPrice terminates the table as the unbounded top
// tier.
func validateTiers(tiers []Tier) error {
	if len(tiers) == 0 {
		return fmt.Errorf("risk.tiers must not be empty")
	}
	prevPrice := 0.0
	for i, t := range tiers {
		if t.Factor <= 0 || t.Factor > 1 {
			return fmt.Errorf("tier %d: factor must be in (0, 1]", i)
		}
		if t.MaxPrice == 0 {
			if i != len(tiers)-1 {
				return fmt.Errorf("tier %d: unbounded tier must be last", i)
			}
			continue
		}
		if t.MaxPrice <= prevPrice {
			return fmt.Errorf("tier %d: max_price must be strictly increasing", i)
		}
		prevPrice = t.MaxPrice
	}
	return nil
}

// IsPaperMode returns true if paper trading mode is enabled.
func (c *Config) IsPaperMode() bool {
	return c.Trading.Mode == "paper"
}
