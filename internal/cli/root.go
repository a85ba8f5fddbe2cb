// Package cli provides the command-line interface for the risk engine.
package cli

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"alpaca-trader/internal/broker"
	"alpaca-trader/internal/config"
	"alpaca-trader/internal/engine"
	"alpaca-trader/internal/ledger"
	"alpaca-trader/internal/logging"
	"alpaca-trader/internal/marketdata"
	"alpaca-trader/internal/metrics"
	"alpaca-trader/internal/notify"
	"alpaca-trader/internal/resilience"
	"alpaca-trader/internal/risk"
	"alpaca-trader/internal/security"
)

// Version information
const (
	Version = "0.1.0"
)

// App holds the application dependencies.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Broker   broker.Broker
	Provider marketdata.QuoteProvider
	Params   *risk.Manager
	Ledger   ledger.Ledger
	Notifier notify.Notifier
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config:   cfg,
		Logger:   logger,
		Notifier: notify.NopNotifier{},
	}

	if cfg.Trading.Mode == "paper" {
		app.Broker = broker.NewPaperBroker(100000)
		logger.Debug().Msg("paper broker initialized")
	} else {
		app.Broker = broker.NewAlpacaBroker(broker.AlpacaConfig{
			APIKey:    cfg.Credentials.AlpacaAPIKey,
			SecretKey: cfg.Credentials.AlpacaSecretKey,
			BaseURL:   cfg.Credentials.AlpacaBaseURL,
		})
		logger.Debug().Msg("alpaca broker initialized")
	}

	// Quote fetches go through a circuit breaker so a dead upstream is
	// skipped cheaply instead of timing out per symbol.
	provider := marketdata.NewAlphaVantageProvider(marketdata.AlphaVantageConfig{
		APIKey: cfg.Credentials.AlphaVantageKey,
	})
	app.Provider = marketdata.NewResilientProvider(provider, resilience.NewBreaker(resilience.DefaultConfig()))
	logger.Debug().
		Str("alpaca_api_key", security.MaskSecret(cfg.Credentials.AlpacaAPIKey)).
		Str("alpha_vantage_key", security.MaskSecret(cfg.Credentials.AlphaVantageKey)).
		Msg("credentials loaded")

	app.Params = risk.NewManager(risk.NewFileParameterStore(cfg.Store.ParamsPath), logger)

	trades, err := ledger.Open(cfg.Store.LedgerBackend, cfg.Store.LedgerPath)
	if err != nil {
		logger.Warn().Err(err).Msg("ledger unavailable, trade history will not persist")
	} else {
		app.Ledger = trades
	}

	if cfg.Notifications.Enabled && cfg.Notifications.Webhook.Enabled && cfg.Notifications.Webhook.URL != "" {
		app.Notifier = notify.NewWebhookNotifier(cfg.Notifications.Webhook.URL, logger)
		logger.Debug().Str("url", security.MaskURL(cfg.Notifications.Webhook.URL)).Msg("webhook notifier initialized")
	}

	rootCmd := &cobra.Command{
		Use:   "trader",
		Short: "Alpaca risk-controlled trading engine",
		Long: `An automated trading engine for Alpaca with a risk-control core:
price-tiered position sizing, ordered trade validation, asset-class
rebalancing and feedback tuning of the risk limits themselves.

Use 'trader help <command>' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			if cfg.Metrics.Enabled {
				go func() {
					if err := metrics.Serve(cfg.Metrics.ListenAddr); err != nil {
						app.Logger.Warn().Err(err).Msg("metrics endpoint stopped")
					}
				}()
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/alpaca-trader)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newRunCmd(app))
	rootCmd.AddCommand(newRebalanceCmd(app))
	rootCmd.AddCommand(newTuneCmd(app))
	rootCmd.AddCommand(newParamsCmd(app))
	rootCmd.AddCommand(newStatusCmd(app))

	return rootCmd
}

// newEngine builds the trading engine from the app dependencies. It is
// deferred to command execution so params load errors surface there.
func (a *App) newEngine() *engine.Engine {
	trades := a.Ledger
	if trades == nil {
		trades = nopLedger{}
	}
	return engine.New(a.Config, a.Broker, a.Provider, a.Params, trades, a.Notifier, a.Logger)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"version": Version})
				return
			}
			fmt.Fprintf(cmd.OutOrStdout(), "trader %s\n", Version)
		},
	}
}
