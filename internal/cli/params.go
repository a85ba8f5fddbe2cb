package cli

import (
	"github.com/spf13/cobra"

	"alpaca-trader/internal/risk"
)

func newParamsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "params",
		Short: "Inspect and manage the persisted risk parameters",
	}
	cmd.AddCommand(newParamsShowCmd(app))
	cmd.AddCommand(newParamsInitCmd(app))
	return cmd
}

func newParamsShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the current risk parameters",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := signalContext(cmd)
			if err := app.Params.Load(ctx); err != nil {
				return err
			}
			params := app.Params.Snapshot()

			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(params)
				return nil
			}
			output.Printf("max position size:  %.2f\n", params.MaxPositionSize)
			output.Printf("max portfolio size: %.2f\n", params.MaxPortfolioSize)
			output.Printf("max risk per trade: %.4f\n", params.MaxRiskPerTrade)
			output.Printf("max crypto equity:  %.2f\n", params.MaxCryptoEquity)
			output.Printf("daily trade count:  %d (%s)\n", params.DailyTradeCount, params.TradeDay)
			return nil
		},
	}
}

func newParamsInitCmd(app *App) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Bootstrap a fresh risk parameter record",
		Long: `Create the persisted risk parameter record from conservative defaults
derived from current account equity. This is the only path that writes
defaults: a missing record at trading time is a hard error, never a
silent fallback.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := signalContext(cmd)

			if !force {
				if err := app.Params.Load(ctx); err == nil {
					output := NewOutput(cmd)
					output.Printf("parameter record already exists; use --force to overwrite\n")
					return nil
				}
			}

			account, err := app.Broker.GetAccount(ctx)
			if err != nil {
				return err
			}

			params := risk.DefaultParameters(account.Equity)
			if err := app.Params.Bootstrap(ctx, params); err != nil {
				return err
			}

			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(params)
			} else {
				output.Printf("initialized risk parameters at %s (equity %.2f)\n",
					app.Config.Store.ParamsPath, account.Equity)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing record")
	return cmd
}
