package cli

import (
	"github.com/spf13/cobra"

	"alpaca-trader/internal/models"
	"alpaca-trader/pkg/utils"
)

func newStatusCmd(app *App) *cobra.Command {
	var trades int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show account, positions and recent trades",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := signalContext(cmd)

			account, err := app.Broker.GetAccount(ctx)
			if err != nil {
				return err
			}
			positions, err := app.Broker.GetPositions(ctx)
			if err != nil {
				return err
			}

			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]interface{}{
					"account":   account,
					"positions": positions,
				})
				return nil
			}

			output.Printf("cash:   %s\n", utils.FormatMoney(account.Cash))
			output.Printf("equity: %s\n", utils.FormatMoney(account.Equity))

			if len(positions) == 0 {
				output.Printf("no open positions\n")
			} else {
				output.Printf("\n%-10s %12s %12s %12s %8s\n", "SYMBOL", "QTY", "PRICE", "VALUE", "P/L%")
				var classTotals = map[models.AssetClass]float64{}
				for _, p := range positions {
					output.Printf("%-10s %12s %12s %12s %7.2f%%\n",
						p.Symbol,
						utils.FormatQuantity(p.Quantity),
						utils.FormatMoney(p.CurrentPrice),
						utils.FormatMoney(p.MarketValue()),
						p.UnrealizedPLPct*100)
					classTotals[p.Class()] += p.MarketValue()
				}
				output.Printf("\n")
				for class, value := range classTotals {
					output.Printf("%s exposure: %s (%.1f%% of equity)\n",
						class, utils.FormatMoney(value), value/account.Equity*100)
				}
			}

			if app.Ledger != nil && trades > 0 {
				records, err := app.Ledger.Records(ctx)
				if err != nil {
					return err
				}
				if len(records) > trades {
					records = records[len(records)-trades:]
				}
				if len(records) > 0 {
					output.Printf("\nrecent trades:\n")
					for _, r := range records {
						output.Printf("  %s  %-4s %-10s %s @ %s\n",
							r.Timestamp.Format("2006-01-02 15:04"),
							r.Side, r.Symbol,
							utils.FormatQuantity(r.Quantity),
							utils.FormatMoney(r.Price))
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&trades, "trades", 10, "number of recent trades to show (0 to hide)")
	return cmd
}
