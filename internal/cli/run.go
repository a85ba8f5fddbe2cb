package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func newRunCmd(app *App) *cobra.Command {
	var (
		loop     bool
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the trading cycle",
		Long: `Run one trading cycle: take an account snapshot, fetch quotes for the
configured symbols in parallel, then size, validate and submit entries
and exits serially against that snapshot.

With --loop the cycle repeats at the given interval until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := app.Params.Load(ctx); err != nil {
				return err
			}
			eng := app.newEngine()
			output := NewOutput(cmd)

			runOnce := func() error {
				report, err := eng.RunCycle(ctx)
				if err != nil {
					return err
				}
				if output.IsJSON() {
					output.JSON(report)
				} else {
					output.Printf("cycle: %d evaluated, %d submitted, %d rejected, %d skipped, %d exits (%s)\n",
						report.Evaluated, report.Submitted, report.Rejected, report.Skipped,
						report.Exits, report.Duration.Round(time.Millisecond))
				}
				return nil
			}

			if err := runOnce(); err != nil {
				return err
			}
			if !loop {
				return nil
			}

			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					app.Logger.Info().Msg("shutting down")
					return nil
				case <-ticker.C:
					if err := runOnce(); err != nil {
						// A failed cycle is logged and the loop continues;
						// only a signal stops the schedule.
						app.Logger.Error().Err(err).Msg("cycle failed")
					}
				}
			}
		},
	}

	cmd.Flags().BoolVar(&loop, "loop", false, "repeat the cycle until interrupted")
	cmd.Flags().DurationVar(&interval, "interval", 5*time.Minute, "delay between cycles with --loop")
	return cmd
}

func newRebalanceCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rebalance",
		Short: "Sell down overweight asset classes",
		Long: `Check each asset class against the rebalance threshold and submit
corrective limit sells, highest-volatility positions first. On small
accounts, positions bought the same day are left alone.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := signalContext(cmd)
			if err := app.Params.Load(ctx); err != nil {
				return err
			}

			submitted, err := app.newEngine().Rebalance(ctx)
			if err != nil {
				return err
			}

			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]int{"submitted": submitted})
			} else {
				output.Printf("rebalance: %d corrective sells submitted\n", submitted)
			}
			return nil
		},
	}
}

func newTuneCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "tune",
		Short: "Adjust risk limits from realized performance",
		Long: `Evaluate performance as equity minus total cost basis and apply one
bounded step to the position size limit: shrink on a loss, grow slowly
on a gain, never below the configured floor. The adjusted record is
persisted before it takes effect.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := signalContext(cmd)
			if err := app.Params.Load(ctx); err != nil {
				return err
			}

			result, err := app.newEngine().Tune(ctx)
			if err != nil {
				return err
			}

			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(result)
			} else {
				output.Printf("tune: pnl %.2f, max position size %.2f -> %.2f\n",
					result.PnL, result.PreviousMaxSize, result.NewMaxSize)
			}
			return nil
		},
	}
}

func signalContext(cmd *cobra.Command) context.Context {
	ctx, _ := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	return ctx
}
