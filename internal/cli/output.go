package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"alpaca-trader/internal/ledger"
)

// Output formats command results as text or JSON depending on the
// --json flag.
type Output struct {
	cmd  *cobra.Command
	json bool
}

// NewOutput creates an output helper for a command invocation.
func NewOutput(cmd *cobra.Command) *Output {
	jsonFlag, _ := cmd.Flags().GetBool("json")
	return &Output{cmd: cmd, json: jsonFlag}
}

// IsJSON reports whether JSON output was requested.
func (o *Output) IsJSON() bool { return o.json }

// JSON writes v as indented JSON.
func (o *Output) JSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(o.cmd.ErrOrStderr(), "error encoding output: %v\n", err)
		return
	}
	fmt.Fprintln(o.cmd.OutOrStdout(), string(data))
}

// Printf writes formatted text output.
func (o *Output) Printf(format string, args ...interface{}) {
	fmt.Fprintf(o.cmd.OutOrStdout(), format, args...)
}

// nopLedger stands in when the configured ledger could not be opened,
// so the engine can still trade without persisting history.
type nopLedger struct{}

func (nopLedger) Append(ctx context.Context, record ledger.TradeRecord) error { return nil }
func (nopLedger) Records(ctx context.Context) ([]ledger.TradeRecord, error)   { return nil, nil }
func (nopLedger) Close() error                                                { return nil }
