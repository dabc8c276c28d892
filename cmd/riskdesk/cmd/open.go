package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/riskdesk/risk"
	"github.com/rustyeddy/riskdesk/terminal"
)

var openCmd = &cobra.Command{
	Use:   "open <symbol> <buy|sell>",
	Short: "Open one risk-sized market order with a stop loss",
	Long: `Sizes a market order so that a stop --stop points away risks --risk percent
of the account balance, then sends it with the stop attached.

Example:
  riskdesk open EURUSD buy --stop 150
  riskdesk open USTEC sell --stop 1000 --risk 0.5 --comment manual`,
	Args: cobra.ExactArgs(2),
	RunE: runOpen,
}

var (
	openStop    int
	openRisk    float64
	openComment string
)

func init() {
	rootCmd.AddCommand(openCmd)
	openCmd.Flags().IntVar(&openStop, "stop", 0, "stop distance in points (required)")
	openCmd.Flags().Float64Var(&openRisk, "risk", 0, "risk percent of balance (overrides config)")
	openCmd.Flags().StringVar(&openComment, "comment", "", "order comment (defaults to execution.comment)")
	_ = openCmd.MarkFlagRequired("stop")
}

func runOpen(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	req, err := sizeRequest(args, openStop, openRisk)
	if err != nil {
		return err
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	if req.RiskPercent == 0 {
		req.RiskPercent = a.cfg.Risk.Percent
	}
	comment := openComment
	if comment == "" {
		comment = a.cfg.Execution.Comment
	}

	d := a.sizer.Size(ctx, req)
	if !d.Trade {
		fmt.Fprintf(cmd.OutOrStdout(), "open %s skipped: %s: %s\n", req.Symbol, d.Skip, d.Reason)
		return nil
	}

	out := a.exec.OpenSized(ctx, d.Order, comment)
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}

// sizeRequest parses "<symbol> <side>" plus the stop and risk flags. A zero
// risk percent is filled in from config by the caller.
func sizeRequest(args []string, stop int, pct float64) (risk.Request, error) {
	side, err := terminal.ParseOrderType(args[1])
	if err != nil {
		return risk.Request{}, err
	}
	if stop <= 0 {
		return risk.Request{}, fmt.Errorf("--stop must be positive")
	}
	if pct < 0 {
		return risk.Request{}, fmt.Errorf("--risk must not be negative")
	}
	return risk.Request{Symbol: args[0], Side: side, StopPoints: stop, RiskPercent: pct}, nil
}
