package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/riskdesk/risk"
)

var sizeCmd = &cobra.Command{
	Use:   "size <symbol> <buy|sell>",
	Short: "Show the volume an open would use, without sending anything",
	Args:  cobra.ExactArgs(2),
	RunE:  runSize,
}

var (
	sizeStop int
	sizeRisk float64
)

func init() {
	rootCmd.AddCommand(sizeCmd)
	sizeCmd.Flags().IntVar(&sizeStop, "stop", 0, "stop distance in points (required)")
	sizeCmd.Flags().Float64Var(&sizeRisk, "risk", 0, "risk percent of balance (overrides config)")
	_ = sizeCmd.MarkFlagRequired("stop")
}

func runSize(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	req, err := sizeRequest(args, sizeStop, sizeRisk)
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
	printDecision(cmd.OutOrStdout(), a.sizer.Size(ctx, req))
	return nil
}

func printDecision(w io.Writer, d risk.Decision) {
	req := d.Request
	if !d.Trade {
		fmt.Fprintf(w, "%s %s: no trade (%s) %s\n", req.Side, req.Symbol, d.Skip, d.Reason)
		return
	}
	o := d.Order
	fmt.Fprintf(w, "%s %s: volume=%.3f raw=%.4f risk=%.2f stop=%d",
		o.Side, o.Symbol, o.Volume, o.RawVolume, o.RiskAmount, o.StopPoints())
	if o.Stop.Adjusted {
		fmt.Fprintf(w, " (raised from %d, minimum %d)", o.Stop.Requested, o.Stop.Minimum)
	}
	fmt.Fprintf(w, " price=%g\n", o.LimitPrice)
}
