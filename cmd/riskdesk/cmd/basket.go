package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/riskdesk/config"
	"github.com/rustyeddy/riskdesk/execution"
	"github.com/rustyeddy/riskdesk/terminal"
)

var basketCmd = &cobra.Command{
	Use:   "basket <name>",
	Short: "Open every leg of a configured basket",
	Long: `Sizes and opens each leg of the named basket at the basket's risk percent
(or risk.percent). Legs whose symbol is unavailable or whose size falls below
the broker minimum are reported and skipped; the rest are still placed.

Example:
  riskdesk basket riskon
  riskdesk basket riskoff --risk 0.5`,
	Args: cobra.ExactArgs(1),
	RunE: runBasket,
}

var basketRisk float64

func init() {
	rootCmd.AddCommand(basketCmd)
	basketCmd.Flags().Float64Var(&basketRisk, "risk", 0, "risk percent per leg (overrides config)")
}

func runBasket(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	name := args[0]
	b, ok := a.cfg.Baskets[name]
	if !ok {
		return fmt.Errorf("unknown basket %q (have: %s)", name, strings.Join(a.cfg.BasketNames(), ", "))
	}
	legs, err := basketLegs(b)
	if err != nil {
		return err
	}

	pct := a.cfg.Risk.Percent
	if b.Percent > 0 {
		pct = b.Percent
	}
	if basketRisk > 0 {
		pct = basketRisk
	}

	comment := b.Comment
	if comment == "" {
		comment = a.cfg.Execution.Comment
	}

	outs := a.exec.RunBasket(ctx, a.sizer, legs, pct, comment)
	printOutcomes(cmd.OutOrStdout(), outs)
	return nil
}

func basketLegs(b config.Basket) ([]execution.Leg, error) {
	legs := make([]execution.Leg, 0, len(b.Legs))
	for _, l := range b.Legs {
		side, err := terminal.ParseOrderType(l.Side)
		if err != nil {
			return nil, err
		}
		legs = append(legs, execution.Leg{Symbol: l.Symbol, Side: side, StopPoints: l.StopPoints})
	}
	return legs, nil
}

func printOutcomes(w io.Writer, outs []execution.Outcome) {
	for _, o := range outs {
		fmt.Fprintln(w, o)
	}
	n := execution.Count(outs)
	fmt.Fprintf(w, "filled=%d rejected=%d skipped=%d unavailable=%d failed=%d\n",
		n[execution.StatusFilled], n[execution.StatusRejected], n[execution.StatusSkipped],
		n[execution.StatusUnavailable], n[execution.StatusFailed])
}
