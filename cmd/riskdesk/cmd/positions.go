package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var positionsCmd = &cobra.Command{
	Use:   "positions",
	Short: "List open positions and the account balance",
	Args:  cobra.NoArgs,
	RunE:  runPositions,
}

func init() {
	rootCmd.AddCommand(positionsCmd)
}

func runPositions(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	acct, err := a.sess.AccountInfo(ctx)
	if err != nil {
		return err
	}
	positions, err := a.sess.Positions(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "account %d %s balance=%.2f equity=%.2f margin=%.2f\n",
		acct.Login, acct.Currency, acct.Balance, acct.Equity, acct.Margin)
	if len(positions) == 0 {
		fmt.Fprintln(out, "no open positions")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TICKET\tSYMBOL\tSIDE\tVOLUME\tOPEN\tSL\tCOMMENT")
	for _, p := range positions {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.3f\t%g\t%g\t%s\n",
			p.Ticket, p.Symbol, p.Type, p.Volume, p.PriceOpen, p.StopLoss, p.Comment)
	}
	return tw.Flush()
}
