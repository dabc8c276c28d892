package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/riskdesk/execution"
)

var closeHalfCmd = &cobra.Command{
	Use:   "close-half",
	Short: "Close half the volume of open positions",
	Long: `Closes half of each open position, rounded down to the symbol's volume step.
Positions whose half would fall below the broker minimum are left alone.

Example:
  riskdesk close-half
  riskdesk close-half --ticket 1002`,
	Args: cobra.NoArgs,
	RunE: runCloseHalf,
}

var closeAllCmd = &cobra.Command{
	Use:   "close-all",
	Short: "Close every open position at market",
	Args:  cobra.NoArgs,
	RunE:  runCloseAll,
}

var closeTicket uint64

func init() {
	rootCmd.AddCommand(closeHalfCmd)
	rootCmd.AddCommand(closeAllCmd)
	closeHalfCmd.Flags().Uint64Var(&closeTicket, "ticket", 0, "only this position")
}

func runCloseHalf(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	if closeTicket == 0 {
		outs, err := a.exec.CloseHalfAll(ctx)
		if err != nil {
			return err
		}
		printOutcomes(cmd.OutOrStdout(), outs)
		return nil
	}

	positions, err := a.sess.Positions(ctx)
	if err != nil {
		return err
	}
	for _, p := range positions {
		if p.Ticket == closeTicket {
			printOutcomes(cmd.OutOrStdout(), []execution.Outcome{a.exec.CloseHalfPosition(ctx, p)})
			return nil
		}
	}
	return fmt.Errorf("no open position with ticket %d", closeTicket)
}

func runCloseAll(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	outs, err := a.exec.CloseAllPositions(ctx)
	if err != nil {
		return err
	}
	if len(outs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no open positions")
		return nil
	}
	printOutcomes(cmd.OutOrStdout(), outs)
	return nil
}
