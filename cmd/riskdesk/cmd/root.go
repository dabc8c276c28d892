package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "riskdesk",
	Short: "Risk-sized order placement for a MetaTrader 5 terminal",
	Long: `riskdesk sizes, opens and closes positions on a MetaTrader 5 terminal from a
percent-of-balance risk budget and a stop distance in points.

It can:
  - Open configured baskets of positions (riskon, riskoff)
  - Open a single risk-sized market order with a protective stop
  - Close half of, or all of, the open positions
  - Journal every order outcome to CSV or SQLite

The terminal is reached through a local HTTP bridge, or simulated in-process
with --terminal sim.`,
	SilenceUsage: true,
}

var (
	cfgFile      string
	logLevel     string
	terminalKind string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML or JSON); defaults are used when empty")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug|info|warn|error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&terminalKind, "terminal", "", "sim|bridge (overrides config)")
}
