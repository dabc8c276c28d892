package cmd

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/riskdesk/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query the SQLite order journal",
	Long: `Query order outcomes recorded by a sqlite journal.

Subcommands:
  list   - Most recent orders
  show   - One order by ID
  day    - Orders recorded on a specific day
  summary - Order counts by status

Examples:
  riskdesk journal list --limit 20
  riskdesk journal show 01J9ZQ5N7W3K8M2XJ4R6T0V1AB
  riskdesk journal day 2026-03-14 --db journal.db`,
}

var journalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the most recent orders",
	Args:  cobra.NoArgs,
	RunE:  runJournalList,
}

var journalShowCmd = &cobra.Command{
	Use:   "show <order-id>",
	Short: "Show one order",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalShow,
}

var journalDayCmd = &cobra.Command{
	Use:   "day <YYYY-MM-DD>",
	Short: "List orders recorded on a specific day",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalDay,
}

var journalSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Count orders by status",
	Args:  cobra.NoArgs,
	RunE:  runJournalSummary,
}

var (
	journalDBPath string
	journalLimit  int
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalListCmd)
	journalCmd.AddCommand(journalShowCmd)
	journalCmd.AddCommand(journalDayCmd)
	journalCmd.AddCommand(journalSummaryCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "", "path to SQLite journal DB (defaults to journal.path)")
	journalListCmd.Flags().IntVarP(&journalLimit, "limit", "n", 20, "number of orders")
}

func openJournalDB() (*journal.SQLite, error) {
	path := journalDBPath
	if path == "" {
		cfg, err := loadConfig()
		if err != nil {
			return nil, err
		}
		if cfg.Journal.Type != journal.TypeSQLite {
			return nil, fmt.Errorf("no sqlite journal configured (use --db)")
		}
		path = cfg.Journal.Path
	}
	j, err := journal.NewSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return j, nil
}

func runJournalList(cmd *cobra.Command, args []string) error {
	j, err := openJournalDB()
	if err != nil {
		return err
	}
	defer j.Close()

	recs, err := j.ListOrders(cmd.Context(), journalLimit)
	if err != nil {
		return fmt.Errorf("query orders: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), journal.FormatOrdersOrg(recs))
	return nil
}

func runJournalShow(cmd *cobra.Command, args []string) error {
	j, err := openJournalDB()
	if err != nil {
		return err
	}
	defer j.Close()

	rec, err := j.GetOrder(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("get order: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), journal.FormatOrderOrg(rec))
	return nil
}

func runJournalDay(cmd *cobra.Command, args []string) error {
	j, err := openJournalDB()
	if err != nil {
		return err
	}
	defer j.Close()

	start, end, err := dayBounds(time.Local, args[0])
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}
	recs, err := j.ListOrdersBetween(cmd.Context(), start, end)
	if err != nil {
		return fmt.Errorf("query orders: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), journal.FormatOrdersOrg(recs))
	return nil
}

func runJournalSummary(cmd *cobra.Command, args []string) error {
	j, err := openJournalDB()
	if err != nil {
		return err
	}
	defer j.Close()

	counts, err := j.Summary(cmd.Context())
	if err != nil {
		return fmt.Errorf("summary: %w", err)
	}
	statuses := make([]string, 0, len(counts))
	for s := range counts {
		statuses = append(statuses, s)
	}
	sort.Strings(statuses)
	for _, s := range statuses {
		fmt.Fprintf(cmd.OutOrStdout(), "%-12s %d\n", s, counts[s])
	}
	return nil
}

func dayBounds(loc *time.Location, day string) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1), nil
}
