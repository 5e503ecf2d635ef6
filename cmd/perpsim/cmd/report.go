package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"perpsim/journal"
	"perpsim/report"
)

var (
	reportDBPath string
	reportRunID  string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize a journaled run from a SQLite database",
	Long: `Report rebuilds the performance summary from a run persisted with
"perpsim run --db". The latest run is used unless --run names one.`,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVar(&reportDBPath, "db", "", "SQLite journal path (required)")
	reportCmd.Flags().StringVar(&reportRunID, "run", "", "run ID (defaults to the latest)")
	reportCmd.MarkFlagRequired("db")
}

func runReport(cmd *cobra.Command, args []string) error {
	r, err := journal.OpenReader(reportDBPath)
	if err != nil {
		return err
	}
	defer r.Close()

	runID := reportRunID
	if runID == "" {
		info, err := r.LatestRun()
		if err != nil {
			return fmt.Errorf("no runs in %s: %w", reportDBPath, err)
		}
		runID = info.RunID
	}

	mem := journal.NewMemory()
	if mem.Trades, err = r.Trades(runID); err != nil {
		return err
	}
	if mem.Equity, err = r.Equity(runID); err != nil {
		return err
	}
	if mem.Funding, err = r.FundingEvents(runID); err != nil {
		return err
	}

	fmt.Printf("Run %s\n\n", runID)
	report.Render(os.Stdout, report.Build(mem))
	return nil
}
