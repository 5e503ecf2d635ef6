package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string

	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "perpsim",
	Short: "A regime-adaptive perpetual-futures backtesting engine",
	Long: `Perpsim replays historical perpetual-futures data through a
regime-adaptive multi-asset strategy and produces a trade ledger,
equity curve and performance report.

It provides tools for:
  - Downloading bar and funding history from Binance USD-M futures
  - Running deterministic backtests over enriched multi-timeframe data
  - Journaling trades, equity and funding events to CSV and SQLite
  - Summarizing performance by regime, asset, direction and exit reason`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := zerolog.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("invalid log level %q", logLevel)
		}
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
			Level(level).
			With().Timestamp().Logger()
		return nil
	},
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to YAML config (defaults apply when omitted)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
}
