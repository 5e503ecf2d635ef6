package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"perpsim/config"
	"perpsim/indicators"
	"perpsim/journal"
	"perpsim/market"
	"perpsim/report"
	"perpsim/sim"
)

var (
	runDBPath string
	runCSVOut bool
	runSeed   int64
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a backtest over the configured data window",
	Long: `Run loads the dataset for every configured symbol, enriches it with
indicators, replays it through the simulation engine and prints the
performance summary.

Example:
  perpsim run -c configs/btc-eth.yaml --db out/runs.sqlite --csv`,
	RunE: runSimulation,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runDBPath, "db", "", "SQLite journal path (omit to skip)")
	runCmd.Flags().BoolVar(&runCSVOut, "csv", false, "write trade/equity/funding CSVs to the output dir")
	runCmd.Flags().Int64Var(&runSeed, "seed", -1, "trade-ID seed override (-1 keeps the config value)")
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if runSeed >= 0 {
		cfg.Seed = runSeed
	}

	simCfg, err := cfg.SimConfig()
	if err != nil {
		return err
	}

	frames, err := loadFrames(cfg)
	if err != nil {
		return err
	}

	mem := journal.NewMemory()
	journals := journal.Multi{mem}

	engine, err := sim.New(simCfg, frames, nil, logger)
	if err != nil {
		return err
	}

	if runDBPath != "" {
		db, err := journal.NewSQLite(runDBPath, engine.RunID())
		if err != nil {
			return err
		}
		if err := db.StartRun(time.Now().UTC(), cfg.Symbols, cfg.InitialCapital); err != nil {
			db.Close()
			return err
		}
		journals = append(journals, db)
	}
	if runCSVOut {
		if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
			return err
		}
		csvJnl, err := journal.NewCSV(
			filepath.Join(cfg.OutputDir, "trades.csv"),
			filepath.Join(cfg.OutputDir, "equity.csv"),
			filepath.Join(cfg.OutputDir, "funding.csv"),
		)
		if err != nil {
			return err
		}
		journals = append(journals, csvJnl)
	}

	// The engine was constructed before the journals so its run ID could
	// key the SQLite rows; attach the fan-out now.
	engine.SetJournal(journals)
	defer journals.Close()

	res, err := engine.Run(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("Run %s: %d bars, final equity %.2f\n\n", res.RunID, res.BarsProcessed, res.FinalEquity)
	report.Render(os.Stdout, report.Build(mem))
	return nil
}

// loadFrames reads, validates and enriches every symbol's dataset.
func loadFrames(cfg config.Config) (map[string]sim.AssetFrames, error) {
	frames := make(map[string]sim.AssetFrames, len(cfg.Symbols))

	for _, sym := range cfg.Symbols {
		var f sim.AssetFrames
		for _, tf := range []struct {
			tf   market.Timeframe
			dest **market.Series
		}{
			{market.TF15m, &f.M15},
			{market.TF1h, &f.H1},
			{market.TF4h, &f.H4},
		} {
			path, err := market.FindDataFile(cfg.DataDir, market.BarFilename(sym, tf.tf))
			if err != nil {
				return nil, err
			}
			s, err := market.LoadBars(path, sym, tf.tf)
			if err != nil {
				return nil, err
			}
			indicators.Enrich(s)
			*tf.dest = s
		}

		if path, err := market.FindDataFile(cfg.DataDir, market.FundingFilename(sym)); err == nil {
			ft, err := market.LoadFunding(path, sym)
			if err != nil {
				return nil, err
			}
			indicators.AttachFunding(f.M15, ft)
		} else {
			logger.Warn().Str("symbol", sym).Msg("no funding dataset, settlements skipped")
		}

		frames[sym] = f
	}

	// Cross-asset correlation on the 1h frame against the reference.
	ref := frames[cfg.ReferenceSymbol]
	for _, sym := range cfg.Symbols {
		if sym == cfg.ReferenceSymbol {
			continue
		}
		if err := indicators.EnrichCorrelation(ref.H1, frames[sym].H1); err != nil {
			return nil, err
		}
	}
	return frames, nil
}
