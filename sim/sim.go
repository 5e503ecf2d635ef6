// Package sim is the simulation clock: it replays enriched bar history
// through the regime engine, the risk gatekeeper and the position
// ledger in a fixed per-bar order, producing the trade log, equity
// curve and funding stream. Given the same bars and parameters the
// output is byte-identical on every run.
package sim

import (
	"fmt"
	"time"

	"perpsim/market"
	"perpsim/risk"
)

// Config holds the run parameters.
type Config struct {
	// Symbols in declared processing order. The first entries decide
	// deterministic tie-breaks when several assets signal on one bar.
	Symbols []string

	// ReferenceSymbol drives the global regime and anchors cross-asset
	// rules (e.g. altcoin longs require a live reference long).
	ReferenceSymbol string

	InitialCapital float64

	TakerFeeRate    float64 // per side, fraction of notional
	SlippageRate    float64 // adverse fill shift, fraction of price
	MaintMarginRate float64 // exchange maintenance margin ratio

	// Start/End bound the replay by bar open time, [Start, End).
	// Zero values leave that side unbounded.
	Start time.Time
	End   time.Time

	// Seed drives trade-ID entropy. Fixed per run for reproducibility.
	Seed int64

	Limits risk.Limits
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("sim: no symbols configured")
	}
	if c.InitialCapital <= 0 {
		return fmt.Errorf("sim: initial capital must be positive, got %v", c.InitialCapital)
	}
	if c.ReferenceSymbol == "" {
		return fmt.Errorf("sim: reference symbol not set")
	}
	var found bool
	for _, s := range c.Symbols {
		if s == c.ReferenceSymbol {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("sim: reference symbol %q not in symbol list", c.ReferenceSymbol)
	}
	if c.TakerFeeRate < 0 || c.SlippageRate < 0 {
		return fmt.Errorf("sim: negative fee or slippage rate")
	}
	if c.MaintMarginRate < 0 || c.MaintMarginRate >= 1 {
		return fmt.Errorf("sim: maintenance margin rate %v out of range [0, 1)", c.MaintMarginRate)
	}
	if !c.Start.IsZero() && !c.End.IsZero() && !c.End.After(c.Start) {
		return fmt.Errorf("sim: end %s not after start %s",
			c.End.Format(time.RFC3339), c.Start.Format(time.RFC3339))
	}
	return c.Limits.Validate()
}

// AssetFrames is one symbol's bar history across the three timeframes
// the engine consumes, already validated and enriched.
type AssetFrames struct {
	M15 *market.Series
	H1  *market.Series
	H4  *market.Series
}

func (f AssetFrames) validate(symbol string) error {
	for _, s := range []*market.Series{f.M15, f.H1, f.H4} {
		if s == nil {
			return fmt.Errorf("sim: %s missing a timeframe series", symbol)
		}
		if s.Symbol != symbol {
			return fmt.Errorf("sim: series symbol %s does not match asset %s", s.Symbol, symbol)
		}
		if err := s.Validate(); err != nil {
			return err
		}
	}
	if len(f.M15.Bars) == 0 {
		return fmt.Errorf("sim: %s has no bars on the driving timeframe", symbol)
	}
	return nil
}

// Result summarizes a completed run. The detailed streams live in the
// journal the engine was given.
type Result struct {
	RunID string

	Start time.Time
	End   time.Time

	BarsProcessed int
	FinalEquity   float64
	PeakEquity    float64
	Halted        bool
}
