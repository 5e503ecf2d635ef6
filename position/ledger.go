package position

import (
	"time"

	"github.com/rs/zerolog"

	"perpsim/market"
	"perpsim/regime"
)

// Post-close entry cooldowns per symbol.
const (
	CooldownProfit = 15 * time.Minute
	CooldownLoss   = 30 * time.Minute
)

// Time-stop ceilings by entry regime, applied when the position has
// not yet reached 1R of profit.
const (
	timeStopTrending = 24 * time.Hour
	timeStopChop     = 12 * time.Hour
	timeStopSqueeze  = 6 * time.Hour
)

// Standard partial take-profit schedule.
const (
	tp2RLevel = 2.0
	tp2RPct   = 0.4
	tp3RLevel = 3.0
	tp3RPct   = 0.3
)

// Mean-reversion schedule (positions entered during high-vol chop).
const (
	tpMR1Level = 1.0
	tpMR1Pct   = 0.6
	tpMR2Level = 2.0
)

// CloseResult summarizes one close segment for the caller's accounting.
type CloseResult struct {
	ClosedSize    float64
	RawPnL        float64 // price P&L only, before fees/funding
	ReleasedMargin float64
	FundingShare  float64 // funding attributed to the closed fraction
	EntryFeeShare float64 // entry-side fees attributed to the closed fraction
	Full          bool
}

// Ledger owns every Position in the run, one per symbol at most,
// bounded by the declared asset universe.
type Ledger struct {
	log zerolog.Logger

	symbols   []string // declared iteration order
	positions map[string]*Position
	cooldowns map[string]time.Time
}

func NewLedger(symbols []string, log zerolog.Logger) *Ledger {
	return &Ledger{
		log:       log.With().Str("component", "ledger").Logger(),
		symbols:   symbols,
		positions: make(map[string]*Position, len(symbols)),
		cooldowns: make(map[string]time.Time, len(symbols)),
	}
}

// Get returns the symbol's open position, or nil.
func (l *Ledger) Get(symbol string) *Position { return l.positions[symbol] }

// Open installs a freshly created position. The caller has already
// cleared admission; opening over an existing position is a bug.
func (l *Ledger) Open(p *Position) {
	l.positions[p.Symbol] = p
	l.log.Info().
		Str("symbol", p.Symbol).
		Stringer("direction", p.Direction).
		Float64("entry", p.AvgPrice).
		Float64("size", p.Size).
		Float64("stop", p.StopLoss).
		Str("strategy", p.Strategy).
		Stringer("regime", p.EntryRegime).
		Msg("position opened")
}

// OpenCount is the number of live positions.
func (l *Ledger) OpenCount() int { return len(l.positions) }

// MarginInUse totals posted margin across open positions.
func (l *Ledger) MarginInUse() float64 {
	var total float64
	for _, p := range l.positions {
		total += p.Margin
	}
	return total
}

// Active returns open positions in the declared symbol order, keeping
// multi-asset processing deterministic.
func (l *Ledger) Active() []*Position {
	out := make([]*Position, 0, len(l.positions))
	for _, sym := range l.symbols {
		if p, ok := l.positions[sym]; ok {
			out = append(out, p)
		}
	}
	return out
}

// InCooldown reports whether the symbol's post-close cooldown is still
// running at now. Expired entries are dropped.
func (l *Ledger) InCooldown(symbol string, now time.Time) bool {
	until, ok := l.cooldowns[symbol]
	if !ok {
		return false
	}
	if now.Before(until) {
		return true
	}
	delete(l.cooldowns, symbol)
	return false
}

// CheckExit evaluates one bar's exit conditions in strict priority
// order: stop-loss, trailing stop, partial take-profits, time stop.
// The first condition met wins; at most one exit action per bar.
// Trailing activation/advance happens here as a side effect.
func (l *Ledger) CheckExit(p *Position, bar market.Bar, now time.Time) ExitSignal {
	price := bar.Close
	atr := bar.Ind.ATR14

	// 1. Initial stop-loss.
	if hitStop(p.Direction, p.StopLoss, bar) {
		return ExitSignal{Kind: ExitStopLoss, Pct: 1, Price: p.StopLoss, Reason: "initial stop loss"}
	}

	// 2. Trailing stop: activate at 1R, ratchet, then test.
	profitR := p.ProfitR(price)
	if profitR > 1.0 && !p.TrailingActive {
		p.ActivateTrailing()
		l.log.Debug().Str("symbol", p.Symbol).Float64("profit_r", profitR).Msg("trailing stop activated")
	}
	if p.TrailingActive {
		p.UpdateTrailing(bar.High, bar.Low, atr)
		if p.TrailingStop != 0 && hitStop(p.Direction, p.TrailingStop, bar) {
			return ExitSignal{Kind: ExitTrailingStop, Pct: 1, Price: p.TrailingStop, Reason: "trailing stop"}
		}
	}

	// 3. Partial take-profits. Mean-reversion entries use the tighter
	// 1R/2R ladder; everything else the standard 2R/3R ladder.
	if p.EntryRegime == regime.ChopHighVol {
		if profitR >= tpMR1Level && !p.TP2RDone {
			p.TP2RDone = true
			p.PartialTPDone = true
			return ExitSignal{Kind: ExitPartialTPMR1, Pct: tpMR1Pct, Price: price, Reason: "mean reversion target 1R"}
		}
		if profitR >= tpMR2Level && !p.TP3RDone {
			p.TP3RDone = true
			return ExitSignal{Kind: ExitPartialTPMR2, Pct: 1, Price: price, Reason: "mean reversion target 2R"}
		}
	} else {
		if profitR >= tp2RLevel && !p.TP2RDone {
			p.TP2RDone = true
			p.PartialTPDone = true // permanently blocks pyramiding
			return ExitSignal{Kind: ExitPartialTP2R, Pct: tp2RPct, Price: price, Reason: "partial take profit 2R"}
		}
		if profitR >= tp3RLevel && !p.TP3RDone {
			p.TP3RDone = true
			return ExitSignal{Kind: ExitPartialTP3R, Pct: tp3RPct, Price: price, Reason: "partial take profit 3R"}
		}
	}

	// 4. Time stop: stale positions under 1R get cut.
	if profitR < 1.0 && p.HoldingTime(now) >= timeStopLimit(p.EntryRegime) {
		return ExitSignal{Kind: ExitTimeStop, Pct: 1, Price: price, Reason: "time stop"}
	}

	return ExitSignal{Kind: ExitNone}
}

// Close removes pct of the position's remaining size at exitPrice and
// returns the accounting breakdown. A full close starts the symbol's
// entry cooldown: 15 minutes after a win, 30 after a loss.
func (l *Ledger) Close(symbol string, pct, exitPrice float64, now time.Time) (CloseResult, bool) {
	p, ok := l.positions[symbol]
	if !ok {
		l.log.Warn().Str("symbol", symbol).Msg("close requested for symbol with no open position")
		return CloseResult{}, false
	}

	if pct > 1 {
		pct = 1
	}
	closed := p.Size * pct

	diff := exitPrice - p.AvgPrice
	if p.Direction == market.Short {
		diff = -diff
	}
	res := CloseResult{
		ClosedSize:     closed,
		RawPnL:         diff * closed,
		ReleasedMargin: p.Margin * pct,
		FundingShare:   p.FundingPaid * pct,
		EntryFeeShare:  p.FeesPaid * pct,
		Full:           pct >= 1,
	}

	if res.Full {
		delete(l.positions, symbol)
		cooldown := CooldownProfit
		if res.RawPnL < 0 {
			cooldown = CooldownLoss
		}
		l.cooldowns[symbol] = now.Add(cooldown)
		l.log.Info().
			Str("symbol", symbol).
			Float64("exit", exitPrice).
			Float64("pnl", res.RawPnL).
			Time("cooldown_until", l.cooldowns[symbol]).
			Msg("position closed")
	} else {
		p.Size -= closed
		p.Margin -= res.ReleasedMargin
		p.FundingPaid -= res.FundingShare
		p.FeesPaid -= res.EntryFeeShare
		l.log.Debug().
			Str("symbol", symbol).
			Float64("closed", closed).
			Float64("remaining", p.Size).
			Msg("partial close")
	}

	return res, true
}

// hitStop tests a stop level against the bar's range, side-aware.
func hitStop(dir market.Direction, stop float64, bar market.Bar) bool {
	if stop == 0 {
		return false
	}
	if dir == market.Long {
		return bar.Low <= stop
	}
	return bar.High >= stop
}

func timeStopLimit(r regime.Regime) time.Duration {
	switch {
	case r.Trending():
		return timeStopTrending
	case r == regime.ChopHighVol:
		return timeStopChop
	default:
		return timeStopSqueeze
	}
}
