package sim

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"perpsim/internal/id"
	"perpsim/journal"
	"perpsim/market"
	"perpsim/position"
	"perpsim/regime"
	"perpsim/risk"
	"perpsim/strategies"
)

// asset is one symbol's cursor state during the replay.
type asset struct {
	symbol string

	c15 *market.Cursor
	c1h *market.Cursor
	c4h *market.Cursor

	bar15 market.Bar
	bar1h market.Bar
	has15 bool
	has1h bool
}

// Engine replays history bar by bar. One instance per run; the regime
// engine, gatekeeper and ledger are owned exclusively by it, so the
// whole run is single-threaded with no locking.
type Engine struct {
	log zerolog.Logger
	cfg Config

	runID  string
	gate   *risk.Gatekeeper
	regime *regime.Engine
	ledger *position.Ledger
	jnl    journal.Journal
	ids    *id.Generator

	clock  *market.Series // reference 15m frame, drives the timeline
	assets []*asset       // declared order
	bySym  map[string]*asset
	ref    *asset

	cash       float64
	lastH4Open time.Time // open time of the 4h bar last fed to the regime engine
	bars       int
}

// New wires an engine from validated inputs. The journal receives the
// three output streams in bar order; pass journal.Multi to fan out.
func New(cfg Config, frames map[string]AssetFrames, jnl journal.Journal, log zerolog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		log:    log.With().Str("component", "sim").Logger(),
		cfg:    cfg,
		runID:  id.New(),
		gate:   risk.NewGatekeeper(cfg.Limits, cfg.InitialCapital, log),
		regime: regime.NewEngine(log),
		ledger: position.NewLedger(cfg.Symbols, log),
		jnl:    jnl,
		ids:    id.NewGenerator(cfg.Seed),
		bySym:  make(map[string]*asset, len(cfg.Symbols)),
		cash:   cfg.InitialCapital,
	}

	for _, sym := range cfg.Symbols {
		f, ok := frames[sym]
		if !ok {
			return nil, fmt.Errorf("sim: no data frames for symbol %s", sym)
		}
		if err := f.validate(sym); err != nil {
			return nil, err
		}
		a := &asset{
			symbol: sym,
			c15:    f.M15.Slice(cfg.Start, cfg.End).NewCursor(),
			c1h:    f.H1.NewCursor(),
			c4h:    f.H4.NewCursor(),
		}
		e.assets = append(e.assets, a)
		e.bySym[sym] = a
		if sym == cfg.ReferenceSymbol {
			e.ref = a
			e.clock = f.M15.Slice(cfg.Start, cfg.End)
		}
	}
	if len(e.clock.Bars) == 0 {
		return nil, fmt.Errorf("sim: reference symbol %s has no bars in the configured window", cfg.ReferenceSymbol)
	}
	return e, nil
}

// RunID identifies this run in the journal.
func (e *Engine) RunID() string { return e.runID }

// SetJournal replaces the output sink. Callers that need the run ID to
// open a journal (SQLite keys rows by it) construct the engine with a
// nil journal and attach the real one before Run.
func (e *Engine) SetJournal(j journal.Journal) { e.jnl = j }

// Run replays the configured window to completion. The context is only
// consulted between bars; a canceled run returns the error with no
// partial snapshot for the interrupted bar.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	if e.jnl == nil {
		return Result{}, fmt.Errorf("sim: no journal attached")
	}
	start := e.clock.Bars[0].Time
	e.log.Info().
		Str("run_id", e.runID).
		Strs("symbols", e.cfg.Symbols).
		Time("start", start).
		Float64("capital", e.cfg.InitialCapital).
		Msg("simulation starting")

	var now time.Time
	for _, b := range e.clock.Bars {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		now = b.CloseTime(market.TF15m)
		if err := e.step(now); err != nil {
			return Result{}, fmt.Errorf("sim: bar %s: %w", now.Format(time.RFC3339), err)
		}
		e.bars++
	}

	if err := e.closeRemaining(now); err != nil {
		return Result{}, err
	}
	if err := e.snapshot(now); err != nil {
		return Result{}, err
	}

	res := Result{
		RunID:         e.runID,
		Start:         start,
		End:           now,
		BarsProcessed: e.bars,
		FinalEquity:   e.equity(),
		PeakEquity:    e.gate.PeakEquity(),
		Halted:        e.gate.Halted(),
	}
	e.log.Info().
		Int("bars", res.BarsProcessed).
		Float64("final_equity", res.FinalEquity).
		Bool("halted", res.Halted).
		Msg("simulation finished")
	return res, nil
}

// step executes the fixed per-bar sequence: advance cursors, regime
// re-evaluation, forced close on an opposite-trend flip, funding
// settlement, risk-day rollover, liquidations, exits, entries, then the
// equity snapshot.
func (e *Engine) step(now time.Time) error {
	for _, a := range e.assets {
		a.bar15, a.has15 = a.c15.Advance(now)
		a.bar1h, a.has1h = a.c1h.Advance(now)
		a.c4h.Advance(now)
	}

	if b4, ok := e.ref.c4h.Current(); ok && !b4.Time.Equal(e.lastH4Open) {
		e.lastH4Open = b4.Time
		tr := e.regime.Update(b4.Ind, now)
		if tr.ImmediateClose {
			if err := e.closeAll(position.ExitRegimeClose, "regime transition", now); err != nil {
				return err
			}
		}
	}

	if market.IsFundingBoundary(now) {
		if err := e.settleFunding(now); err != nil {
			return err
		}
	}

	e.gate.UpdateEquity(e.equity(), now)

	if err := e.checkLiquidations(now); err != nil {
		return err
	}
	if err := e.checkExits(now); err != nil {
		return err
	}
	e.checkEntries(now)

	return e.snapshot(now)
}

// settleFunding applies one scheduled settlement to every open
// position, cash-settled immediately at the position's current mark.
func (e *Engine) settleFunding(now time.Time) error {
	for _, p := range e.ledger.Active() {
		a := e.bySym[p.Symbol]
		if !a.has15 {
			continue
		}
		rate := a.bar15.Ind.FundingRate
		if math.IsNaN(rate) || rate == 0 {
			continue
		}

		notional := p.Notional(a.bar15.Close)
		payment := rate * notional
		if p.Direction == market.Short {
			payment = -payment
		}
		e.cash -= payment
		p.FundingPaid += payment

		if err := e.jnl.RecordFunding(journal.FundingEvent{
			Time:     now,
			Symbol:   p.Symbol,
			Rate:     rate,
			Notional: notional,
			PnL:      -payment,
		}); err != nil {
			return fmt.Errorf("record funding for %s: %w", p.Symbol, err)
		}
		e.log.Debug().
			Str("symbol", p.Symbol).
			Float64("rate", rate).
			Float64("payment", payment).
			Msg("funding settled")
	}
	return nil
}

// checkLiquidations force-closes any position whose bar range touched
// its isolated-margin liquidation price. The entire margin is lost;
// this runs before ordinary exit logic.
func (e *Engine) checkLiquidations(now time.Time) error {
	for _, p := range e.ledger.Active() {
		a := e.bySym[p.Symbol]
		if !a.has15 {
			continue
		}
		liq := p.LiquidationPrice(e.cfg.MaintMarginRate)
		hit := (p.Direction == market.Long && a.bar15.Low <= liq) ||
			(p.Direction == market.Short && a.bar15.High >= liq)
		if !hit {
			continue
		}
		e.log.Warn().
			Str("symbol", p.Symbol).
			Float64("liquidation_price", liq).
			Float64("margin_lost", p.Margin).
			Msg("position liquidated")
		if err := e.closePosition(p, position.ExitSignal{
			Kind:   position.ExitLiquidation,
			Pct:    1,
			Price:  liq,
			Reason: "liquidation",
		}, now); err != nil {
			return err
		}
	}
	return nil
}

// checkExits runs the ledger's per-bar exit priority for each position
// that survived liquidation.
func (e *Engine) checkExits(now time.Time) error {
	for _, p := range e.ledger.Active() {
		a := e.bySym[p.Symbol]
		if !a.has15 {
			continue
		}
		sig := e.ledger.CheckExit(p, a.bar15, now)
		if sig.Kind == position.ExitNone {
			continue
		}
		if err := e.closePosition(p, sig, now); err != nil {
			return err
		}
	}
	return nil
}

// checkEntries evaluates entry and pyramid signals for every asset in
// declared order. The gatekeeper halt skips this step entirely while
// exits elsewhere keep running.
func (e *Engine) checkEntries(now time.Time) {
	if e.gate.Halted() {
		return
	}

	canEnter, blocked := e.regime.CanEnter(now)
	refPos := e.ledger.Get(e.cfg.ReferenceSymbol)
	refLong := refPos != nil && refPos.Direction == market.Long

	for _, a := range e.assets {
		// Both timeframes must have a closed bar before signals run.
		if !a.has15 || !a.has1h {
			continue
		}
		p := e.ledger.Get(a.symbol)
		if p == nil && e.ledger.InCooldown(a.symbol, now) {
			continue
		}
		if !canEnter {
			e.log.Trace().Str("symbol", a.symbol).Str("reason", blocked).Msg("entries blocked")
			continue
		}

		advice := strategies.Evaluate(strategies.Context{
			Symbol:      a.symbol,
			Regime:      e.regime.Current(),
			Bar1H:       a.bar1h,
			Bar15m:      a.bar15,
			Position:    p,
			Reference:   a.symbol == e.cfg.ReferenceSymbol,
			RefHasLong:  refLong,
			Correlation: a.bar1h.Ind.Correlation,
			FundingRate: a.bar15.Ind.FundingRate,
		})

		switch {
		case advice.Signal.Entry() && p == nil:
			if e.tryOpen(a, advice, now) && a.symbol == e.cfg.ReferenceSymbol {
				rp := e.ledger.Get(a.symbol)
				refLong = rp != nil && rp.Direction == market.Long
			}
		case advice.Signal.Pyramid() && p != nil:
			e.tryPyramid(a, p, advice, now)
		}
	}
}

// tryOpen runs a signalled entry through admission, sizing, the
// liquidation-buffer check and the cash check, then opens the position.
// Any rejection drops the signal for this bar only.
func (e *Engine) tryOpen(a *asset, advice strategies.Advice, now time.Time) bool {
	dir := advice.Signal.Direction()
	dec := e.gate.ValidateEntry(risk.EntryRequest{
		Symbol:        a.symbol,
		Direction:     dir,
		OpenPositions: e.ledger.OpenCount(),
		MarginInUse:   e.ledger.MarginInUse(),
		ATRPercentile: a.bar1h.Ind.ATRPctRank,
		Correlation:   a.bar1h.Ind.Correlation,
		FundingRate:   a.bar15.Ind.FundingRate,
	})
	if !dec.Allow {
		e.log.Debug().Str("symbol", a.symbol).Str("reason", dec.Reason).Msg("entry rejected")
		return false
	}

	atr := a.bar1h.Ind.ATR14
	if math.IsNaN(atr) || atr <= 0 {
		return false
	}

	fill := e.slip(a.bar15.Close, dir)
	sz := e.gate.PositionSize(fill, atr, advice.Confidence, dec.SizeMult)
	if sz.Coins <= 0 {
		return false
	}

	liq := liquidationAt(fill, dir, sz, e.cfg.MaintMarginRate)
	if ok, buffer := e.gate.CheckLiquidationBuffer(fill, liq, atr); !ok {
		e.log.Debug().
			Str("symbol", a.symbol).
			Float64("buffer_atr", buffer).
			Msg("entry rejected, liquidation too close")
		return false
	}

	fee := sz.Notional * e.cfg.TakerFeeRate
	if sz.Margin+fee > e.cash {
		e.log.Debug().
			Str("symbol", a.symbol).
			Float64("required", sz.Margin+fee).
			Float64("cash", e.cash).
			Msg("entry rejected, insufficient cash")
		return false
	}

	stop := e.gate.StopPrice(fill, dir, atr)
	p := position.New(e.ids.At(now), a.symbol, dir, fill, sz.Coins, stop, atr,
		sz.Margin, e.cfg.Limits.Leverage, e.regime.Current(), advice.Reason, now)
	p.FeesPaid = fee
	e.cash -= sz.Margin + fee
	e.ledger.Open(p)
	return true
}

// tryPyramid adds the second fill at half the original size, subject to
// the same admission pipeline as a fresh entry.
func (e *Engine) tryPyramid(a *asset, p *position.Position, advice strategies.Advice, now time.Time) {
	dec := e.gate.ValidateEntry(risk.EntryRequest{
		Symbol:        a.symbol,
		Direction:     p.Direction,
		OpenPositions: e.ledger.OpenCount() - 1, // adding, not opening
		MarginInUse:   e.ledger.MarginInUse(),
		ATRPercentile: a.bar1h.Ind.ATRPctRank,
		Correlation:   a.bar1h.Ind.Correlation,
		FundingRate:   a.bar15.Ind.FundingRate,
	})
	if !dec.Allow {
		e.log.Debug().Str("symbol", a.symbol).Str("reason", dec.Reason).Msg("pyramid rejected")
		return
	}

	atr := a.bar1h.Ind.ATR14
	if math.IsNaN(atr) || atr <= 0 {
		return
	}

	add := p.Fills[0].Size * 0.5
	fill := e.slip(a.bar15.Close, p.Direction)
	notional := add * fill
	margin := notional / p.Leverage
	fee := notional * e.cfg.TakerFeeRate
	if margin+fee > e.cash {
		return
	}

	p.AddPyramid(fill, add, atr, margin)
	p.FeesPaid += fee
	e.cash -= margin + fee
	e.log.Info().
		Str("symbol", a.symbol).
		Float64("add_size", add).
		Float64("avg_price", p.AvgPrice).
		Float64("new_stop", p.StopLoss).
		Msg("pyramid added")
}

// closePosition applies one exit signal: it books the close in the
// ledger, settles cash, writes a trade record and, on a full close,
// feeds the gatekeeper's win/loss counter. A liquidation forfeits the
// whole margin instead of returning the residual.
func (e *Engine) closePosition(p *position.Position, sig position.ExitSignal, now time.Time) error {
	entry := p.AvgPrice
	entryTime := p.EntryTime
	initialR := p.InitialR
	dir := p.Direction
	reg := p.EntryRegime
	strat := p.Strategy
	pyramided := p.PyramidCount > 0

	res, ok := e.ledger.Close(p.Symbol, sig.Pct, sig.Price, now)
	if !ok {
		return nil
	}

	liquidated := sig.Kind == position.ExitLiquidation
	exitFee := res.ClosedSize * sig.Price * e.cfg.TakerFeeRate

	var raw float64
	if liquidated {
		// Isolated margin: the exchange keeps everything posted.
		raw = -res.ReleasedMargin
	} else {
		raw = res.RawPnL
		e.cash += res.ReleasedMargin + res.RawPnL - exitFee
	}

	fees := res.EntryFeeShare + exitFee
	if liquidated {
		fees = res.EntryFeeShare
	}
	net := raw - fees - res.FundingShare

	rMult := 0.0
	if initialR > 0 {
		diff := sig.Price - entry
		if dir == market.Short {
			diff = -diff
		}
		rMult = diff / initialR
	}

	rec := journal.TradeRecord{
		TradeID:      e.ids.At(now),
		RunID:        e.runID,
		Symbol:       p.Symbol,
		Direction:    dir.String(),
		EntryTime:    entryTime,
		ExitTime:     now,
		EntryPrice:   entry,
		ExitPrice:    sig.Price,
		Size:         res.ClosedSize,
		Notional:     res.ClosedSize * entry,
		Margin:       res.ReleasedMargin,
		Regime:       reg.String(),
		Strategy:     strat,
		Reason:       sig.Kind.String(),
		RawPnL:       raw,
		Fees:         fees,
		Funding:      res.FundingShare,
		NetPnL:       net,
		RMultiple:    rMult,
		HoldingHours: now.Sub(entryTime).Hours(),
		Pyramided:    pyramided,
		Liquidated:   liquidated,
	}
	if err := e.jnl.RecordTrade(rec); err != nil {
		return fmt.Errorf("record trade for %s: %w", p.Symbol, err)
	}

	if res.Full {
		e.gate.RecordTradeResult(raw > 0)
	}
	return nil
}

// closeAll force-closes every open position at its current mark.
func (e *Engine) closeAll(kind position.ExitKind, reason string, now time.Time) error {
	for _, p := range e.ledger.Active() {
		a := e.bySym[p.Symbol]
		price := a.bar15.Close
		if !a.has15 {
			price = p.AvgPrice
		}
		if err := e.closePosition(p, position.ExitSignal{
			Kind: kind, Pct: 1, Price: price, Reason: reason,
		}, now); err != nil {
			return err
		}
	}
	return nil
}

// closeRemaining flattens the book at the last processed bar.
func (e *Engine) closeRemaining(now time.Time) error {
	if e.ledger.OpenCount() == 0 {
		return nil
	}
	e.log.Info().Int("open", e.ledger.OpenCount()).Msg("end of data, closing remaining positions")
	return e.closeAll(position.ExitEndOfData, "end of data", now)
}

// equity marks the account to the latest closes: cash plus posted
// margin plus unrealized P&L.
func (e *Engine) equity() float64 {
	eq := e.cash + e.ledger.MarginInUse()
	for _, p := range e.ledger.Active() {
		a := e.bySym[p.Symbol]
		if a.has15 {
			eq += p.UnrealizedPnL(a.bar15.Close)
		}
	}
	return eq
}

// snapshot appends one mark-to-market point to the equity curve.
func (e *Engine) snapshot(now time.Time) error {
	var unrealized float64
	prices := make(map[string]float64, len(e.assets))
	for _, a := range e.assets {
		if !a.has15 {
			continue
		}
		prices[a.symbol] = a.bar15.Close
		if p := e.ledger.Get(a.symbol); p != nil {
			unrealized += p.UnrealizedPnL(a.bar15.Close)
		}
	}

	margin := e.ledger.MarginInUse()
	equity := e.cash + margin + unrealized
	ratio := 0.0
	if equity > 0 {
		ratio = margin / equity
	}

	return e.jnl.RecordEquity(journal.EquitySnapshot{
		Time:          now,
		Equity:        equity,
		Cash:          e.cash,
		UnrealizedPnL: unrealized,
		MarginUsed:    margin,
		MarginRatio:   ratio,
		OpenPositions: e.ledger.OpenCount(),
		RefPrices:     prices,
	})
}

// slip shifts a fill adversely: buys fill above the mark, sells below.
func (e *Engine) slip(price float64, dir market.Direction) float64 {
	if dir == market.Long {
		return price * (1 + e.cfg.SlippageRate)
	}
	return price * (1 - e.cfg.SlippageRate)
}

// liquidationAt computes the liquidation level for a prospective entry
// before any position object exists.
func liquidationAt(fill float64, dir market.Direction, sz risk.Sizing, mmr float64) float64 {
	if sz.Coins <= 0 {
		return 0
	}
	maxLoss := sz.Margin - sz.Notional*mmr
	if dir == market.Long {
		return fill - maxLoss/sz.Coins
	}
	return fill + maxLoss/sz.Coins
}
