// Package position manages the per-symbol position lifecycle: opening,
// pyramiding, trailing stops, partial take-profits, time stops and the
// post-exit cooldown.
package position

import (
	"time"

	"perpsim/market"
	"perpsim/regime"
)

// Fill is one (price, size) entry into a position. Pyramiding appends a
// second fill; the average price is volume-weighted across fills.
type Fill struct {
	Price float64
	Size  float64
}

// Position is one symbol's open position. At most one exists per
// symbol; the Ledger owns it exclusively.
type Position struct {
	ID        string
	Symbol    string
	Direction market.Direction

	Fills      []Fill
	AvgPrice   float64
	Size       float64 // remaining coins
	OpenedSize float64 // total coins ever filled

	InitialR   float64 // stop width in price terms, the R unit
	StopLoss   float64
	ATRAtEntry float64

	TrailingStop   float64
	TrailingActive bool
	extreme        float64 // highest high (long) / lowest low (short) seen

	TP2RDone      bool
	TP3RDone      bool
	PartialTPDone bool

	PyramidCount int

	Margin   float64 // posted margin for the remaining size
	Leverage float64

	EntryRegime regime.Regime
	Strategy    string
	EntryTime   time.Time

	FundingPaid float64 // cumulative funding cost (+ = paid) not yet realized
	FeesPaid    float64 // entry-side fees not yet realized
}

// maxPyramids caps averaging-in to a single additional fill.
const maxPyramids = 1

// minStopDistancePct is the fallback stop distance when the computed
// stop lands on the wrong side of the entry (degenerate ATR input).
const minStopDistancePct = 0.001

// New opens a position with one fill and an ATR-based initial stop.
func New(id, symbol string, dir market.Direction, entryPrice, size, stop, atr, margin, leverage float64,
	entryRegime regime.Regime, strategy string, entryTime time.Time) *Position {

	p := &Position{
		ID:         id,
		Symbol:     symbol,
		Direction:  dir,
		Fills:      []Fill{{Price: entryPrice, Size: size}},
		AvgPrice:   entryPrice,
		Size:       size,
		OpenedSize: size,
		ATRAtEntry: atr,
		Margin:     margin,
		Leverage:   leverage,

		EntryRegime: entryRegime,
		Strategy:    strategy,
		EntryTime:   entryTime,

		extreme: entryPrice,
	}
	p.setStop(stop)
	p.InitialR = abs(entryPrice - p.StopLoss)
	return p
}

// setStop installs the stop, falling back to a minimal distance when
// the computed level sits on the wrong side of the average price.
func (p *Position) setStop(stop float64) {
	wrongSide := (p.Direction == market.Long && stop >= p.AvgPrice) ||
		(p.Direction == market.Short && stop <= p.AvgPrice)
	if wrongSide {
		if p.Direction == market.Long {
			stop = p.AvgPrice * (1 - minStopDistancePct)
		} else {
			stop = p.AvgPrice * (1 + minStopDistancePct)
		}
	}
	p.StopLoss = stop
}

// CanPyramid reports whether averaging-in is still permitted: under the
// pyramid cap and no partial take-profit consumed yet.
func (p *Position) CanPyramid() bool {
	return p.PyramidCount < maxPyramids && !p.PartialTPDone
}

// AddPyramid appends a fill, recomputes the volume-weighted average, a
// fresh stop at avg -/+ 1.5 x ATR, and a new R unit from that width.
func (p *Position) AddPyramid(price, size, atr, margin float64) {
	p.Fills = append(p.Fills, Fill{Price: price, Size: size})
	p.PyramidCount++
	p.Size += size
	p.OpenedSize += size
	p.Margin += margin

	var value, total float64
	for _, f := range p.Fills {
		value += f.Price * f.Size
		total += f.Size
	}
	p.AvgPrice = value / total

	width := 1.5 * atr
	if p.Direction == market.Long {
		p.setStop(p.AvgPrice - width)
	} else {
		p.setStop(p.AvgPrice + width)
	}
	p.InitialR = abs(p.AvgPrice - p.StopLoss)
}

// ProfitR is the unrealized profit measured in R units at price.
func (p *Position) ProfitR(price float64) float64 {
	if p.InitialR <= 0 {
		return 0
	}
	raw := price - p.AvgPrice
	if p.Direction == market.Short {
		raw = -raw
	}
	return raw / p.InitialR
}

// UnrealizedPnL marks the remaining size to price.
func (p *Position) UnrealizedPnL(price float64) float64 {
	diff := price - p.AvgPrice
	if p.Direction == market.Short {
		diff = -diff
	}
	return diff * p.Size
}

// Notional is the remaining size's value at price.
func (p *Position) Notional(price float64) float64 {
	return p.Size * price
}

// ActivateTrailing arms the trailing stop (profit exceeded 1R).
func (p *Position) ActivateTrailing() {
	p.TrailingActive = true
}

// UpdateTrailing advances the favorable extreme and ratchets the
// trailing stop 2 x ATR behind it. The stop only ever moves in the
// profit direction.
func (p *Position) UpdateTrailing(high, low, atr float64) {
	if !p.TrailingActive {
		return
	}
	trail := 2.0 * atr

	if p.Direction == market.Long {
		if high > p.extreme {
			p.extreme = high
		}
		stop := p.extreme - trail
		if p.TrailingStop == 0 || stop > p.TrailingStop {
			p.TrailingStop = stop
		}
	} else {
		if p.extreme == 0 || low < p.extreme {
			p.extreme = low
		}
		stop := p.extreme + trail
		if p.TrailingStop == 0 || stop < p.TrailingStop {
			p.TrailingStop = stop
		}
	}
}

// LiquidationPrice computes the isolated-margin liquidation level for
// the remaining size: max loss = margin - notional x MMR, liquidation
// at avg -/+ maxLoss / size.
func (p *Position) LiquidationPrice(mmr float64) float64 {
	if p.Size <= 0 {
		return 0
	}
	notional := p.AvgPrice * p.Size
	maxLoss := p.Margin - notional*mmr
	if p.Direction == market.Long {
		return p.AvgPrice - maxLoss/p.Size
	}
	return p.AvgPrice + maxLoss/p.Size
}

// HoldingTime is the elapsed time since entry.
func (p *Position) HoldingTime(now time.Time) time.Duration {
	return now.Sub(p.EntryTime)
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
