// Package strategies generates entry and pyramid signals from the
// multi-timeframe bar context, dispatched on the current market regime.
// The signals are advisory: the risk gatekeeper still has to admit and
// size them.
package strategies

import (
	"fmt"

	"perpsim/market"
	"perpsim/position"
	"perpsim/regime"
)

// Signal is the closed set of strategy outputs.
type Signal uint8

const (
	Hold Signal = iota
	EntryLong
	EntryShort
	PyramidLong
	PyramidShort
)

func (s Signal) String() string {
	switch s {
	case EntryLong:
		return "ENTRY_LONG"
	case EntryShort:
		return "ENTRY_SHORT"
	case PyramidLong:
		return "PYRAMID_LONG"
	case PyramidShort:
		return "PYRAMID_SHORT"
	default:
		return "HOLD"
	}
}

// Entry reports whether the signal opens a new position.
func (s Signal) Entry() bool { return s == EntryLong || s == EntryShort }

// Pyramid reports whether the signal adds to an existing position.
func (s Signal) Pyramid() bool { return s == PyramidLong || s == PyramidShort }

// Direction maps entry/pyramid signals to a market direction.
func (s Signal) Direction() market.Direction {
	if s == EntryShort || s == PyramidShort {
		return market.Short
	}
	return market.Long
}

// Advice is one symbol's evaluated signal for one bar.
type Advice struct {
	Signal     Signal
	Reason     string
	Confidence float64
}

// Context carries everything a strategy may consult for one symbol on
// one lower-timeframe bar.
type Context struct {
	Symbol  string
	Regime  regime.Regime
	Bar1H   market.Bar
	Bar15m  market.Bar
	Position *position.Position // nil when flat

	// Cross-asset state: ETH longs require a live BTC long.
	Reference  bool // true for the reference asset itself
	RefHasLong bool

	Correlation float64 // NaN when unknown
	FundingRate float64 // NaN when unknown
}

// Evaluate dispatches to the regime-specific rule set and attaches the
// confidence multiplier. Pyramiding is considered first: it is only
// available in trending regimes while the position can still average in.
func Evaluate(ctx Context) Advice {
	if p := ctx.Position; p != nil && ctx.Regime.Trending() && p.CanPyramid() {
		if sig := checkPyramid(p, ctx.Bar15m.Close); sig != Hold {
			return Advice{
				Signal:     sig,
				Reason:     fmt.Sprintf("pyramid at %.2fR profit", p.ProfitR(ctx.Bar15m.Close)),
				Confidence: 1.0,
			}
		}
	}

	var sig Signal
	var reason string
	switch ctx.Regime {
	case regime.TrendingBull:
		sig, reason = trendingBull(ctx)
	case regime.TrendingBear:
		sig, reason = trendingBear(ctx)
	case regime.ChopHighVol:
		sig, reason = chopMeanReversion(ctx)
	case regime.SqueezeLowVol:
		sig, reason = squeezeBreakout(ctx)
	default:
		return Advice{Signal: Hold, Reason: "undefined regime", Confidence: 1.0}
	}

	if sig == Hold {
		return Advice{Signal: Hold, Reason: reason, Confidence: 1.0}
	}
	return Advice{
		Signal:     sig,
		Reason:     reason,
		Confidence: Confidence(sig.Direction(), ctx.Correlation, ctx.FundingRate),
	}
}

// pyramidProfitGate is the minimum open profit, in R, before a second
// fill is considered.
const pyramidProfitGate = 1.5

func checkPyramid(p *position.Position, price float64) Signal {
	if p.ProfitR(price) < pyramidProfitGate {
		return Hold
	}
	if p.Direction == market.Long {
		return PyramidLong
	}
	return PyramidShort
}
