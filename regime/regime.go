// Package regime classifies the market into one of five states from a
// higher-timeframe bar's indicators and tracks transitions between
// them, including the post-transition entry cooldown.
package regime

import (
	"math"

	"perpsim/market"
)

// Regime is the market state derived from the reference asset's 4h
// bars. It is global to the simulation, not per symbol.
type Regime uint8

const (
	Undefined Regime = iota
	TrendingBull
	TrendingBear
	ChopHighVol
	SqueezeLowVol
)

func (r Regime) String() string {
	switch r {
	case TrendingBull:
		return "TRENDING_BULL"
	case TrendingBear:
		return "TRENDING_BEAR"
	case ChopHighVol:
		return "CHOP_HIGH_VOL"
	case SqueezeLowVol:
		return "SQUEEZE_LOW_VOL"
	default:
		return "UNDEFINED"
	}
}

// Trending reports whether the regime is a directional trend state.
func (r Regime) Trending() bool {
	return r == TrendingBull || r == TrendingBear
}

// Tradeable reports whether new entries are conceptually possible in
// this regime (everything except Undefined).
func (r Regime) Tradeable() bool { return r != Undefined }

// Classification thresholds.
const (
	adxTrend = 25 // above: trending
	adxChop  = 20 // below: ranging; 20-25 is the no-man's-land band

	atrRankHigh = 70 // chop needs volatility above this rank
	atrRankLow  = 30 // squeeze needs volatility below this rank
	bbWidthLow  = 20 // squeeze needs band width below this rank
)

// Classify maps one higher-timeframe bar's indicators to a Regime.
// Pure and total: any NaN among the required inputs yields Undefined,
// as does the ADX 20-25 band or a mixed EMA ordering.
func Classify(in market.Indicators) Regime {
	required := []float64{
		in.EMA20, in.EMA50, in.EMA200,
		in.ADX14, in.PlusDI14, in.MinusDI14,
		in.ATRPctRank, in.BBWidthPctRank,
	}
	for _, v := range required {
		if math.IsNaN(v) {
			return Undefined
		}
	}

	switch {
	case in.EMA20 > in.EMA50 && in.EMA50 > in.EMA200 &&
		in.ADX14 > adxTrend && in.PlusDI14 > in.MinusDI14:
		return TrendingBull

	case in.EMA20 < in.EMA50 && in.EMA50 < in.EMA200 &&
		in.ADX14 > adxTrend && in.MinusDI14 > in.PlusDI14:
		return TrendingBear

	case in.ADX14 < adxChop && in.ATRPctRank > atrRankHigh:
		return ChopHighVol

	case in.ADX14 < adxChop && in.ATRPctRank < atrRankLow && in.BBWidthPctRank < bbWidthLow:
		return SqueezeLowVol

	default:
		return Undefined
	}
}
