package strategies

import "math"

// chopMeanReversion fades 2.5-sigma Bollinger extremes during high
// volatility chop, confirmed by an RSI extreme on the 1h bar and a
// reversal candle on the 15m bar. One position at a time.
func chopMeanReversion(ctx Context) (Signal, string) {
	if ctx.Position != nil {
		return Hold, "existing position in chop"
	}

	h1, m15 := ctx.Bar1H, ctx.Bar15m
	if math.IsNaN(h1.Ind.RSI14) || math.IsNaN(h1.Ind.BBLower25) || math.IsNaN(h1.Ind.BBUpper25) {
		return Hold, ""
	}

	if h1.Close <= h1.Ind.BBLower25 && h1.Ind.RSI14 < 25 && m15.Bullish() {
		return EntryLong, "chop mean reversion long"
	}
	if h1.Close >= h1.Ind.BBUpper25 && h1.Ind.RSI14 > 75 && m15.Bearish() {
		return EntryShort, "chop mean reversion short"
	}

	return Hold, ""
}

// squeezeBreakout trades the volume-spike resolution of a low
// volatility squeeze: 3x average volume picks the moment, the candle
// body picks the side.
func squeezeBreakout(ctx Context) (Signal, string) {
	if ctx.Position != nil {
		return Hold, "existing position in squeeze"
	}

	h1 := ctx.Bar1H
	if math.IsNaN(h1.Ind.VolSMA20) {
		return Hold, ""
	}
	if h1.Volume <= h1.Ind.VolSMA20*3.0 {
		return Hold, ""
	}

	if h1.Bullish() {
		return EntryLong, "squeeze volume spike long"
	}
	if h1.Bearish() {
		return EntryShort, "squeeze volume spike short"
	}
	return Hold, ""
}
