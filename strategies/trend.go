package strategies

import (
	"math"

	"perpsim/market"
)

// Trending-regime rule sets, evaluated on the 1h bar with 15m entry
// confirmation. Three paths per direction: momentum continuation,
// pullback entry, breakout continuation.

func trendingBull(ctx Context) (Signal, string) {
	if p := ctx.Position; p != nil && p.Direction == market.Long {
		return Hold, "already long"
	}

	// Non-reference assets only ride the trend the reference asset is
	// already committed to.
	if !ctx.Reference && !ctx.RefHasLong {
		return Hold, "waiting for reference asset long"
	}

	h1, m15 := ctx.Bar1H, ctx.Bar15m

	if momentumContinuation(h1, market.Long) {
		if ema9Pullback(m15) {
			return EntryLong, "bull momentum pullback to EMA9"
		}
		if volumeSurge(m15, 2.0) {
			return EntryLong, "bull momentum volume surge"
		}
	}

	if pullbackConditions(h1) {
		if m15.Bullish() || rsiRebound(m15, market.Long) {
			return EntryLong, "bull pullback entry"
		}
	}

	if donchianBreakout(h1, market.Long) {
		return EntryLong, "bull breakout continuation"
	}

	return Hold, ""
}

func trendingBear(ctx Context) (Signal, string) {
	if p := ctx.Position; p != nil && p.Direction == market.Short {
		return Hold, "already short"
	}

	h1, m15 := ctx.Bar1H, ctx.Bar15m

	if momentumContinuation(h1, market.Short) {
		if ema9Pullback(m15) {
			return EntryShort, "bear momentum pullback to EMA9"
		}
		if volumeSurge(m15, 2.0) {
			return EntryShort, "bear momentum volume surge"
		}
	}

	if rallyShortConditions(h1) {
		if m15.Bearish() || rsiRebound(m15, market.Short) {
			return EntryShort, "bear rally short"
		}
	}

	if donchianBreakout(h1, market.Short) {
		return EntryShort, "bear breakdown"
	}

	return Hold, ""
}

// momentumContinuation: RSI in the trend half without being exhausted,
// close beyond EMA20, volume 1.3x its average.
func momentumContinuation(b market.Bar, dir market.Direction) bool {
	if math.IsNaN(b.Ind.RSI14) || math.IsNaN(b.Ind.EMA20) || math.IsNaN(b.Ind.VolSMA20) {
		return false
	}
	volOK := b.Volume > b.Ind.VolSMA20*1.3
	if dir == market.Long {
		return b.Ind.RSI14 > 50 && b.Ind.RSI14 < 80 && b.Close > b.Ind.EMA20 && volOK
	}
	return b.Ind.RSI14 > 20 && b.Ind.RSI14 < 50 && b.Close < b.Ind.EMA20 && volOK
}

// pullbackConditions: RSI cooled to 40-50, price near EMA50 or the BB
// mid band, trend strength intact.
func pullbackConditions(b market.Bar) bool {
	if math.IsNaN(b.Ind.RSI14) || math.IsNaN(b.Ind.ADX14) {
		return false
	}
	if b.Ind.RSI14 < 40 || b.Ind.RSI14 > 50 || b.Ind.ADX14 <= 25 {
		return false
	}
	return nearLevel(b.Close, b.Ind.EMA50) || nearLevel(b.Close, b.Ind.BBMid)
}

// rallyShortConditions: the bear mirror, RSI recovered to 50-60 at
// EMA50 resistance.
func rallyShortConditions(b market.Bar) bool {
	if math.IsNaN(b.Ind.RSI14) || math.IsNaN(b.Ind.ADX14) {
		return false
	}
	return b.Ind.RSI14 >= 50 && b.Ind.RSI14 <= 60 && b.Ind.ADX14 > 25 &&
		nearLevel(b.Close, b.Ind.EMA50)
}

// donchianBreakout: close beyond the 20-bar channel on 2x volume.
func donchianBreakout(b market.Bar, dir market.Direction) bool {
	if math.IsNaN(b.Ind.VolSMA20) {
		return false
	}
	if b.Volume <= b.Ind.VolSMA20*2.0 {
		return false
	}
	if dir == market.Long {
		return !math.IsNaN(b.Ind.DonchianUpper) && b.Close > b.Ind.DonchianUpper
	}
	return !math.IsNaN(b.Ind.DonchianLower) && b.Close < b.Ind.DonchianLower
}

// nearLevel: within 0.5% of the level.
func nearLevel(price, level float64) bool {
	if math.IsNaN(level) || level == 0 {
		return false
	}
	return math.Abs(price-level)/level < 0.005
}

// ema9Pullback: the 15m bar's range touched EMA9.
func ema9Pullback(b market.Bar) bool {
	ema9 := b.Ind.EMA9
	if math.IsNaN(ema9) {
		return false
	}
	return b.Low <= ema9 && ema9 <= b.High
}

func volumeSurge(b market.Bar, mult float64) bool {
	if math.IsNaN(b.Ind.VolSMA20) {
		return false
	}
	return b.Volume > b.Ind.VolSMA20*mult
}

// rsiRebound: oversold (long) or overbought (short) on the entry
// timeframe.
func rsiRebound(b market.Bar, dir market.Direction) bool {
	if math.IsNaN(b.Ind.RSI14) {
		return false
	}
	if dir == market.Long {
		return b.Ind.RSI14 < 30
	}
	return b.Ind.RSI14 > 70
}
