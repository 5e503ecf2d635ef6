// Package indicators computes the precomputed indicator columns the
// simulation engine expects on its input bars: EMA set, RSI, ADX/DI,
// ATR and its percentile rank, Bollinger/Keltner bands with width rank,
// Donchian channel, volume SMA and cross-asset correlation.
package indicators

import (
	"fmt"

	"perpsim/market"
)

const (
	rankWindow = 50
	corrWindow = 48
	keltnerATR = 1.5
)

// Enrich fills the single-asset indicator columns of every bar in the
// series, in place. Columns stay NaN until their indicator warms up.
func Enrich(s *market.Series) {
	ema9 := NewEMA(9)
	ema20 := NewEMA(20)
	ema50 := NewEMA(50)
	ema200 := NewEMA(200)
	rsi := NewRSI(14)
	adx := NewADX(14)
	atr := NewATR(14)
	atrRank := NewPercentileRank(rankWindow)
	boll := NewBollinger(20)
	widthRank := NewPercentileRank(rankWindow)
	donchian := NewDonchian(20)
	volSMA := NewSMA(20)

	for i := range s.Bars {
		b := &s.Bars[i]

		if v, ok := ema9.Update(b.Close); ok {
			b.Ind.EMA9 = v
		}
		if v, ok := ema20.Update(b.Close); ok {
			b.Ind.EMA20 = v
		}
		if v, ok := ema50.Update(b.Close); ok {
			b.Ind.EMA50 = v
		}
		if v, ok := ema200.Update(b.Close); ok {
			b.Ind.EMA200 = v
		}
		if v, ok := rsi.Update(b.Close); ok {
			b.Ind.RSI14 = v
		}
		if v, ok := adx.Update(*b); ok {
			b.Ind.ADX14 = v
			b.Ind.PlusDI14 = adx.PlusDI()
			b.Ind.MinusDI14 = adx.MinusDI()
		}

		atrVal, atrOK := atr.Update(*b)
		if atrOK {
			b.Ind.ATR14 = atrVal
			if v, ok := atrRank.Update(atrVal); ok {
				b.Ind.ATRPctRank = v
			}
		}

		if bands, ok := boll.Update(b.Close); ok {
			b.Ind.BBUpper = bands.Upper
			b.Ind.BBMid = bands.Mid
			b.Ind.BBLower = bands.Lower
			b.Ind.BBUpper25 = bands.Upper25
			b.Ind.BBLower25 = bands.Lower25
			if v, ok := widthRank.Update(bands.Width); ok {
				b.Ind.BBWidthPctRank = v
			}
		}

		if atrOK && ema20.Ready() {
			b.Ind.KCUpper, b.Ind.KCLower = Keltner(ema20.Value(), atrVal, keltnerATR)
		}

		if upper, lower, ok := donchian.Update(b.High, b.Low); ok {
			b.Ind.DonchianUpper = upper
			b.Ind.DonchianLower = lower
		}
		if v, ok := volSMA.Update(b.Volume); ok {
			b.Ind.VolSMA20 = v
		}
	}
}

// EnrichCorrelation fills the Correlation column on both series from
// the rolling close correlation of the two assets. Bars are matched by
// open time; unmatched bars keep NaN.
func EnrichCorrelation(ref, other *market.Series) error {
	if ref.Timeframe != other.Timeframe {
		return fmt.Errorf("correlation: timeframe mismatch %s vs %s", ref.Timeframe, other.Timeframe)
	}

	rc := NewRollingCorrelation(corrWindow)
	i, j := 0, 0
	for i < len(ref.Bars) && j < len(other.Bars) {
		a, b := &ref.Bars[i], &other.Bars[j]
		switch {
		case a.Time.Before(b.Time):
			i++
		case b.Time.Before(a.Time):
			j++
		default:
			if v, ok := rc.Update(a.Close, b.Close); ok {
				a.Ind.Correlation = v
				b.Ind.Correlation = v
			}
			i++
			j++
		}
	}
	return nil
}

// AttachFunding stamps each bar with the funding rate in effect at its
// close.
func AttachFunding(s *market.Series, ft *market.FundingTable) {
	for i := range s.Bars {
		b := &s.Bars[i]
		b.Ind.FundingRate = ft.RateAt(b.CloseTime(s.Timeframe))
	}
}
