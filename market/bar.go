package market

import (
	"math"
	"time"
)

// Direction of a position or signal: +1 long, -1 short.
type Direction int8

const (
	Long  Direction = +1
	Short Direction = -1
)

func (d Direction) String() string {
	if d == Short {
		return "SHORT"
	}
	return "LONG"
}

// Opposite returns the reversed direction.
func (d Direction) Opposite() Direction { return -d }

// Timeframe is a bar duration in seconds.
type Timeframe int32

const (
	TF15m Timeframe = 900
	TF1h  Timeframe = 3600
	TF4h  Timeframe = 14400
)

func (tf Timeframe) Duration() time.Duration {
	return time.Duration(tf) * time.Second
}

func (tf Timeframe) String() string {
	switch tf {
	case TF15m:
		return "15m"
	case TF1h:
		return "1h"
	case TF4h:
		return "4h"
	}
	d := tf.Duration()
	return d.String()
}

// ParseTimeframe maps common interval names to a Timeframe.
func ParseTimeframe(s string) (Timeframe, bool) {
	switch s {
	case "15m":
		return TF15m, true
	case "1h":
		return TF1h, true
	case "4h":
		return TF4h, true
	}
	return 0, false
}

// Indicators holds the precomputed indicator columns attached to a bar.
// Fields default to NaN until the enrichment pass fills them; consumers
// must treat NaN as "not yet warm".
type Indicators struct {
	EMA9   float64
	EMA20  float64
	EMA50  float64
	EMA200 float64

	RSI14 float64

	ADX14     float64
	PlusDI14  float64
	MinusDI14 float64

	ATR14      float64
	ATRPctRank float64 // percentile rank of ATR14 over the last 50 bars, 0-100

	BBUpper   float64 // Bollinger(20, 2.0)
	BBMid     float64
	BBLower   float64
	BBUpper25 float64 // Bollinger(20, 2.5), mean-reversion bands
	BBLower25 float64

	BBWidthPctRank float64 // percentile rank of (upper-lower)/mid over 50 bars

	KCUpper float64 // Keltner(20, 1.5 ATR) around EMA20
	KCLower float64

	DonchianUpper float64 // Donchian(20)
	DonchianLower float64

	VolSMA20 float64

	Correlation float64 // rolling 48-bar close correlation vs the reference asset
	FundingRate float64 // funding rate in effect at this bar
}

// EmptyIndicators returns an Indicators value with every field NaN.
func EmptyIndicators() Indicators {
	nan := math.NaN()
	return Indicators{
		EMA9: nan, EMA20: nan, EMA50: nan, EMA200: nan,
		RSI14: nan,
		ADX14: nan, PlusDI14: nan, MinusDI14: nan,
		ATR14: nan, ATRPctRank: nan,
		BBUpper: nan, BBMid: nan, BBLower: nan,
		BBUpper25: nan, BBLower25: nan,
		BBWidthPctRank: nan,
		KCUpper:        nan, KCLower: nan,
		DonchianUpper: nan, DonchianLower: nan,
		VolSMA20:    nan,
		Correlation: nan,
		FundingRate: nan,
	}
}

// Bar is one OHLCV candle plus its indicator snapshot. Time is the bar
// open time in UTC; the bar is considered closed at Time + timeframe.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64

	Ind Indicators
}

// CloseTime returns the instant the bar closes for the given timeframe.
func (b Bar) CloseTime(tf Timeframe) time.Time {
	return b.Time.Add(tf.Duration())
}

// Bullish reports whether the bar closed above its open.
func (b Bar) Bullish() bool { return b.Close > b.Open }

// Bearish reports whether the bar closed below its open.
func (b Bar) Bearish() bool { return b.Close < b.Open }
