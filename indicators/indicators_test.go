package indicators

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perpsim/market"
)

func TestEMASeedsWithSMA(t *testing.T) {
	t.Parallel()

	e := NewEMA(3)

	_, ok := e.Update(1)
	assert.False(t, ok)
	_, ok = e.Update(2)
	assert.False(t, ok)

	v, ok := e.Update(3)
	require.True(t, ok)
	assert.InDelta(t, 2.0, v, 1e-12)

	// k = 2/(3+1) = 0.5 from here on.
	v, _ = e.Update(4)
	assert.InDelta(t, 3.0, v, 1e-12)
	v, _ = e.Update(5)
	assert.InDelta(t, 4.0, v, 1e-12)
}

func TestSMARollingWindow(t *testing.T) {
	t.Parallel()

	s := NewSMA(3)
	_, ok := s.Update(1)
	assert.False(t, ok)
	s.Update(2)

	v, ok := s.Update(3)
	require.True(t, ok)
	assert.InDelta(t, 2.0, v, 1e-12)

	v, _ = s.Update(6)
	assert.InDelta(t, (2.0+3+6)/3, v, 1e-12)
}

func TestRSIExtremes(t *testing.T) {
	t.Parallel()

	r := NewRSI(14)
	var v float64
	var ok bool
	for c := 1.0; c <= 20; c++ {
		v, ok = r.Update(c)
	}
	require.True(t, ok)
	assert.InDelta(t, 100.0, v, 1e-9, "all gains pins RSI at 100")

	r = NewRSI(14)
	for c := 20.0; c >= 1; c-- {
		v, ok = r.Update(c)
	}
	require.True(t, ok)
	assert.InDelta(t, 0.0, v, 1e-9, "all losses pins RSI at 0")
}

func TestATRConstantRange(t *testing.T) {
	t.Parallel()

	a := NewATR(14)
	var v float64
	var ok bool
	for i := 0; i < 30; i++ {
		b := market.Bar{Open: 100, High: 101, Low: 99, Close: 100}
		v, ok = a.Update(b)
	}
	require.True(t, ok)
	assert.InDelta(t, 2.0, v, 1e-9, "constant 2-point true range")
}

func TestADXStrongUptrend(t *testing.T) {
	t.Parallel()

	a := NewADX(14)
	var v float64
	var ok bool
	for i := 0; i < 60; i++ {
		price := 100 + float64(i)*2
		b := market.Bar{Open: price - 1, High: price + 1, Low: price - 1, Close: price}
		v, ok = a.Update(b)
	}
	require.True(t, ok)
	assert.Greater(t, v, 25.0)
	assert.Greater(t, a.PlusDI(), a.MinusDI())
	assert.Zero(t, a.MinusDI(), "monotonic rise produces no -DM")
}

func TestPercentileRank(t *testing.T) {
	t.Parallel()

	p := NewPercentileRank(3)
	_, ok := p.Update(1)
	assert.False(t, ok)
	p.Update(2)

	v, ok := p.Update(3)
	require.True(t, ok)
	assert.InDelta(t, 100.0, v, 1e-9, "newest is the maximum")

	// Window is now {2, 3, 2}; ties average.
	v, _ = p.Update(2)
	assert.InDelta(t, 50.0, v, 1e-9)
}

func TestRollingCorrelation(t *testing.T) {
	t.Parallel()

	rc := NewRollingCorrelation(3)
	var v float64
	var ok bool
	for i := 1.0; i <= 5; i++ {
		v, ok = rc.Update(i, i*2)
	}
	require.True(t, ok)
	assert.InDelta(t, 1.0, v, 1e-9)

	rc = NewRollingCorrelation(3)
	for i := 1.0; i <= 5; i++ {
		v, ok = rc.Update(i, -i)
	}
	require.True(t, ok)
	assert.InDelta(t, -1.0, v, 1e-9)
}

func TestBollingerBands(t *testing.T) {
	t.Parallel()

	b := NewBollinger(3)
	b.Update(1)
	b.Update(2)
	bands, ok := b.Update(3)
	require.True(t, ok)

	sd := math.Sqrt(2.0 / 3.0)
	assert.InDelta(t, 2.0, bands.Mid, 1e-12)
	assert.InDelta(t, 2+2*sd, bands.Upper, 1e-12)
	assert.InDelta(t, 2-2.5*sd, bands.Lower25, 1e-12)
	assert.InDelta(t, 4*sd/2, bands.Width, 1e-12)
}

func TestDonchianChannel(t *testing.T) {
	t.Parallel()

	d := NewDonchian(2)
	_, _, ok := d.Update(10, 8)
	assert.False(t, ok)

	upper, lower, ok := d.Update(12, 9)
	require.True(t, ok)
	assert.Equal(t, 12.0, upper)
	assert.Equal(t, 8.0, lower)

	upper, lower, ok = d.Update(11, 10)
	require.True(t, ok)
	assert.Equal(t, 12.0, upper)
	assert.Equal(t, 9.0, lower)
}

func TestKeltner(t *testing.T) {
	t.Parallel()

	upper, lower := Keltner(100, 2, 1.5)
	assert.Equal(t, 103.0, upper)
	assert.Equal(t, 97.0, lower)
}

func TestEnrichFillsColumns(t *testing.T) {
	t.Parallel()

	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	s := &market.Series{Symbol: "BTCUSDT", Timeframe: market.TF1h}
	for i := 0; i < 300; i++ {
		price := 100 + float64(i)*0.5
		s.Bars = append(s.Bars, market.Bar{
			Time: start.Add(time.Duration(i) * time.Hour),
			Open: price - 0.2, High: price + 0.5, Low: price - 0.5, Close: price,
			Volume: 1000,
			Ind:    market.EmptyIndicators(),
		})
	}

	Enrich(s)

	first, last := s.Bars[0].Ind, s.Bars[len(s.Bars)-1].Ind
	assert.True(t, math.IsNaN(first.EMA200), "cold start stays NaN")
	assert.False(t, math.IsNaN(last.EMA200))
	assert.False(t, math.IsNaN(last.RSI14))
	assert.False(t, math.IsNaN(last.ADX14))
	assert.False(t, math.IsNaN(last.ATRPctRank))
	assert.False(t, math.IsNaN(last.BBWidthPctRank))
	assert.False(t, math.IsNaN(last.KCUpper))
	assert.False(t, math.IsNaN(last.DonchianLower))
	assert.False(t, math.IsNaN(last.VolSMA20))

	// A steady uptrend classifies as exactly that.
	assert.Greater(t, last.EMA20, last.EMA50)
	assert.Greater(t, last.EMA50, last.EMA200)
	assert.Greater(t, last.PlusDI14, last.MinusDI14)
}

func TestEnrichCorrelationAlignsByTime(t *testing.T) {
	t.Parallel()

	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	mk := func(sym string, scale float64) *market.Series {
		s := &market.Series{Symbol: sym, Timeframe: market.TF1h}
		for i := 0; i < 60; i++ {
			price := (100 + float64(i)) * scale
			s.Bars = append(s.Bars, market.Bar{
				Time: start.Add(time.Duration(i) * time.Hour),
				Open: price, High: price, Low: price, Close: price,
				Ind: market.EmptyIndicators(),
			})
		}
		return s
	}

	ref, other := mk("BTCUSDT", 1), mk("ETHUSDT", 0.1)
	require.NoError(t, EnrichCorrelation(ref, other))

	last := ref.Bars[len(ref.Bars)-1].Ind.Correlation
	assert.InDelta(t, 1.0, last, 1e-9)
	assert.InDelta(t, last, other.Bars[len(other.Bars)-1].Ind.Correlation, 1e-12)
	assert.True(t, math.IsNaN(ref.Bars[0].Ind.Correlation))
}

func TestEnrichCorrelationTimeframeMismatch(t *testing.T) {
	t.Parallel()

	a := &market.Series{Symbol: "A", Timeframe: market.TF1h}
	b := &market.Series{Symbol: "B", Timeframe: market.TF4h}
	assert.Error(t, EnrichCorrelation(a, b))
}

func TestAttachFunding(t *testing.T) {
	t.Parallel()

	start := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	s := &market.Series{Symbol: "BTCUSDT", Timeframe: market.TF15m}
	for i := 0; i < 4; i++ {
		s.Bars = append(s.Bars, market.Bar{
			Time: start.Add(time.Duration(i) * 15 * time.Minute),
			Ind:  market.EmptyIndicators(),
		})
	}
	ft := &market.FundingTable{Symbol: "BTCUSDT", Rates: []market.FundingRate{
		{Time: start.Add(30 * time.Minute), Rate: 0.0003},
	}}

	AttachFunding(s, ft)

	assert.Zero(t, s.Bars[0].Ind.FundingRate, "closes before the first observation")
	assert.Equal(t, 0.0003, s.Bars[2].Ind.FundingRate)
	assert.Equal(t, 0.0003, s.Bars[3].Ind.FundingRate)
}
