package regime

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"perpsim/market"
)

// trendingInd returns a clean trending-bull indicator set; tests mutate
// individual fields from there.
func trendingInd() market.Indicators {
	in := market.EmptyIndicators()
	in.EMA20 = 105
	in.EMA50 = 102
	in.EMA200 = 100
	in.ADX14 = 30
	in.PlusDI14 = 28
	in.MinusDI14 = 12
	in.ATRPctRank = 50
	in.BBWidthPctRank = 50
	return in
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		mod  func(*market.Indicators)
		want Regime
	}{
		{"bull", func(in *market.Indicators) {}, TrendingBull},
		{"bear", func(in *market.Indicators) {
			in.EMA20, in.EMA200 = in.EMA200, in.EMA20
			in.PlusDI14, in.MinusDI14 = in.MinusDI14, in.PlusDI14
		}, TrendingBear},
		{"chop high vol", func(in *market.Indicators) {
			in.ADX14 = 15
			in.ATRPctRank = 85
		}, ChopHighVol},
		{"squeeze low vol", func(in *market.Indicators) {
			in.ADX14 = 15
			in.ATRPctRank = 20
			in.BBWidthPctRank = 10
		}, SqueezeLowVol},
		{"adx no mans land", func(in *market.Indicators) {
			in.ADX14 = 22
		}, Undefined},
		{"mixed ema ordering", func(in *market.Indicators) {
			in.EMA50 = 110
		}, Undefined},
		{"di disagrees with emas", func(in *market.Indicators) {
			in.PlusDI14, in.MinusDI14 = 10, 30
		}, Undefined},
		{"low vol without tight bands", func(in *market.Indicators) {
			in.ADX14 = 15
			in.ATRPctRank = 20
			in.BBWidthPctRank = 60
		}, Undefined},
		{"nan adx", func(in *market.Indicators) {
			in.ADX14 = math.NaN()
		}, Undefined},
		{"nan atr rank", func(in *market.Indicators) {
			in.ATRPctRank = math.NaN()
		}, Undefined},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			in := trendingInd()
			tt.mod(&in)
			assert.Equal(t, tt.want, Classify(in))
		})
	}
}

func TestClassifyAllNaN(t *testing.T) {
	t.Parallel()
	assert.Equal(t, Undefined, Classify(market.EmptyIndicators()))
}

func bearInd() market.Indicators {
	in := trendingInd()
	in.EMA20, in.EMA200 = in.EMA200, in.EMA20
	in.PlusDI14, in.MinusDI14 = in.MinusDI14, in.PlusDI14
	return in
}

func chopInd() market.Indicators {
	in := trendingInd()
	in.ADX14 = 15
	in.ATRPctRank = 85
	return in
}

func TestEngineOppositeFlipForcesClose(t *testing.T) {
	t.Parallel()

	e := NewEngine(zerolog.Nop())
	now := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)

	tr := e.Update(trendingInd(), now)
	assert.True(t, tr.Changed)
	assert.False(t, tr.ImmediateClose, "undefined to bull is not a flip")
	assert.Equal(t, TrendingBull, e.Current())

	now = now.Add(4 * time.Hour)
	tr = e.Update(bearInd(), now)
	assert.True(t, tr.Changed)
	assert.True(t, tr.ImmediateClose)
	assert.Equal(t, TrendingBear, e.Current())
	assert.Equal(t, TrendingBull, e.Previous())

	ok, reason := e.CanEnter(now)
	assert.False(t, ok)
	assert.Contains(t, reason, "cooldown")
}

func TestEngineCooldownExpiry(t *testing.T) {
	t.Parallel()

	e := NewEngine(zerolog.Nop())
	now := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)

	e.Update(trendingInd(), now)
	now = now.Add(4 * time.Hour)
	e.Update(chopInd(), now) // bull -> chop, cooldown but no forced close

	ok, _ := e.CanEnter(now.Add(7 * time.Hour))
	assert.False(t, ok, "cooldown still running")

	// Expiry happens on the next update once 8h have elapsed.
	tr := e.Update(chopInd(), now.Add(8*time.Hour))
	assert.False(t, tr.Changed)
	ok, _ = e.CanEnter(now.Add(8 * time.Hour))
	assert.True(t, ok)
}

func TestEngineUndefinedTransitionsSkipCooldown(t *testing.T) {
	t.Parallel()

	e := NewEngine(zerolog.Nop())
	now := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)

	tr := e.Update(trendingInd(), now)
	assert.True(t, tr.Changed)
	ok, _ := e.CanEnter(now)
	assert.True(t, ok, "entering from undefined carries no cooldown")

	// Bull -> undefined: entries blocked by the regime itself, not a timer.
	tr = e.Update(market.EmptyIndicators(), now.Add(4*time.Hour))
	assert.True(t, tr.Changed)
	assert.False(t, tr.ImmediateClose)
	ok, reason := e.CanEnter(now.Add(4 * time.Hour))
	assert.False(t, ok)
	assert.Contains(t, reason, "no-trade")

	// Undefined -> bull again: immediately tradeable.
	e.Update(trendingInd(), now.Add(8*time.Hour))
	ok, _ = e.CanEnter(now.Add(8 * time.Hour))
	assert.True(t, ok)
}

func TestEngineUnchangedRegimeNoTransition(t *testing.T) {
	t.Parallel()

	e := NewEngine(zerolog.Nop())
	now := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)

	e.Update(trendingInd(), now)
	tr := e.Update(trendingInd(), now.Add(4*time.Hour))
	assert.False(t, tr.Changed)
	assert.False(t, tr.ImmediateClose)
}

func TestRegimeString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "TRENDING_BULL", TrendingBull.String())
	assert.Equal(t, "CHOP_HIGH_VOL", ChopHighVol.String())
	assert.Equal(t, "UNDEFINED", Undefined.String())
	assert.True(t, TrendingBear.Trending())
	assert.False(t, ChopHighVol.Trending())
	assert.False(t, Undefined.Tradeable())
}
