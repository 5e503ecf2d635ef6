package position

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perpsim/market"
	"perpsim/regime"
)

func newLedger() *Ledger {
	return NewLedger([]string{"BTCUSDT", "ETHUSDT"}, zerolog.Nop())
}

func bar(open, high, low, close, atr float64) market.Bar {
	b := market.Bar{
		Time: entryAt, Open: open, High: high, Low: low, Close: close,
		Ind: market.EmptyIndicators(),
	}
	b.Ind.ATR14 = atr
	return b
}

func TestCheckExitStopLossFirst(t *testing.T) {
	t.Parallel()

	l := newLedger()
	p := newLong(100, 1, 96, 2)
	l.Open(p)

	// The bar swept the stop even though it closed deep in profit: the
	// stop check runs first and wins the bar.
	sig := l.CheckExit(p, bar(100, 112, 95, 111, 2), entryAt.Add(time.Hour))
	assert.Equal(t, ExitStopLoss, sig.Kind)
	assert.Equal(t, 96.0, sig.Price)
	assert.Equal(t, 1.0, sig.Pct)
}

func TestCheckExitTrailingActivatesAndFires(t *testing.T) {
	t.Parallel()

	l := newLedger()
	p := newLong(100, 1, 96, 2) // R = 4
	l.Open(p)

	// Above 1R: trailing activates and ratchets behind the bar high.
	sig := l.CheckExit(p, bar(107, 110, 106.5, 107, 2), entryAt.Add(time.Hour))
	assert.Equal(t, ExitNone, sig.Kind)
	assert.True(t, p.TrailingActive)
	assert.InDelta(t, 106, p.TrailingStop, 1e-9)

	// Price falls through the trailing stop.
	sig = l.CheckExit(p, bar(107, 107, 104, 104, 2), entryAt.Add(2*time.Hour))
	assert.Equal(t, ExitTrailingStop, sig.Kind)
	assert.InDelta(t, 106, sig.Price, 1e-9)
}

func TestCheckExitPartialLadderStandard(t *testing.T) {
	t.Parallel()

	l := newLedger()
	p := newLong(100, 1, 96, 2) // R = 4
	l.Open(p)

	// Close at exactly 2R with a range that kept the trailing stop out
	// of the way.
	sig := l.CheckExit(p, bar(107, 108, 107, 108, 2), entryAt.Add(time.Hour))
	require.Equal(t, ExitPartialTP2R, sig.Kind)
	assert.Equal(t, 0.4, sig.Pct)
	assert.True(t, p.PartialTPDone)
	assert.False(t, p.CanPyramid(), "2R partial permanently blocks pyramiding")

	// 2R flag never re-fires; at 3R the second rung takes 30%.
	sig = l.CheckExit(p, bar(112, 112, 111, 112, 2), entryAt.Add(2*time.Hour))
	assert.Equal(t, ExitPartialTP3R, sig.Kind)
	assert.Equal(t, 0.3, sig.Pct)
}

func TestCheckExitMeanReversionLadder(t *testing.T) {
	t.Parallel()

	l := newLedger()
	p := New("T4", "BTCUSDT", market.Long, 100, 1, 96, 2,
		33, 3, regime.ChopHighVol, "test", entryAt)
	l.Open(p)

	sig := l.CheckExit(p, bar(103, 104, 103, 104, 2), entryAt.Add(time.Hour))
	require.Equal(t, ExitPartialTPMR1, sig.Kind)
	assert.Equal(t, 0.6, sig.Pct)

	sig = l.CheckExit(p, bar(108, 108, 107, 108, 2), entryAt.Add(2*time.Hour))
	assert.Equal(t, ExitPartialTPMR2, sig.Kind)
	assert.Equal(t, 1.0, sig.Pct)
}

func TestCheckExitTimeStops(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		regime  regime.Regime
		holding time.Duration
		want    ExitKind
	}{
		{"trending under limit", regime.TrendingBull, 23 * time.Hour, ExitNone},
		{"trending over limit", regime.TrendingBull, 24 * time.Hour, ExitTimeStop},
		{"chop over limit", regime.ChopHighVol, 12 * time.Hour, ExitTimeStop},
		{"squeeze over limit", regime.SqueezeLowVol, 6 * time.Hour, ExitTimeStop},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			l := newLedger()
			p := New("T5", "BTCUSDT", market.Long, 100, 1, 96, 2,
				33, 3, tt.regime, "test", entryAt)
			l.Open(p)

			// Stalled just above entry, under 1R.
			sig := l.CheckExit(p, bar(101, 101.5, 100.5, 101, 2), entryAt.Add(tt.holding))
			assert.Equal(t, tt.want, sig.Kind)
		})
	}
}

func TestTimeStopNotAppliedInProfit(t *testing.T) {
	t.Parallel()

	l := newLedger()
	p := newLong(100, 1, 96, 2)
	p.TP2RDone, p.TP3RDone = true, true // silence the TP ladder
	l.Open(p)

	sig := l.CheckExit(p, bar(107, 107.5, 106.5, 107, 2), entryAt.Add(48*time.Hour))
	assert.Equal(t, ExitNone, sig.Kind, "above 1R the clock does not apply")
}

func TestCloseConservationAcrossPartials(t *testing.T) {
	t.Parallel()

	l := newLedger()
	p := newLong(100, 2, 96, 2)
	p.FundingPaid = 10
	p.FeesPaid = 4
	l.Open(p)

	opened := p.OpenedSize
	now := entryAt.Add(time.Hour)

	r1, ok := l.Close("BTCUSDT", 0.4, 108, now)
	require.True(t, ok)
	assert.InDelta(t, 0.8, r1.ClosedSize, 1e-9)
	assert.InDelta(t, 6.4, r1.RawPnL, 1e-9) // 8 * 0.8
	assert.InDelta(t, 4.0, r1.FundingShare, 1e-9)
	assert.InDelta(t, 1.6, r1.EntryFeeShare, 1e-9)
	assert.False(t, r1.Full)

	r2, ok := l.Close("BTCUSDT", 1, 110, now.Add(time.Hour))
	require.True(t, ok)
	assert.True(t, r2.Full)

	assert.InDelta(t, opened, r1.ClosedSize+r2.ClosedSize, 1e-9)
	assert.InDelta(t, 10, r1.FundingShare+r2.FundingShare, 1e-9)
	assert.InDelta(t, 4, r1.EntryFeeShare+r2.EntryFeeShare, 1e-9)
	assert.Nil(t, l.Get("BTCUSDT"))
}

func TestCloseCooldowns(t *testing.T) {
	t.Parallel()

	l := newLedger()
	now := entryAt.Add(time.Hour)

	l.Open(newLong(100, 1, 96, 2))
	l.Close("BTCUSDT", 1, 110, now) // win: 15 minutes
	assert.True(t, l.InCooldown("BTCUSDT", now.Add(14*time.Minute)))
	assert.False(t, l.InCooldown("BTCUSDT", now.Add(15*time.Minute)))

	l.Open(newLong(100, 1, 96, 2))
	l.Close("BTCUSDT", 1, 95, now) // loss: 30 minutes
	assert.True(t, l.InCooldown("BTCUSDT", now.Add(29*time.Minute)))
	assert.False(t, l.InCooldown("BTCUSDT", now.Add(30*time.Minute)))
}

func TestCloseUnknownSymbolIsNoop(t *testing.T) {
	t.Parallel()

	l := newLedger()
	_, ok := l.Close("ETHUSDT", 1, 100, entryAt)
	assert.False(t, ok)
}

func TestActiveKeepsDeclaredOrder(t *testing.T) {
	t.Parallel()

	l := newLedger()
	eth := New("T6", "ETHUSDT", market.Long, 2000, 1, 1900, 50,
		666, 3, regime.TrendingBull, "test", entryAt)
	l.Open(eth)
	l.Open(newLong(100, 1, 96, 2))

	active := l.Active()
	require.Len(t, active, 2)
	assert.Equal(t, "BTCUSDT", active[0].Symbol)
	assert.Equal(t, "ETHUSDT", active[1].Symbol)
	assert.InDelta(t, eth.Margin+active[0].Margin, l.MarginInUse(), 1e-9)
}
