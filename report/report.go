// Package report computes the performance summary from a completed
// run's trade log and equity curve.
package report

import (
	"math"
	"sort"
	"time"

	"perpsim/journal"
)

// Bars per year on the driving 15m timeframe, used to annualize the
// Sharpe ratio.
const barsPerYear = 365.0 * 24 * 4

// Summary is the aggregate performance view of one run.
type Summary struct {
	Start time.Time
	End   time.Time

	InitialEquity float64
	FinalEquity   float64
	TotalReturn   float64 // fraction, e.g. 0.42
	CAGR          float64
	MaxDrawdown   float64 // fraction below peak
	Sharpe        float64

	Trades       int
	Wins         int
	Losses       int
	WinRate      float64
	ProfitFactor float64
	AvgWin       float64
	AvgLoss      float64
	TotalFees    float64
	TotalFunding float64
	Liquidations int

	ByExitReason map[string]Bucket
	ByDirection  map[string]Bucket
	ByRegime     map[string]Bucket
	BySymbol     map[string]Bucket
}

// Bucket aggregates one slice of the trade log.
type Bucket struct {
	Trades int
	Wins   int
	NetPnL float64
}

func (b Bucket) WinRate() float64 {
	if b.Trades == 0 {
		return 0
	}
	return float64(b.Wins) / float64(b.Trades)
}

// Build computes the summary from the in-memory journal. An empty
// equity curve yields a zero Summary.
func Build(m *journal.Memory) Summary {
	s := Summary{
		ByExitReason: make(map[string]Bucket),
		ByDirection:  make(map[string]Bucket),
		ByRegime:     make(map[string]Bucket),
		BySymbol:     make(map[string]Bucket),
	}
	if len(m.Equity) == 0 {
		return s
	}

	first, last := m.Equity[0], m.Equity[len(m.Equity)-1]
	s.Start, s.End = first.Time, last.Time
	s.InitialEquity, s.FinalEquity = first.Equity, last.Equity

	if s.InitialEquity > 0 {
		s.TotalReturn = s.FinalEquity/s.InitialEquity - 1
	}
	s.CAGR = cagr(s.InitialEquity, s.FinalEquity, last.Time.Sub(first.Time))
	s.MaxDrawdown = maxDrawdown(m.Equity)
	s.Sharpe = sharpe(m.Equity)

	var grossWin, grossLoss float64
	for _, t := range m.Trades {
		s.Trades++
		s.TotalFees += t.Fees
		s.TotalFunding += t.Funding
		if t.Liquidated {
			s.Liquidations++
		}

		win := t.NetPnL > 0
		if win {
			s.Wins++
			grossWin += t.NetPnL
		} else {
			s.Losses++
			grossLoss += -t.NetPnL
		}

		add(s.ByExitReason, t.Reason, t.NetPnL, win)
		add(s.ByDirection, t.Direction, t.NetPnL, win)
		add(s.ByRegime, t.Regime, t.NetPnL, win)
		add(s.BySymbol, t.Symbol, t.NetPnL, win)
	}

	if s.Trades > 0 {
		s.WinRate = float64(s.Wins) / float64(s.Trades)
	}
	if s.Wins > 0 {
		s.AvgWin = grossWin / float64(s.Wins)
	}
	if s.Losses > 0 {
		s.AvgLoss = grossLoss / float64(s.Losses)
	}
	if grossLoss > 0 {
		s.ProfitFactor = grossWin / grossLoss
	} else if grossWin > 0 {
		s.ProfitFactor = math.Inf(1)
	}
	return s
}

func add(m map[string]Bucket, key string, pnl float64, win bool) {
	b := m[key]
	b.Trades++
	b.NetPnL += pnl
	if win {
		b.Wins++
	}
	m[key] = b
}

func cagr(initial, final float64, elapsed time.Duration) float64 {
	if initial <= 0 || final <= 0 || elapsed <= 0 {
		return 0
	}
	years := elapsed.Hours() / (24 * 365)
	if years <= 0 {
		return 0
	}
	return math.Pow(final/initial, 1/years) - 1
}

func maxDrawdown(curve []journal.EquitySnapshot) float64 {
	var peak, maxDD float64
	for _, e := range curve {
		if e.Equity > peak {
			peak = e.Equity
		}
		if peak > 0 {
			if dd := (peak - e.Equity) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// sharpe annualizes the mean/stddev of per-bar simple returns. Zero
// variance yields zero rather than a division fault.
func sharpe(curve []journal.EquitySnapshot) float64 {
	if len(curve) < 3 {
		return 0
	}
	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev <= 0 {
			continue
		}
		returns = append(returns, curve[i].Equity/prev-1)
	}
	if len(returns) < 2 {
		return 0
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns) - 1)
	if variance == 0 {
		return 0
	}
	return mean / math.Sqrt(variance) * math.Sqrt(barsPerYear)
}

// SortedKeys returns a bucket map's keys in stable order for rendering.
func SortedKeys(m map[string]Bucket) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
