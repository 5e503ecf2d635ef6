package indicators

import (
	"math"

	"perpsim/market"
)

func trueRange(b market.Bar, prevClose float64) float64 {
	hl := b.High - b.Low
	hc := math.Abs(b.High - prevClose)
	lc := math.Abs(b.Low - prevClose)
	return math.Max(hl, math.Max(hc, lc))
}

// ATR is Wilder's average true range.
type ATR struct {
	Period int

	prevClose float64
	havePrev  bool

	sum   float64
	count int
	value float64
	ready bool
}

func NewATR(period int) *ATR {
	return &ATR{Period: period}
}

func (a *ATR) Ready() bool    { return a.ready }
func (a *ATR) Value() float64 { return a.value }

// Update consumes the next bar and returns (atr, ready).
func (a *ATR) Update(b market.Bar) (float64, bool) {
	if !a.havePrev {
		a.prevClose = b.Close
		a.havePrev = true
		return 0, false
	}

	tr := trueRange(b, a.prevClose)
	a.prevClose = b.Close

	if !a.ready {
		a.sum += tr
		a.count++
		if a.count < a.Period {
			return 0, false
		}
		a.value = a.sum / float64(a.Period)
		a.ready = true
		return a.value, true
	}

	p := float64(a.Period)
	a.value = (a.value*(p-1) + tr) / p
	return a.value, true
}
