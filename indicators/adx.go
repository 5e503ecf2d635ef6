package indicators

import "perpsim/market"

// ADX implements Wilder's Average Directional Index plus the +DI/-DI
// directional lines it is derived from.
//
// Warmup: Period bars to seed the smoothed TR/+DM/-DM sums, then
// another Period DX values before ADX itself is ready. The DI lines
// become available after the first stage.
type ADX struct {
	Period int

	prev     market.Bar
	havePrev bool

	tr  float64 // Wilder-smoothed true range
	pdm float64 // smoothed +DM
	mdm float64 // smoothed -DM

	plusDI  float64
	minusDI float64

	dxSum   float64
	dxCount int
	adx     float64

	count int
	ready bool
}

func NewADX(period int) *ADX {
	return &ADX{Period: period}
}

func (a *ADX) Ready() bool      { return a.ready }
func (a *ADX) Value() float64   { return a.adx }
func (a *ADX) PlusDI() float64  { return a.plusDI }
func (a *ADX) MinusDI() float64 { return a.minusDI }

// DIReady reports whether the directional lines have warmed up.
func (a *ADX) DIReady() bool { return a.count >= a.Period }

// Update consumes the next bar and returns (adx, ready).
func (a *ADX) Update(b market.Bar) (float64, bool) {
	if !a.havePrev {
		a.prev = b
		a.havePrev = true
		return 0, false
	}

	upMove := b.High - a.prev.High
	downMove := a.prev.Low - b.Low

	var pdm, mdm float64
	if upMove > downMove && upMove > 0 {
		pdm = upMove
	}
	if downMove > upMove && downMove > 0 {
		mdm = downMove
	}
	tr := trueRange(b, a.prev.Close)
	a.prev = b

	p := float64(a.Period)
	if a.count < a.Period {
		// accumulation stage
		a.tr += tr
		a.pdm += pdm
		a.mdm += mdm
		a.count++
		if a.count < a.Period {
			return 0, false
		}
	} else {
		// Wilder smoothing
		a.tr = a.tr - a.tr/p + tr
		a.pdm = a.pdm - a.pdm/p + pdm
		a.mdm = a.mdm - a.mdm/p + mdm
		a.count++
	}

	if a.tr == 0 {
		return 0, a.ready
	}
	a.plusDI = 100 * a.pdm / a.tr
	a.minusDI = 100 * a.mdm / a.tr

	diSum := a.plusDI + a.minusDI
	if diSum == 0 {
		return 0, a.ready
	}
	dx := 100 * abs(a.plusDI-a.minusDI) / diSum

	if !a.ready {
		a.dxSum += dx
		a.dxCount++
		if a.dxCount < a.Period {
			return 0, false
		}
		a.adx = a.dxSum / p
		a.ready = true
		return a.adx, true
	}

	a.adx = (a.adx*(p-1) + dx) / p
	return a.adx, true
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
