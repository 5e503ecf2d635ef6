package indicators

import "math"

// Bollinger computes the 20-period mid band with both the standard
// 2.0-sigma and the wider 2.5-sigma envelopes in one pass.
type Bollinger struct {
	Period int

	window []float64
}

func NewBollinger(period int) *Bollinger {
	return &Bollinger{Period: period}
}

func (b *Bollinger) Ready() bool { return len(b.window) >= b.Period }

// Bands holds one bar's Bollinger output.
type Bands struct {
	Mid     float64
	Upper   float64 // 2.0 sigma
	Lower   float64
	Upper25 float64 // 2.5 sigma
	Lower25 float64
	Width   float64 // (Upper - Lower) / Mid
}

func (b *Bollinger) Update(close float64) (Bands, bool) {
	b.window = append(b.window, close)
	if len(b.window) > b.Period {
		b.window = b.window[1:]
	}
	if !b.Ready() {
		return Bands{}, false
	}

	var sum float64
	for _, v := range b.window {
		sum += v
	}
	mean := sum / float64(b.Period)

	var sq float64
	for _, v := range b.window {
		d := v - mean
		sq += d * d
	}
	sd := math.Sqrt(sq / float64(b.Period))

	out := Bands{
		Mid:     mean,
		Upper:   mean + 2.0*sd,
		Lower:   mean - 2.0*sd,
		Upper25: mean + 2.5*sd,
		Lower25: mean - 2.5*sd,
	}
	if mean != 0 {
		out.Width = (out.Upper - out.Lower) / mean
	}
	return out, true
}

// Keltner channel: EMA20 mid with a 1.5 x ATR envelope. The caller
// feeds the already-computed EMA and ATR values so the channel stays
// consistent with the other columns.
func Keltner(ema20, atr float64, mult float64) (upper, lower float64) {
	return ema20 + mult*atr, ema20 - mult*atr
}

// Donchian tracks the rolling high/low channel over a fixed window.
type Donchian struct {
	Period int

	highs []float64
	lows  []float64
}

func NewDonchian(period int) *Donchian {
	return &Donchian{Period: period}
}

func (d *Donchian) Ready() bool { return len(d.highs) >= d.Period }

func (d *Donchian) Update(high, low float64) (upper, lower float64, ok bool) {
	d.highs = append(d.highs, high)
	d.lows = append(d.lows, low)
	if len(d.highs) > d.Period {
		d.highs = d.highs[1:]
		d.lows = d.lows[1:]
	}
	if !d.Ready() {
		return 0, 0, false
	}
	upper, lower = d.highs[0], d.lows[0]
	for i := 1; i < len(d.highs); i++ {
		if d.highs[i] > upper {
			upper = d.highs[i]
		}
		if d.lows[i] < lower {
			lower = d.lows[i]
		}
	}
	return upper, lower, true
}
