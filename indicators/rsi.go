package indicators

// RSI is Wilder's relative strength index over closes.
type RSI struct {
	Period int

	prev     float64
	havePrev bool

	avgGain float64
	avgLoss float64
	count   int
	ready   bool
}

func NewRSI(period int) *RSI {
	return &RSI{Period: period}
}

func (r *RSI) Ready() bool { return r.ready }

// Update consumes the next close and returns (rsi, ready).
func (r *RSI) Update(close float64) (float64, bool) {
	if !r.havePrev {
		r.prev = close
		r.havePrev = true
		return 0, false
	}

	change := close - r.prev
	r.prev = close

	gain, loss := 0.0, 0.0
	if change > 0 {
		gain = change
	} else {
		loss = -change
	}

	if !r.ready {
		r.avgGain += gain
		r.avgLoss += loss
		r.count++
		if r.count < r.Period {
			return 0, false
		}
		r.avgGain /= float64(r.Period)
		r.avgLoss /= float64(r.Period)
		r.ready = true
		return r.value(), true
	}

	// Wilder smoothing
	p := float64(r.Period)
	r.avgGain = (r.avgGain*(p-1) + gain) / p
	r.avgLoss = (r.avgLoss*(p-1) + loss) / p
	return r.value(), true
}

func (r *RSI) value() float64 {
	if r.avgLoss == 0 {
		return 100
	}
	rs := r.avgGain / r.avgLoss
	return 100 - 100/(1+rs)
}
