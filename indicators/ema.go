package indicators

// EMA is a streaming exponential moving average. It seeds with the SMA
// of the first Period values, then smooths with k = 2/(Period+1).
type EMA struct {
	Period int

	k     float64
	sum   float64
	count int
	value float64
	ready bool
}

func NewEMA(period int) *EMA {
	return &EMA{Period: period, k: 2.0 / (float64(period) + 1.0)}
}

func (e *EMA) Ready() bool    { return e.ready }
func (e *EMA) Value() float64 { return e.value }

// Update consumes the next close and returns (ema, ready).
func (e *EMA) Update(close float64) (float64, bool) {
	if !e.ready {
		e.sum += close
		e.count++
		if e.count < e.Period {
			return 0, false
		}
		e.value = e.sum / float64(e.Period)
		e.ready = true
		return e.value, true
	}
	e.value = (close-e.value)*e.k + e.value
	return e.value, true
}

// SMA is a simple rolling mean over a fixed window.
type SMA struct {
	Period int

	window []float64
	sum    float64
}

func NewSMA(period int) *SMA {
	return &SMA{Period: period}
}

func (s *SMA) Ready() bool { return len(s.window) >= s.Period }

func (s *SMA) Value() float64 {
	if !s.Ready() {
		return 0
	}
	return s.sum / float64(s.Period)
}

func (s *SMA) Update(v float64) (float64, bool) {
	s.window = append(s.window, v)
	s.sum += v
	if len(s.window) > s.Period {
		s.sum -= s.window[0]
		s.window = s.window[1:]
	}
	if !s.Ready() {
		return 0, false
	}
	return s.sum / float64(s.Period), true
}
