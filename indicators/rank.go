package indicators

import "math"

// PercentileRank reports where the newest value sits inside its own
// trailing window, as a 0-100 rank. Matches pandas rolling rank with
// pct=true: rank of the current value among the window, average ties.
type PercentileRank struct {
	Period int

	window []float64
}

func NewPercentileRank(period int) *PercentileRank {
	return &PercentileRank{Period: period}
}

func (p *PercentileRank) Ready() bool { return len(p.window) >= p.Period }

func (p *PercentileRank) Update(v float64) (float64, bool) {
	p.window = append(p.window, v)
	if len(p.window) > p.Period {
		p.window = p.window[1:]
	}
	if !p.Ready() {
		return 0, false
	}

	below, equal := 0, 0
	for _, w := range p.window {
		switch {
		case w < v:
			below++
		case w == v:
			equal++
		}
	}
	rank := float64(below) + (float64(equal)+1)/2
	return rank / float64(len(p.window)) * 100, true
}

// RollingCorrelation is the Pearson correlation of two aligned series
// over a trailing window.
type RollingCorrelation struct {
	Period int

	xs []float64
	ys []float64
}

func NewRollingCorrelation(period int) *RollingCorrelation {
	return &RollingCorrelation{Period: period}
}

func (rc *RollingCorrelation) Ready() bool { return len(rc.xs) >= rc.Period }

func (rc *RollingCorrelation) Update(x, y float64) (float64, bool) {
	rc.xs = append(rc.xs, x)
	rc.ys = append(rc.ys, y)
	if len(rc.xs) > rc.Period {
		rc.xs = rc.xs[1:]
		rc.ys = rc.ys[1:]
	}
	if !rc.Ready() {
		return 0, false
	}

	n := float64(len(rc.xs))
	var sx, sy float64
	for i := range rc.xs {
		sx += rc.xs[i]
		sy += rc.ys[i]
	}
	mx, my := sx/n, sy/n

	var cov, vx, vy float64
	for i := range rc.xs {
		dx, dy := rc.xs[i]-mx, rc.ys[i]-my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	if vx == 0 || vy == 0 {
		return 0, false
	}
	return cov / math.Sqrt(vx*vy), true
}
