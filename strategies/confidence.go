package strategies

import (
	"math"

	"perpsim/market"
)

// Confidence bounds for position sizing.
const (
	confidenceMin = 0.5
	confidenceMax = 2.0

	corrBoostThreshold = 0.85
	fundingDampenRate  = 0.001
)

// Confidence computes the sizing multiplier for an entry signal:
// 1.0 baseline, boosted to 1.5 when cross-asset correlation confirms
// the move, dampened by 0.75 when the entry direction would pay a
// funding rate beyond the warning band. Clamped to [0.5, 2.0].
func Confidence(dir market.Direction, correlation, fundingRate float64) float64 {
	confidence := 1.0

	if !math.IsNaN(correlation) && correlation > corrBoostThreshold {
		confidence = 1.5
	}

	if !math.IsNaN(fundingRate) && math.Abs(fundingRate) > fundingDampenRate {
		paying := (dir == market.Long && fundingRate > 0) ||
			(dir == market.Short && fundingRate < 0)
		if paying {
			confidence *= 0.75
		}
	}

	return math.Min(confidenceMax, math.Max(confidenceMin, confidence))
}
