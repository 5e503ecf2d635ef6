package risk

import "fmt"

// Limits collects every threshold the gatekeeper enforces. Values are
// fractions unless the name says percentile.
type Limits struct {
	// Drawdown from peak equity.
	SoftDrawdown float64 // size halved above this
	FirmDrawdown float64 // no new entries above this
	HardDrawdown float64 // trading halted at or above this

	// Loss of the current UTC day vs its starting equity.
	DailyLossLimit float64

	// Exposure.
	MaxPositions          int
	MaxTotalMarginPct     float64 // margin used / equity ceiling
	CorrAdjustedMarginPct float64 // tightened ceiling under high correlation
	CorrHighThreshold     float64

	// Volatility percentile gates (0-100).
	ExtremeVolPercentile float64 // reject above
	HighVolPercentile    float64 // halve size above

	// Consecutive losing trades.
	ConsecLossScale int // halve size at
	ConsecLossStop  int // reject for the day at

	// Funding rate magnitude gates.
	FundingWarn float64
	FundingStop float64

	// Sizing.
	RiskPerTrade         float64 // equity fraction risked per trade
	StopATRMult          float64 // initial stop width in ATRs
	MaxMarginPerPosition float64 // equity fraction of margin per position
	Leverage             float64

	// Liquidation defense.
	MinLiquidationBufferATR float64
}

// Validate checks internal consistency of the thresholds.
func (l Limits) Validate() error {
	switch {
	case l.SoftDrawdown <= 0 || l.FirmDrawdown <= l.SoftDrawdown || l.HardDrawdown <= l.FirmDrawdown:
		return fmt.Errorf("risk: drawdown limits must satisfy 0 < soft < firm < hard, got %v/%v/%v",
			l.SoftDrawdown, l.FirmDrawdown, l.HardDrawdown)
	case l.DailyLossLimit <= 0:
		return fmt.Errorf("risk: daily loss limit must be positive")
	case l.MaxPositions < 1:
		return fmt.Errorf("risk: max positions must be at least 1")
	case l.MaxTotalMarginPct <= 0 || l.CorrAdjustedMarginPct <= 0:
		return fmt.Errorf("risk: margin caps must be positive")
	case l.RiskPerTrade <= 0 || l.RiskPerTrade >= 1:
		return fmt.Errorf("risk: risk per trade %v out of range (0, 1)", l.RiskPerTrade)
	case l.StopATRMult <= 0:
		return fmt.Errorf("risk: stop ATR multiple must be positive")
	case l.Leverage < 1:
		return fmt.Errorf("risk: leverage %v below 1", l.Leverage)
	case l.MaxMarginPerPosition <= 0 || l.MaxMarginPerPosition > 1:
		return fmt.Errorf("risk: max margin per position %v out of range (0, 1]", l.MaxMarginPerPosition)
	}
	return nil
}

// DefaultLimits returns the strategy's production thresholds.
func DefaultLimits() Limits {
	return Limits{
		SoftDrawdown: 0.10,
		FirmDrawdown: 0.15,
		HardDrawdown: 0.20,

		DailyLossLimit: 0.05,

		MaxPositions:          2,
		MaxTotalMarginPct:     0.50,
		CorrAdjustedMarginPct: 0.40,
		CorrHighThreshold:     0.90,

		ExtremeVolPercentile: 90,
		HighVolPercentile:    80,

		ConsecLossScale: 3,
		ConsecLossStop:  5,

		FundingWarn: 0.001,
		FundingStop: 0.003,

		RiskPerTrade:         0.02,
		StopATRMult:          2.0,
		MaxMarginPerPosition: 0.25,
		Leverage:             3,

		MinLiquidationBufferATR: 3.0,
	}
}
