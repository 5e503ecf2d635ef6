// Package risk is the process-wide admission controller: it tracks
// equity, drawdown, daily loss and the consecutive-loss counter, and
// approves or rejects every prospective entry with a size multiplier.
package risk

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"perpsim/market"
)

// Severity of a rejection.
type Severity uint8

const (
	SeverityNone   Severity = iota
	SeverityReject          // this entry only
	SeverityHalt            // stop entering for the rest of the run
)

// EntryRequest describes a prospective entry or pyramid for admission.
type EntryRequest struct {
	Symbol    string
	Direction market.Direction

	OpenPositions int
	MarginInUse   float64

	ATRPercentile float64
	Correlation   float64 // NaN when unknown
	FundingRate   float64 // NaN when unknown
}

// Decision is the gatekeeper's verdict on an EntryRequest.
type Decision struct {
	Allow    bool
	SizeMult float64
	Severity Severity
	Reason   string
}

// Sizing is the output of PositionSize.
type Sizing struct {
	Coins    float64
	Notional float64 // USD
	Margin   float64 // USD
}

// Gatekeeper holds the global risk state for one simulation run.
type Gatekeeper struct {
	log    zerolog.Logger
	limits Limits

	initialEquity  float64
	equity         float64
	peakEquity     float64
	dayStartEquity float64
	day            time.Time // UTC midnight of the current day; zero before first update

	consecutiveLosses int
	halted            bool
}

func NewGatekeeper(limits Limits, initialEquity float64, log zerolog.Logger) *Gatekeeper {
	return &Gatekeeper{
		log:            log.With().Str("component", "risk").Logger(),
		limits:         limits,
		initialEquity:  initialEquity,
		equity:         initialEquity,
		peakEquity:     initialEquity,
		dayStartEquity: initialEquity,
	}
}

func (g *Gatekeeper) Equity() float64        { return g.equity }
func (g *Gatekeeper) PeakEquity() float64    { return g.peakEquity }
func (g *Gatekeeper) Halted() bool           { return g.halted }
func (g *Gatekeeper) ConsecutiveLosses() int { return g.consecutiveLosses }
func (g *Gatekeeper) Limits() Limits         { return g.limits }

// Drawdown is the current fraction below peak equity.
func (g *Gatekeeper) Drawdown() float64 {
	if g.peakEquity <= 0 {
		return 0
	}
	return (g.peakEquity - g.equity) / g.peakEquity
}

// DailyLoss is today's loss as a fraction of the day's starting equity;
// zero when the day is positive.
func (g *Gatekeeper) DailyLoss() float64 {
	if g.dayStartEquity <= 0 {
		return 0
	}
	change := g.equity - g.dayStartEquity
	if change >= 0 {
		return 0
	}
	return -change / g.dayStartEquity
}

// UpdateEquity marks current equity, ratchets the peak, and rolls the
// UTC-day baseline. Crossing a UTC midnight resets both the daily
// starting equity and the consecutive-loss counter.
func (g *Gatekeeper) UpdateEquity(equity float64, now time.Time) {
	g.equity = equity
	if equity > g.peakEquity {
		g.peakEquity = equity
	}

	day := now.UTC().Truncate(24 * time.Hour)
	if !day.Equal(g.day) {
		if !g.day.IsZero() {
			pnl := equity - g.dayStartEquity
			g.log.Info().
				Time("day", g.day).
				Float64("daily_pnl", pnl).
				Msg("daily reset")
		}
		g.day = day
		g.dayStartEquity = equity
		g.ResetConsecutiveLosses()
	}
}

// ValidateEntry runs every admission rule in order, short-circuiting on
// the first rejection. A passing decision carries the accumulated size
// multiplier.
func (g *Gatekeeper) ValidateEntry(req EntryRequest) Decision {
	mult := 1.0
	dd := g.Drawdown()

	// 1. Hard drawdown: halt (inclusive boundary).
	if dd >= g.limits.HardDrawdown {
		g.halted = true
		g.log.Error().Float64("drawdown", dd).Msg("hard drawdown limit, trading halted")
		return Decision{Severity: SeverityHalt,
			Reason: fmt.Sprintf("hard drawdown limit exceeded (%.1f%%)", dd*100)}
	}

	// 2. Firm drawdown: no new entries.
	if dd > g.limits.FirmDrawdown {
		return Decision{Severity: SeverityReject,
			Reason: fmt.Sprintf("firm drawdown limit exceeded (%.1f%%)", dd*100)}
	}

	// 3. Daily loss limit.
	if loss := g.DailyLoss(); loss >= g.limits.DailyLossLimit {
		return Decision{Severity: SeverityReject,
			Reason: fmt.Sprintf("daily loss limit exceeded (%.1f%%)", loss*100)}
	}

	// 4. Concurrent position cap.
	if req.OpenPositions >= g.limits.MaxPositions {
		return Decision{Severity: SeverityReject,
			Reason: fmt.Sprintf("max concurrent positions reached (%d)", g.limits.MaxPositions)}
	}

	// 5. Aggregate margin cap, tightened under high correlation.
	marginCap := g.limits.MaxTotalMarginPct
	if !math.IsNaN(req.Correlation) && req.Correlation > g.limits.CorrHighThreshold {
		marginCap = g.limits.CorrAdjustedMarginPct
	}
	if g.equity > 0 && req.MarginInUse/g.equity >= marginCap {
		return Decision{Severity: SeverityReject,
			Reason: fmt.Sprintf("total margin limit reached (%.1f%%)", req.MarginInUse/g.equity*100)}
	}

	// 6. Extreme volatility veto.
	if req.ATRPercentile > g.limits.ExtremeVolPercentile {
		return Decision{Severity: SeverityReject,
			Reason: fmt.Sprintf("extreme volatility (ATR %.0fth percentile)", req.ATRPercentile)}
	}

	// 7. High volatility scaling.
	if req.ATRPercentile > g.limits.HighVolPercentile {
		mult *= 0.5
	}

	// 8. Soft drawdown scaling.
	if dd > g.limits.SoftDrawdown {
		mult *= 0.5
	}

	// 9. Consecutive-loss stop for the day.
	if g.consecutiveLosses >= g.limits.ConsecLossStop {
		return Decision{Severity: SeverityReject,
			Reason: fmt.Sprintf("consecutive loss limit (%d losses)", g.consecutiveLosses)}
	}

	// 10. Consecutive-loss scaling.
	if g.consecutiveLosses >= g.limits.ConsecLossScale {
		mult *= 0.5
	}

	// 11. Funding gate: only entries that would pay the funding are
	// blocked; the warning band is informational (confidence dampening
	// happens in the strategy layer).
	if !math.IsNaN(req.FundingRate) {
		paying := (req.Direction == market.Long && req.FundingRate > 0) ||
			(req.Direction == market.Short && req.FundingRate < 0)
		if math.Abs(req.FundingRate) > g.limits.FundingStop && paying {
			return Decision{Severity: SeverityReject,
				Reason: fmt.Sprintf("extreme funding rate (%+.4f)", req.FundingRate)}
		}
		if math.Abs(req.FundingRate) > g.limits.FundingWarn {
			g.log.Debug().
				Str("symbol", req.Symbol).
				Float64("funding_rate", req.FundingRate).
				Msg("funding rate above warning threshold")
		}
	}

	return Decision{Allow: true, SizeMult: mult, Reason: "ok"}
}

// PositionSize converts equity risk into a coin quantity:
// risk_amount = equity x RiskPerTrade, stop width = StopATRMult x ATR,
// raw size = risk / stop width, then confidence and multiplier applied,
// capped at MaxMarginPerPosition x leverage of equity. Zero ATR yields
// a zero size rather than an error.
func (g *Gatekeeper) PositionSize(price, atr, confidence, sizeMult float64) Sizing {
	stopWidth := g.limits.StopATRMult * atr
	if stopWidth <= 0 || price <= 0 {
		return Sizing{}
	}

	riskAmount := g.equity * g.limits.RiskPerTrade
	coins := riskAmount / stopWidth
	notional := coins * price * confidence * sizeMult

	maxNotional := g.equity * g.limits.MaxMarginPerPosition * g.limits.Leverage
	if notional > maxNotional {
		notional = maxNotional
	}

	return Sizing{
		Coins:    notional / price,
		Notional: notional,
		Margin:   notional / g.limits.Leverage,
	}
}

// StopPrice is the initial stop for an entry: entry -/+ StopATRMult x ATR.
func (g *Gatekeeper) StopPrice(entry float64, dir market.Direction, atr float64) float64 {
	width := g.limits.StopATRMult * atr
	if dir == market.Long {
		return entry - width
	}
	return entry + width
}

// CheckLiquidationBuffer verifies the distance between entry and
// liquidation price is at least MinLiquidationBufferATR ATRs.
func (g *Gatekeeper) CheckLiquidationBuffer(entry, liquidation, atr float64) (bool, float64) {
	if atr <= 0 {
		return false, 0
	}
	buffer := math.Abs(entry-liquidation) / atr
	return buffer >= g.limits.MinLiquidationBufferATR, buffer
}

// RecordTradeResult feeds the consecutive-loss counter: wins reset it,
// losses increment it.
func (g *Gatekeeper) RecordTradeResult(win bool) {
	if win {
		g.consecutiveLosses = 0
		return
	}
	g.consecutiveLosses++
	g.log.Debug().Int("consecutive_losses", g.consecutiveLosses).Msg("losing trade recorded")
}

// ResetConsecutiveLosses clears the counter (daily reset).
func (g *Gatekeeper) ResetConsecutiveLosses() {
	g.consecutiveLosses = 0
}
