package regime

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"perpsim/market"
)

// CooldownPeriod suspends new entries after a transition between two
// tradeable regimes (two 4h bars' worth).
const CooldownPeriod = 8 * time.Hour

// Transition reports the outcome of one regime update.
type Transition struct {
	Regime  Regime
	Changed bool

	// ImmediateClose is set on a direct bull<->bear flip: the caller
	// must force-close every open position before any other action.
	ImmediateClose bool
}

// Engine wraps Classify with transition detection and cooldown state.
// One instance per run, owned by the simulation clock.
type Engine struct {
	log zerolog.Logger

	current    Regime
	previous   Regime
	changedAt  time.Time
	inCooldown bool
}

func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{log: log.With().Str("component", "regime").Logger()}
}

func (e *Engine) Current() Regime        { return e.current }
func (e *Engine) Previous() Regime       { return e.previous }
func (e *Engine) ChangedAt() time.Time   { return e.changedAt }
func (e *Engine) InCooldown() bool       { return e.inCooldown }

// Update re-classifies from a freshly closed higher-timeframe bar and
// advances the transition state machine. Call at most once per
// higher-timeframe close; intervening bars reuse Current().
func (e *Engine) Update(in market.Indicators, now time.Time) Transition {
	next := Classify(in)
	tr := Transition{Regime: next}

	if next != e.current {
		e.previous = e.current
		e.current = next
		tr.Changed = true

		switch {
		case isOppositeTrendFlip(e.previous, next):
			// Bull<->bear flip invalidates every open thesis at once.
			tr.ImmediateClose = true
			e.changedAt = now
			e.inCooldown = true
			e.log.Warn().
				Stringer("from", e.previous).
				Stringer("to", next).
				Time("at", now).
				Msg("opposite-trend regime flip, closing all positions")

		case next == Undefined || e.previous == Undefined:
			// Entering or leaving the no-trade zone carries no cooldown.
			e.log.Debug().
				Stringer("from", e.previous).
				Stringer("to", next).
				Msg("regime transition through no-trade zone")

		default:
			e.changedAt = now
			e.inCooldown = true
			e.log.Info().
				Stringer("from", e.previous).
				Stringer("to", next).
				Time("at", now).
				Msg("regime transition, existing positions keep their own exits")
		}
	}

	if e.inCooldown && now.Sub(e.changedAt) >= CooldownPeriod {
		e.inCooldown = false
		e.log.Info().Time("at", now).Msg("regime cooldown expired")
	}

	return tr
}

// CanEnter reports whether new entries are currently allowed, with a
// human-readable reason when they are not. Undefined blocks entries
// independently of the cooldown.
func (e *Engine) CanEnter(now time.Time) (bool, string) {
	if e.inCooldown {
		remaining := CooldownPeriod - now.Sub(e.changedAt)
		if remaining < 0 {
			remaining = 0
		}
		return false, fmt.Sprintf("regime cooldown, %s remaining", remaining.Truncate(time.Minute))
	}
	if e.current == Undefined {
		return false, "undefined regime (no-trade zone)"
	}
	return true, ""
}

func isOppositeTrendFlip(from, to Regime) bool {
	return (from == TrendingBull && to == TrendingBear) ||
		(from == TrendingBear && to == TrendingBull)
}
