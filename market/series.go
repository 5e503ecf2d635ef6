package market

import (
	"fmt"
	"time"
)

// Series is one symbol's bar history for a single timeframe, sorted
// ascending by open time with no duplicates. Bars are read-only once
// the series has been validated and enriched.
type Series struct {
	Symbol    string
	Timeframe Timeframe
	Bars      []Bar
}

// Validate checks ordering and duplicate constraints. Data files are
// produced externally, so the engine refuses anything out of contract
// instead of repairing it.
func (s *Series) Validate() error {
	if s.Symbol == "" {
		return fmt.Errorf("series: empty symbol")
	}
	if s.Timeframe <= 0 {
		return fmt.Errorf("series %s: invalid timeframe %d", s.Symbol, s.Timeframe)
	}
	for i := 1; i < len(s.Bars); i++ {
		prev, cur := s.Bars[i-1].Time, s.Bars[i].Time
		if cur.Equal(prev) {
			return fmt.Errorf("series %s/%s: duplicate timestamp %s at index %d",
				s.Symbol, s.Timeframe, cur.UTC().Format(time.RFC3339), i)
		}
		if cur.Before(prev) {
			return fmt.Errorf("series %s/%s: timestamps not ascending at index %d (%s < %s)",
				s.Symbol, s.Timeframe, i,
				cur.UTC().Format(time.RFC3339), prev.UTC().Format(time.RFC3339))
		}
	}
	return nil
}

// Slice returns the bars with open times in [start, end). A zero start
// or end leaves that side unbounded.
func (s *Series) Slice(start, end time.Time) *Series {
	out := &Series{Symbol: s.Symbol, Timeframe: s.Timeframe}
	for _, b := range s.Bars {
		if !start.IsZero() && b.Time.Before(start) {
			continue
		}
		if !end.IsZero() && !b.Time.Before(end) {
			break
		}
		out.Bars = append(out.Bars, b)
	}
	return out
}

// Cursor walks a series forward in time. Advance never rescans from the
// start, so a full simulation pass over N lower-timeframe bars touches
// each higher-timeframe bar exactly once.
type Cursor struct {
	s *Series
	i int // index of the last bar returned; -1 before the first advance
}

func (s *Series) NewCursor() *Cursor {
	return &Cursor{s: s, i: -1}
}

// Advance moves the cursor to the most recent bar that has fully closed
// at instant now (bar open + timeframe <= now) and returns it. ok is
// false while no bar has closed yet.
func (c *Cursor) Advance(now time.Time) (Bar, bool) {
	d := c.s.Timeframe.Duration()
	for c.i+1 < len(c.s.Bars) {
		next := c.s.Bars[c.i+1]
		if next.Time.Add(d).After(now) {
			break
		}
		c.i++
	}
	if c.i < 0 {
		return Bar{}, false
	}
	return c.s.Bars[c.i], true
}

// Current returns the bar the cursor is parked on.
func (c *Cursor) Current() (Bar, bool) {
	if c.i < 0 {
		return Bar{}, false
	}
	return c.s.Bars[c.i], true
}

// At returns the bar with exactly the given open time, if present,
// advancing monotonically like Advance.
func (c *Cursor) At(open time.Time) (Bar, bool) {
	for c.i+1 < len(c.s.Bars) && !c.s.Bars[c.i+1].Time.After(open) {
		c.i++
	}
	if c.i >= 0 && c.s.Bars[c.i].Time.Equal(open) {
		return c.s.Bars[c.i], true
	}
	return Bar{}, false
}
