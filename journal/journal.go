// Package journal records the simulation's three output streams: the
// trade log, the equity curve and funding settlements. Backends share
// one record schema; the memory journal feeds reporting and tests, the
// CSV and SQLite journals persist runs.
package journal

import "time"

// TradeRecord is one closed fill-segment of a position. Partial exits
// produce multiple records sharing a symbol and direction.
type TradeRecord struct {
	TradeID string
	RunID   string
	Symbol  string

	Direction string
	EntryTime time.Time
	ExitTime  time.Time

	EntryPrice float64
	ExitPrice  float64
	Size       float64 // coins closed in this segment
	Notional   float64 // entry-side USD value of the segment
	Margin     float64 // margin released by the segment

	Regime   string // regime at entry
	Strategy string // entry strategy label
	Reason   string // exit reason

	RawPnL    float64
	Fees      float64
	Funding   float64
	NetPnL    float64
	RMultiple float64

	HoldingHours float64
	Pyramided    bool
	Liquidated   bool
}

// EquitySnapshot is one bar's mark-to-market state.
type EquitySnapshot struct {
	Time time.Time

	Equity        float64
	Cash          float64
	UnrealizedPnL float64
	MarginUsed    float64
	MarginRatio   float64

	OpenPositions int
	RefPrices     map[string]float64
}

// FundingEvent is one settlement applied to one open position.
type FundingEvent struct {
	Time     time.Time
	Symbol   string
	Rate     float64
	Notional float64
	PnL      float64 // negative when the position pays
}

// Journal receives the three output streams in bar order.
type Journal interface {
	RecordTrade(TradeRecord) error
	RecordEquity(EquitySnapshot) error
	RecordFunding(FundingEvent) error
	Close() error
}

// Multi fans records out to several journals (e.g. memory for the
// report plus SQLite for persistence).
type Multi []Journal

func (m Multi) RecordTrade(t TradeRecord) error {
	for _, j := range m {
		if err := j.RecordTrade(t); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) RecordEquity(e EquitySnapshot) error {
	for _, j := range m {
		if err := j.RecordEquity(e); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) RecordFunding(f FundingEvent) error {
	for _, j := range m {
		if err := j.RecordFunding(f); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) Close() error {
	var first error
	for _, j := range m {
		if err := j.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
