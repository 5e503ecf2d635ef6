package market

import (
	"fmt"
	"time"
)

// FundingInterval is the exchange settlement cadence: three times daily
// at 00:00, 08:00 and 16:00 UTC.
const FundingInterval = 8 * time.Hour

// IsFundingBoundary reports whether t falls exactly on a settlement
// instant.
func IsFundingBoundary(t time.Time) bool {
	u := t.UTC()
	return u.Hour()%8 == 0 && u.Minute() == 0 && u.Second() == 0 && u.Nanosecond() == 0
}

// FundingRate is one historical settlement-rate observation.
type FundingRate struct {
	Time time.Time
	Rate float64 // e.g. 0.0001 = 0.01%
}

// FundingTable holds a symbol's funding-rate history sorted ascending
// by settlement time.
type FundingTable struct {
	Symbol string
	Rates  []FundingRate
}

func (ft *FundingTable) Validate() error {
	for i := 1; i < len(ft.Rates); i++ {
		if !ft.Rates[i].Time.After(ft.Rates[i-1].Time) {
			return fmt.Errorf("funding %s: timestamps not strictly ascending at index %d", ft.Symbol, i)
		}
	}
	return nil
}

// RateAt returns the rate of the latest observation at or before t, or
// 0 when no observation precedes t. Binary search keeps lookups cheap
// without cursor state.
func (ft *FundingTable) RateAt(t time.Time) float64 {
	lo, hi := 0, len(ft.Rates)
	for lo < hi {
		mid := (lo + hi) / 2
		if ft.Rates[mid].Time.After(t) {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	if lo == 0 {
		return 0
	}
	return ft.Rates[lo-1].Rate
}
