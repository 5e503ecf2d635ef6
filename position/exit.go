package position

// ExitKind is the closed set of reasons a position sheds size.
type ExitKind uint8

const (
	ExitNone ExitKind = iota
	ExitStopLoss
	ExitTrailingStop
	ExitPartialTP2R
	ExitPartialTP3R
	ExitPartialTPMR1 // mean-reversion first target (1R, 60%)
	ExitPartialTPMR2 // mean-reversion second target (2R, remainder)
	ExitTimeStop
	ExitRegimeClose
	ExitLiquidation
	ExitEndOfData
)

func (k ExitKind) String() string {
	switch k {
	case ExitStopLoss:
		return "STOP_LOSS"
	case ExitTrailingStop:
		return "TRAILING_STOP"
	case ExitPartialTP2R:
		return "PARTIAL_TP_2R"
	case ExitPartialTP3R:
		return "PARTIAL_TP_3R"
	case ExitPartialTPMR1:
		return "PARTIAL_TP_MR_1R"
	case ExitPartialTPMR2:
		return "PARTIAL_TP_MR_2R"
	case ExitTimeStop:
		return "TIME_STOP"
	case ExitRegimeClose:
		return "REGIME_TRANSITION"
	case ExitLiquidation:
		return "LIQUIDATION"
	case ExitEndOfData:
		return "END_OF_DATA"
	default:
		return "NONE"
	}
}

// Full reports whether this exit closes the whole remaining size.
func (k ExitKind) Full() bool {
	switch k {
	case ExitPartialTP2R, ExitPartialTP3R, ExitPartialTPMR1:
		return false
	default:
		return true
	}
}

// ExitSignal is one bar's exit decision for one position. Pct is the
// fraction of the remaining size to close. Price is the fill price the
// signal implies (stop level for stop-type exits, close for the rest).
type ExitSignal struct {
	Kind   ExitKind
	Pct    float64
	Price  float64
	Reason string
}
