package journal

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// CSV writes the three streams to three files.
type CSV struct {
	trades  *csv.Writer
	equity  *csv.Writer
	funding *csv.Writer
	files   []*os.File
}

func NewCSV(tradesPath, equityPath, fundingPath string) (*CSV, error) {
	j := &CSV{}
	for _, stream := range []struct {
		path   string
		header []string
		dst    **csv.Writer
	}{
		{tradesPath, []string{
			"trade_id", "run_id", "symbol", "direction",
			"entry_time", "exit_time", "entry_price", "exit_price",
			"size", "notional", "margin",
			"regime", "strategy", "reason",
			"raw_pnl", "fees", "funding", "net_pnl", "r_multiple",
			"holding_hours", "pyramided", "liquidated",
		}, &j.trades},
		{equityPath, []string{
			"time", "equity", "cash", "unrealized_pnl",
			"margin_used", "margin_ratio", "open_positions", "ref_prices",
		}, &j.equity},
		{fundingPath, []string{
			"time", "symbol", "rate", "notional", "pnl",
		}, &j.funding},
	} {
		f, err := os.Create(stream.path)
		if err != nil {
			j.Close()
			return nil, fmt.Errorf("csv journal: %w", err)
		}
		j.files = append(j.files, f)
		w := csv.NewWriter(f)
		if err := w.Write(stream.header); err != nil {
			j.Close()
			return nil, err
		}
		*stream.dst = w
	}
	return j, nil
}

func (j *CSV) RecordTrade(t TradeRecord) error {
	return write(j.trades, []string{
		t.TradeID, t.RunID, t.Symbol, t.Direction,
		t.EntryTime.UTC().Format(time.RFC3339),
		t.ExitTime.UTC().Format(time.RFC3339),
		f(t.EntryPrice), f(t.ExitPrice),
		f(t.Size), f(t.Notional), f(t.Margin),
		t.Regime, t.Strategy, t.Reason,
		f(t.RawPnL), f(t.Fees), f(t.Funding), f(t.NetPnL), f(t.RMultiple),
		f(t.HoldingHours),
		strconv.FormatBool(t.Pyramided), strconv.FormatBool(t.Liquidated),
	})
}

func (j *CSV) RecordEquity(e EquitySnapshot) error {
	return write(j.equity, []string{
		e.Time.UTC().Format(time.RFC3339),
		f(e.Equity), f(e.Cash), f(e.UnrealizedPnL),
		f(e.MarginUsed), f(e.MarginRatio),
		strconv.Itoa(e.OpenPositions),
		encodeRefPrices(e.RefPrices),
	})
}

func (j *CSV) RecordFunding(fe FundingEvent) error {
	return write(j.funding, []string{
		fe.Time.UTC().Format(time.RFC3339),
		fe.Symbol, f(fe.Rate), f(fe.Notional), f(fe.PnL),
	})
}

func (j *CSV) Close() error {
	for _, w := range []*csv.Writer{j.trades, j.equity, j.funding} {
		if w != nil {
			w.Flush()
		}
	}
	var first error
	for _, file := range j.files {
		if err := file.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func write(w *csv.Writer, rec []string) error {
	if err := w.Write(rec); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func f(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// encodeRefPrices renders the reference-price map with sorted keys so
// output files are byte-identical across runs.
func encodeRefPrices(prices map[string]float64) string {
	syms := make([]string, 0, len(prices))
	for s := range prices {
		syms = append(syms, s)
	}
	sort.Strings(syms)
	parts := make([]string, 0, len(syms))
	for _, s := range syms {
		parts = append(parts, s+"="+f(prices[s]))
	}
	return strings.Join(parts, ";")
}
