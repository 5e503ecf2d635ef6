package report

import (
	"fmt"
	"io"
	"math"
	"time"
)

// Render writes the summary as plain text, one section per breakdown.
func Render(w io.Writer, s Summary) {
	fmt.Fprintf(w, "Period           %s .. %s (%.1f days)\n",
		s.Start.Format(time.RFC3339), s.End.Format(time.RFC3339),
		s.End.Sub(s.Start).Hours()/24)
	fmt.Fprintf(w, "Equity           %.2f -> %.2f\n", s.InitialEquity, s.FinalEquity)
	fmt.Fprintf(w, "Total return     %+.2f%%\n", s.TotalReturn*100)
	fmt.Fprintf(w, "CAGR             %+.2f%%\n", s.CAGR*100)
	fmt.Fprintf(w, "Max drawdown     %.2f%%\n", s.MaxDrawdown*100)
	fmt.Fprintf(w, "Sharpe           %.2f\n", s.Sharpe)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Trades           %d (%d wins / %d losses)\n", s.Trades, s.Wins, s.Losses)
	fmt.Fprintf(w, "Win rate         %.1f%%\n", s.WinRate*100)
	if math.IsInf(s.ProfitFactor, 1) {
		fmt.Fprintf(w, "Profit factor    inf\n")
	} else {
		fmt.Fprintf(w, "Profit factor    %.2f\n", s.ProfitFactor)
	}
	fmt.Fprintf(w, "Avg win / loss   %.2f / %.2f\n", s.AvgWin, s.AvgLoss)
	fmt.Fprintf(w, "Fees paid        %.2f\n", s.TotalFees)
	fmt.Fprintf(w, "Funding paid     %.2f\n", s.TotalFunding)
	if s.Liquidations > 0 {
		fmt.Fprintf(w, "Liquidations     %d\n", s.Liquidations)
	}

	section(w, "By exit reason", s.ByExitReason)
	section(w, "By direction", s.ByDirection)
	section(w, "By regime", s.ByRegime)
	section(w, "By symbol", s.BySymbol)
}

func section(w io.Writer, title string, m map[string]Bucket) {
	if len(m) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s\n", title)
	for _, k := range SortedKeys(m) {
		b := m[k]
		fmt.Fprintf(w, "  %-20s %4d trades  %5.1f%% win  %+12.2f\n",
			k, b.Trades, b.WinRate()*100, b.NetPnL)
	}
}
