package journal

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite persists runs for later querying and reporting.
type SQLite struct {
	db    *sql.DB
	runID string
}

func NewSQLite(path, runID string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite journal: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite journal: apply schema: %w", err)
	}
	return &SQLite{db: db, runID: runID}, nil
}

// StartRun records run metadata before any stream records arrive.
func (j *SQLite) StartRun(startedAt time.Time, symbols []string, initialCapital float64) error {
	_, err := j.db.Exec(`
		INSERT INTO runs (run_id, started_at, symbols, initial_capital)
		VALUES (?, ?, ?, ?)`,
		j.runID, startedAt.UTC(), strings.Join(symbols, ","), initialCapital,
	)
	return err
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(trade_id, run_id, symbol, direction, entry_time, exit_time,
		 entry_price, exit_price, size, notional, margin,
		 regime, strategy, reason,
		 raw_pnl, fees, funding, net_pnl, r_multiple,
		 holding_hours, pyramided, liquidated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TradeID, j.runID, t.Symbol, t.Direction,
		t.EntryTime.UTC(), t.ExitTime.UTC(),
		t.EntryPrice, t.ExitPrice, t.Size, t.Notional, t.Margin,
		t.Regime, t.Strategy, t.Reason,
		t.RawPnL, t.Fees, t.Funding, t.NetPnL, t.RMultiple,
		t.HoldingHours, t.Pyramided, t.Liquidated,
	)
	return err
}

func (j *SQLite) RecordEquity(e EquitySnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO equity
		(run_id, time, equity, cash, unrealized_pnl, margin_used, margin_ratio, open_positions, ref_prices)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.runID, e.Time.UTC(), e.Equity, e.Cash, e.UnrealizedPnL,
		e.MarginUsed, e.MarginRatio, e.OpenPositions, encodeRefPrices(e.RefPrices),
	)
	return err
}

func (j *SQLite) RecordFunding(fe FundingEvent) error {
	_, err := j.db.Exec(`
		INSERT INTO funding_events (run_id, time, symbol, rate, notional, pnl)
		VALUES (?, ?, ?, ?, ?, ?)`,
		j.runID, fe.Time.UTC(), fe.Symbol, fe.Rate, fe.Notional, fe.PnL,
	)
	return err
}

func (j *SQLite) Close() error { return j.db.Close() }
