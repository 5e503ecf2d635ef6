package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Reader loads recorded runs back out of a SQLite journal for
// reporting.
type Reader struct {
	db *sql.DB
}

func OpenReader(path string) (*Reader, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("journal reader: %w", err)
	}
	return &Reader{db: db}, nil
}

func (r *Reader) Close() error { return r.db.Close() }

// RunInfo is the runs-table row.
type RunInfo struct {
	RunID          string
	StartedAt      time.Time
	Symbols        string
	InitialCapital float64
}

// LatestRun returns the most recently started run.
func (r *Reader) LatestRun() (RunInfo, error) {
	var info RunInfo
	err := r.db.QueryRow(`
		SELECT run_id, started_at, symbols, initial_capital
		FROM runs ORDER BY started_at DESC LIMIT 1`).
		Scan(&info.RunID, &info.StartedAt, &info.Symbols, &info.InitialCapital)
	if err == sql.ErrNoRows {
		return info, fmt.Errorf("journal reader: no runs recorded")
	}
	return info, err
}

// Trades returns a run's trade log in exit-time order.
func (r *Reader) Trades(runID string) ([]TradeRecord, error) {
	rows, err := r.db.Query(`
		SELECT trade_id, run_id, symbol, direction, entry_time, exit_time,
		       entry_price, exit_price, size, notional, margin,
		       regime, strategy, reason,
		       raw_pnl, fees, funding, net_pnl, r_multiple,
		       holding_hours, pyramided, liquidated
		FROM trades WHERE run_id = ? ORDER BY exit_time, trade_id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var t TradeRecord
		if err := rows.Scan(
			&t.TradeID, &t.RunID, &t.Symbol, &t.Direction, &t.EntryTime, &t.ExitTime,
			&t.EntryPrice, &t.ExitPrice, &t.Size, &t.Notional, &t.Margin,
			&t.Regime, &t.Strategy, &t.Reason,
			&t.RawPnL, &t.Fees, &t.Funding, &t.NetPnL, &t.RMultiple,
			&t.HoldingHours, &t.Pyramided, &t.Liquidated,
		); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Equity returns a run's equity curve in time order. Reference prices
// are not decoded; reporting does not need them.
func (r *Reader) Equity(runID string) ([]EquitySnapshot, error) {
	rows, err := r.db.Query(`
		SELECT time, equity, cash, unrealized_pnl, margin_used, margin_ratio, open_positions
		FROM equity WHERE run_id = ? ORDER BY time`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquitySnapshot
	for rows.Next() {
		var e EquitySnapshot
		if err := rows.Scan(
			&e.Time, &e.Equity, &e.Cash, &e.UnrealizedPnL,
			&e.MarginUsed, &e.MarginRatio, &e.OpenPositions,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// FundingEvents returns a run's settlements in time order.
func (r *Reader) FundingEvents(runID string) ([]FundingEvent, error) {
	rows, err := r.db.Query(`
		SELECT time, symbol, rate, notional, pnl
		FROM funding_events WHERE run_id = ? ORDER BY time, symbol`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FundingEvent
	for rows.Next() {
		var fe FundingEvent
		if err := rows.Scan(&fe.Time, &fe.Symbol, &fe.Rate, &fe.Notional, &fe.PnL); err != nil {
			return nil, err
		}
		out = append(out, fe)
	}
	return out, rows.Err()
}
