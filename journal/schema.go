package journal

const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	started_at DATETIME NOT NULL,
	symbols TEXT NOT NULL,
	initial_capital REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
	trade_id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	direction TEXT NOT NULL,
	entry_time DATETIME NOT NULL,
	exit_time DATETIME NOT NULL,
	entry_price REAL NOT NULL,
	exit_price REAL NOT NULL,
	size REAL NOT NULL,
	notional REAL NOT NULL,
	margin REAL NOT NULL,
	regime TEXT NOT NULL,
	strategy TEXT NOT NULL,
	reason TEXT NOT NULL,
	raw_pnl REAL NOT NULL,
	fees REAL NOT NULL,
	funding REAL NOT NULL,
	net_pnl REAL NOT NULL,
	r_multiple REAL NOT NULL,
	holding_hours REAL NOT NULL,
	pyramided INTEGER NOT NULL,
	liquidated INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS equity (
	run_id TEXT NOT NULL,
	time DATETIME NOT NULL,
	equity REAL NOT NULL,
	cash REAL NOT NULL,
	unrealized_pnl REAL NOT NULL,
	margin_used REAL NOT NULL,
	margin_ratio REAL NOT NULL,
	open_positions INTEGER NOT NULL,
	ref_prices TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS funding_events (
	run_id TEXT NOT NULL,
	time DATETIME NOT NULL,
	symbol TEXT NOT NULL,
	rate REAL NOT NULL,
	notional REAL NOT NULL,
	pnl REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_run ON trades(run_id);
CREATE INDEX IF NOT EXISTS idx_equity_run_time ON equity(run_id, time);
CREATE INDEX IF NOT EXISTS idx_funding_run_time ON funding_events(run_id, time);
`
