package journal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTrade() TradeRecord {
	return TradeRecord{
		TradeID:      "01TRADE",
		RunID:        "01RUN",
		Symbol:       "BTCUSDT",
		Direction:    "LONG",
		EntryTime:    time.Date(2024, 3, 1, 4, 0, 0, 0, time.UTC),
		ExitTime:     time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		EntryPrice:   50000,
		ExitPrice:    52000,
		Size:         0.5,
		Notional:     25000,
		Margin:       8333.5,
		Regime:       "BULL_TREND",
		Strategy:     "trend",
		Reason:       "TAKE_PROFIT",
		RawPnL:       1000,
		Fees:         25,
		Funding:      3.5,
		NetPnL:       971.5,
		RMultiple:    2,
		HoldingHours: 8,
		Pyramided:    true,
		Liquidated:   false,
	}
}

func sampleSnapshot() EquitySnapshot {
	return EquitySnapshot{
		Time:          time.Date(2024, 3, 1, 4, 15, 0, 0, time.UTC),
		Equity:        101000,
		Cash:          92000,
		UnrealizedPnL: 666.5,
		MarginUsed:    8333.5,
		MarginRatio:   0.0825,
		OpenPositions: 1,
		RefPrices:     map[string]float64{"ETHUSDT": 3000, "BTCUSDT": 50100},
	}
}

func sampleFunding() FundingEvent {
	return FundingEvent{
		Time:     time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
		Symbol:   "BTCUSDT",
		Rate:     0.0001,
		Notional: 25000,
		PnL:      -2.5,
	}
}

func TestCSVWritesAllStreams(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	trades := filepath.Join(dir, "trades.csv")
	equity := filepath.Join(dir, "equity.csv")
	funding := filepath.Join(dir, "funding.csv")

	j, err := NewCSV(trades, equity, funding)
	require.NoError(t, err)

	require.NoError(t, j.RecordTrade(sampleTrade()))
	require.NoError(t, j.RecordEquity(sampleSnapshot()))
	require.NoError(t, j.RecordFunding(sampleFunding()))
	require.NoError(t, j.Close())

	raw, err := os.ReadFile(trades)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "trade_id,run_id,symbol"))
	assert.Contains(t, lines[1], "01TRADE,01RUN,BTCUSDT,LONG")
	assert.Contains(t, lines[1], "2024-03-01T04:00:00Z")
	assert.Contains(t, lines[1], "971.5")
	assert.Contains(t, lines[1], "true,false")

	raw, err = os.ReadFile(equity)
	require.NoError(t, err)
	lines = strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)
	// Symbol keys sort so the column is stable across runs.
	assert.Contains(t, lines[1], "BTCUSDT=50100;ETHUSDT=3000")

	raw, err = os.ReadFile(funding)
	require.NoError(t, err)
	lines = strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "2024-03-01T08:00:00Z,BTCUSDT,0.0001,25000,-2.5", lines[1])
}

func TestCSVCreateFailure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, err := NewCSV(
		filepath.Join(dir, "missing", "trades.csv"),
		filepath.Join(dir, "equity.csv"),
		filepath.Join(dir, "funding.csv"),
	)
	assert.Error(t, err)
}

func TestSQLiteRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "runs.db")
	started := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	j, err := NewSQLite(path, "01RUN")
	require.NoError(t, err)
	require.NoError(t, j.StartRun(started, []string{"BTCUSDT", "ETHUSDT"}, 100000))

	tr := sampleTrade()
	require.NoError(t, j.RecordTrade(tr))
	require.NoError(t, j.RecordEquity(sampleSnapshot()))
	require.NoError(t, j.RecordFunding(sampleFunding()))
	require.NoError(t, j.Close())

	r, err := OpenReader(path)
	require.NoError(t, err)
	defer r.Close()

	info, err := r.LatestRun()
	require.NoError(t, err)
	assert.Equal(t, "01RUN", info.RunID)
	assert.Equal(t, "BTCUSDT,ETHUSDT", info.Symbols)
	assert.Equal(t, 100000.0, info.InitialCapital)
	assert.True(t, info.StartedAt.Equal(started))

	trades, err := r.Trades("01RUN")
	require.NoError(t, err)
	require.Len(t, trades, 1)
	got := trades[0]
	assert.Equal(t, tr.TradeID, got.TradeID)
	assert.Equal(t, tr.Symbol, got.Symbol)
	assert.True(t, got.EntryTime.Equal(tr.EntryTime))
	assert.True(t, got.ExitTime.Equal(tr.ExitTime))
	assert.Equal(t, tr.NetPnL, got.NetPnL)
	assert.Equal(t, tr.RMultiple, got.RMultiple)
	assert.True(t, got.Pyramided)
	assert.False(t, got.Liquidated)

	curve, err := r.Equity("01RUN")
	require.NoError(t, err)
	require.Len(t, curve, 1)
	assert.Equal(t, 101000.0, curve[0].Equity)
	assert.Equal(t, 1, curve[0].OpenPositions)

	events, err := r.FundingEvents("01RUN")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, -2.5, events[0].PnL)
}

func TestSQLiteLatestRunPicksNewest(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "runs.db")

	first, err := NewSQLite(path, "01OLD")
	require.NoError(t, err)
	require.NoError(t, first.StartRun(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), []string{"BTCUSDT"}, 50000))
	require.NoError(t, first.Close())

	second, err := NewSQLite(path, "01NEW")
	require.NoError(t, err)
	require.NoError(t, second.StartRun(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), []string{"BTCUSDT"}, 60000))
	require.NoError(t, second.Close())

	r, err := OpenReader(path)
	require.NoError(t, err)
	defer r.Close()

	info, err := r.LatestRun()
	require.NoError(t, err)
	assert.Equal(t, "01NEW", info.RunID)
}

func TestReaderNoRuns(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "runs.db")
	j, err := NewSQLite(path, "01RUN")
	require.NoError(t, err)
	require.NoError(t, j.Close())

	r, err := OpenReader(path)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.LatestRun()
	assert.Error(t, err)
}

func TestMultiFansOut(t *testing.T) {
	t.Parallel()

	a, b := NewMemory(), NewMemory()
	m := Multi{a, b}

	require.NoError(t, m.RecordTrade(sampleTrade()))
	require.NoError(t, m.RecordEquity(sampleSnapshot()))
	require.NoError(t, m.RecordFunding(sampleFunding()))
	require.NoError(t, m.Close())

	for _, mem := range []*Memory{a, b} {
		assert.Len(t, mem.Trades, 1)
		assert.Len(t, mem.Equity, 1)
		assert.Len(t, mem.Funding, 1)
	}
}

func TestMemoryKeepsOrder(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	first := sampleTrade()
	second := sampleTrade()
	second.TradeID = "01TRADE2"

	require.NoError(t, m.RecordTrade(first))
	require.NoError(t, m.RecordTrade(second))
	require.Len(t, m.Trades, 2)
	assert.Equal(t, "01TRADE", m.Trades[0].TradeID)
	assert.Equal(t, "01TRADE2", m.Trades[1].TradeID)
}
