package journal

// Memory keeps every record in order, in process. The report package
// consumes it directly.
type Memory struct {
	Trades  []TradeRecord
	Equity  []EquitySnapshot
	Funding []FundingEvent
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) RecordTrade(t TradeRecord) error {
	m.Trades = append(m.Trades, t)
	return nil
}

func (m *Memory) RecordEquity(e EquitySnapshot) error {
	m.Equity = append(m.Equity, e)
	return nil
}

func (m *Memory) RecordFunding(f FundingEvent) error {
	m.Funding = append(m.Funding, f)
	return nil
}

func (m *Memory) Close() error { return nil }
