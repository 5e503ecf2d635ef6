package market

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const barsCSV = `open_time,open,high,low,close,volume
2023-06-01T00:00:00Z,100,105,99,104,1200
2023-06-01T01:00:00Z,104,108,103,107,900
`

const fundingCSV = `time,rate
2023-06-01T00:00:00Z,0.0001
2023-06-01T08:00:00Z,-0.0002
`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadBars(t *testing.T) {
	t.Parallel()

	path := writeTemp(t, "BTCUSDT_1h.csv", barsCSV)
	s, err := LoadBars(path, "BTCUSDT", TF1h)
	require.NoError(t, err)

	require.Len(t, s.Bars, 2)
	assert.Equal(t, time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC), s.Bars[0].Time)
	assert.Equal(t, 104.0, s.Bars[0].Close)
	assert.Equal(t, 900.0, s.Bars[1].Volume)
	// Indicators start NaN until enrichment runs.
	assert.True(t, s.Bars[0].Ind.ATR14 != s.Bars[0].Ind.ATR14)
}

func TestLoadBarsRejectsBadHeader(t *testing.T) {
	t.Parallel()

	path := writeTemp(t, "bad.csv", "time,open,high,low,close,volume\n")
	_, err := LoadBars(path, "BTCUSDT", TF1h)
	assert.ErrorContains(t, err, "header")
}

func TestLoadBarsRejectsDisorder(t *testing.T) {
	t.Parallel()

	disordered := `open_time,open,high,low,close,volume
2023-06-01T01:00:00Z,104,108,103,107,900
2023-06-01T00:00:00Z,100,105,99,104,1200
`
	path := writeTemp(t, "rev.csv", disordered)
	_, err := LoadBars(path, "BTCUSDT", TF1h)
	assert.ErrorContains(t, err, "ascending")
}

func TestLoadFunding(t *testing.T) {
	t.Parallel()

	path := writeTemp(t, "BTCUSDT_funding.csv", fundingCSV)
	ft, err := LoadFunding(path, "BTCUSDT")
	require.NoError(t, err)

	require.Len(t, ft.Rates, 2)
	assert.Equal(t, 0.0001, ft.Rates[0].Rate)
	assert.Equal(t, -0.0002, ft.Rates[1].Rate)
}

func TestFilenames(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "BTCUSDT_4h.csv", BarFilename("btcusdt", TF4h))
	assert.Equal(t, "ETHUSDT_funding.csv", FundingFilename("ETHUSDT"))
}

func TestFindDataFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "BTCUSDT_1h.csv.xz"), []byte("x"), 0o644))

	path, err := FindDataFile(dir, "BTCUSDT_1h.csv")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "BTCUSDT_1h.csv.xz"), path)

	_, err = FindDataFile(dir, "ETHUSDT_1h.csv")
	assert.Error(t, err)
}
