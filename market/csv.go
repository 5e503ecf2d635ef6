package market

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ulikunitz/xz"
	"github.com/xyproto/unzip"
)

// Bar CSV layout written by `perpsim fetch` and consumed here:
//
//	open_time,open,high,low,close,volume
//
// Funding CSV layout:
//
//	time,rate
//
// Timestamps are RFC3339 UTC. Files may be stored plain, xz-compressed
// (.csv.xz) or zipped (.zip containing a single CSV).

// Open returns a reader over a possibly compressed dataset file.
func Open(path string) (io.ReadCloser, error) {
	switch {
	case strings.HasSuffix(path, ".xz"):
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		r, err := xz.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		return &wrappedCloser{Reader: r, closer: f}, nil

	case strings.HasSuffix(path, ".zip"):
		dir, err := os.MkdirTemp("", "perpsim-zip-")
		if err != nil {
			return nil, err
		}
		if err := unzip.Extract(path, dir); err != nil {
			os.RemoveAll(dir)
			return nil, fmt.Errorf("extract %s: %w", path, err)
		}
		matches, err := filepath.Glob(filepath.Join(dir, "*.csv"))
		if err != nil || len(matches) != 1 {
			os.RemoveAll(dir)
			return nil, fmt.Errorf("archive %s: expected exactly one CSV, got %d", path, len(matches))
		}
		f, err := os.Open(matches[0])
		if err != nil {
			os.RemoveAll(dir)
			return nil, err
		}
		return &wrappedCloser{Reader: f, closer: f, tmpDir: dir}, nil

	default:
		return os.Open(path)
	}
}

type wrappedCloser struct {
	io.Reader
	closer io.Closer
	tmpDir string
}

func (w *wrappedCloser) Close() error {
	err := w.closer.Close()
	if w.tmpDir != "" {
		os.RemoveAll(w.tmpDir)
	}
	return err
}

// LoadBars reads one symbol/timeframe bar file into a validated Series.
// Indicator fields are initialized to NaN; run the indicators package
// over the series before simulation.
func LoadBars(path, symbol string, tf Timeframe) (*Series, error) {
	rc, err := Open(path)
	if err != nil {
		return nil, fmt.Errorf("load bars: %w", err)
	}
	defer rc.Close()

	r := csv.NewReader(rc)
	r.FieldsPerRecord = 6

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("load bars %s: read header: %w", path, err)
	}
	if header[0] != "open_time" {
		return nil, fmt.Errorf("load bars %s: unexpected header %q", path, strings.Join(header, ","))
	}

	s := &Series{Symbol: symbol, Timeframe: tf}
	line := 1
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("load bars %s line %d: %w", path, line, err)
		}
		line++

		t, err := time.Parse(time.RFC3339, rec[0])
		if err != nil {
			return nil, fmt.Errorf("load bars %s line %d: bad time %q: %w", path, line, rec[0], err)
		}
		vals := make([]float64, 5)
		for i := 0; i < 5; i++ {
			vals[i], err = strconv.ParseFloat(rec[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("load bars %s line %d: bad field %q: %w", path, line, rec[i+1], err)
			}
		}
		s.Bars = append(s.Bars, Bar{
			Time:   t.UTC(),
			Open:   vals[0],
			High:   vals[1],
			Low:    vals[2],
			Close:  vals[3],
			Volume: vals[4],
			Ind:    EmptyIndicators(),
		})
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadFunding reads one symbol's funding-rate history.
func LoadFunding(path, symbol string) (*FundingTable, error) {
	rc, err := Open(path)
	if err != nil {
		return nil, fmt.Errorf("load funding: %w", err)
	}
	defer rc.Close()

	r := csv.NewReader(rc)
	r.FieldsPerRecord = 2

	if _, err := r.Read(); err != nil {
		return nil, fmt.Errorf("load funding %s: read header: %w", path, err)
	}

	ft := &FundingTable{Symbol: symbol}
	line := 1
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("load funding %s line %d: %w", path, line, err)
		}
		line++

		t, err := time.Parse(time.RFC3339, rec[0])
		if err != nil {
			return nil, fmt.Errorf("load funding %s line %d: bad time %q: %w", path, line, rec[0], err)
		}
		rate, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return nil, fmt.Errorf("load funding %s line %d: bad rate %q: %w", path, line, rec[1], err)
		}
		ft.Rates = append(ft.Rates, FundingRate{Time: t.UTC(), Rate: rate})
	}

	if err := ft.Validate(); err != nil {
		return nil, err
	}
	return ft, nil
}

// BarFilename is the canonical dataset filename for a symbol/timeframe.
func BarFilename(symbol string, tf Timeframe) string {
	return fmt.Sprintf("%s_%s.csv", strings.ToUpper(symbol), tf)
}

// FundingFilename is the canonical funding dataset filename.
func FundingFilename(symbol string) string {
	return fmt.Sprintf("%s_funding.csv", strings.ToUpper(symbol))
}

// FindDataFile resolves a dataset path, trying the plain name and the
// supported compressed variants in order.
func FindDataFile(dir, name string) (string, error) {
	for _, candidate := range []string{name, name + ".xz", name + ".zip"} {
		p := filepath.Join(dir, candidate)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("no dataset file %s under %s", name, dir)
}
