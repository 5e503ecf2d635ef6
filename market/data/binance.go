// Package data downloads bar and funding history from the Binance
// USD-M futures API and writes the CSV datasets the simulator loads.
// Public market-data endpoints need no API key.
package data

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/rs/zerolog"

	"perpsim/market"
)

const (
	klineLimit   = 1500 // Binance max per klines request
	fundingLimit = 1000 // Binance max per funding-rate request
)

// Fetcher pulls historical data for a set of symbols.
type Fetcher struct {
	client *futures.Client
	log    zerolog.Logger
}

func NewFetcher(client *futures.Client, log zerolog.Logger) *Fetcher {
	return &Fetcher{
		client: client,
		log:    log.With().Str("component", "fetch").Logger(),
	}
}

// Klines downloads [start, end) for one symbol and timeframe, chunked
// by the exchange's per-request limit.
func (f *Fetcher) Klines(ctx context.Context, symbol string, tf market.Timeframe, start, end time.Time) (*market.Series, error) {
	s := &market.Series{Symbol: symbol, Timeframe: tf}
	cursor := start

	for cursor.Before(end) {
		klines, err := f.client.NewKlinesService().
			Symbol(symbol).
			Interval(tf.String()).
			StartTime(cursor.UnixMilli()).
			EndTime(end.UnixMilli()).
			Limit(klineLimit).
			Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch klines %s/%s: %w", symbol, tf, err)
		}
		if len(klines) == 0 {
			break
		}

		for _, k := range klines {
			bar, err := toBar(k)
			if err != nil {
				return nil, fmt.Errorf("fetch klines %s/%s: %w", symbol, tf, err)
			}
			s.Bars = append(s.Bars, bar)
		}

		last := klines[len(klines)-1]
		cursor = time.UnixMilli(last.OpenTime).Add(tf.Duration())
		f.log.Debug().
			Str("symbol", symbol).
			Stringer("timeframe", tf).
			Int("bars", len(s.Bars)).
			Time("cursor", cursor).
			Msg("kline chunk fetched")

		if len(klines) < klineLimit {
			break
		}
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// FundingRates downloads the settlement history for one symbol.
func (f *Fetcher) FundingRates(ctx context.Context, symbol string, start, end time.Time) (*market.FundingTable, error) {
	ft := &market.FundingTable{Symbol: symbol}
	cursor := start

	for cursor.Before(end) {
		rates, err := f.client.NewFundingRateService().
			Symbol(symbol).
			StartTime(cursor.UnixMilli()).
			EndTime(end.UnixMilli()).
			Limit(fundingLimit).
			Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch funding %s: %w", symbol, err)
		}
		if len(rates) == 0 {
			break
		}

		for _, r := range rates {
			rate, err := strconv.ParseFloat(r.FundingRate, 64)
			if err != nil {
				return nil, fmt.Errorf("fetch funding %s: bad rate %q: %w", symbol, r.FundingRate, err)
			}
			ft.Rates = append(ft.Rates, market.FundingRate{
				Time: time.UnixMilli(r.FundingTime).UTC(),
				Rate: rate,
			})
		}

		last := ft.Rates[len(ft.Rates)-1]
		cursor = last.Time.Add(time.Millisecond)
		if len(rates) < fundingLimit {
			break
		}
	}

	if err := ft.Validate(); err != nil {
		return nil, err
	}
	return ft, nil
}

func toBar(k *futures.Kline) (market.Bar, error) {
	vals := make([]float64, 5)
	for i, s := range []string{k.Open, k.High, k.Low, k.Close, k.Volume} {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return market.Bar{}, fmt.Errorf("bad kline field %q: %w", s, err)
		}
		vals[i] = v
	}
	return market.Bar{
		Time:   time.UnixMilli(k.OpenTime).UTC(),
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
		Ind:    market.EmptyIndicators(),
	}, nil
}

// WriteBars writes a series to the canonical CSV layout under dir.
func WriteBars(dir string, s *market.Series) (string, error) {
	path := filepath.Join(dir, market.BarFilename(s.Symbol, s.Timeframe))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"open_time", "open", "high", "low", "close", "volume"}); err != nil {
		return "", err
	}
	for _, b := range s.Bars {
		rec := []string{
			b.Time.UTC().Format(time.RFC3339),
			ff(b.Open), ff(b.High), ff(b.Low), ff(b.Close), ff(b.Volume),
		}
		if err := w.Write(rec); err != nil {
			return "", err
		}
	}
	w.Flush()
	return path, w.Error()
}

// WriteFunding writes a funding table to the canonical CSV layout.
func WriteFunding(dir string, ft *market.FundingTable) (string, error) {
	path := filepath.Join(dir, market.FundingFilename(ft.Symbol))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"time", "rate"}); err != nil {
		return "", err
	}
	for _, r := range ft.Rates {
		if err := w.Write([]string{r.Time.UTC().Format(time.RFC3339), ff(r.Rate)}); err != nil {
			return "", err
		}
	}
	w.Flush()
	return path, w.Error()
}

func ff(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
