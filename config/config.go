// Package config loads run configuration from a YAML file with
// environment overrides. A .env file in the working directory is read
// first, so local setups can override paths and credentials without
// touching the committed config.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"perpsim/risk"
	"perpsim/sim"
)

// Config is the on-disk run configuration.
type Config struct {
	Symbols         []string `yaml:"symbols"`
	ReferenceSymbol string   `yaml:"reference_symbol"`

	InitialCapital float64 `yaml:"initial_capital"`
	Leverage       float64 `yaml:"leverage"`

	TakerFeeRate    float64 `yaml:"taker_fee_rate"`
	SlippageRate    float64 `yaml:"slippage_rate"`
	MaintMarginRate float64 `yaml:"maintenance_margin_rate"`

	// RFC3339 or YYYY-MM-DD; empty leaves the side unbounded.
	Start string `yaml:"start"`
	End   string `yaml:"end"`

	Seed int64 `yaml:"seed"`

	DataDir   string `yaml:"data_dir"`
	OutputDir string `yaml:"output_dir"`

	Risk RiskConfig `yaml:"risk"`
}

// RiskConfig mirrors risk.Limits with YAML tags. Zero values fall back
// to the defaults, so a config file only lists what it changes.
type RiskConfig struct {
	SoftDrawdown float64 `yaml:"soft_drawdown"`
	FirmDrawdown float64 `yaml:"firm_drawdown"`
	HardDrawdown float64 `yaml:"hard_drawdown"`

	DailyLossLimit float64 `yaml:"daily_loss_limit"`

	MaxPositions          int     `yaml:"max_positions"`
	MaxTotalMarginPct     float64 `yaml:"max_total_margin_pct"`
	CorrAdjustedMarginPct float64 `yaml:"corr_adjusted_margin_pct"`
	CorrHighThreshold     float64 `yaml:"corr_high_threshold"`

	ExtremeVolPercentile float64 `yaml:"extreme_vol_percentile"`
	HighVolPercentile    float64 `yaml:"high_vol_percentile"`

	ConsecLossScale int `yaml:"consec_loss_scale"`
	ConsecLossStop  int `yaml:"consec_loss_stop"`

	FundingWarn float64 `yaml:"funding_warn"`
	FundingStop float64 `yaml:"funding_stop"`

	RiskPerTrade         float64 `yaml:"risk_per_trade"`
	StopATRMult          float64 `yaml:"stop_atr_mult"`
	MaxMarginPerPosition float64 `yaml:"max_margin_per_position"`

	MinLiquidationBufferATR float64 `yaml:"min_liquidation_buffer_atr"`
}

// Default returns a runnable configuration with the production risk
// thresholds.
func Default() Config {
	return Config{
		Symbols:         []string{"BTCUSDT", "ETHUSDT"},
		ReferenceSymbol: "BTCUSDT",
		InitialCapital:  10000,
		Leverage:        3,
		TakerFeeRate:    0.0005,
		SlippageRate:    0.0003,
		MaintMarginRate: 0.005,
		DataDir:         "data",
		OutputDir:       "out",
	}
}

// Load reads the YAML file at path on top of the defaults, then applies
// environment overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PERPSIM_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("PERPSIM_OUTPUT_DIR"); v != "" {
		c.OutputDir = v
	}
	if v := os.Getenv("PERPSIM_INITIAL_CAPITAL"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.InitialCapital = f
		}
	}
	if v := os.Getenv("PERPSIM_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Seed = n
		}
	}
}

// Validate checks what the sim and risk layers do not.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("config: data_dir not set")
	}
	if _, err := c.window(); err != nil {
		return err
	}
	return c.Limits().Validate()
}

// Limits folds the risk overrides onto the defaults.
func (c Config) Limits() risk.Limits {
	l := risk.DefaultLimits()
	if c.Leverage > 0 {
		l.Leverage = c.Leverage
	}

	r := c.Risk
	if r.SoftDrawdown > 0 {
		l.SoftDrawdown = r.SoftDrawdown
	}
	if r.FirmDrawdown > 0 {
		l.FirmDrawdown = r.FirmDrawdown
	}
	if r.HardDrawdown > 0 {
		l.HardDrawdown = r.HardDrawdown
	}
	if r.DailyLossLimit > 0 {
		l.DailyLossLimit = r.DailyLossLimit
	}
	if r.MaxPositions > 0 {
		l.MaxPositions = r.MaxPositions
	}
	if r.MaxTotalMarginPct > 0 {
		l.MaxTotalMarginPct = r.MaxTotalMarginPct
	}
	if r.CorrAdjustedMarginPct > 0 {
		l.CorrAdjustedMarginPct = r.CorrAdjustedMarginPct
	}
	if r.CorrHighThreshold > 0 {
		l.CorrHighThreshold = r.CorrHighThreshold
	}
	if r.ExtremeVolPercentile > 0 {
		l.ExtremeVolPercentile = r.ExtremeVolPercentile
	}
	if r.HighVolPercentile > 0 {
		l.HighVolPercentile = r.HighVolPercentile
	}
	if r.ConsecLossScale > 0 {
		l.ConsecLossScale = r.ConsecLossScale
	}
	if r.ConsecLossStop > 0 {
		l.ConsecLossStop = r.ConsecLossStop
	}
	if r.FundingWarn > 0 {
		l.FundingWarn = r.FundingWarn
	}
	if r.FundingStop > 0 {
		l.FundingStop = r.FundingStop
	}
	if r.RiskPerTrade > 0 {
		l.RiskPerTrade = r.RiskPerTrade
	}
	if r.StopATRMult > 0 {
		l.StopATRMult = r.StopATRMult
	}
	if r.MaxMarginPerPosition > 0 {
		l.MaxMarginPerPosition = r.MaxMarginPerPosition
	}
	if r.MinLiquidationBufferATR > 0 {
		l.MinLiquidationBufferATR = r.MinLiquidationBufferATR
	}
	return l
}

// SimConfig assembles the engine configuration. Validate must have
// passed first.
func (c Config) SimConfig() (sim.Config, error) {
	w, err := c.window()
	if err != nil {
		return sim.Config{}, err
	}
	return sim.Config{
		Symbols:         c.Symbols,
		ReferenceSymbol: c.ReferenceSymbol,
		InitialCapital:  c.InitialCapital,
		TakerFeeRate:    c.TakerFeeRate,
		SlippageRate:    c.SlippageRate,
		MaintMarginRate: c.MaintMarginRate,
		Start:           w[0],
		End:             w[1],
		Seed:            c.Seed,
		Limits:          c.Limits(),
	}, nil
}

func (c Config) window() ([2]time.Time, error) {
	var w [2]time.Time
	var err error
	if w[0], err = parseTime(c.Start); err != nil {
		return w, fmt.Errorf("config: start: %w", err)
	}
	if w[1], err = parseTime(c.End); err != nil {
		return w, fmt.Errorf("config: end: %w", err)
	}
	return w, nil
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}
