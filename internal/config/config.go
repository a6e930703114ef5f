// Package config provides configuration management for the edge-lab
// research toolchain.
package config

import (
	"fmt"
	"time"

	"github.com/yourusername/edge-lab/internal/engine"
	"github.com/yourusername/edge-lab/internal/feed"
	"github.com/yourusername/edge-lab/internal/market"
	"github.com/yourusername/edge-lab/internal/montecarlo"
	"github.com/yourusername/edge-lab/internal/propfirm"
	"github.com/yourusername/edge-lab/internal/signal"
)

// Config represents the complete toolchain configuration.
type Config struct {
	App         AppConfig                   `mapstructure:"app" validate:"required"`
	Run         RunConfig                   `mapstructure:"run" validate:"required"`
	Feed        FeedConfig                  `mapstructure:"feed"`
	Assets      map[string]AssetProfile     `mapstructure:"assets" validate:"required,min=1"`
	Directions  map[string]DirectionProfile `mapstructure:"directions" validate:"required,min=1"`
	MonteCarlo  MonteCarloConfig            `mapstructure:"monte_carlo"`
	Compounding CompoundingConfig           `mapstructure:"compounding"`
	PropFirm    propfirm.Config             `mapstructure:"prop_firm"`
	Export      ExportConfig                `mapstructure:"export"`
}

// AppConfig represents application-level configuration.
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
}

// RunConfig selects what to simulate: the pair universe, trade direction,
// asset class, and the walk-forward window lengths.
type RunConfig struct {
	Pairs        []string `mapstructure:"pairs" validate:"required,min=1"`
	Direction    string   `mapstructure:"direction" validate:"required,direction"`
	AssetClass   string   `mapstructure:"asset_class" validate:"required,assetclass"`
	FastInterval string   `mapstructure:"fast_interval" validate:"required"`
	SlowInterval string   `mapstructure:"slow_interval" validate:"required"`
	MonthsTrain  int      `mapstructure:"months_train" validate:"required,gt=0"`
	MonthsTest   int      `mapstructure:"months_test" validate:"required,gt=0"`
	MinStopPct   float64  `mapstructure:"min_stop_pct" validate:"gte=0"`
}

// FeedConfig represents candle acquisition configuration.
type FeedConfig struct {
	BaseURL        string  `mapstructure:"base_url"`
	CacheDir       string  `mapstructure:"cache_dir"`
	HistoryStart   string  `mapstructure:"history_start" validate:"omitempty,datetime=2006-01-02"`
	RateLimit      float64 `mapstructure:"rate_limit" validate:"gte=0"`
	MaxRetries     int     `mapstructure:"max_retries" validate:"gte=0"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds" validate:"gte=0"`
}

// AssetProfile carries the per-asset-class cost model and trade duration
// cap. Percentages are fractions of price.
type AssetProfile struct {
	FeePct               float64 `mapstructure:"fee_pct" validate:"gte=0"`
	SpreadPct            float64 `mapstructure:"spread_pct" validate:"gte=0"`
	SlippagePct          float64 `mapstructure:"slippage_pct" validate:"gte=0"`
	FundingPct           float64 `mapstructure:"funding_pct" validate:"gte=0"`
	BarsPerFundingPeriod int     `mapstructure:"bars_per_funding_period" validate:"gte=0"`
	MaxBarsInTrade       int     `mapstructure:"max_bars_in_trade" validate:"required,gt=0"`
}

// DirectionProfile carries the per-direction exit target.
type DirectionProfile struct {
	TargetR float64 `mapstructure:"target_r" validate:"required,gt=0"`
}

// MonteCarloConfig represents the fixed-R risk report configuration.
type MonteCarloConfig struct {
	Runs       int     `mapstructure:"runs" validate:"gte=0"`
	StressRuns int     `mapstructure:"stress_runs" validate:"gte=0"`
	BlockSize  int     `mapstructure:"block_size" validate:"gte=0"`
	BucketDays int     `mapstructure:"bucket_days" validate:"gte=0"`
	CapitalR   float64 `mapstructure:"capital_r" validate:"gt=0"`
	Seed       int64   `mapstructure:"seed"`
	KeepPaths  int     `mapstructure:"keep_paths" validate:"gte=0"`
}

// CompoundingConfig represents the multi-year projection configuration.
type CompoundingConfig struct {
	StartingCapital float64 `mapstructure:"starting_capital" validate:"gte=0"`
	RiskPct         float64 `mapstructure:"risk_pct" validate:"gte=0,lte=1"`
	TradesPerYear   float64 `mapstructure:"trades_per_year" validate:"gte=0"`
	ProjectionYears int     `mapstructure:"projection_years" validate:"gte=0"`
	Runs            int     `mapstructure:"runs" validate:"gte=0"`
	KeepPaths       int     `mapstructure:"keep_paths" validate:"gte=0"`
}

// ExportConfig represents artifact output configuration.
type ExportConfig struct {
	OutputDir string `mapstructure:"output_dir" validate:"required"`
}

// IsProduction returns true when running in production environment.
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment returns true when running in development environment.
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// Asset returns the typed asset class of the run.
func (c *Config) Asset() market.AssetClass {
	return market.AssetClass(c.Run.AssetClass)
}

// Direction returns the typed trade direction of the run.
func (c *Config) Direction() signal.Direction {
	return signal.Direction(c.Run.Direction)
}

// EngineConfig assembles the engine parameters for one pair from the
// run, asset profile, and direction profile tables.
func (c *Config) EngineConfig(pair string) (engine.Config, error) {
	asset, ok := c.Assets[c.Run.AssetClass]
	if !ok {
		return engine.Config{}, fmt.Errorf("no asset profile for class %q", c.Run.AssetClass)
	}
	dir, ok := c.Directions[c.Run.Direction]
	if !ok {
		return engine.Config{}, fmt.Errorf("no direction profile for %q", c.Run.Direction)
	}

	return engine.Config{
		Pair:           pair,
		Direction:      c.Direction(),
		Asset:          c.Asset(),
		TargetR:        dir.TargetR,
		MinStopPct:     c.Run.MinStopPct,
		MaxBarsInTrade: asset.MaxBarsInTrade,
		Rules:          signal.DefaultParams(c.Asset()),
		Costs: engine.CostConfig{
			FeePct:               asset.FeePct,
			SpreadPct:            asset.SpreadPct,
			SlippagePct:          asset.SlippagePct,
			FundingPct:           asset.FundingPct,
			BarsPerFundingPeriod: asset.BarsPerFundingPeriod,
		},
	}, nil
}

// FeedConfig assembles the fetcher configuration.
func (c *Config) FeedConfig() feed.Config {
	httpCfg := feed.DefaultHTTPConfig()
	if c.Feed.RateLimit > 0 {
		httpCfg.RateLimit = c.Feed.RateLimit
	}
	if c.Feed.MaxRetries > 0 {
		httpCfg.MaxRetries = c.Feed.MaxRetries
	}
	if c.Feed.TimeoutSeconds > 0 {
		httpCfg.Timeout = time.Duration(c.Feed.TimeoutSeconds) * time.Second
	}

	cfg := feed.Config{
		BaseURL:  c.Feed.BaseURL,
		CacheDir: c.Feed.CacheDir,
		HTTP:     httpCfg,
	}
	if c.Feed.HistoryStart != "" {
		// Validation guarantees the format.
		cfg.HistoryStart, _ = time.Parse("2006-01-02", c.Feed.HistoryStart)
	}
	return cfg
}

// MonteCarloConfig assembles the risk-engine configuration.
func (c *Config) MonteCarloConfig() montecarlo.Config {
	return montecarlo.Config{
		Runs:       c.MonteCarlo.Runs,
		StressRuns: c.MonteCarlo.StressRuns,
		BlockSize:  c.MonteCarlo.BlockSize,
		BucketDays: c.MonteCarlo.BucketDays,
		CapitalR:   c.MonteCarlo.CapitalR,
		Seed:       c.MonteCarlo.Seed,
		KeepPaths:  c.MonteCarlo.KeepPaths,
	}
}

// CompoundConfig assembles the compounding projector configuration.
func (c *Config) CompoundConfig() montecarlo.CompoundConfig {
	return montecarlo.CompoundConfig{
		StartingCapital: c.Compounding.StartingCapital,
		RiskPct:         c.Compounding.RiskPct,
		TradesPerYear:   c.Compounding.TradesPerYear,
		ProjectionYears: c.Compounding.ProjectionYears,
		Runs:            c.Compounding.Runs,
		Seed:            c.MonteCarlo.Seed,
		KeepPaths:       c.Compounding.KeepPaths,
	}
}
