// Package config provides configuration management for the edge-lab
// research toolchain.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "EDGE_LAB"

// Load reads and parses the configuration from file and environment
// variables. It expands environment variable placeholders in the YAML file
// (${VAR_NAME}).
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found at %s: %w", configPath, err)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the configuration (${VAR} syntax)
	expanded := os.ExpandEnv(string(data))

	v := newViper()
	if err := v.ReadConfig(bytes.NewBufferString(expanded)); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	return cfg, nil
}

// LoadWithDefaults loads configuration with default values for optional
// fields; a missing file is not an error, defaults and environment
// variables apply.
func LoadWithDefaults(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	v := newViper()
	setDefaults(v)

	if data, err := os.ReadFile(configPath); err == nil {
		expanded := os.ExpandEnv(string(data))
		if err := v.ReadConfig(bytes.NewBufferString(expanded)); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "edge-lab")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("run.direction", "short")
	v.SetDefault("run.asset_class", "crypto")
	v.SetDefault("run.fast_interval", "15m")
	v.SetDefault("run.slow_interval", "1h")
	v.SetDefault("run.months_train", 6)
	v.SetDefault("run.months_test", 3)
	v.SetDefault("run.min_stop_pct", 0.003)

	v.SetDefault("feed.cache_dir", "data/candles")
	v.SetDefault("feed.history_start", "2018-01-01")

	// Crypto costs reflect a USDT-M taker round trip with tax on fees.
	v.SetDefault("assets.crypto.fee_pct", 0.00118)
	v.SetDefault("assets.crypto.spread_pct", 0.0010)
	v.SetDefault("assets.crypto.slippage_pct", 0.0008)
	v.SetDefault("assets.crypto.funding_pct", 0.0001)
	v.SetDefault("assets.crypto.bars_per_funding_period", 32)
	v.SetDefault("assets.crypto.max_bars_in_trade", 672)

	v.SetDefault("assets.forex.fee_pct", 0.0)
	v.SetDefault("assets.forex.spread_pct", 0.00015)
	v.SetDefault("assets.forex.slippage_pct", 0.00005)
	v.SetDefault("assets.forex.funding_pct", 0.00003)
	v.SetDefault("assets.forex.bars_per_funding_period", 96)
	v.SetDefault("assets.forex.max_bars_in_trade", 480)

	v.SetDefault("assets.stocks.fee_pct", 0.0)
	v.SetDefault("assets.stocks.spread_pct", 0.0001)
	v.SetDefault("assets.stocks.slippage_pct", 0.0001)
	v.SetDefault("assets.stocks.funding_pct", 0.0)
	v.SetDefault("assets.stocks.bars_per_funding_period", 0)
	v.SetDefault("assets.stocks.max_bars_in_trade", 384)

	// Shorts earn the wider target; see the direction profile notes in
	// config/config.yaml.
	v.SetDefault("directions.short.target_r", 4.0)
	v.SetDefault("directions.long.target_r", 3.0)

	v.SetDefault("monte_carlo.runs", 5000)
	v.SetDefault("monte_carlo.stress_runs", 3000)
	v.SetDefault("monte_carlo.block_size", 25)
	v.SetDefault("monte_carlo.bucket_days", 7)
	v.SetDefault("monte_carlo.capital_r", 200)
	v.SetDefault("monte_carlo.keep_paths", 50)

	v.SetDefault("compounding.starting_capital", 10000)
	v.SetDefault("compounding.risk_pct", 0.005)
	v.SetDefault("compounding.trades_per_year", 121.5)
	v.SetDefault("compounding.projection_years", 5)
	v.SetDefault("compounding.runs", 5000)
	v.SetDefault("compounding.keep_paths", 50)

	v.SetDefault("export.output_dir", "results")
}
