// Package main provides the entry point for the standalone risk report CLI.
// It re-reads a trades.json artifact from an earlier backtest run and reruns
// the Monte Carlo, compounding, and prop-firm stages without touching the
// candle feed.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/edge-lab/internal/config"
	"github.com/yourusername/edge-lab/internal/engine"
	"github.com/yourusername/edge-lab/internal/export"
	applog "github.com/yourusername/edge-lab/internal/logger"
	"github.com/yourusername/edge-lab/internal/montecarlo"
	"github.com/yourusername/edge-lab/internal/propfirm"
)

var (
	configFile string
	tradesFile string
	seed       int64

	logger *logrus.Logger
	cfg    *config.Config
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")
	rootCmd.Flags().StringVarP(&tradesFile, "trades", "t", "", "Path to a trades.json artifact (required)")
	rootCmd.Flags().Int64Var(&seed, "seed", 0, "Override the Monte Carlo seed")
	_ = rootCmd.MarkFlagRequired("trades")
}

var rootCmd = &cobra.Command{
	Use:   "riskreport",
	Short: "Rerun the Monte Carlo risk stages from saved trades",
	Long:  `Loads the trade records exported by a backtest run and regenerates the Monte Carlo, compounding, and prop-firm reports with fresh parameters.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadWithDefaults(configFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := config.Validate(cfg); err != nil {
			return err
		}
		logger = applog.New(cfg.App.LogLevel, cfg.App.Environment)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReport()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func loadTrades(path string) ([]engine.Trade, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading trades file: %w", err)
	}
	var trades []engine.Trade
	if err := json.Unmarshal(raw, &trades); err != nil {
		return nil, fmt.Errorf("decoding trades file: %w", err)
	}
	if len(trades) == 0 {
		return nil, fmt.Errorf("trades file %s holds no trades", path)
	}
	return trades, nil
}

func runReport() error {
	trades, err := loadTrades(tradesFile)
	if err != nil {
		return err
	}

	mcCfg := cfg.MonteCarloConfig()
	compoundCfg := cfg.CompoundConfig()
	if seed != 0 {
		mcCfg.Seed = seed
		compoundCfg.Seed = seed
	}

	writer, err := export.NewWriter(cfg.Export.OutputDir, logger)
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"run":    writer.RunID(),
		"trades": len(trades),
		"source": tradesFile,
	}).Info("Starting risk report")

	mc, err := montecarlo.New(trades, mcCfg, logger)
	if err != nil {
		return err
	}

	report, err := mc.FullReport()
	if err != nil {
		return err
	}
	if err := writer.WriteMonteCarloJSON(report); err != nil {
		return err
	}
	for _, m := range report.Models {
		if m.Model == montecarlo.ModelBlockBootstrap {
			if err := writer.WriteDrawdownHistogramCSV(m.Drawdowns, 1); err != nil {
				return err
			}
		}
	}

	compound, err := mc.Compound(compoundCfg, logger)
	if err != nil {
		return err
	}
	if err := writer.WriteCompoundingJSON(compound); err != nil {
		return err
	}

	if pf := propfirm.Simulate(trades, cfg.PropFirm, logger); pf != nil {
		if err := writer.WritePropFirmJSON(pf); err != nil {
			return err
		}
	}

	for _, m := range report.Models {
		logger.WithFields(logrus.Fields{
			"model":    m.Model,
			"medianDD": m.Stats.MedianDrawdown,
			"p95DD":    m.Stats.Pct5Drawdown,
			"ruinPct":  m.Stats.RuinPct,
		}).Info("Model summary")
	}
	logger.WithField("dir", writer.Dir()).Info("Risk report complete")
	return nil
}
