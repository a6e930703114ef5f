// Package main provides the entry point for the backtest pipeline CLI:
// candle acquisition, full-history simulation, walk-forward validation,
// Monte Carlo risk reports, and artifact export.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/edge-lab/internal/config"
	"github.com/yourusername/edge-lab/internal/engine"
	"github.com/yourusername/edge-lab/internal/export"
	"github.com/yourusername/edge-lab/internal/feed"
	"github.com/yourusername/edge-lab/internal/health"
	"github.com/yourusername/edge-lab/internal/indicator"
	applog "github.com/yourusername/edge-lab/internal/logger"
	"github.com/yourusername/edge-lab/internal/montecarlo"
	"github.com/yourusername/edge-lab/internal/propfirm"
	"github.com/yourusername/edge-lab/internal/stats"
	"github.com/yourusername/edge-lab/internal/telemetry"
	"github.com/yourusername/edge-lab/internal/walkforward"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var (
	configFile  string
	pairsFlag   []string
	metricsAddr string
	skipRisk    bool

	logger *logrus.Logger
	cfg    *config.Config
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")
	rootCmd.Flags().StringSliceVar(&pairsFlag, "pairs", nil, "Override the configured pair universe")
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running")
	rootCmd.Flags().BoolVar(&skipRisk, "skip-risk", false, "Skip the Monte Carlo and prop-firm stages")
}

var rootCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run the full strategy validation pipeline",
	Long:  `Fetches candle history, simulates the strategy per pair, validates it with walk-forward windows and Monte Carlo resampling, and writes run artifacts.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		logger = applog.New(cfg.App.LogLevel, cfg.App.Environment)
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		runPipeline()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func loadConfig() error {
	var err error
	cfg, err = config.LoadWithDefaults(configFile)
	if err != nil {
		return err
	}
	if len(pairsFlag) > 0 {
		cfg.Run.Pairs = pairsFlag
	}
	return config.Validate(cfg)
}

func runPipeline() {
	start := time.Now()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Warn("Shutdown signal received")
		cancel()
	}()

	telemetry.InitRegistry()
	var status *health.Server
	if metricsAddr != "" {
		status = health.NewServer(health.Config{
			ServiceName: "backtest",
			Version:     Version,
			Addr:        metricsAddr,
			Logger:      logger,
		})
		if err := status.Start(ctx); err != nil {
			logger.WithError(err).Fatal("Failed to start status server")
		}
	}

	fetcher, err := feed.NewFetcher(cfg.FeedConfig(), logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create candle fetcher")
	}
	defer fetcher.Close()

	writer, err := export.NewWriter(cfg.Export.OutputDir, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create artifact writer")
	}
	if status != nil {
		status.SetRun(writer.RunID())
	}
	applog.WithRun(logger, writer.RunID()).WithFields(logrus.Fields{
		"pairs":   cfg.Run.Pairs,
		"version": Version,
	}).Info("Starting backtest pipeline")

	var (
		summaries []export.PairSummary
		results   []*engine.Result
		allTrades []engine.Trade
	)

	for _, pair := range cfg.Run.Pairs {
		run, wf, err := runPair(ctx, fetcher, writer, pair)
		if err != nil {
			telemetry.RecordBacktestRun(pair, "failure")
			logger.WithError(err).WithField("pair", pair).Error("Pair failed")
			continue
		}
		if run == nil {
			telemetry.RecordBacktestRun(pair, "skipped")
			logger.WithField("pair", pair).Warn("Not enough history, pair skipped")
			continue
		}
		telemetry.RecordBacktestRun(pair, "success")

		results = append(results, run)
		allTrades = append(allTrades, run.Trades...)
		summaries = append(summaries, export.PairSummary{Pair: pair, Metrics: stats.Compute(run.Trades)})
		for _, t := range run.Trades {
			telemetry.RecordSimulatedTrade(pair, string(t.ExitReason))
		}
		telemetry.UpdateWalkForward(pair, len(wf.Windows), wf.Pooled.Expectancy)
	}

	if len(results) == 0 {
		logger.Fatal("No pair produced results")
	}

	pooled := stats.Compute(allTrades)
	writeBacktestArtifacts(writer, summaries, results, allTrades, pooled)

	if !skipRisk {
		runRiskStages(writer, allTrades)
	}

	telemetry.RecordBacktestDuration(time.Since(start).Seconds())
	logger.WithFields(logrus.Fields{
		"run":        writer.RunID(),
		"trades":     pooled.Trades,
		"expectancy": pooled.Expectancy,
		"duration":   time.Since(start).String(),
	}).Info("Pipeline complete")
}

// runPair executes the full-history simulation plus the walk-forward
// protocol for one pair. A nil engine result means insufficient history.
func runPair(ctx context.Context, fetcher *feed.Fetcher, writer *export.Writer, pair string) (*engine.Result, *walkforward.Result, error) {
	engCfg, err := cfg.EngineConfig(pair)
	if err != nil {
		return nil, nil, err
	}

	fast, err := fetcher.Candles(ctx, feed.ToSymbol(pair), cfg.Run.FastInterval)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching %s candles: %w", cfg.Run.FastInterval, err)
	}
	slow, err := fetcher.Candles(ctx, feed.ToSymbol(pair), cfg.Run.SlowInterval)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching %s candles: %w", cfg.Run.SlowInterval, err)
	}

	fastFrame := indicator.Precompute(fast)
	slowFrame := indicator.Precompute(slow)
	regime := walkforward.TrendRegime(cfg.Direction())

	eng, err := engine.New(engCfg, regime(slow, slowFrame), logger)
	if err != nil {
		return nil, nil, err
	}
	run, err := eng.Run(fast, fastFrame, slow, slowFrame)
	if err != nil {
		return nil, nil, err
	}
	if run == nil {
		return nil, nil, nil
	}

	runner, err := walkforward.New(engCfg, cfg.Run.MonthsTrain, cfg.Run.MonthsTest, regime, logger)
	if err != nil {
		return nil, nil, err
	}
	wf, err := runner.Run(fast, slow)
	if err != nil {
		return nil, nil, fmt.Errorf("walk-forward: %w", err)
	}

	verdict := walkforward.Evaluate(wf)
	logger.WithFields(logrus.Fields{
		"pair":        pair,
		"windows":     verdict.Windows,
		"positivePct": verdict.PositivePct,
		"accept":      verdict.Accept,
	}).Info("Walk-forward verdict")
	if err := writer.WriteWalkForwardJSON(wf, verdict); err != nil {
		return nil, nil, err
	}

	return run, wf, nil
}

func writeBacktestArtifacts(writer *export.Writer, summaries []export.PairSummary, results []*engine.Result, trades []engine.Trade, pooled stats.Metrics) {
	steps := []struct {
		name string
		fn   func() error
	}{
		{"results csv", func() error { return writer.WriteResultsCSV(summaries) }},
		{"summary json", func() error { return writer.WriteSummaryJSON(pooled) }},
		{"diagnostics csv", func() error { return writer.WriteDiagnosticsCSV(results) }},
		{"trades csv", func() error { return writer.WriteTradesCSV(trades) }},
		{"trades json", func() error { return writer.WriteTradesJSON(trades) }},
		{"equity curve csv", func() error { return writer.WriteEquityCurveCSV(stats.EquityCurve(trades)) }},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			logger.WithError(err).Fatalf("Failed to write %s", step.name)
		}
	}
}

func runRiskStages(writer *export.Writer, trades []engine.Trade) {
	mc, err := montecarlo.New(trades, cfg.MonteCarloConfig(), logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to build Monte Carlo runner")
	}

	report, err := mc.FullReport()
	if err != nil {
		logger.WithError(err).Fatal("Monte Carlo failed")
	}
	for _, m := range report.Models {
		telemetry.RecordMonteCarloPaths(string(m.Model), m.Runs)
		for _, dd := range m.Drawdowns {
			telemetry.RecordMonteCarloDrawdown(string(m.Model), dd)
		}
	}
	if err := writer.WriteMonteCarloJSON(report); err != nil {
		logger.WithError(err).Fatal("Failed to write Monte Carlo report")
	}
	for _, m := range report.Models {
		if m.Model == montecarlo.ModelBlockBootstrap {
			if err := writer.WriteDrawdownHistogramCSV(m.Drawdowns, 1); err != nil {
				logger.WithError(err).Fatal("Failed to write drawdown histogram")
			}
		}
	}

	compound, err := mc.Compound(cfg.CompoundConfig(), logger)
	if err != nil {
		logger.WithError(err).Fatal("Compounding projection failed")
	}
	if err := writer.WriteCompoundingJSON(compound); err != nil {
		logger.WithError(err).Fatal("Failed to write compounding report")
	}

	if pf := propfirm.Simulate(trades, cfg.PropFirm, logger); pf != nil {
		if err := writer.WritePropFirmJSON(pf); err != nil {
			logger.WithError(err).Fatal("Failed to write prop-firm report")
		}
	}
}

