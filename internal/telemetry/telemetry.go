// Package telemetry provides the centralized Prometheus metrics registry
// for the research toolchain. Long optimization batches expose these on a
// scrape endpoint; one-shot runs simply skip serving them.
package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "edge_lab"

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// Counter metrics
var (
	BacktestRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "backtest_runs_total",
		Help:      "Total number of backtest runs by pair and status",
	}, []string{"pair", "status"})
	SimulatedTradesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "simulated_trades_total",
		Help:      "Total number of simulated trades by pair and exit reason",
	}, []string{"pair", "exit_reason"})
	CandleFetchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "candle_fetches_total",
		Help:      "Total number of candle history loads by source",
	}, []string{"source"})
	MonteCarloPathsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "monte_carlo_paths_total",
		Help:      "Total number of Monte Carlo equity paths simulated by model",
	}, []string{"model"})
)

// Gauge metrics
var (
	WalkForwardWindows = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "walk_forward_windows",
		Help:      "Number of walk-forward windows in the latest run",
	}, []string{"pair"})
	PooledExpectancy = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "pooled_expectancy_r",
		Help:      "Pooled walk-forward expectancy in R for the latest run",
	}, []string{"pair"})
)

// Histogram metrics
var (
	BacktestDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "backtest_duration_seconds",
		Help:      "Duration of full backtest runs in seconds",
		Buckets:   []float64{1, 5, 10, 30, 60, 300, 600, 1800},
	})
	MonteCarloDrawdown = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "monte_carlo_drawdown_r",
		Help:      "Max drawdown distribution across Monte Carlo paths in R",
		Buckets:   []float64{5, 10, 20, 30, 50, 75, 100, 150, 200},
	}, []string{"model"})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		registry.MustRegister(BacktestRunsTotal)
		registry.MustRegister(SimulatedTradesTotal)
		registry.MustRegister(CandleFetchesTotal)
		registry.MustRegister(MonteCarloPathsTotal)

		registry.MustRegister(WalkForwardWindows)
		registry.MustRegister(PooledExpectancy)

		registry.MustRegister(BacktestDuration)
		registry.MustRegister(MonteCarloDrawdown)
	})
	return registry
}

// GetRegistry returns the global Prometheus registry.
func GetRegistry() *prometheus.Registry {
	if registry == nil {
		return InitRegistry()
	}
	return registry
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
}

// RecordBacktestRun records a backtest run event.
// status should be one of: "success", "skipped", "failure".
func RecordBacktestRun(pair, status string) {
	BacktestRunsTotal.WithLabelValues(pair, status).Inc()
}

// RecordSimulatedTrade records a closed simulated trade.
func RecordSimulatedTrade(pair, exitReason string) {
	SimulatedTradesTotal.WithLabelValues(pair, exitReason).Inc()
}

// RecordCandleFetch records a candle history load.
// source should be one of: "memo", "disk", "remote".
func RecordCandleFetch(source string) {
	CandleFetchesTotal.WithLabelValues(source).Inc()
}

// RecordMonteCarloPaths records simulated Monte Carlo paths for a model.
func RecordMonteCarloPaths(model string, count int) {
	MonteCarloPathsTotal.WithLabelValues(model).Add(float64(count))
}

// RecordMonteCarloDrawdown records one path's max drawdown.
func RecordMonteCarloDrawdown(model string, drawdownR float64) {
	MonteCarloDrawdown.WithLabelValues(model).Observe(drawdownR)
}

// UpdateWalkForward updates the per-pair walk-forward gauges.
func UpdateWalkForward(pair string, windows int, pooledExpectancy float64) {
	WalkForwardWindows.WithLabelValues(pair).Set(float64(windows))
	PooledExpectancy.WithLabelValues(pair).Set(pooledExpectancy)
}

// RecordBacktestDuration records full run duration.
func RecordBacktestDuration(durationSeconds float64) {
	BacktestDuration.Observe(durationSeconds)
}
