// Package export renders run artifacts to flat files: CSV for
// spreadsheet-friendly tables, JSON for structured reports. Each run writes
// into its own directory keyed by a generated run ID.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/edge-lab/internal/engine"
	"github.com/yourusername/edge-lab/internal/montecarlo"
	"github.com/yourusername/edge-lab/internal/propfirm"
	"github.com/yourusername/edge-lab/internal/stats"
	"github.com/yourusername/edge-lab/internal/walkforward"
)

// Writer renders artifacts for one run.
type Writer struct {
	dir    string
	runID  string
	logger *logrus.Logger
}

// NewWriter creates the run directory under the output root.
func NewWriter(outputRoot string, logger *logrus.Logger) (*Writer, error) {
	if logger == nil {
		logger = logrus.New()
	}
	runID := uuid.NewString()
	dir := filepath.Join(outputRoot, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating run directory: %w", err)
	}
	return &Writer{dir: dir, runID: runID, logger: logger}, nil
}

// RunID returns the generated run identifier.
func (w *Writer) RunID() string { return w.runID }

// Dir returns the run's artifact directory.
func (w *Writer) Dir() string { return w.dir }

// PairSummary is one row of the per-pair results table.
type PairSummary struct {
	Pair    string
	Metrics stats.Metrics
}

// WriteResultsCSV writes the per-pair results table.
func (w *Writer) WriteResultsCSV(rows []PairSummary) error {
	records := [][]string{{"Pair", "Trades", "WinRate", "Expectancy", "MaxDrawdownR", "AvgTimeInTradeBars"}}
	for _, r := range rows {
		records = append(records, []string{
			r.Pair,
			strconv.Itoa(r.Metrics.Trades),
			fmt.Sprintf("%.2f", 100*r.Metrics.WinRate),
			fmt.Sprintf("%.2f", r.Metrics.Expectancy),
			fmt.Sprintf("%.2f", r.Metrics.MaxDrawdownR),
			fmt.Sprintf("%.1f", r.Metrics.AvgDurationBars),
		})
	}
	return w.writeCSV("backtest_results.csv", records)
}

// WriteSummaryJSON writes the pooled metrics record.
func (w *Writer) WriteSummaryJSON(metrics stats.Metrics) error {
	return w.writeJSON("backtest_summary.json", metrics)
}

// WriteDiagnosticsCSV writes the per-pair entry funnel counts.
func (w *Writer) WriteDiagnosticsCSV(results []*engine.Result) error {
	records := [][]string{{
		"Pair", "TotalBars", "EntriesTaken", "Trades", "SumNetR",
		"RegimeBlocked", "VolBlocked", "SetupBlocked", "TriggerBlocked", "TightStopBlocked", "LiquidationOverride",
		"EntryRate", "ExpectancyPerTrade",
	}}
	for _, r := range results {
		d := r.Diagnostics
		records = append(records, []string{
			r.Pair,
			strconv.Itoa(d.TotalBars),
			strconv.Itoa(d.EntriesTaken),
			strconv.Itoa(d.TradesClosed),
			fmt.Sprintf("%.2f", d.SumNetR),
			strconv.Itoa(d.RegimeBlocks),
			strconv.Itoa(d.VolatilityBlocks),
			strconv.Itoa(d.SetupBlocks),
			strconv.Itoa(d.TriggerBlocks),
			strconv.Itoa(d.TightStopBlocks),
			strconv.Itoa(d.LiquidationOverrides),
			fmt.Sprintf("%.4f", d.EntryRate()),
			fmt.Sprintf("%.4f", d.ExpectancyPerTrade()),
		})
	}
	return w.writeCSV("entry_diagnostics.csv", records)
}

// WriteTradesCSV writes the detailed trade log.
func (w *Writer) WriteTradesCSV(trades []engine.Trade) error {
	records := [][]string{{
		"Pair", "Direction", "EntryTime", "ExitTime", "EntryPrice", "ExitPrice", "ExitReason",
		"GrossR", "NetR", "DurationBars", "ScaleLevel",
		"Setup", "Trigger", "LiquidationOverride",
		"MaxFavorableR", "MaxAdverseR",
	}}
	for _, t := range trades {
		records = append(records, []string{
			t.Pair,
			string(t.Direction),
			t.EntryTime.UTC().Format(time.RFC3339),
			t.ExitTime.UTC().Format(time.RFC3339),
			fmt.Sprintf("%g", t.EntryPrice),
			fmt.Sprintf("%g", t.ExitPrice),
			string(t.ExitReason),
			fmt.Sprintf("%.2f", t.GrossR),
			fmt.Sprintf("%.2f", t.NetR),
			strconv.Itoa(t.DurationBars),
			strconv.Itoa(t.ScaleLevel),
			boolFlag(t.Setup),
			boolFlag(t.Trigger),
			boolFlag(t.LiquidationOverride),
			fmt.Sprintf("%.2f", t.MaxFavorableR),
			fmt.Sprintf("%.2f", t.MaxAdverseR),
		})
	}
	return w.writeCSV("trades_detailed.csv", records)
}

// WriteTradesJSON writes the full trade records, costs included. The risk
// report command re-reads this file to rerun the Monte Carlo stage alone.
func (w *Writer) WriteTradesJSON(trades []engine.Trade) error {
	return w.writeJSON("trades.json", trades)
}

// WriteEquityCurveCSV writes cumulative R per trade ordinal.
func (w *Writer) WriteEquityCurveCSV(curve []float64) error {
	records := [][]string{{"TradeNumber", "EquityR"}}
	for i, eq := range curve {
		records = append(records, []string{strconv.Itoa(i + 1), fmt.Sprintf("%.2f", eq)})
	}
	return w.writeCSV("equity_curve.csv", records)
}

// HistogramBucket is one row of a drawdown histogram.
type HistogramBucket struct {
	DrawdownR float64 `json:"drawdown_r"`
	Frequency int     `json:"frequency"`
}

// BuildHistogram buckets drawdowns by flooring to bucketSize multiples.
func BuildHistogram(dds []float64, bucketSize float64) []HistogramBucket {
	if bucketSize <= 0 {
		bucketSize = 1
	}
	counts := make(map[int]int)
	for _, dd := range dds {
		counts[int(dd/bucketSize)]++
	}
	keys := make([]int, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	for i := 0; i < len(keys); i++ {
		for j := i + 1; j < len(keys); j++ {
			if keys[j] < keys[i] {
				keys[i], keys[j] = keys[j], keys[i]
			}
		}
	}
	buckets := make([]HistogramBucket, len(keys))
	for i, k := range keys {
		buckets[i] = HistogramBucket{DrawdownR: float64(k) * bucketSize, Frequency: counts[k]}
	}
	return buckets
}

// WriteDrawdownHistogramCSV writes a bucketed drawdown distribution.
func (w *Writer) WriteDrawdownHistogramCSV(dds []float64, bucketSize float64) error {
	records := [][]string{{"DrawdownR", "Frequency"}}
	for _, b := range BuildHistogram(dds, bucketSize) {
		records = append(records, []string{
			fmt.Sprintf("%g", b.DrawdownR),
			strconv.Itoa(b.Frequency),
		})
	}
	return w.writeCSV("monte_carlo_dd.csv", records)
}

// WalkForwardArtifact pairs a walk-forward result with its verdict.
type WalkForwardArtifact struct {
	Result  *walkforward.Result `json:"result"`
	Verdict walkforward.Verdict `json:"verdict"`
}

// WriteWalkForwardJSON writes per-window results and the verdict.
func (w *Writer) WriteWalkForwardJSON(res *walkforward.Result, verdict walkforward.Verdict) error {
	name := fmt.Sprintf("walk_forward_%s.json", sanitize(res.Pair))
	return w.writeJSON(name, WalkForwardArtifact{Result: res, Verdict: verdict})
}

// WriteMonteCarloJSON writes the fixed-R risk report.
func (w *Writer) WriteMonteCarloJSON(rep *montecarlo.Report) error {
	return w.writeJSON("mc_report.json", rep)
}

// WriteCompoundingJSON writes the multi-year compounding projection.
func (w *Writer) WriteCompoundingJSON(rep *montecarlo.CompoundReport) error {
	return w.writeJSON("mc_compounding_report.json", rep)
}

// WritePropFirmJSON writes the challenge simulation report.
func (w *Writer) WritePropFirmJSON(rep *propfirm.Report) error {
	return w.writeJSON("prop_firm_report.json", rep)
}

func (w *Writer) writeCSV(name string, records [][]string) error {
	f, err := os.Create(filepath.Join(w.dir, name))
	if err != nil {
		return fmt.Errorf("creating %s: %w", name, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	w.logArtifact(name)
	return nil
}

func (w *Writer) writeJSON(name string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}
	if err := os.WriteFile(filepath.Join(w.dir, name), raw, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	w.logArtifact(name)
	return nil
}

func (w *Writer) logArtifact(name string) {
	w.logger.WithFields(logrus.Fields{
		"run":  w.runID,
		"file": name,
	}).Debug("Artifact written")
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func sanitize(pair string) string {
	out := make([]rune, 0, len(pair))
	for _, r := range pair {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
