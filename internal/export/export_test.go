package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/edge-lab/internal/engine"
	"github.com/yourusername/edge-lab/internal/signal"
	"github.com/yourusername/edge-lab/internal/stats"
)

func newTestWriter(t *testing.T) *Writer {
	t.Helper()
	w, err := NewWriter(t.TempDir(), nil)
	require.NoError(t, err)
	return w
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestNewWriterCreatesRunDirectory(t *testing.T) {
	root := t.TempDir()
	w, err := NewWriter(root, nil)
	require.NoError(t, err)

	assert.NotEmpty(t, w.RunID())
	assert.Equal(t, filepath.Join(root, w.RunID()), w.Dir())

	info, err := os.Stat(w.Dir())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestWriteResultsCSV(t *testing.T) {
	w := newTestWriter(t)

	rows := []PairSummary{
		{Pair: "SOL/USDT", Metrics: stats.Metrics{
			Trades: 40, WinRate: 0.425, Expectancy: 0.31,
			MaxDrawdownR: 6.5, AvgDurationBars: 18.2,
		}},
		{Pair: "DOGE/USDT", Metrics: stats.Metrics{Trades: 0}},
	}
	require.NoError(t, w.WriteResultsCSV(rows))

	records := readCSV(t, filepath.Join(w.Dir(), "backtest_results.csv"))
	require.Len(t, records, 3)
	assert.Equal(t, []string{"Pair", "Trades", "WinRate", "Expectancy", "MaxDrawdownR", "AvgTimeInTradeBars"}, records[0])
	assert.Equal(t, []string{"SOL/USDT", "40", "42.50", "0.31", "6.50", "18.2"}, records[1])
	assert.Equal(t, "DOGE/USDT", records[2][0])
}

func TestWriteSummaryJSONRoundTrip(t *testing.T) {
	w := newTestWriter(t)
	in := stats.Metrics{Trades: 12, WinRate: 0.5, Expectancy: 0.4, NetProfitR: 4.8}
	require.NoError(t, w.WriteSummaryJSON(in))

	raw, err := os.ReadFile(filepath.Join(w.Dir(), "backtest_summary.json"))
	require.NoError(t, err)

	var out stats.Metrics
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, in.Trades, out.Trades)
	assert.Equal(t, in.Expectancy, out.Expectancy)
}

func TestWriteDiagnosticsCSV(t *testing.T) {
	w := newTestWriter(t)
	results := []*engine.Result{{
		Pair: "SOL/USDT",
		Diagnostics: engine.Diagnostics{
			TotalBars:    1000,
			RegimeBlocks: 600,
			EntriesTaken: 25,
			TradesClosed: 25,
			SumNetR:      10,
		},
	}}
	require.NoError(t, w.WriteDiagnosticsCSV(results))

	records := readCSV(t, filepath.Join(w.Dir(), "entry_diagnostics.csv"))
	require.Len(t, records, 2)
	assert.Equal(t, "EntryRate", records[0][11])
	assert.Equal(t, "0.0250", records[1][11])
	assert.Equal(t, "0.4000", records[1][12])
}

func TestWriteTradesCSV(t *testing.T) {
	w := newTestWriter(t)
	entry := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	trades := []engine.Trade{{
		Pair:       "SOL/USDT",
		Direction:  signal.Short,
		EntryTime:  entry,
		ExitTime:   entry.Add(4 * time.Hour),
		EntryPrice: 96.5,
		ExitPrice:  101,
		ExitReason: engine.ExitStop,
		GrossR:     -1,
		NetR:       -1.07,
		Setup:      true,
	}}
	require.NoError(t, w.WriteTradesCSV(trades))

	records := readCSV(t, filepath.Join(w.Dir(), "trades_detailed.csv"))
	require.Len(t, records, 2)
	row := records[1]
	assert.Equal(t, "short", row[1])
	assert.Equal(t, "2024-03-01T10:00:00Z", row[2])
	assert.Equal(t, "stop", row[6])
	assert.Equal(t, "-1.07", row[8])
	assert.Equal(t, "1", row[11]) // setup flag
	assert.Equal(t, "0", row[12]) // trigger flag
}

func TestWriteEquityCurveCSV(t *testing.T) {
	w := newTestWriter(t)
	require.NoError(t, w.WriteEquityCurveCSV([]float64{3, 2, 5}))

	records := readCSV(t, filepath.Join(w.Dir(), "equity_curve.csv"))
	require.Len(t, records, 4)
	assert.Equal(t, []string{"TradeNumber", "EquityR"}, records[0])
	assert.Equal(t, []string{"1", "3.00"}, records[1])
	assert.Equal(t, []string{"3", "5.00"}, records[3])
}

func TestBuildHistogram(t *testing.T) {
	dds := []float64{0.4, 1.2, 1.7, 5.3}
	buckets := BuildHistogram(dds, 1)

	require.Len(t, buckets, 3)
	assert.Equal(t, HistogramBucket{DrawdownR: 0, Frequency: 1}, buckets[0])
	assert.Equal(t, HistogramBucket{DrawdownR: 1, Frequency: 2}, buckets[1])
	assert.Equal(t, HistogramBucket{DrawdownR: 5, Frequency: 1}, buckets[2])
}

func TestBuildHistogramCustomBucketSize(t *testing.T) {
	buckets := BuildHistogram([]float64{3, 7, 11}, 5)
	require.Len(t, buckets, 3)
	assert.Equal(t, 0.0, buckets[0].DrawdownR)
	assert.Equal(t, 5.0, buckets[1].DrawdownR)
	assert.Equal(t, 10.0, buckets[2].DrawdownR)
}

func TestWriteDrawdownHistogramCSV(t *testing.T) {
	w := newTestWriter(t)
	require.NoError(t, w.WriteDrawdownHistogramCSV([]float64{2.5, 2.9, 14.1}, 1))

	records := readCSV(t, filepath.Join(w.Dir(), "monte_carlo_dd.csv"))
	require.Len(t, records, 3)
	assert.Equal(t, []string{"DrawdownR", "Frequency"}, records[0])
	assert.Equal(t, []string{"2", "2"}, records[1])
	assert.Equal(t, []string{"14", "1"}, records[2])
}
