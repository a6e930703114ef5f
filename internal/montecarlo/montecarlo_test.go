package montecarlo

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/edge-lab/internal/engine"
)

// mcTrades builds a trade list with entries one hour apart, so the whole
// set falls into a single correlation bucket unless a test says otherwise.
func mcTrades(rs ...float64) []engine.Trade {
	base := time.Date(2023, 6, 5, 0, 0, 0, 0, time.UTC)
	out := make([]engine.Trade, len(rs))
	for i, r := range rs {
		out[i] = engine.Trade{NetR: r, GrossR: r, EntryTime: base.Add(time.Duration(i) * time.Hour)}
	}
	return out
}

func manyTrades(n int, r float64) []engine.Trade {
	rs := make([]float64, n)
	for i := range rs {
		rs[i] = r
	}
	return mcTrades(rs...)
}

func TestResamplingModelsAllPositiveHasZeroDrawdown(t *testing.T) {
	trades := manyTrades(40, 0.5)
	r, err := New(trades, Config{Runs: 50, Seed: 1, CapitalR: 200}, nil)
	require.NoError(t, err)

	for _, model := range []Model{ModelIIDShuffle, ModelBlockBootstrap, ModelCorrelationPreserving} {
		rep, err := r.Run(model)
		require.NoError(t, err)
		assert.Zero(t, rep.Stats.Pct1Drawdown, "model %s", model)
		assert.Zero(t, rep.Stats.MedianDrawdown, "model %s", model)
		assert.Zero(t, rep.Stats.RuinPct, "model %s", model)
	}
}

func TestStressInjectionForcesDrawdown(t *testing.T) {
	trades := manyTrades(200, 0.5)
	r, err := New(trades, Config{Runs: 10, StressRuns: 10, Seed: 1, CapitalR: 200}, nil)
	require.NoError(t, err)

	rep, err := r.Run(ModelStressInjection)
	require.NoError(t, err)
	// Every path carries at least one forced streak of 8 trades at -1.75R.
	assert.GreaterOrEqual(t, rep.Stats.MedianDrawdown, 8*1.75)
}

func TestBlockSizeEqualToHistoryReproducesOrder(t *testing.T) {
	rs := []float64{3, -1, 3, -1, -1, 2, -1, 1}
	trades := mcTrades(rs...)
	r, err := New(trades, Config{Runs: 20, BlockSize: len(rs), Seed: 7, CapitalR: 200}, nil)
	require.NoError(t, err)

	want := simulatePath(rs, false).MaxDrawdown
	rep, err := r.Run(ModelBlockBootstrap)
	require.NoError(t, err)
	for _, dd := range rep.Drawdowns {
		assert.InDelta(t, want, dd, 1e-12)
	}
}

func TestSingleBucketReproducesOrder(t *testing.T) {
	rs := []float64{1, -1, 2, -2, 1}
	trades := mcTrades(rs...)
	r, err := New(trades, Config{Runs: 10, Seed: 3, CapitalR: 200}, nil)
	require.NoError(t, err)
	require.Len(t, r.buckets, 1)

	want := simulatePath(rs, false).MaxDrawdown
	rep, err := r.Run(ModelCorrelationPreserving)
	require.NoError(t, err)
	for _, dd := range rep.Drawdowns {
		assert.InDelta(t, want, dd, 1e-12)
	}
}

func TestSeededReproducibility(t *testing.T) {
	trades := mcTrades(3, -1, 2, -1, -1, 1, 0.5, -1, 2, -2)

	a, err := New(trades, Config{Runs: 30, Seed: 42, CapitalR: 50}, nil)
	require.NoError(t, err)
	b, err := New(trades, Config{Runs: 30, Seed: 42, CapitalR: 50}, nil)
	require.NoError(t, err)
	c, err := New(trades, Config{Runs: 30, Seed: 43, CapitalR: 50}, nil)
	require.NoError(t, err)

	for _, model := range Models {
		ra, err := a.Run(model)
		require.NoError(t, err)
		rb, err := b.Run(model)
		require.NoError(t, err)
		assert.Equal(t, ra.Drawdowns, rb.Drawdowns, "model %s", model)
	}

	ri, _ := a.Run(ModelIIDShuffle)
	rc, _ := c.Run(ModelIIDShuffle)
	assert.NotEqual(t, ri.Drawdowns, rc.Drawdowns)
}

func TestRuinDetection(t *testing.T) {
	trades := manyTrades(30, -1)
	r, err := New(trades, Config{Runs: 25, Seed: 9, CapitalR: 10}, nil)
	require.NoError(t, err)

	rep, err := r.Run(ModelIIDShuffle)
	require.NoError(t, err)
	// 30 straight losses against 10R of capital: every path is ruined.
	assert.InDelta(t, 100.0, rep.Stats.RuinPct, 1e-12)
	assert.InDelta(t, 30.0, rep.Stats.MedianDrawdown, 1e-12)
}

func TestKeepPathsSampling(t *testing.T) {
	trades := mcTrades(1, -1, 2, -1, 1)
	r, err := New(trades, Config{Runs: 40, Seed: 5, CapitalR: 50, KeepPaths: 10}, nil)
	require.NoError(t, err)

	rep, err := r.Run(ModelBlockBootstrap)
	require.NoError(t, err)
	assert.Len(t, rep.Paths, 10)
	for _, p := range rep.Paths {
		// Path starts at zero equity and has one point per trade after it.
		require.Len(t, p, len(trades)+1)
		assert.Zero(t, p[0])
	}
}

func TestFullReportCoversAllModels(t *testing.T) {
	trades := mcTrades(3, -1, 2, -1, -1, 1, 0.5, -1, 2, -2)
	r, err := New(trades, Config{Runs: 10, StressRuns: 5, Seed: 2, CapitalR: 50}, nil)
	require.NoError(t, err)

	rep, err := r.FullReport()
	require.NoError(t, err)
	require.Len(t, rep.Models, len(Models))
	for i, m := range rep.Models {
		assert.Equal(t, Models[i], m.Model)
		assert.Len(t, m.Drawdowns, m.Runs)
	}
	assert.Equal(t, 5, rep.Models[3].Runs)
}

func TestNewRejectsEmptyTrades(t *testing.T) {
	_, err := New(nil, Config{}, nil)
	assert.Error(t, err)
}

func TestPercentileRanks(t *testing.T) {
	vals := []float64{4, 1, 3, 2}
	assert.Equal(t, 3.0, percentile(vals, 0.5))
	assert.Equal(t, 1.0, percentile(vals, 0))
	assert.Equal(t, 4.0, percentile(vals, 0.99))
	assert.Zero(t, percentile(nil, 0.5))
}

func TestCompoundingDeterministicGrowth(t *testing.T) {
	trades := manyTrades(50, 1)
	r, err := New(trades, Config{Runs: 10, BlockSize: 50, Seed: 11, CapitalR: 200}, nil)
	require.NoError(t, err)

	cfg := CompoundConfig{
		StartingCapital: 10000,
		RiskPct:         0.01,
		TradesPerYear:   20,
		ProjectionYears: 5,
		Runs:            20,
		Seed:            11,
	}
	rep, err := r.Compound(cfg, nil)
	require.NoError(t, err)
	require.Len(t, rep.Scenarios, len(Scenarios))
	assert.Equal(t, 100, rep.TargetTrades)

	// Every trade wins +1R, so the non-stress scenarios compound
	// deterministically: 10000 * 1.01^100.
	want := 10000 * math.Pow(1.01, 100)
	conservative := rep.Scenarios[0]
	assert.Equal(t, "conservative", conservative.Scenario.Name)
	assert.InDelta(t, want, conservative.Stats.MedianFinal, 1e-6)
	assert.Zero(t, conservative.Stats.BlownPct)
	assert.InDelta(t, 100.0, conservative.Stats.DoublePct, 1e-12)
	// ln(2)/ln(1.01) = 69.66: doubling happens on trade 70.
	assert.InDelta(t, 70.0, conservative.Stats.MedianDouble, 1e-12)

	// The stress scenario must not beat the benign ones.
	stress := rep.Scenarios[2]
	assert.LessOrEqual(t, stress.Stats.MedianFinal, conservative.Stats.MedianFinal)
}

func TestCompoundingBlownAccount(t *testing.T) {
	trades := manyTrades(40, -1)
	r, err := New(trades, Config{Runs: 5, Seed: 4, CapitalR: 40}, nil)
	require.NoError(t, err)

	cfg := CompoundConfig{
		StartingCapital: 1000,
		RiskPct:         0.5,
		TradesPerYear:   40,
		ProjectionYears: 2,
		Runs:            10,
		Seed:            4,
	}
	rep, err := r.Compound(cfg, nil)
	require.NoError(t, err)

	// Risking half the account on straight losses decays equity toward
	// zero but never through it: paths end tiny, not blown.
	for _, sc := range rep.Scenarios {
		assert.Less(t, sc.Stats.MedianFinal, 1.0, sc.Scenario.Name)
		assert.GreaterOrEqual(t, sc.Stats.MedianMaxDD, 99.0, sc.Scenario.Name)
	}
}
