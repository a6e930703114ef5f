package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/yourusername/edge-lab/internal/engine"
)

func tradesFromR(rs ...float64) []engine.Trade {
	out := make([]engine.Trade, len(rs))
	for i, r := range rs {
		out[i] = engine.Trade{GrossR: r, NetR: r, DurationBars: 10}
	}
	return out
}

func TestComputeExpectancy(t *testing.T) {
	m := Compute(tradesFromR(3, -1, 3, -1, -1))

	assert.Equal(t, 5, m.Trades)
	assert.InDelta(t, 0.4, m.WinRate, 1e-12)
	assert.InDelta(t, 3.0, m.AvgWinR, 1e-12)
	assert.InDelta(t, 1.0, m.AvgLossR, 1e-12)
	assert.InDelta(t, 0.6, m.Expectancy, 1e-12)
	assert.InDelta(t, 3.0, m.NetProfitR, 1e-12)
	assert.InDelta(t, 6.0, m.TotalProfitR, 1e-12)
	assert.InDelta(t, 3.0, m.TotalLossR, 1e-12)
}

func TestComputeDilutesLossOverBreakevens(t *testing.T) {
	m := Compute(tradesFromR(2, 0, 0, -1))

	// One losing R spread across three non-winning trades.
	assert.InDelta(t, 0.25, m.WinRate, 1e-12)
	assert.InDelta(t, 1.0/3.0, m.AvgLossR, 1e-12)
	assert.InDelta(t, 0.25*2-0.75/3, m.Expectancy, 1e-12)
	assert.Equal(t, 1, m.Losses)
}

func TestComputeMaxDrawdown(t *testing.T) {
	// Equity path 3, 2, 5, 4, 3: worst decline is 5 -> 3.
	m := Compute(tradesFromR(3, -1, 3, -1, -1))
	assert.InDelta(t, 2.0, m.MaxDrawdownR, 1e-12)

	// Never-positive curve measures from the zero start.
	assert.InDelta(t, 3.0, Compute(tradesFromR(-1, -1, -1)).MaxDrawdownR, 1e-12)
}

func TestExpectancyOrderIndependentDrawdownNot(t *testing.T) {
	a := Compute(tradesFromR(3, -1, 3, -1, -1))
	b := Compute(tradesFromR(-1, -1, -1, 3, 3))

	assert.InDelta(t, a.Expectancy, b.Expectancy, 1e-12)
	assert.InDelta(t, a.WinRate, b.WinRate, 1e-12)
	assert.NotEqual(t, a.MaxDrawdownR, b.MaxDrawdownR)
	assert.InDelta(t, 3.0, b.MaxDrawdownR, 1e-12)
}

func TestComputeEmpty(t *testing.T) {
	m := Compute(nil)
	assert.Equal(t, 0, m.Trades)
	assert.Zero(t, m.Expectancy)
	assert.Zero(t, m.MaxDrawdownR)
	assert.Nil(t, m.WinDistribution)
}

func TestEquityCurve(t *testing.T) {
	curve := EquityCurve(tradesFromR(1, -1, 2))
	assert.Equal(t, []float64{1, 0, 2}, curve)
	assert.InDelta(t, 1.0, MaxDrawdown(curve), 1e-12)
}

func TestDistributionBuckets(t *testing.T) {
	m := Compute(tradesFromR(2, 2, 2, 4, -1, -1, -1.75))

	assert.Equal(t, "+2.00R", m.WinDistribution[0].Label)
	assert.Equal(t, 3, m.WinDistribution[0].Count)
	assert.InDelta(t, 75.0, m.WinDistribution[0].Pct, 1e-9)

	assert.Equal(t, "-1.00R", m.LossDistribution[0].Label)
	assert.Equal(t, 2, m.LossDistribution[0].Count)
}
