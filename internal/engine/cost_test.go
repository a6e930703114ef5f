package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyCostsScalesWithStopDistance(t *testing.T) {
	m := NewCostModel(CostConfig{
		FeePct:               0.00118,
		SpreadPct:            0.0010,
		SlippagePct:          0.0008,
		FundingPct:           0.0001,
		BarsPerFundingPeriod: 32,
	})

	// 1% stop distance: each percentage cost is amplified 100x into R units.
	netR, costs := m.Apply(2.0, 64, 100, 101)
	assert.InDelta(t, 0.118, costs.FeeR, 1e-9)
	assert.InDelta(t, 0.10, costs.SpreadR, 1e-9)
	assert.InDelta(t, 0.08, costs.SlippageR, 1e-9)
	// Two funding periods held.
	assert.InDelta(t, 0.02, costs.FundingR, 1e-9)
	assert.InDelta(t, 2.0-costs.Total(), netR, 1e-9)
}

func TestApplyCostsTighterStopCostsMore(t *testing.T) {
	m := NewCostModel(CostConfig{FeePct: 0.001, BarsPerFundingPeriod: 32})

	_, wide := m.Apply(1, 0, 100, 102)
	_, tight := m.Apply(1, 0, 100, 100.5)
	assert.Greater(t, tight.FeeR, wide.FeeR)
}

func TestNetREqualsGrossMinusCosts(t *testing.T) {
	m := NewCostModel(CostConfig{
		FeePct:               0.002,
		SpreadPct:            0.001,
		SlippagePct:          0.0005,
		FundingPct:           0.0002,
		BarsPerFundingPeriod: 96,
	})

	for _, grossR := range []float64{-1.75, -1, 0.4, 3, 4.5} {
		netR, costs := m.Apply(grossR, 40, 250, 245)
		sum := costs.FeeR + costs.SlippageR + costs.SpreadR + costs.FundingR
		if math.Abs(netR-(grossR-sum)) > 1e-12 {
			t.Fatalf("netR %f != grossR %f - costs %f", netR, grossR, sum)
		}
	}
}

func TestZeroCostProfileIsIdentity(t *testing.T) {
	m := NewCostModel(CostConfig{})
	netR, costs := m.Apply(3, 10, 100, 99)
	assert.Equal(t, 3.0, netR)
	assert.Equal(t, 0.0, costs.Total())
}
