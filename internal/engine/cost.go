package engine

import "math"

// CostConfig holds the per-asset transaction cost profile. Percentages are
// fractions of price (0.00118 = 0.118%). FundingPct accrues once per
// BarsPerFundingPeriod bars held.
type CostConfig struct {
	FeePct               float64
	SpreadPct            float64
	SlippagePct          float64
	FundingPct           float64
	BarsPerFundingPeriod int
}

// CostBreakdown itemizes the R-unit costs deducted from a trade.
type CostBreakdown struct {
	FeeR      float64 `json:"fee_r"`
	SlippageR float64 `json:"slippage_r"`
	SpreadR   float64 `json:"spread_r"`
	FundingR  float64 `json:"funding_r"`
}

// Total returns the summed cost in R units.
func (c CostBreakdown) Total() float64 {
	return c.FeeR + c.SlippageR + c.SpreadR + c.FundingR
}

// CostModel converts gross R-multiples into net R-multiples. Each price
// percentage is divided by the stop distance percentage, so a tight stop
// amplifies cost impact; funding scales further with holding time. Pure and
// deterministic: the caller guarantees a positive stop distance.
type CostModel struct {
	cfg CostConfig
}

// NewCostModel builds a cost model from a cost profile.
func NewCostModel(cfg CostConfig) CostModel {
	if cfg.BarsPerFundingPeriod <= 0 {
		cfg.BarsPerFundingPeriod = 32
	}
	return CostModel{cfg: cfg}
}

// Apply deducts fee, slippage, spread and funding from grossR and returns
// the net R with its breakdown.
func (m CostModel) Apply(grossR float64, durationBars int, entryPrice, stopPrice float64) (float64, CostBreakdown) {
	stopDistPct := math.Abs(stopPrice-entryPrice) / entryPrice

	breakdown := CostBreakdown{
		FeeR:      m.cfg.FeePct / stopDistPct,
		SlippageR: m.cfg.SlippagePct / stopDistPct,
		SpreadR:   m.cfg.SpreadPct / stopDistPct,
		FundingR:  m.cfg.FundingPct * (float64(durationBars) / float64(m.cfg.BarsPerFundingPeriod)) / stopDistPct,
	}
	return grossR - breakdown.Total(), breakdown
}
