package montecarlo

import "sort"

// ModelStats are the percentile statistics of one model's path set.
// Drawdown percentiles are labelled by tail mass: Pct5Drawdown is the
// drawdown exceeded by only 5% of paths.
type ModelStats struct {
	MedianDrawdown float64 `json:"median_drawdown"`
	Pct5Drawdown   float64 `json:"pct5_drawdown"`
	Pct1Drawdown   float64 `json:"pct1_drawdown"`
	MedianEquity   float64 `json:"median_equity"`
	Pct5Equity     float64 `json:"pct5_equity"`
	// RuinPct is the percentage of paths whose drawdown reached half the
	// starting capital.
	RuinPct float64 `json:"ruin_pct"`
}

func computeStats(results []PathResult, capitalR float64) ModelStats {
	dds := make([]float64, len(results))
	equities := make([]float64, len(results))
	ruined := 0
	threshold := capitalR * ruinFraction
	for i, r := range results {
		dds[i] = r.MaxDrawdown
		equities[i] = r.FinalEquity
		if capitalR > 0 && r.MaxDrawdown >= threshold {
			ruined++
		}
	}

	return ModelStats{
		MedianDrawdown: percentile(dds, 0.5),
		Pct5Drawdown:   percentile(dds, 0.95),
		Pct1Drawdown:   percentile(dds, 0.99),
		MedianEquity:   percentile(equities, 0.5),
		Pct5Equity:     percentile(equities, 0.05),
		RuinPct:        100 * float64(ruined) / float64(len(results)),
	}
}

// percentile returns the value at rank floor(p*n) of the sorted copy.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	idx := int(p * float64(len(sorted)))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
