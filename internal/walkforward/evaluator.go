package walkforward

import "sort"

// Accept thresholds for the window-set verdict. With one-month test windows
// a pair produces only a handful of trades per window, so the bar for
// per-window consistency is deliberately modest; the pooled edge is the
// hard requirement.
const (
	minPositiveWindowPct      = 50.0
	maxZeroTradeWindowPct     = 25.0
	maxConsecutiveNonPositive = 6
)

// Verdict is the evaluator's output: the computed ratios and the combined
// accept flag. Median window expectancy is informational only.
type Verdict struct {
	Windows                   int     `json:"windows"`
	PositivePct               float64 `json:"positive_pct"`
	ZeroTradePct              float64 `json:"zero_trade_pct"`
	MaxConsecutiveNonPositive int     `json:"max_consecutive_non_positive"`
	MedianWindowExpectancy    float64 `json:"median_window_expectancy"`
	PooledExpectancy          float64 `json:"pooled_expectancy"`
	Accept                    bool    `json:"accept"`
}

// Evaluate applies the accept criteria to a walk-forward result: at least
// half the windows strictly positive, at most a quarter without trades, no
// non-positive streak reaching six windows, and a positive pooled
// expectancy. All four must hold.
func Evaluate(res *Result) Verdict {
	v := Verdict{Windows: len(res.Windows)}
	if v.Windows == 0 {
		return v
	}

	var positive, zeroTrade, streak int
	expectancies := make([]float64, 0, len(res.Windows))
	for _, w := range res.Windows {
		if w.Metrics.Trades == 0 {
			zeroTrade++
		}
		expectancies = append(expectancies, w.Metrics.Expectancy)

		if w.Metrics.Expectancy > 0 {
			positive++
			streak = 0
		} else {
			streak++
			if streak > v.MaxConsecutiveNonPositive {
				v.MaxConsecutiveNonPositive = streak
			}
		}
	}

	sort.Float64s(expectancies)
	v.MedianWindowExpectancy = expectancies[len(expectancies)/2]

	v.PositivePct = 100 * float64(positive) / float64(v.Windows)
	v.ZeroTradePct = 100 * float64(zeroTrade) / float64(v.Windows)
	v.PooledExpectancy = res.Pooled.Expectancy

	v.Accept = v.PositivePct >= minPositiveWindowPct &&
		v.ZeroTradePct <= maxZeroTradeWindowPct &&
		v.MaxConsecutiveNonPositive < maxConsecutiveNonPositive &&
		v.PooledExpectancy > 0
	return v
}
