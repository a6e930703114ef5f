// Package stats aggregates closed trades into the summary metrics shared by
// the backtest report, the walk-forward evaluator, and the Monte-Carlo
// layer.
package stats

import (
	"fmt"
	"math"
	"sort"

	"github.com/yourusername/edge-lab/internal/engine"
)

// Metrics summarizes a trade list. Win rate and expectancy are
// order-independent; drawdown and net profit follow the list's given
// ordering, so callers sort chronologically before computing them.
type Metrics struct {
	Trades int `json:"trades"`
	Wins   int `json:"wins"`
	Losses int `json:"losses"`

	WinRate    float64 `json:"win_rate"`
	AvgWinR    float64 `json:"avg_win_r"`
	AvgLossR   float64 `json:"avg_loss_r"`
	Expectancy float64 `json:"expectancy"`

	MaxDrawdownR    float64 `json:"max_drawdown_r"`
	AvgDurationBars float64 `json:"avg_duration_bars"`

	TotalProfitR float64 `json:"total_profit_r"`
	TotalLossR   float64 `json:"total_loss_r"`
	NetProfitR   float64 `json:"net_profit_r"`

	WinDistribution  []RBucket `json:"win_distribution,omitempty"`
	LossDistribution []RBucket `json:"loss_distribution,omitempty"`
}

// RBucket is one row of the outcome distribution: how many trades closed
// near a given gross R value, and what share of the wins (or losses) that
// represents.
type RBucket struct {
	Label string  `json:"label"`
	Count int     `json:"count"`
	Pct   float64 `json:"pct"`
}

const distributionTopN = 5

// Compute aggregates the trade list. Net R decides the win/loss split;
// gross R labels the distribution buckets so fee noise does not smear the
// target levels.
func Compute(trades []engine.Trade) Metrics {
	m := Metrics{Trades: len(trades)}
	if len(trades) == 0 {
		return m
	}

	var equity, peak float64
	var lossSumAbs, winSum, durationSum float64
	for _, t := range trades {
		equity += t.NetR
		if equity > peak {
			peak = equity
		}
		if dd := peak - equity; dd > m.MaxDrawdownR {
			m.MaxDrawdownR = dd
		}

		switch {
		case t.NetR > 0:
			m.Wins++
			winSum += t.NetR
			m.TotalProfitR += t.NetR
		case t.NetR < 0:
			m.Losses++
			lossSumAbs += -t.NetR
			m.TotalLossR += -t.NetR
		}
		durationSum += float64(t.DurationBars)
	}
	m.NetProfitR = equity
	m.AvgDurationBars = durationSum / float64(len(trades))

	m.WinRate = float64(m.Wins) / float64(len(trades))
	if m.Wins > 0 {
		m.AvgWinR = winSum / float64(m.Wins)
	}
	// The loss average is diluted over every non-winning trade, breakevens
	// included, so a strategy that scratches often is not flattered.
	if nonWins := len(trades) - m.Wins; nonWins > 0 {
		m.AvgLossR = lossSumAbs / float64(nonWins)
	}
	m.Expectancy = m.WinRate*m.AvgWinR - (1-m.WinRate)*m.AvgLossR

	m.WinDistribution = distribution(trades, true, m.Wins)
	m.LossDistribution = distribution(trades, false, m.Losses)
	return m
}

func distribution(trades []engine.Trade, wins bool, total int) []RBucket {
	if total == 0 {
		return nil
	}
	counts := make(map[string]int)
	for _, t := range trades {
		if (wins && t.NetR <= 0) || (!wins && t.NetR >= 0) {
			continue
		}
		counts[fmt.Sprintf("%+.2fR", math.Round(t.GrossR*100)/100)]++
	}

	buckets := make([]RBucket, 0, len(counts))
	for label, n := range counts {
		buckets = append(buckets, RBucket{
			Label: label,
			Count: n,
			Pct:   100 * float64(n) / float64(total),
		})
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].Count != buckets[j].Count {
			return buckets[i].Count > buckets[j].Count
		}
		return buckets[i].Label < buckets[j].Label
	})
	if len(buckets) > distributionTopN {
		buckets = buckets[:distributionTopN]
	}
	return buckets
}

// EquityCurve returns the cumulative net R after each trade, in list order.
func EquityCurve(trades []engine.Trade) []float64 {
	curve := make([]float64, len(trades))
	equity := 0.0
	for i, t := range trades {
		equity += t.NetR
		curve[i] = equity
	}
	return curve
}

// MaxDrawdown returns the peak-to-trough decline of an equity curve. The
// peak starts at zero so a curve that never goes positive reports its full
// depth.
func MaxDrawdown(curve []float64) float64 {
	var peak, maxDD float64
	for _, eq := range curve {
		if eq > peak {
			peak = eq
		}
		if dd := peak - eq; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}
