// Package walkforward runs the sliding-window validation protocol: each
// window spends its leading bars on indicator warm-up only and counts
// trades in the trailing test segment, with every timeframe sliced to the
// window's temporal bounds so no future data leaks in.
package walkforward

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/edge-lab/internal/engine"
	"github.com/yourusername/edge-lab/internal/indicator"
	"github.com/yourusername/edge-lab/internal/market"
	"github.com/yourusername/edge-lab/internal/signal"
	"github.com/yourusername/edge-lab/internal/stats"
)

// RegimeFactory builds a regime filter for one window from its sliced slow
// timeframe. A nil factory disables the regime gate.
type RegimeFactory func(slow market.Series, frame indicator.Frame) signal.RegimeFilter

// TrendRegime builds the default higher-timeframe gate: shorts require the
// slow close below its EMA50, longs above. Bars past the sliced history
// never pass.
func TrendRegime(dir signal.Direction) RegimeFactory {
	return func(slow market.Series, frame indicator.Frame) signal.RegimeFilter {
		return func(i int) bool {
			if i < 0 || i >= len(slow) || i >= len(frame) {
				return false
			}
			if dir == signal.Long {
				return slow[i].Close > frame[i].EMA50
			}
			return slow[i].Close < frame[i].EMA50
		}
	}
}

// WindowResult records one walk-forward window. Zero-trade windows are
// recorded like any other so the evaluator's zero-trade criterion has real
// data to act on.
type WindowResult struct {
	Window  int           `json:"window"`
	Start   time.Time     `json:"start"`
	End     time.Time     `json:"end"`
	Metrics stats.Metrics `json:"metrics"`
}

// Result is the full walk-forward outcome for one pair: per-window metrics
// plus the pooled trade list and its aggregate metrics.
type Result struct {
	Pair    string         `json:"pair"`
	Windows []WindowResult `json:"windows"`
	Trades  []engine.Trade `json:"trades"`
	Pooled  stats.Metrics  `json:"pooled"`
}

// Runner slides fixed train/test windows across a candle history. There is
// no parameter tuning between windows; the train segment exists purely to
// warm up indicators out of sample.
type Runner struct {
	cfg         engine.Config
	monthsTrain int
	monthsTest  int
	regime      RegimeFactory
	logger      *logrus.Logger
}

// New creates a runner. Train and test lengths are in months, converted to
// bars by the asset class's trading calendar.
func New(cfg engine.Config, monthsTrain, monthsTest int, regime RegimeFactory, logger *logrus.Logger) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if monthsTrain <= 0 || monthsTest <= 0 {
		return nil, fmt.Errorf("train and test lengths must be positive months")
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Runner{
		cfg:         cfg,
		monthsTrain: monthsTrain,
		monthsTest:  monthsTest,
		regime:      regime,
		logger:      logger,
	}, nil
}

// span is a half-open bar range [start, end) into the fast series.
type span struct {
	start, end int
}

// partition lays out the window spans: each covers trainBars+testBars bars
// and consecutive windows advance by testBars, so test segments tile the
// history without overlap.
func partition(total, trainBars, testBars int) []span {
	var spans []span
	for start := 0; start+trainBars+testBars <= total; start += testBars {
		spans = append(spans, span{start: start, end: start + trainBars + testBars})
	}
	return spans
}

// Run executes the protocol over the full fast/slow history. Indicators are
// recomputed per window from the sliced data only.
func (r *Runner) Run(fast, slow market.Series) (*Result, error) {
	if err := fast.Validate(); err != nil {
		return nil, fmt.Errorf("fast series: %w", err)
	}
	if err := slow.Validate(); err != nil {
		return nil, fmt.Errorf("slow series: %w", err)
	}

	barsPerMonth := r.cfg.Asset.BarsPerMonth()
	trainBars := r.monthsTrain * barsPerMonth
	testBars := r.monthsTest * barsPerMonth

	result := &Result{Pair: r.cfg.Pair}

	for n, sp := range partition(len(fast), trainBars, testBars) {
		fastSlice := fast[sp.start:sp.end]
		windowStart := fastSlice[0].Time
		windowEnd := fastSlice[len(fastSlice)-1].Time
		slowSlice := slow.SliceByTime(windowStart, windowEnd)

		fastFrame := indicator.Precompute(fastSlice)
		slowFrame := indicator.Precompute(slowSlice)

		var regime signal.RegimeFilter
		if r.regime != nil {
			regime = r.regime(slowSlice, slowFrame)
		}

		cfg := r.cfg
		cfg.StartOffset = trainBars
		eng, err := engine.New(cfg, regime, r.logger)
		if err != nil {
			return nil, err
		}
		run, err := eng.Run(fastSlice, fastFrame, slowSlice, slowFrame)
		if err != nil {
			return nil, fmt.Errorf("window %d: %w", n+1, err)
		}

		wr := WindowResult{Window: n + 1, Start: windowStart, End: windowEnd}
		if run != nil {
			wr.Metrics = stats.Compute(run.Trades)
			result.Trades = append(result.Trades, run.Trades...)
		}
		result.Windows = append(result.Windows, wr)

		r.logger.WithFields(logrus.Fields{
			"pair":       r.cfg.Pair,
			"window":     wr.Window,
			"trades":     wr.Metrics.Trades,
			"expectancy": wr.Metrics.Expectancy,
		}).Debug("Walk-forward window complete")
	}

	result.Pooled = stats.Compute(result.Trades)
	return result, nil
}
