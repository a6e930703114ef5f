// Package propfirm simulates running the strategy through a funded-account
// challenge: fixed profit target, daily and overall drawdown limits,
// leverage caps, and weekend holding restrictions layered over the realized
// trade distribution.
package propfirm

import (
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/edge-lab/internal/engine"
)

// Config mirrors a typical two-phase challenge rule set. A zero
// StartingBalance disables the simulation.
type Config struct {
	StartingBalance  float64 `json:"starting_balance" mapstructure:"starting_balance"`
	RiskPerTradePct  float64 `json:"risk_per_trade_pct" mapstructure:"risk_per_trade_pct"`
	MaxLeverage      float64 `json:"max_leverage" mapstructure:"max_leverage"`
	DailyDDLimit     float64 `json:"daily_dd_limit" mapstructure:"daily_dd_limit"`
	MaxDDLimit       float64 `json:"max_dd_limit" mapstructure:"max_dd_limit"`
	ProfitTarget     float64 `json:"profit_target" mapstructure:"profit_target"`
	CommissionPct    float64 `json:"commission_pct" mapstructure:"commission_pct"`
	NoWeekendHolding bool    `json:"no_weekend_holding" mapstructure:"no_weekend_holding"`

	Runs          int   `json:"runs" mapstructure:"runs"`
	ChallengeDays int   `json:"challenge_days" mapstructure:"challenge_days"`
	Seed          int64 `json:"seed" mapstructure:"seed"`
	KeepPaths     int   `json:"keep_paths" mapstructure:"keep_paths"`
}

// Enabled reports whether the challenge block is configured.
func (c Config) Enabled() bool {
	return c.StartingBalance > 0
}

func (c *Config) normalize() {
	if c.Runs <= 0 {
		c.Runs = 5000
	}
	if c.ChallengeDays <= 0 {
		c.ChallengeDays = 30
	}
	if c.KeepPaths < 0 {
		c.KeepPaths = 0
	}
}

// challenge outcome states.
type status int

const (
	statusActive status = iota
	statusPassed
	statusFailedMaxDD
	statusFailedDailyDD
	statusTimeout
)

// Report aggregates challenge outcomes across all simulation runs.
type Report struct {
	Config      Config  `json:"config"`
	Simulations int     `json:"simulations"`
	PassRatePct float64 `json:"pass_rate_pct"`

	FailDailyDDPct float64 `json:"fail_daily_dd_pct"`
	FailMaxDDPct   float64 `json:"fail_max_dd_pct"`
	FailTimeoutPct float64 `json:"fail_timeout_pct"`

	AvgDaysToPass    float64 `json:"avg_days_to_pass"`
	MedianDaysToPass float64 `json:"median_days_to_pass"`
	// AvgCappedTrades is how many trades per challenge were sized down to
	// satisfy the leverage limit.
	AvgCappedTrades float64 `json:"avg_capped_trades"`

	SamplePaths [][]float64 `json:"sample_paths,omitempty"`
}

// Simulate bootstraps challenge attempts from the realized trades. Returns
// nil when the challenge block is not configured.
func Simulate(trades []engine.Trade, cfg Config, logger *logrus.Logger) *Report {
	if logger == nil {
		logger = logrus.New()
	}
	if !cfg.Enabled() {
		logger.Warn("Prop firm config block missing, skipping challenge simulation")
		return nil
	}
	if len(trades) == 0 {
		logger.Warn("No trades available, skipping challenge simulation")
		return nil
	}
	cfg.normalize()

	tradesPerDay := estimateTradesPerDay(trades)
	perDay := int(math.Ceil(tradesPerDay))
	if perDay < 1 {
		perDay = 1
	}
	// Oversample so a run cannot exhaust its trade supply before the
	// challenge clock does.
	sampleLen := int(math.Ceil(float64(cfg.ChallengeDays) * tradesPerDay * 1.5))
	if sampleLen < 1 {
		sampleLen = 1
	}

	rng := rand.New(rand.NewSource(cfg.Seed))

	var passed, failedMaxDD, failedDailyDD, failedTimeout int
	var totalCapped int
	var daysToPass []float64
	var paths [][]float64

	for run := 0; run < cfg.Runs; run++ {
		outcome := simulateChallenge(trades, cfg, rng, sampleLen, perDay)
		totalCapped += outcome.capped

		switch outcome.status {
		case statusPassed:
			passed++
			daysToPass = append(daysToPass, float64(outcome.day))
		case statusFailedMaxDD:
			failedMaxDD++
		case statusFailedDailyDD:
			failedDailyDD++
		default:
			// Timeout and running out of sampled trades both mean the
			// target was never reached.
			failedTimeout++
		}

		if run < cfg.KeepPaths {
			paths = append(paths, outcome.path)
		}
	}

	runs := float64(cfg.Runs)
	report := &Report{
		Config:          cfg,
		Simulations:     cfg.Runs,
		PassRatePct:     100 * float64(passed) / runs,
		FailDailyDDPct:  100 * float64(failedDailyDD) / runs,
		FailMaxDDPct:    100 * float64(failedMaxDD) / runs,
		FailTimeoutPct:  100 * float64(failedTimeout) / runs,
		AvgCappedTrades: float64(totalCapped) / runs,
		SamplePaths:     paths,
	}
	if len(daysToPass) > 0 {
		sum := 0.0
		for _, d := range daysToPass {
			sum += d
		}
		report.AvgDaysToPass = sum / float64(len(daysToPass))
		report.MedianDaysToPass = median(daysToPass)
	}

	logger.WithFields(logrus.Fields{
		"runs":    cfg.Runs,
		"passPct": report.PassRatePct,
		"dailyDD": report.FailDailyDDPct,
		"maxDD":   report.FailMaxDDPct,
		"timeout": report.FailTimeoutPct,
		"capped":  report.AvgCappedTrades,
	}).Info("Prop firm challenge simulation complete")
	return report
}

type challengeOutcome struct {
	status status
	day    int
	capped int
	path   []float64
}

func simulateChallenge(trades []engine.Trade, cfg Config, rng *rand.Rand, sampleLen, perDay int) challengeOutcome {
	equity := cfg.StartingBalance
	dayStartEquity := equity
	day := 1
	taken := 0
	capped := 0
	st := statusActive
	path := []float64{equity}

	for s := 0; s < sampleLen; s++ {
		t := trades[rng.Intn(len(trades))]

		if equity >= cfg.StartingBalance*(1+cfg.ProfitTarget) {
			st = statusPassed
			break
		}

		taken++
		if taken%perDay == 0 {
			day++
			dayStartEquity = equity
		}
		if day > cfg.ChallengeDays {
			st = statusTimeout
			break
		}

		if cfg.NoWeekendHolding && isWeekend(t.EntryTime) {
			continue
		}

		slDistancePct := math.Abs(t.EntryPrice-t.StopPrice) / t.EntryPrice
		if slDistancePct <= 0 {
			continue
		}

		// Size by risk, then cap exposure at the firm's leverage limit.
		riskAmount := equity * cfg.RiskPerTradePct
		if cfg.MaxLeverage > 0 {
			if requested := riskAmount / slDistancePct; requested > equity*cfg.MaxLeverage {
				riskAmount = equity * cfg.MaxLeverage * slDistancePct
				capped++
			}
		}

		// The firm charges round-trip commission on position value; the
		// strategy's own slippage, spread, and funding still apply, but
		// exchange fees do not.
		positionValue := riskAmount / slDistancePct
		commission := positionValue * cfg.CommissionPct
		firmNetR := t.GrossR - t.Costs.SlippageR - t.Costs.SpreadR - t.Costs.FundingR

		equity += firmNetR*riskAmount - commission
		path = append(path, equity)

		if (cfg.StartingBalance-equity)/cfg.StartingBalance >= cfg.MaxDDLimit {
			st = statusFailedMaxDD
			break
		}
		if dayStartEquity > 0 && (dayStartEquity-equity)/dayStartEquity >= cfg.DailyDDLimit {
			st = statusFailedDailyDD
			break
		}
	}

	return challengeOutcome{status: st, day: day, capped: capped, path: path}
}

// estimateTradesPerDay derives trade frequency from the dataset's entry
// time span.
func estimateTradesPerDay(trades []engine.Trade) float64 {
	first, last := trades[0].EntryTime, trades[0].EntryTime
	for _, t := range trades[1:] {
		if t.EntryTime.Before(first) {
			first = t.EntryTime
		}
		if t.EntryTime.After(last) {
			last = t.EntryTime
		}
	}
	days := last.Sub(first).Hours() / 24
	if days < 1 {
		days = 1
	}
	return float64(len(trades)) / days
}

func isWeekend(t time.Time) bool {
	switch t.UTC().Weekday() {
	case time.Saturday, time.Sunday:
		return true
	}
	return false
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return sorted[len(sorted)/2]
}
