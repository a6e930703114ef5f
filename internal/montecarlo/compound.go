package montecarlo

import (
	"math"
	"math/rand"
	"sync"

	"github.com/sirupsen/logrus"
)

// Scenario names one compounding projection flavor and the resampling
// model behind it.
type Scenario struct {
	Name  string `json:"name"`
	Model Model  `json:"model"`
}

// Scenarios is the standard projection set, ordered from benign to harsh.
var Scenarios = []Scenario{
	{Name: "conservative", Model: ModelBlockBootstrap},
	{Name: "realistic", Model: ModelCorrelationPreserving},
	{Name: "stress", Model: ModelStressInjection},
}

// CompoundConfig parameterizes the multi-year percentage-of-equity
// projection.
type CompoundConfig struct {
	StartingCapital float64
	RiskPct         float64 // fraction of current equity risked per trade
	TradesPerYear   float64
	ProjectionYears int
	Runs            int
	Seed            int64
	Workers         int
	KeepPaths       int
}

func (c *CompoundConfig) normalize() {
	if c.StartingCapital <= 0 {
		c.StartingCapital = 10000
	}
	if c.RiskPct <= 0 {
		c.RiskPct = 0.005
	}
	if c.TradesPerYear <= 0 {
		c.TradesPerYear = 121.5
	}
	if c.ProjectionYears <= 0 {
		c.ProjectionYears = 5
	}
	if c.Runs <= 0 {
		c.Runs = 5000
	}
}

// CompoundPath is one projected equity path under compounding.
type CompoundPath struct {
	FinalEquity float64 `json:"final_equity"`
	MaxDDPct    float64 `json:"max_dd_pct"`
	CAGRPct     float64 `json:"cagr_pct"`
	// TimeToDouble is the 1-based trade ordinal at which equity first
	// reached twice the starting capital; zero if it never did.
	TimeToDouble int       `json:"time_to_double"`
	Blown        bool      `json:"blown"`
	Path         []float64 `json:"path,omitempty"`
}

// CompoundStats summarizes one scenario's path distribution.
type CompoundStats struct {
	MedianFinal  float64 `json:"median_final"`
	Pct5Final    float64 `json:"pct5_final"`
	Pct95Final   float64 `json:"pct95_final"`
	MedianCAGR   float64 `json:"median_cagr"`
	Pct5CAGR     float64 `json:"pct5_cagr"`
	MedianMaxDD  float64 `json:"median_max_dd"`
	Pct1MaxDD    float64 `json:"pct1_max_dd"`
	BlownPct     float64 `json:"blown_pct"`
	MedianDouble float64 `json:"median_time_to_double"`
	DoublePct    float64 `json:"double_pct"`
}

// ScenarioReport is one scenario's stats plus sampled paths.
type ScenarioReport struct {
	Scenario Scenario      `json:"scenario"`
	Stats    CompoundStats `json:"stats"`
	Paths    [][]float64   `json:"paths,omitempty"`
}

// CompoundReport is the full projection across scenarios.
type CompoundReport struct {
	StartingCapital float64           `json:"starting_capital"`
	RiskPct         float64           `json:"risk_pct"`
	TargetTrades    int               `json:"target_trades"`
	ProjectionYears int               `json:"projection_years"`
	Scenarios       []*ScenarioReport `json:"scenarios"`
}

// Compound projects multi-year compounding outcomes: unlike the fixed-R
// report, each trade risks a fixed percentage of current equity, so
// sequence risk shows up directly in final capital.
func (r *Runner) Compound(cfg CompoundConfig, logger *logrus.Logger) (*CompoundReport, error) {
	cfg.normalize()
	if cfg.Workers <= 0 {
		cfg.Workers = r.cfg.Workers
	}
	if logger == nil {
		logger = r.logger
	}
	targetTrades := int(math.Round(cfg.TradesPerYear * float64(cfg.ProjectionYears)))

	report := &CompoundReport{
		StartingCapital: cfg.StartingCapital,
		RiskPct:         cfg.RiskPct,
		TargetTrades:    targetTrades,
		ProjectionYears: cfg.ProjectionYears,
	}

	for _, sc := range Scenarios {
		paths := r.compoundScenario(cfg, sc, targetTrades)
		sr := &ScenarioReport{Scenario: sc, Stats: compoundStats(paths)}
		for _, p := range paths {
			if p.Path != nil {
				sr.Paths = append(sr.Paths, p.Path)
			}
		}
		report.Scenarios = append(report.Scenarios, sr)

		logger.WithFields(logrus.Fields{
			"scenario":    sc.Name,
			"runs":        cfg.Runs,
			"medianFinal": sr.Stats.MedianFinal,
			"blownPct":    sr.Stats.BlownPct,
		}).Debug("Compounding scenario complete")
	}
	return report, nil
}

func (r *Runner) compoundScenario(cfg CompoundConfig, sc Scenario, targetTrades int) []CompoundPath {
	sampleStep := 0
	if cfg.KeepPaths > 0 {
		sampleStep = cfg.Runs / cfg.KeepPaths
		if sampleStep < 1 {
			sampleStep = 1
		}
	}

	paths := make([]CompoundPath, cfg.Runs)
	sem := make(chan struct{}, cfg.Workers)
	var wg sync.WaitGroup
	for i := 0; i < cfg.Runs; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(run int) {
			defer wg.Done()
			defer func() { <-sem }()

			rng := rand.New(rand.NewSource(runSeed(cfg.Seed, "compound-"+sc.Model, run)))
			seq := r.sequence(rng, sc.Model, targetTrades)
			keep := sampleStep > 0 && run%sampleStep == 0 && run/sampleStep < cfg.KeepPaths
			paths[run] = simulateCompounding(seq, cfg, keep)
		}(i)
	}
	wg.Wait()
	return paths
}

// simulateCompounding walks one R sequence under percentage-of-equity
// sizing. Equity is floored at zero and the walk stops there: the account
// is blown.
func simulateCompounding(seq []float64, cfg CompoundConfig, keepPath bool) CompoundPath {
	equity := cfg.StartingCapital
	peak := equity
	var maxDDPct float64
	var timeToDouble int
	var path []float64
	if keepPath {
		path = make([]float64, 0, len(seq)+1)
		path = append(path, equity)
	}

	for i, r := range seq {
		equity += r * equity * cfg.RiskPct
		if equity < 0 {
			equity = 0
		}
		if keepPath {
			path = append(path, equity)
		}
		if equity > peak {
			peak = equity
		}
		if peak > 0 {
			if ddPct := 100 * (peak - equity) / peak; ddPct > maxDDPct {
				maxDDPct = ddPct
			}
		}
		if timeToDouble == 0 && equity >= 2*cfg.StartingCapital {
			timeToDouble = i + 1
		}
		if equity <= 0 {
			break
		}
	}

	cagr := -100.0
	if equity > 0 {
		cagr = 100 * (math.Pow(equity/cfg.StartingCapital, 1/float64(cfg.ProjectionYears)) - 1)
	}
	return CompoundPath{
		FinalEquity:  equity,
		MaxDDPct:     maxDDPct,
		CAGRPct:      cagr,
		TimeToDouble: timeToDouble,
		Blown:        equity <= 0,
		Path:         path,
	}
}

func compoundStats(paths []CompoundPath) CompoundStats {
	finals := make([]float64, len(paths))
	cagrs := make([]float64, len(paths))
	dds := make([]float64, len(paths))
	var doubles []float64
	blown := 0
	for i, p := range paths {
		finals[i] = p.FinalEquity
		cagrs[i] = p.CAGRPct
		dds[i] = p.MaxDDPct
		if p.TimeToDouble > 0 {
			doubles = append(doubles, float64(p.TimeToDouble))
		}
		if p.Blown {
			blown++
		}
	}

	s := CompoundStats{
		MedianFinal: percentile(finals, 0.5),
		Pct5Final:   percentile(finals, 0.05),
		Pct95Final:  percentile(finals, 0.95),
		MedianCAGR:  percentile(cagrs, 0.5),
		Pct5CAGR:    percentile(cagrs, 0.05),
		MedianMaxDD: percentile(dds, 0.5),
		Pct1MaxDD:   percentile(dds, 0.99),
		BlownPct:    100 * float64(blown) / float64(len(paths)),
		DoublePct:   100 * float64(len(doubles)) / float64(len(paths)),
	}
	if len(doubles) > 0 {
		s.MedianDouble = percentile(doubles, 0.5)
	}
	return s
}
