// Package montecarlo resamples a realized trade sequence under several
// generative models to estimate tail drawdown and risk of ruin. All
// randomness flows from a single seed with per-run derived streams, so a
// report is reproducible regardless of worker scheduling.
package montecarlo

import (
	"fmt"
	"math/rand"
	"runtime"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/edge-lab/internal/engine"
)

// Model selects a resampling strategy.
type Model string

const (
	// ModelIIDShuffle permutes the trade list, destroying all serial
	// structure. The optimistic baseline.
	ModelIIDShuffle Model = "iid"
	// ModelBlockBootstrap samples contiguous blocks with replacement,
	// preserving losing-streak clusters.
	ModelBlockBootstrap Model = "block"
	// ModelCorrelationPreserving resamples whole entry-time buckets,
	// preserving cross-pair clustering within a bucket.
	ModelCorrelationPreserving Model = "correlated"
	// ModelStressInjection starts from a block-bootstrap base, forces
	// several consecutive loss streaks, and decays a share of wins into
	// losses. The pessimistic bound.
	ModelStressInjection Model = "stress"
)

// Models lists every resampling strategy in report order.
var Models = []Model{ModelIIDShuffle, ModelBlockBootstrap, ModelCorrelationPreserving, ModelStressInjection}

// Stress injection parameters: each run forces 2-4 loss streaks of 8-12
// trades at the worst-case scale-in loss, at least 50 trades apart, then
// flips 25-35% of wins into standard losses.
const (
	stressMinStreaks   = 2
	stressExtraStreaks = 3
	stressMinLen       = 8
	stressExtraLen     = 5
	stressStreakR      = -1.75
	stressMinGap       = 50
	stressPlaceRetries = 50
	stressDecayBase    = 0.25
	stressDecaySpread  = 0.10
	stressDecayLossR   = -1
)

// ruinFraction is the share of starting capital whose loss counts as ruin.
const ruinFraction = 0.5

// Config parameterizes a risk report.
type Config struct {
	Runs       int     // paths per resampling model
	StressRuns int     // paths for the stress model (heavier per path)
	BlockSize  int     // block bootstrap block length in trades
	BucketDays int     // correlation bucket width in days
	CapitalR   float64 // starting capital expressed in R units
	Seed       int64
	Workers    int // concurrent path workers, defaults to GOMAXPROCS
	KeepPaths  int // equity paths retained per model for charting
}

func (c *Config) normalize() {
	if c.Runs <= 0 {
		c.Runs = 5000
	}
	if c.StressRuns <= 0 {
		c.StressRuns = 3000
	}
	if c.BlockSize <= 0 {
		c.BlockSize = 25
	}
	if c.BucketDays <= 0 {
		c.BucketDays = 7
	}
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if c.KeepPaths < 0 {
		c.KeepPaths = 0
	}
}

// PathResult is one resampled equity path. Path is nil unless the run was
// sampled for charting.
type PathResult struct {
	FinalEquity float64   `json:"final_equity"`
	MaxDrawdown float64   `json:"max_drawdown"`
	Path        []float64 `json:"path,omitempty"`
}

// ModelReport bundles one model's paths with its percentile statistics.
type ModelReport struct {
	Model Model       `json:"model"`
	Runs  int         `json:"runs"`
	Stats ModelStats  `json:"stats"`
	Paths [][]float64 `json:"paths,omitempty"`
	// Drawdowns holds every path's max drawdown for histogram export.
	Drawdowns []float64 `json:"drawdowns,omitempty"`
}

// Report is the full multi-model risk report.
type Report struct {
	CapitalR float64        `json:"capital_r"`
	Trades   int            `json:"trades"`
	Models   []*ModelReport `json:"models"`
}

// Runner resamples one fixed trade history. The trade list is captured at
// construction and never mutated.
type Runner struct {
	rs      []float64
	buckets [][]float64
	cfg     Config
	logger  *logrus.Logger
}

// New creates a runner over the realized trades. Net R drives every model;
// the correlation buckets are pre-grouped from entry times.
func New(trades []engine.Trade, cfg Config, logger *logrus.Logger) (*Runner, error) {
	if len(trades) == 0 {
		return nil, fmt.Errorf("no trades to resample")
	}
	cfg.normalize()
	if cfg.BlockSize > len(trades) {
		cfg.BlockSize = len(trades)
	}
	if logger == nil {
		logger = logrus.New()
	}

	rs := make([]float64, len(trades))
	for i, t := range trades {
		rs[i] = t.NetR
	}

	bucketSec := int64(cfg.BucketDays) * 24 * 60 * 60
	keys := make([]int64, 0)
	grouped := make(map[int64][]float64)
	for _, t := range trades {
		k := t.EntryTime.Unix() / bucketSec
		if _, ok := grouped[k]; !ok {
			keys = append(keys, k)
		}
		grouped[k] = append(grouped[k], t.NetR)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	buckets := make([][]float64, len(keys))
	for i, k := range keys {
		buckets[i] = grouped[k]
	}

	return &Runner{rs: rs, buckets: buckets, cfg: cfg, logger: logger}, nil
}

// Run produces one model's report.
func (r *Runner) Run(model Model) (*ModelReport, error) {
	runs := r.cfg.Runs
	if model == ModelStressInjection {
		runs = r.cfg.StressRuns
	}

	sampleStep := 0
	if r.cfg.KeepPaths > 0 {
		sampleStep = runs / r.cfg.KeepPaths
		if sampleStep < 1 {
			sampleStep = 1
		}
	}

	results := make([]PathResult, runs)
	sem := make(chan struct{}, r.cfg.Workers)
	var wg sync.WaitGroup
	for i := 0; i < runs; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(run int) {
			defer wg.Done()
			defer func() { <-sem }()

			rng := rand.New(rand.NewSource(runSeed(r.cfg.Seed, model, run)))
			seq := r.sequence(rng, model, len(r.rs))
			keepPath := sampleStep > 0 && run%sampleStep == 0 && run/sampleStep < r.cfg.KeepPaths
			results[run] = simulatePath(seq, keepPath)
		}(i)
	}
	wg.Wait()

	report := &ModelReport{Model: model, Runs: runs}
	report.Drawdowns = make([]float64, runs)
	for i, res := range results {
		report.Drawdowns[i] = res.MaxDrawdown
		if res.Path != nil {
			report.Paths = append(report.Paths, res.Path)
		}
	}
	report.Stats = computeStats(results, r.cfg.CapitalR)

	r.logger.WithFields(logrus.Fields{
		"model":   model,
		"runs":    runs,
		"ruinPct": report.Stats.RuinPct,
		"pct1DD":  report.Stats.Pct1Drawdown,
	}).Debug("Monte Carlo model complete")
	return report, nil
}

// FullReport runs every model.
func (r *Runner) FullReport() (*Report, error) {
	rep := &Report{CapitalR: r.cfg.CapitalR, Trades: len(r.rs)}
	for _, m := range Models {
		mr, err := r.Run(m)
		if err != nil {
			return nil, err
		}
		rep.Models = append(rep.Models, mr)
	}
	return rep, nil
}

// runSeed derives a per-run seed so path identity does not depend on
// goroutine interleaving.
func runSeed(seed int64, model Model, run int) int64 {
	h := seed
	for _, b := range []byte(model) {
		h = h*31 + int64(b)
	}
	return h*2654435761 + int64(run)
}

// sequence generates one resampled R sequence of the target length.
func (r *Runner) sequence(rng *rand.Rand, model Model, target int) []float64 {
	switch model {
	case ModelBlockBootstrap:
		return r.blockSequence(rng, target)
	case ModelCorrelationPreserving:
		return r.bucketSequence(rng, target)
	case ModelStressInjection:
		seq := r.blockSequence(rng, target)
		r.injectStress(rng, seq)
		return seq
	default:
		return r.shuffleSequence(rng, target)
	}
}

func (r *Runner) shuffleSequence(rng *rand.Rand, target int) []float64 {
	seq := make([]float64, 0, target)
	for _, i := range rng.Perm(len(r.rs)) {
		seq = append(seq, r.rs[i])
	}
	for len(seq) < target {
		seq = append(seq, r.rs[rng.Intn(len(r.rs))])
	}
	return seq[:target]
}

func (r *Runner) blockSequence(rng *rand.Rand, target int) []float64 {
	seq := make([]float64, 0, target+r.cfg.BlockSize)
	for len(seq) < target {
		start := rng.Intn(len(r.rs) - r.cfg.BlockSize + 1)
		seq = append(seq, r.rs[start:start+r.cfg.BlockSize]...)
	}
	return seq[:target]
}

func (r *Runner) bucketSequence(rng *rand.Rand, target int) []float64 {
	seq := make([]float64, 0, target)
	for len(seq) < target {
		seq = append(seq, r.buckets[rng.Intn(len(r.buckets))]...)
	}
	return seq[:target]
}

// injectStress overwrites the sequence in place: forced loss streaks at
// spaced insertion points, then win decay.
func (r *Runner) injectStress(rng *rand.Rand, seq []float64) {
	n := len(seq)
	numStreaks := stressMinStreaks + rng.Intn(stressExtraStreaks)
	var used []int

	for k := 0; k < numStreaks; k++ {
		streakLen := stressMinLen + rng.Intn(stressExtraLen)
		if streakLen >= n {
			streakLen = n
		}
		insertAt := 0
		for attempt := 0; attempt < stressPlaceRetries; attempt++ {
			insertAt = rng.Intn(n - streakLen + 1)
			ok := true
			for _, z := range used {
				if abs(insertAt-z) < stressMinGap {
					ok = false
					break
				}
			}
			if ok {
				break
			}
		}
		used = append(used, insertAt)
		for s := 0; s < streakLen; s++ {
			seq[insertAt+s] = stressStreakR
		}
	}

	decayRate := stressDecayBase + rng.Float64()*stressDecaySpread
	for i, v := range seq {
		if v > 0 && rng.Float64() < decayRate {
			seq[i] = stressDecayLossR
		}
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// simulatePath walks a resampled R sequence and tracks the running peak
// and max drawdown. The retained path starts at zero equity.
func simulatePath(seq []float64, keepPath bool) PathResult {
	var equity, peak, maxDD float64
	var path []float64
	if keepPath {
		path = make([]float64, 0, len(seq)+1)
		path = append(path, 0)
	}
	for _, r := range seq {
		equity += r
		if keepPath {
			path = append(path, equity)
		}
		if equity > peak {
			peak = equity
		}
		if dd := peak - equity; dd > maxDD {
			maxDD = dd
		}
	}
	return PathResult{FinalEquity: equity, MaxDrawdown: maxDD, Path: path}
}
