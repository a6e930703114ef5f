// Package engine implements the bar-by-bar trade simulation: a two-state
// machine (flat / in position) driven by the signal rules, with realistic
// transaction costs applied to every closed trade.
package engine

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/edge-lab/internal/indicator"
	"github.com/yourusername/edge-lab/internal/market"
	"github.com/yourusername/edge-lab/internal/signal"
)

const (
	// defaultWarmupBars is the minimum indicator warm-up region on the fast
	// timeframe; trades are only recorded at or after this offset.
	defaultWarmupBars = 120
	// minTailBars is the minimum tradeable history beyond the warm-up; with
	// less the run returns no result rather than an error.
	minTailBars = 100
	// slowWarmupBars gates evaluation until the slow timeframe pointer has
	// enough history for the 50-bar volatility baseline.
	slowWarmupBars = 50
)

// Config parameterizes a single engine run. Everything that a grid search
// might vary is an explicit field here, never package state, so concurrent
// runs stay independent.
type Config struct {
	Pair      string
	Direction signal.Direction
	Asset     market.AssetClass

	TargetR        float64
	MinStopPct     float64
	MaxBarsInTrade int
	StartOffset    int

	Rules signal.Params
	Costs CostConfig
}

// Validate checks the run parameters.
func (c Config) Validate() error {
	if c.Pair == "" {
		return fmt.Errorf("pair is required")
	}
	if !c.Direction.Valid() {
		return fmt.Errorf("invalid direction %q", c.Direction)
	}
	if !c.Asset.Valid() {
		return fmt.Errorf("invalid asset class %q", c.Asset)
	}
	if c.TargetR <= 0 {
		return fmt.Errorf("target R multiple must be positive")
	}
	if c.MaxBarsInTrade <= 0 {
		return fmt.Errorf("max bars in trade must be positive")
	}
	return nil
}

// Result bundles the output of one run. A nil Result (without error) means
// the pair could not be evaluated for lack of history.
type Result struct {
	Pair        string           `json:"pair"`
	Direction   signal.Direction `json:"direction"`
	Trades      []Trade          `json:"trades"`
	Diagnostics Diagnostics      `json:"diagnostics"`
}

// Engine walks one pair's candle stream and emits closed trades. It holds
// no mutable state between runs.
type Engine struct {
	cfg    Config
	costs  CostModel
	regime signal.RegimeFilter
	logger *logrus.Logger
}

// New creates an engine. The regime filter is optional; nil passes every
// bar.
func New(cfg Config, regime signal.RegimeFilter, logger *logrus.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{
		cfg:    cfg,
		costs:  NewCostModel(cfg.Costs),
		regime: regime,
		logger: logger,
	}, nil
}

// Run simulates the pair over the fast timeframe, consulting the slow
// timeframe for the volatility regime. Frames must be index-aligned with
// their series. Insufficient history yields (nil, nil); malformed input
// yields an error.
func (e *Engine) Run(fast market.Series, fastFrame indicator.Frame, slow market.Series, slowFrame indicator.Frame) (*Result, error) {
	if err := fast.Validate(); err != nil {
		return nil, fmt.Errorf("fast series: %w", err)
	}
	if err := slow.Validate(); err != nil {
		return nil, fmt.Errorf("slow series: %w", err)
	}
	if len(fastFrame) != len(fast) {
		return nil, fmt.Errorf("fast frame length %d does not match series length %d", len(fastFrame), len(fast))
	}
	if len(slowFrame) != len(slow) {
		return nil, fmt.Errorf("slow frame length %d does not match series length %d", len(slowFrame), len(slow))
	}

	startOffset := e.cfg.StartOffset
	if startOffset < defaultWarmupBars {
		startOffset = defaultWarmupBars
	}
	if len(fast) < startOffset+minTailBars {
		e.logger.WithFields(logrus.Fields{
			"pair": e.cfg.Pair,
			"bars": len(fast),
			"need": startOffset + minTailBars,
		}).Debug("Insufficient history, skipping pair")
		return nil, nil
	}

	result := &Result{Pair: e.cfg.Pair, Direction: e.cfg.Direction}
	var open *position

	// Monotonic merge pointer into the slow timeframe: advance while the
	// next slow bar has closed at or before the current fast bar.
	h := 0

	for i := startOffset; i < len(fast); i++ {
		c := fast[i]

		for h+1 < len(slow) && !slow[h+1].Time.After(c.Time) {
			h++
		}
		if h < slowWarmupBars {
			continue
		}

		if open != nil {
			if trade, closed := e.manage(open, fast, i); closed {
				result.Trades = append(result.Trades, trade)
				result.Diagnostics.recordTrade(trade.NetR)
				open = nil
			}
			continue
		}

		open = e.tryEnter(fast, fastFrame, slow, slowFrame, i, h, &result.Diagnostics)
	}

	e.logger.WithFields(logrus.Fields{
		"pair":    e.cfg.Pair,
		"trades":  len(result.Trades),
		"entries": result.Diagnostics.EntriesTaken,
	}).Debug("Engine run complete")
	return result, nil
}

// tryEnter evaluates the entry chain at bar i. Gate order is fixed:
// regime, volatility expansion, setup, trigger; a liquidation spike can
// stand in for a missing setup or trigger and is counted as an override.
func (e *Engine) tryEnter(fast market.Series, fastFrame indicator.Frame, slow market.Series, slowFrame indicator.Frame, i, h int, diag *Diagnostics) *position {
	diag.TotalBars++

	if e.regime != nil && !e.regime(h) {
		diag.RegimeBlocks++
		return nil
	}
	if !signal.VolatilityExpansion(slow, slowFrame, h, e.cfg.Rules) {
		diag.VolatilityBlocks++
		return nil
	}

	setup := signal.Setup(fast, fastFrame, i, e.cfg.Direction, e.cfg.Rules)
	liquidationNow := signal.LiquidationSpike(fast, i, e.cfg.Direction)

	if !setup && !liquidationNow {
		diag.SetupBlocks++
		return nil
	}

	trigger := signal.Trigger(fast, i, e.cfg.Direction, e.cfg.Rules)
	if !trigger && !liquidationNow {
		diag.TriggerBlocks++
		return nil
	}

	if liquidationNow && (!setup || !trigger) {
		diag.LiquidationOverrides++
	}

	c := fast[i]
	entry := c.Close
	stop := signal.InitialStop(fast, fastFrame, i, e.cfg.Direction, e.cfg.Rules)
	risk := math.Abs(stop - entry)
	if risk <= 0 {
		// Degenerate stop placement: skip this candidate silently.
		return nil
	}
	if risk/entry < e.cfg.MinStopPct {
		diag.TightStopBlocks++
		return nil
	}

	diag.EntriesTaken++
	return &position{
		entryIndex:          i,
		entryTime:           c.Time,
		entryPrice:          entry,
		stopPrice:           stop,
		targetPrice:         entry + e.cfg.Direction.Sign()*risk*e.cfg.TargetR,
		riskPerUnit:         risk,
		positionSizeR:       1,
		setup:               setup,
		trigger:             trigger,
		liquidationOverride: liquidationNow,
	}
}

// manage advances an open position by one bar: update excursions, fill
// scale-in levels, then resolve exits with stop checked before target on
// the same bar (the conservative assumption when both could fill).
func (e *Engine) manage(p *position, fast market.Series, i int) (Trade, bool) {
	c := fast[i]
	durationBars := i - p.entryIndex

	var favorableR, adverseR float64
	if e.cfg.Direction == signal.Long {
		favorableR = (c.High - p.entryPrice) / p.riskPerUnit
		adverseR = (p.entryPrice - c.Low) / p.riskPerUnit
	} else {
		favorableR = (p.entryPrice - c.Low) / p.riskPerUnit
		adverseR = (c.High - p.entryPrice) / p.riskPerUnit
	}
	p.maxFavorableR = math.Max(p.maxFavorableR, favorableR)
	p.maxAdverseR = math.Max(p.maxAdverseR, adverseR)

	// Scale-ins arm on a liquidation spike in the trade direction once the
	// excursion threshold has been crossed. The stop price never moves.
	if p.scaleLevel == 0 && p.maxFavorableR >= scaleFirstThresholdR && signal.LiquidationSpike(fast, i, e.cfg.Direction) {
		p.positionSizeR += scaleFirstAdd
		p.scaleLevel = 1
	}
	if p.scaleLevel == 1 && p.maxFavorableR >= scaleSecondThresholdR && signal.LiquidationSpike(fast, i, e.cfg.Direction) {
		p.positionSizeR += scaleSecondAdd
		p.scaleLevel = 2
	}

	stopHit := c.High >= p.stopPrice
	targetHit := c.Low <= p.targetPrice
	if e.cfg.Direction == signal.Long {
		stopHit = c.Low <= p.stopPrice
		targetHit = c.High >= p.targetPrice
	}

	switch {
	case stopHit:
		return e.closeTrade(p, c, durationBars, p.stopPrice, -p.positionSizeR, ExitStop), true
	case targetHit:
		return e.closeTrade(p, c, durationBars, p.targetPrice, p.scaledR(e.cfg.TargetR), ExitTarget), true
	case durationBars >= e.cfg.MaxBarsInTrade:
		rawR := e.cfg.Direction.Sign() * (c.Close - p.entryPrice) / p.riskPerUnit
		return e.closeTrade(p, c, durationBars, c.Close, p.scaledR(rawR), ExitTime), true
	}
	return Trade{}, false
}

func (e *Engine) closeTrade(p *position, c market.Candle, durationBars int, exitPrice, grossR float64, reason ExitReason) Trade {
	netR, costs := e.costs.Apply(grossR, durationBars, p.entryPrice, p.stopPrice)
	return Trade{
		Pair:                e.cfg.Pair,
		Direction:           e.cfg.Direction,
		EntryTime:           p.entryTime,
		EntryPrice:          p.entryPrice,
		StopPrice:           p.stopPrice,
		ExitTime:            c.Time,
		ExitPrice:           exitPrice,
		ExitReason:          reason,
		GrossR:              grossR,
		NetR:                netR,
		Costs:               costs,
		DurationBars:        durationBars,
		MaxFavorableR:       p.maxFavorableR,
		MaxAdverseR:         p.maxAdverseR,
		ScaleLevel:          p.scaleLevel,
		Setup:               p.setup,
		Trigger:             p.trigger,
		LiquidationOverride: p.liquidationOverride,
	}
}
