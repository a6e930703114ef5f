package engine

import (
	"time"

	"github.com/yourusername/edge-lab/internal/signal"
)

// ExitReason records which rule closed a position.
type ExitReason string

const (
	ExitStop   ExitReason = "stop"
	ExitTarget ExitReason = "target"
	ExitTime   ExitReason = "time"
)

// Trade is an immutable record of a closed position.
type Trade struct {
	Pair       string           `json:"pair"`
	Direction  signal.Direction `json:"direction"`
	EntryTime  time.Time        `json:"entry_time"`
	EntryPrice float64          `json:"entry_price"`
	StopPrice  float64          `json:"stop_price"`
	ExitTime   time.Time        `json:"exit_time"`
	ExitPrice  float64          `json:"exit_price"`
	ExitReason ExitReason       `json:"exit_reason"`

	GrossR float64       `json:"gross_r"`
	NetR   float64       `json:"net_r"`
	Costs  CostBreakdown `json:"costs"`

	DurationBars  int     `json:"duration_bars"`
	MaxFavorableR float64 `json:"max_favorable_r"`
	MaxAdverseR   float64 `json:"max_adverse_r"`
	ScaleLevel    int     `json:"scale_level"`

	Setup               bool `json:"setup"`
	Trigger             bool `json:"trigger"`
	LiquidationOverride bool `json:"liquidation_override"`
}

// position is the engine-internal open-trade state. It exists only between
// entry and exit; exactly one per pair at a time.
type position struct {
	entryIndex int
	entryTime  time.Time
	entryPrice float64
	stopPrice  float64
	targetPrice float64
	riskPerUnit float64

	scaleLevel    int
	positionSizeR float64
	maxFavorableR float64
	maxAdverseR   float64

	setup               bool
	trigger             bool
	liquidationOverride bool
}

// Scale-in schedule: +0.5R of size once MFE crosses 1R, +0.25R once it
// crosses 2R. Levels fire at most once and never move the stop.
const (
	scaleFirstThresholdR  = 1.0
	scaleFirstAdd         = 0.5
	scaleSecondThresholdR = 2.0
	scaleSecondAdd        = 0.25
)

// scaledR maps a base exit R through the scale-in adjustment: each filled
// level contributes its added size times the distance between the exit R
// and the level's entry threshold. The arithmetic mirrors the original
// sizing approximation and is kept verbatim.
func (p *position) scaledR(baseR float64) float64 {
	r := baseR
	if p.scaleLevel >= 1 {
		r += scaleFirstAdd * (baseR - scaleFirstThresholdR)
	}
	if p.scaleLevel >= 2 {
		r += scaleSecondAdd * (baseR - scaleSecondThresholdR)
	}
	return r
}
