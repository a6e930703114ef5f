// Package signal implements the entry rule set: pure predicates over a
// fixed lookback window ending at the evaluation bar. No rule ever reads a
// bar past its index, so the engine stays free of look-ahead by
// construction.
package signal

import (
	"math"

	"github.com/yourusername/edge-lab/internal/indicator"
	"github.com/yourusername/edge-lab/internal/market"
)

// Direction of a candidate trade. The short and long variants of each rule
// family share one implementation parameterized by direction.
type Direction string

const (
	Short Direction = "short"
	Long  Direction = "long"
)

// Valid reports whether the direction is short or long.
func (d Direction) Valid() bool {
	return d == Short || d == Long
}

// Sign returns +1 for long, -1 for short.
func (d Direction) Sign() float64 {
	if d == Long {
		return 1
	}
	return -1
}

// Params are the tunable rule multipliers. Defaults differ per asset class:
// stock sessions move slower and get looser thresholds.
type Params struct {
	ATRExpansionMult   float64
	RangeExpansionMult float64
	ImpulseMult        float64
	PullbackEMA        string
	VolFailMult        float64
	WickMult           float64
	StopATRBuffer      float64
}

// DefaultParams returns the rule multipliers for an asset class.
func DefaultParams(asset market.AssetClass) Params {
	p := Params{
		ATRExpansionMult:   1.5,
		RangeExpansionMult: 1.3,
		ImpulseMult:        1.2,
		PullbackEMA:        "ema50",
		VolFailMult:        0.7,
		WickMult:           0.6,
		StopATRBuffer:      0.25,
	}
	if asset == market.AssetStocks {
		p.ATRExpansionMult = 1.1
		p.RangeExpansionMult = 1.1
		p.ImpulseMult = 0.8
		p.WickMult = 0.45
	}
	return p
}

// RegimeFilter is an injectable higher-timeframe gate evaluated at the slow
// series index. A nil filter passes every bar.
type RegimeFilter func(i int) bool

// VolatilityExpansion reports whether the bar sits in an expansion regime:
// ATR14 above a multiple of its 50-bar average and the current range above
// a multiple of the 20-bar average range. Requires i >= 50.
func VolatilityExpansion(candles market.Series, frame indicator.Frame, i int, p Params) bool {
	if i < 50 {
		return false
	}

	atrSum := 0.0
	for j := i - 50; j < i; j++ {
		atrSum += frame[j].ATR
	}
	atr50 := atrSum / 50

	rangeSum := 0.0
	for j := i - 20; j < i; j++ {
		rangeSum += candles[j].Range()
	}
	avgRange20 := rangeSum / 20

	return frame[i].ATR > p.ATRExpansionMult*atr50 &&
		candles[i].Range() > p.RangeExpansionMult*avgRange20
}

// Setup detects a failed bounce (short) or failed pullback (long): an
// impulse bar four bars back, a retracement bar that could not reclaim the
// configured moving average, and fading volume on the retracement.
func Setup(candles market.Series, frame indicator.Frame, i int, dir Direction, p Params) bool {
	if i < 5 {
		return false
	}

	impulse := candles[i-4]
	retrace := candles[i-1]
	impulseATR := frame[i-4].ATR
	refEMA := frame[i-1].EMA(p.PullbackEMA)

	volumeFail := retrace.Volume < p.VolFailMult*impulse.Volume

	if dir == Long {
		rallyImpulse := (impulse.High - impulse.Open) >= p.ImpulseMult*impulseATR
		weakPullback := retrace.Low >= refEMA
		return rallyImpulse && weakPullback && volumeFail
	}

	dropImpulse := (impulse.Open - impulse.Low) >= p.ImpulseMult*impulseATR
	weakBounce := retrace.High <= refEMA
	return dropImpulse && weakBounce && volumeFail
}

// Trigger detects the rejection-then-continuation bar pair: the prior bar
// shows a wick of at least WickMult of its range against the move and the
// current bar confirms with a new extreme on expanding volume.
func Trigger(candles market.Series, i int, dir Direction, p Params) bool {
	if i < 2 {
		return false
	}

	reject := candles[i-1]
	next := candles[i]
	barRange := reject.Range()

	if dir == Long {
		wick := math.Min(reject.Open, reject.Close) - reject.Low
		rejection := wick >= p.WickMult*barRange
		breakout := next.High > reject.High && next.Volume > reject.Volume
		return rejection && breakout
	}

	wick := reject.High - math.Max(reject.Open, reject.Close)
	rejection := wick >= p.WickMult*barRange
	breakdown := next.Low < reject.Low && next.Volume > reject.Volume
	return rejection && breakdown
}

// LiquidationSpike is the order-book-free liquidation proxy: range expansion
// over 1.8x the prior bar, a volume spike over 2.5x, and a close pinned in
// the far 60% of the bar in the move direction. It can substitute for a
// missing setup or trigger and arms scale-in eligibility while a position
// is open.
func LiquidationSpike(candles market.Series, i int, dir Direction) bool {
	if i < 2 {
		return false
	}

	c := candles[i]
	prev := candles[i-1]
	barRange := c.Range()
	if barRange <= 0 {
		return false
	}

	rangeExpansion := barRange > 1.8*prev.Range()
	volumeSpike := c.Volume > 2.5*prev.Volume

	if dir == Long {
		strongBullClose := c.Close > c.Open && (c.Close-c.Open)/barRange > 0.6
		return rangeExpansion && volumeSpike && strongBullClose
	}

	strongBearClose := c.Close < c.Open && (c.Open-c.Close)/barRange > 0.6
	return rangeExpansion && volumeSpike && strongBearClose
}

// InitialStop places the stop beyond the pre-entry extreme of the
// retracement bar by an ATR buffer: above the bounce high for shorts, below
// the pullback low for longs.
func InitialStop(candles market.Series, frame indicator.Frame, i int, dir Direction, p Params) float64 {
	if dir == Long {
		return candles[i-1].Low - p.StopATRBuffer*frame[i].ATR
	}
	return candles[i-1].High + p.StopATRBuffer*frame[i].ATR
}
