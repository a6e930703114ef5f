// Package indicator precomputes the per-bar indicator arrays the signal
// rules read. A Frame is built once per backtest run and never mutated.
package indicator

import (
	"math"

	"github.com/yourusername/edge-lab/internal/market"
)

// atrFloorPct keeps ATR from collapsing to zero on flat bars: the floor is
// 0.1% of the bar's close.
const atrFloorPct = 0.001

// Values holds the indicator readings for a single bar.
type Values struct {
	EMA20  float64
	EMA50  float64
	EMA100 float64
	EMA200 float64
	RSI    float64
	ATR    float64
	ADX    float64
}

// Frame is an indicator array index-aligned 1:1 with its candle series.
type Frame []Values

// EMA returns the named moving average so rules can select their pullback
// reference from configuration.
func (v Values) EMA(name string) float64 {
	switch name {
	case "ema20":
		return v.EMA20
	case "ema100":
		return v.EMA100
	case "ema200":
		return v.EMA200
	default:
		return v.EMA50
	}
}

// Precompute builds the frame for a candle series. Bars inside an
// indicator's warm-up window fall back to the next shorter average, the way
// the slower EMAs degrade before enough history exists.
func Precompute(candles market.Series) Frame {
	n := len(candles)
	closes := make([]float64, n)
	for i, c := range candles {
		closes[i] = c.Close
	}

	ema20 := ema(closes, 20)
	ema50 := ema(closes, 50)
	ema100 := ema(closes, 100)
	ema200 := ema(closes, 200)
	rsi14 := rsi(closes, 14)
	atr14 := atr(candles, 14)
	adx14 := adx(candles, 14)

	frame := make(Frame, n)
	for i := range frame {
		e50 := fallback(ema50[i], closes[i])
		e100 := fallback(ema100[i], e50)
		e200 := fallback(ema200[i], e100)

		a := atr14[i]
		if math.IsNaN(a) {
			a = 0
		}
		floor := candles[i].Close * atrFloorPct
		if a < floor {
			a = floor
		}

		frame[i] = Values{
			EMA20:  fallback(ema20[i], closes[i]),
			EMA50:  e50,
			EMA100: e100,
			EMA200: e200,
			RSI:    fallback(rsi14[i], 0),
			ATR:    a,
			ADX:    fallback(adx14[i], 0),
		}
	}
	return frame
}

func fallback(v, alt float64) float64 {
	if math.IsNaN(v) {
		return alt
	}
	return v
}

// ema computes an exponential moving average seeded with the simple average
// of the first period values; earlier indices are NaN.
func ema(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if len(values) < period {
		return out
	}

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	out[period-1] = sum / float64(period)

	k := 2.0 / (float64(period) + 1.0)
	for i := period; i < len(values); i++ {
		out[i] = values[i]*k + out[i-1]*(1-k)
	}
	return out
}

// rsi computes Wilder's relative strength index.
func rsi(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if len(values) <= period {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		diff := values[i] - values[i-1]
		if diff > 0 {
			avgGain += diff
		} else {
			avgLoss -= diff
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(values); i++ {
		diff := values[i] - values[i-1]
		gain, loss := 0.0, 0.0
		if diff > 0 {
			gain = diff
		} else {
			loss = -diff
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// atr computes Wilder's average true range.
func atr(candles market.Series, period int) []float64 {
	out := nanSlice(len(candles))
	if len(candles) <= period {
		return out
	}

	tr := make([]float64, len(candles))
	tr[0] = candles[0].Range()
	for i := 1; i < len(candles); i++ {
		tr[i] = trueRange(candles[i], candles[i-1])
	}

	sum := 0.0
	for i := 1; i <= period; i++ {
		sum += tr[i]
	}
	out[period] = sum / float64(period)
	for i := period + 1; i < len(candles); i++ {
		out[i] = (out[i-1]*float64(period-1) + tr[i]) / float64(period)
	}
	return out
}

func trueRange(c, prev market.Candle) float64 {
	tr := c.Range()
	if hc := math.Abs(c.High - prev.Close); hc > tr {
		tr = hc
	}
	if lc := math.Abs(c.Low - prev.Close); lc > tr {
		tr = lc
	}
	return tr
}

// adx computes Wilder's average directional index.
func adx(candles market.Series, period int) []float64 {
	out := nanSlice(len(candles))
	if len(candles) < 2*period+1 {
		return out
	}

	n := len(candles)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	tr := make([]float64, n)
	for i := 1; i < n; i++ {
		up := candles[i].High - candles[i-1].High
		down := candles[i-1].Low - candles[i].Low
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
		tr[i] = trueRange(candles[i], candles[i-1])
	}

	var smTR, smPlus, smMinus float64
	for i := 1; i <= period; i++ {
		smTR += tr[i]
		smPlus += plusDM[i]
		smMinus += minusDM[i]
	}

	dx := make([]float64, n)
	dx[period] = dxValue(smPlus, smMinus, smTR)
	for i := period + 1; i < n; i++ {
		smTR = smTR - smTR/float64(period) + tr[i]
		smPlus = smPlus - smPlus/float64(period) + plusDM[i]
		smMinus = smMinus - smMinus/float64(period) + minusDM[i]
		dx[i] = dxValue(smPlus, smMinus, smTR)
	}

	sum := 0.0
	for i := period; i < 2*period; i++ {
		sum += dx[i]
	}
	out[2*period-1] = sum / float64(period)
	for i := 2 * period; i < n; i++ {
		out[i] = (out[i-1]*float64(period-1) + dx[i]) / float64(period)
	}
	return out
}

func dxValue(plus, minus, tr float64) float64 {
	if tr == 0 {
		return 0
	}
	pdi := 100 * plus / tr
	mdi := 100 * minus / tr
	if pdi+mdi == 0 {
		return 0
	}
	return 100 * math.Abs(pdi-mdi) / (pdi + mdi)
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
