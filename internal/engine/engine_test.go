package engine

import (
	"testing"
	"time"

	"github.com/yourusername/edge-lab/internal/indicator"
	"github.com/yourusername/edge-lab/internal/market"
	"github.com/yourusername/edge-lab/internal/signal"
)

// quietSeries builds n flat candles: range 1, volume 1000. Individual bars
// are then reshaped by tests to script entries and exits.
func quietSeries(n int) market.Series {
	base := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	s := make(market.Series, n)
	for i := range s {
		s[i] = market.Candle{
			Time: base.Add(time.Duration(i) * 15 * time.Minute),
			Open: 100, High: 100.5, Low: 99.5, Close: 100,
			Volume: 1000,
		}
	}
	return s
}

func constantFrame(n int, atr float64) indicator.Frame {
	f := make(indicator.Frame, n)
	for i := range f {
		f[i] = indicator.Values{EMA20: 100, EMA50: 100, EMA100: 100, EMA200: 100, ATR: atr}
	}
	return f
}

func testConfig() Config {
	return Config{
		Pair:           "BTCUSDT",
		Direction:      signal.Short,
		Asset:          market.AssetCrypto,
		TargetR:        2,
		MinStopPct:     0.003,
		MaxBarsInTrade: 50,
		Rules:          signal.DefaultParams(market.AssetCrypto),
	}
}

// scriptShortEntry reshapes bar i into a bearish liquidation spike that
// passes the whole entry chain via override, and makes the slow frame show
// a volatility expansion on that bar only. Entry fills at the bar's close
// (96.5) with the stop at prior high + 0.25*ATR(2) = 101, so risk = 4.5.
func scriptShortEntry(fast market.Series, slowFrame indicator.Frame, i int) {
	fast[i] = market.Candle{
		Time: fast[i].Time,
		Open: 101, High: 101.5, Low: 96, Close: 96.5,
		Volume: 5000,
	}
	slowFrame[i] = indicator.Values{EMA50: 100, ATR: 2}
}

// runScripted runs the engine with the fast series doubling as its own
// slow timeframe, which keeps the merge pointer in lockstep with the bar
// index.
func runScripted(t *testing.T, cfg Config, fast market.Series, slowFrame indicator.Frame) *Result {
	t.Helper()
	fastFrame := constantFrame(len(fast), 2)
	eng, err := New(cfg, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := eng.Run(fast, fastFrame, fast, slowFrame)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return res
}

func TestInsufficientHistoryReturnsNil(t *testing.T) {
	fast := quietSeries(150)
	fastFrame := constantFrame(150, 2)
	eng, err := New(testConfig(), nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := eng.Run(fast, fastFrame, fast, constantFrame(150, 1))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res != nil {
		t.Fatal("expected nil result below the warm-up threshold")
	}
}

func TestUnorderedSeriesIsAnError(t *testing.T) {
	fast := quietSeries(250)
	fast[10].Time = fast[9].Time
	eng, _ := New(testConfig(), nil, nil)
	if _, err := eng.Run(fast, constantFrame(250, 2), fast, constantFrame(250, 1)); err == nil {
		t.Fatal("expected error for unordered candles")
	}
}

func TestStopExit(t *testing.T) {
	fast := quietSeries(250)
	slowFrame := constantFrame(250, 1)
	scriptShortEntry(fast, slowFrame, 130)
	// Next bar trades through the stop at 101.
	fast[131].High = 102

	res := runScripted(t, testConfig(), fast, slowFrame)
	if len(res.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(res.Trades))
	}
	tr := res.Trades[0]
	if tr.ExitReason != ExitStop {
		t.Fatalf("exit reason = %s, want stop", tr.ExitReason)
	}
	if tr.GrossR != -1 {
		t.Fatalf("gross R = %f, want -1", tr.GrossR)
	}
	if tr.ExitPrice != tr.StopPrice {
		t.Fatalf("stop exit should fill at the stop price")
	}
	if tr.DurationBars != 1 {
		t.Fatalf("duration = %d, want 1", tr.DurationBars)
	}
}

func TestTargetExit(t *testing.T) {
	fast := quietSeries(250)
	slowFrame := constantFrame(250, 1)
	scriptShortEntry(fast, slowFrame, 130)
	// Drift down without touching the stop, then pierce the 87.5 target.
	for i := 131; i < 135; i++ {
		fast[i] = market.Candle{Time: fast[i].Time, Open: 95, High: 95.5, Low: 94.5, Close: 95, Volume: 1000}
	}
	fast[135] = market.Candle{Time: fast[135].Time, Open: 94, High: 94.5, Low: 87, Close: 88, Volume: 1200}

	res := runScripted(t, testConfig(), fast, slowFrame)
	if len(res.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(res.Trades))
	}
	tr := res.Trades[0]
	if tr.ExitReason != ExitTarget {
		t.Fatalf("exit reason = %s, want target", tr.ExitReason)
	}
	if tr.GrossR != 2 {
		t.Fatalf("gross R = %f, want TargetR 2 with no scale-ins", tr.GrossR)
	}
}

func TestStopBeforeTargetOnSameBar(t *testing.T) {
	fast := quietSeries(250)
	slowFrame := constantFrame(250, 1)
	scriptShortEntry(fast, slowFrame, 130)
	// One bar wide enough to satisfy both stop (101) and target (87.5):
	// must resolve as a stop.
	fast[131] = market.Candle{Time: fast[131].Time, Open: 96, High: 102, Low: 86, Close: 90, Volume: 9000}

	res := runScripted(t, testConfig(), fast, slowFrame)
	if len(res.Trades) != 1 || res.Trades[0].ExitReason != ExitStop {
		t.Fatal("ambiguous bar must resolve as a stop")
	}
}

func TestTimeExitBoundary(t *testing.T) {
	cfg := testConfig()
	cfg.MaxBarsInTrade = 3

	fast := quietSeries(250)
	slowFrame := constantFrame(250, 1)
	scriptShortEntry(fast, slowFrame, 130)
	// Quiet bars below the stop and above the target until the clock runs out.
	for i := 131; i < 140; i++ {
		fast[i] = market.Candle{Time: fast[i].Time, Open: 95, High: 95.5, Low: 94.5, Close: 95, Volume: 1000}
	}

	res := runScripted(t, cfg, fast, slowFrame)
	if len(res.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(res.Trades))
	}
	tr := res.Trades[0]
	if tr.ExitReason != ExitTime {
		t.Fatalf("exit reason = %s, want time", tr.ExitReason)
	}
	if tr.DurationBars != cfg.MaxBarsInTrade {
		t.Fatalf("duration = %d, want %d", tr.DurationBars, cfg.MaxBarsInTrade)
	}
	// Short from 96.5 closed at 95 with risk 4.5.
	want := (96.5 - 95.0) / 4.5
	if diff := tr.GrossR - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("gross R = %f, want %f", tr.GrossR, want)
	}
}

func TestScaleInAdjustsExitR(t *testing.T) {
	fast := quietSeries(250)
	slowFrame := constantFrame(250, 1)
	scriptShortEntry(fast, slowFrame, 130)
	// Quiet bar, then a second bearish spike with MFE past 1R
	// ((96.5-89.5)/4.5 = 1.56): fills the first scale level.
	fast[131] = market.Candle{Time: fast[131].Time, Open: 96, High: 96.5, Low: 95.5, Close: 96, Volume: 1000}
	fast[132] = market.Candle{Time: fast[132].Time, Open: 95, High: 95.5, Low: 89.5, Close: 90, Volume: 3000}
	// Then take the stop.
	fast[133].High = 102

	res := runScripted(t, testConfig(), fast, slowFrame)
	if len(res.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(res.Trades))
	}
	tr := res.Trades[0]
	if tr.ScaleLevel != 1 {
		t.Fatalf("scale level = %d, want 1", tr.ScaleLevel)
	}
	if tr.GrossR != -1.5 {
		t.Fatalf("stop after one scale-in: gross R = %f, want -1.5", tr.GrossR)
	}
}

func TestScaledTargetR(t *testing.T) {
	p := &position{scaleLevel: 2}
	// TP_R 4 with both levels filled: 4 + 0.5*(4-1) + 0.25*(4-2) = 6.
	if got := p.scaledR(4); got != 6 {
		t.Fatalf("scaledR(4) = %f, want 6", got)
	}
	p.scaleLevel = 1
	if got := p.scaledR(3); got != 4 {
		t.Fatalf("scaledR(3) = %f, want 4", got)
	}
	p.scaleLevel = 0
	if got := p.scaledR(3); got != 3 {
		t.Fatalf("scaledR(3) = %f, want 3", got)
	}
}

func TestExcursionsMonotoneAndNonNegative(t *testing.T) {
	fast := quietSeries(250)
	slowFrame := constantFrame(250, 1)
	scriptShortEntry(fast, slowFrame, 130)
	fast[131] = market.Candle{Time: fast[131].Time, Open: 96, High: 97, Low: 93, Close: 94, Volume: 1000}
	fast[132] = market.Candle{Time: fast[132].Time, Open: 94, High: 95, Low: 94, Close: 94.5, Volume: 1000}
	fast[133].High = 102

	res := runScripted(t, testConfig(), fast, slowFrame)
	tr := res.Trades[0]
	if tr.MaxFavorableR < 0 || tr.MaxAdverseR < 0 {
		t.Fatal("excursions must be non-negative")
	}
	// Bar 132 retraced but MFE must keep the bar-131 extreme: (96.5-93)/4.5.
	want := (96.5 - 93.0) / 4.5
	if diff := tr.MaxFavorableR - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("MFE = %f, want %f", tr.MaxFavorableR, want)
	}
}

func TestTightStopBlocked(t *testing.T) {
	cfg := testConfig()
	cfg.MinStopPct = 0.10 // risk 4.5 on entry 96.5 is ~4.7%: below 10%

	fast := quietSeries(250)
	slowFrame := constantFrame(250, 1)
	scriptShortEntry(fast, slowFrame, 130)

	res := runScripted(t, cfg, fast, slowFrame)
	if len(res.Trades) != 0 {
		t.Fatal("tight stop should block the entry")
	}
	if res.Diagnostics.TightStopBlocks != 1 {
		t.Fatalf("tight stop blocks = %d, want 1", res.Diagnostics.TightStopBlocks)
	}
}

func TestRegimeFilterBlocksAndCounts(t *testing.T) {
	cfg := testConfig()
	fast := quietSeries(250)
	slowFrame := constantFrame(250, 1)
	scriptShortEntry(fast, slowFrame, 130)

	eng, err := New(cfg, func(int) bool { return false }, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := eng.Run(fast, constantFrame(250, 2), fast, slowFrame)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Trades) != 0 {
		t.Fatal("regime filter should block all entries")
	}
	if res.Diagnostics.RegimeBlocks != res.Diagnostics.TotalBars {
		t.Fatal("every evaluated bar should count a regime block")
	}
}

func TestDiagnosticsOverrideCounter(t *testing.T) {
	fast := quietSeries(250)
	slowFrame := constantFrame(250, 1)
	scriptShortEntry(fast, slowFrame, 130)
	fast[131].High = 102

	res := runScripted(t, testConfig(), fast, slowFrame)
	// The scripted entry has neither setup nor trigger: the liquidation
	// spike overrides both and must be counted once.
	if res.Diagnostics.LiquidationOverrides != 1 {
		t.Fatalf("overrides = %d, want 1", res.Diagnostics.LiquidationOverrides)
	}
	if res.Diagnostics.EntriesTaken != 1 {
		t.Fatalf("entries = %d, want 1", res.Diagnostics.EntriesTaken)
	}
	if res.Diagnostics.TradesClosed != 1 {
		t.Fatalf("trades closed = %d, want 1", res.Diagnostics.TradesClosed)
	}
}

func TestNoTradesBeforeStartOffset(t *testing.T) {
	cfg := testConfig()
	cfg.StartOffset = 200

	fast := quietSeries(350)
	slowFrame := constantFrame(350, 1)
	// Entry opportunity inside the warm-up region must be ignored.
	scriptShortEntry(fast, slowFrame, 150)
	fast[151].High = 102
	// And one in the live region is taken.
	scriptShortEntry(fast, slowFrame, 260)
	fast[261].High = 103

	res := runScripted(t, cfg, fast, slowFrame)
	if len(res.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(res.Trades))
	}
	if !res.Trades[0].EntryTime.Equal(fast[260].Time) {
		t.Fatal("trade must come from the live region, not the warm-up")
	}
}
