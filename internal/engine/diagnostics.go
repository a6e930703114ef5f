package engine

// Diagnostics counts per-bar entry decisions for one backtest run. Counters
// only ever increment; each failed gate in the entry chain bumps exactly
// one of them.
type Diagnostics struct {
	TotalBars            int     `json:"total_bars"`
	RegimeBlocks         int     `json:"regime_blocks"`
	VolatilityBlocks     int     `json:"volatility_blocks"`
	SetupBlocks          int     `json:"setup_blocks"`
	TriggerBlocks        int     `json:"trigger_blocks"`
	TightStopBlocks      int     `json:"tight_stop_blocks"`
	LiquidationOverrides int     `json:"liquidation_overrides"`
	EntriesTaken         int     `json:"entries_taken"`
	TradesClosed         int     `json:"trades_closed"`
	SumNetR              float64 `json:"sum_net_r"`
}

// EntryRate returns entries taken per evaluated bar.
func (d Diagnostics) EntryRate() float64 {
	if d.TotalBars == 0 {
		return 0
	}
	return float64(d.EntriesTaken) / float64(d.TotalBars)
}

// ExpectancyPerTrade returns average net R per closed trade.
func (d Diagnostics) ExpectancyPerTrade() float64 {
	if d.TradesClosed == 0 {
		return 0
	}
	return d.SumNetR / float64(d.TradesClosed)
}

func (d *Diagnostics) recordTrade(netR float64) {
	d.TradesClosed++
	d.SumNetR += netR
}
